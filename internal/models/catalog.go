package models

import (
	"time"

	"github.com/lib/pq"
)

// RoomKind distinguishes the two room pools.
type RoomKind string

const (
	RoomKindClassroom RoomKind = "CLASSROOM"
	RoomKindLab       RoomKind = "LAB"
)

// Semester represents a persisted semester row.
type Semester struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Room represents a persisted room row.
type Room struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Kind      RoomKind  `db:"kind" json:"kind"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClassComponent represents a persisted class component row. Sections holds
// the section labels the component must be scheduled for, one lane each.
type ClassComponent struct {
	ID              string         `db:"id" json:"id"`
	SemesterID      string         `db:"semester_id" json:"semester_id"`
	SemesterName    string         `db:"semester_name" json:"semester_name"`
	CourseCode      string         `db:"course_code" json:"course_code"`
	Title           string         `db:"title" json:"title"`
	Sections        pq.StringArray `db:"sections" json:"sections"`
	ClassType       string         `db:"class_type" json:"class_type"`
	SessionsPerWeek int            `db:"sessions_per_week" json:"sessions_per_week"`
	DurationMinutes int            `db:"duration_minutes" json:"duration_minutes"`
	RequirementKind string         `db:"requirement_kind" json:"requirement_kind"`
	RequirementRoom *string        `db:"requirement_room" json:"requirement_room,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// ComponentFilter scopes component list queries.
type ComponentFilter struct {
	SemesterID string
	CourseCode string
	ClassType  string
	Page       int
	PageSize   int
}

// CalendarSettings holds the single scheduling calendar shared by every
// routine run.
type CalendarSettings struct {
	ID          string         `db:"id" json:"id"`
	WorkingDays pq.StringArray `db:"working_days" json:"working_days"`
	StartMinute int            `db:"start_minute" json:"start_minute"`
	EndMinute   int            `db:"end_minute" json:"end_minute"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}
