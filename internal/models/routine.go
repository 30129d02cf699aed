package models

import "time"

// RoutineStatus describes how far a solver run got.
type RoutineStatus string

const (
	RoutineStatusComplete RoutineStatus = "COMPLETE"
	RoutineStatusPartial  RoutineStatus = "PARTIAL"
)

// Routine represents a persisted, versioned routine header.
type Routine struct {
	ID                 string        `db:"id" json:"id"`
	Version            int           `db:"version" json:"version"`
	CatalogFingerprint string        `db:"catalog_fingerprint" json:"catalog_fingerprint"`
	Status             RoutineStatus `db:"status" json:"status"`
	PlacedCount        int           `db:"placed_count" json:"placed_count"`
	UnplacedCount      int           `db:"unplaced_count" json:"unplaced_count"`
	NodesExplored      int           `db:"nodes_explored" json:"nodes_explored"`
	Backtracks         int           `db:"backtracks" json:"backtracks"`
	BudgetExhausted    bool          `db:"budget_exhausted" json:"budget_exhausted"`
	CreatedBy          string        `db:"created_by" json:"created_by"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
}

// RoutineRow is one scheduled booking inside a saved routine, already in
// display order.
type RoutineRow struct {
	ID              string    `db:"id" json:"id"`
	RoutineID       string    `db:"routine_id" json:"routine_id"`
	Position        int       `db:"position" json:"position"`
	Semester        string    `db:"semester" json:"semester"`
	Section         string    `db:"section" json:"section"`
	Day             string    `db:"day" json:"day"`
	StartMinute     int       `db:"start_minute" json:"start_minute"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	TimeRange       string    `db:"time_range" json:"time_range"`
	CourseCode      string    `db:"course_code" json:"course_code"`
	Title           string    `db:"title" json:"title"`
	Room            string    `db:"room" json:"room"`
	ClassType       string    `db:"class_type" json:"class_type"`
	TaskID          string    `db:"task_id" json:"task_id"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// RoutineFilter scopes routine list queries.
type RoutineFilter struct {
	Status   string
	Page     int
	PageSize int
}

// RoutineRowFilter scopes row queries inside one routine.
type RoutineRowFilter struct {
	Semester string
	Section  string
	Day      string
}
