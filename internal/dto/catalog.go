package dto

// CreateSemesterRequest adds a semester to the catalog.
type CreateSemesterRequest struct {
	Name string `json:"name" validate:"required,min=2,max=64"`
}

// CreateRoomRequest adds a room to one of the two pools.
type CreateRoomRequest struct {
	Name string `json:"name" validate:"required,min=1,max=32"`
	Kind string `json:"kind" validate:"required,oneof=CLASSROOM LAB"`
}

// CreateComponentRequest registers a class component under a semester.
type CreateComponentRequest struct {
	SemesterID      string   `json:"semesterId" validate:"required,uuid"`
	CourseCode      string   `json:"courseCode" validate:"required,min=2,max=16"`
	Title           string   `json:"title" validate:"max=128"`
	Sections        []string `json:"sections" validate:"required,min=1,dive,min=1,max=8"`
	ClassType       string   `json:"classType" validate:"required,oneof=THEORY LAB"`
	SessionsPerWeek int      `json:"sessionsPerWeek" validate:"required,min=1,max=7"`
	DurationMinutes int      `json:"durationMinutes" validate:"required,min=1,max=600"`
	RequirementKind string   `json:"requirementKind" validate:"required,oneof=ANY_CLASSROOM ANY_LAB SPECIFIC_ROOM"`
	RequirementRoom *string  `json:"requirementRoom" validate:"omitempty,min=1,max=32"`
}

// UpdateComponentRequest carries a partial component update.
type UpdateComponentRequest struct {
	CourseCode      *string  `json:"courseCode" validate:"omitempty,min=2,max=16"`
	Title           *string  `json:"title" validate:"omitempty,max=128"`
	Sections        []string `json:"sections" validate:"omitempty,min=1,dive,min=1,max=8"`
	ClassType       *string  `json:"classType" validate:"omitempty,oneof=THEORY LAB"`
	SessionsPerWeek *int     `json:"sessionsPerWeek" validate:"omitempty,min=1,max=7"`
	DurationMinutes *int     `json:"durationMinutes" validate:"omitempty,min=1,max=600"`
	RequirementKind *string  `json:"requirementKind" validate:"omitempty,oneof=ANY_CLASSROOM ANY_LAB SPECIFIC_ROOM"`
	RequirementRoom *string  `json:"requirementRoom" validate:"omitempty,min=1,max=32"`
}

// UpdateCalendarRequest replaces the scheduling calendar.
type UpdateCalendarRequest struct {
	WorkingDays []string `json:"workingDays" validate:"required,min=1,dive,oneof=Sunday Monday Tuesday Wednesday Thursday Friday Saturday"`
	StartTime   string   `json:"startTime" validate:"required"`
	EndTime     string   `json:"endTime" validate:"required"`
}

// ImportSummary reports the outcome of a CSV catalog import.
type ImportSummary struct {
	SemestersCreated  int      `json:"semestersCreated"`
	ComponentsCreated int      `json:"componentsCreated"`
	Skipped           []string `json:"skipped,omitempty"`
}
