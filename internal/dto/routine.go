package dto

// GenerateRoutineRequest instructs the solver to build a proposal from the
// current catalog. Overrides apply to this run only.
type GenerateRoutineRequest struct {
	NodeBudget    *int `json:"nodeBudget" validate:"omitempty,min=1,max=10000000"`
	MinGapMinutes *int `json:"minGapMinutes" validate:"omitempty,min=0,max=120"`
}

// RoutineRowResponse is one booking in display order.
type RoutineRowResponse struct {
	Semester        string `json:"semester"`
	Section         string `json:"section"`
	Day             string `json:"day"`
	TimeRange       string `json:"timeRange"`
	StartMinute     int    `json:"startMinute"`
	DurationMinutes int    `json:"durationMinutes"`
	CourseCode      string `json:"courseCode"`
	Title           string `json:"title"`
	Room            string `json:"room"`
	ClassType       string `json:"classType"`
	TaskID          string `json:"taskId"`
}

// UnplacedTaskResponse reports one session the solver could not seat.
type UnplacedTaskResponse struct {
	TaskID     string `json:"taskId"`
	CourseCode string `json:"courseCode"`
	Semester   string `json:"semester"`
	Section    string `json:"section"`
	Reason     string `json:"reason"`
}

// SolverStatsResponse summarises the search effort.
type SolverStatsResponse struct {
	Nodes           int  `json:"nodes"`
	Backtracks      int  `json:"backtracks"`
	BudgetExhausted bool `json:"budgetExhausted"`
}

// GenerateRoutineResponse returns the built proposal.
type GenerateRoutineResponse struct {
	ProposalID         string                 `json:"proposalId"`
	CatalogFingerprint string                 `json:"catalogFingerprint"`
	Status             string                 `json:"status"`
	Rows               []RoutineRowResponse   `json:"rows"`
	Unplaced           []UnplacedTaskResponse `json:"unplaced"`
	Stats              SolverStatsResponse    `json:"stats"`
	FromCache          bool                   `json:"fromCache"`
}

// SaveRoutineRequest persists a previously generated proposal.
type SaveRoutineRequest struct {
	ProposalID string `json:"proposalId" validate:"required,uuid"`
}

// RoutineSummaryResponse is one saved routine in a list response.
type RoutineSummaryResponse struct {
	ID                 string `json:"id"`
	Version            int    `json:"version"`
	CatalogFingerprint string `json:"catalogFingerprint"`
	Status             string `json:"status"`
	PlacedCount        int    `json:"placedCount"`
	UnplacedCount      int    `json:"unplacedCount"`
	BudgetExhausted    bool   `json:"budgetExhausted"`
	CreatedAt          string `json:"createdAt"`
}

// RoutineGridCell is one booking inside a day column of the grid view.
type RoutineGridCell struct {
	TimeRange  string `json:"timeRange"`
	CourseCode string `json:"courseCode"`
	Title      string `json:"title"`
	Room       string `json:"room"`
	ClassType  string `json:"classType"`
}

// RoutineGridResponse groups a routine's rows by semester/section and day
// for timetable rendering.
type RoutineGridResponse struct {
	Semester string                       `json:"semester"`
	Section  string                       `json:"section"`
	Days     map[string][]RoutineGridCell `json:"days"`
}
