package engine

import "sort"

// Row is one line of the rendered weekly routine, ready for display/export.
type Row struct {
	Semester        string    `json:"semester"`
	Section         string    `json:"section"`
	Day             string    `json:"day"`
	TimeRange       string    `json:"timeRange"`
	StartMinute     int       `json:"startMinute"`
	DurationMinutes int       `json:"durationMinutes"`
	CourseCode      string    `json:"courseCode"`
	Title           string    `json:"title"`
	Room            string    `json:"room"`
	Type            ClassType `json:"type"`
	TaskID          string    `json:"taskId"`
}

// Project converts the solver's task mapping into ordered timetable rows.
// Sort key: semester, working-day order, start minute, section, course code,
// with the task ID as the final tie-break so output is a stable total order.
func Project(tasks []Task, assignment map[string]Placement, cal Calendar) []Row {
	dayIdx := cal.DayIndex()

	rows := make([]Row, 0, len(assignment))
	for _, t := range tasks {
		p, ok := assignment[t.ID]
		if !ok {
			continue
		}
		rows = append(rows, Row{
			Semester:        t.Semester,
			Section:         t.Section,
			Day:             p.Day,
			TimeRange:       FormatSpan(p.StartMinute, t.DurationMinutes),
			StartMinute:     p.StartMinute,
			DurationMinutes: t.DurationMinutes,
			CourseCode:      t.CourseCode,
			Title:           t.Title,
			Room:            p.Room,
			Type:            t.Type,
			TaskID:          t.ID,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Semester != b.Semester {
			return a.Semester < b.Semester
		}
		if dayIdx[a.Day] != dayIdx[b.Day] {
			return dayIdx[a.Day] < dayIdx[b.Day]
		}
		if a.StartMinute != b.StartMinute {
			return a.StartMinute < b.StartMinute
		}
		if a.Section != b.Section {
			return a.Section < b.Section
		}
		if a.CourseCode != b.CourseCode {
			return a.CourseCode < b.CourseCode
		}
		return a.TaskID < b.TaskID
	})
	return rows
}
