package engine

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
)

// Task is one atomic session instance awaiting exactly one
// (day, start, room) assignment.
type Task struct {
	ID              string          `json:"id"`
	ComponentID     string          `json:"componentId"`
	CourseCode      string          `json:"courseCode"`
	Title           string          `json:"title"`
	Semester        string          `json:"semester"`
	Section         string          `json:"section"`
	Type            ClassType       `json:"type"`
	SessionIndex    int             `json:"sessionIndex"`
	DurationMinutes int             `json:"durationMinutes"`
	Requirement     RoomRequirement `json:"requirement"`
}

// sectionLane is the conflict axis shared by all tasks of one section.
// Sections in different semesters never collide even when named alike.
func (t Task) sectionLane() string {
	return t.Semester + "|" + t.Section
}

// Expand derives the atomic task list from the component catalog: one task
// per (section, session index) pair. The output order is deterministic
// (component input order, then section alphabetical, then session index) so
// repeated runs on unchanged input tie-break identically.
func Expand(components []Component) ([]Task, error) {
	var tasks []Task
	for _, comp := range components {
		if len(comp.Sections) == 0 {
			return nil, fmt.Errorf("component %s has no sections", comp.ID)
		}
		if comp.SessionsPerWeek <= 0 {
			return nil, fmt.Errorf("component %s has no weekly sessions", comp.ID)
		}

		sections := lo.Uniq(comp.Sections)
		sort.Strings(sections)

		for _, section := range sections {
			for idx := 0; idx < comp.SessionsPerWeek; idx++ {
				tasks = append(tasks, Task{
					ID:              fmt.Sprintf("%s/%s/%d", comp.ID, section, idx),
					ComponentID:     comp.ID,
					CourseCode:      comp.CourseCode,
					Title:           comp.Title,
					Semester:        comp.Semester,
					Section:         section,
					Type:            comp.Type,
					SessionIndex:    idx,
					DurationMinutes: comp.DurationMinutes,
					Requirement:     comp.Requirement,
				})
			}
		}
	}
	return tasks, nil
}
