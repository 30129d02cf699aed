package engine

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertHardConstraints checks every invariant a produced assignment must
// satisfy: eligibility, window containment, and pairwise non-overlap on both
// the room and section lanes.
func assertHardConstraints(t *testing.T, tasks []Task, res Result, cat Catalog) {
	t.Helper()

	byID := make(map[string]Task, len(tasks))
	for _, task := range tasks {
		byID[task.ID] = task
	}

	type booking struct {
		start, end int
	}
	roomLanes := make(map[laneKey][]booking)
	sectionLanes := make(map[laneKey][]booking)

	for id, p := range res.Assignment {
		task, ok := byID[id]
		require.True(t, ok, "assignment references unknown task %s", id)

		end := p.StartMinute + task.DurationMinutes
		assert.GreaterOrEqual(t, p.StartMinute, cat.Calendar.StartMinute, "task %s starts before the window", id)
		assert.LessOrEqual(t, end, cat.Calendar.EndMinute, "task %s ends after the window", id)
		assert.Contains(t, cat.Calendar.WorkingDays, p.Day, "task %s placed on a non-working day", id)
		assert.Contains(t, legalRooms(task, cat.Rooms), p.Room, "task %s placed in an ineligible room", id)

		roomLanes[laneKey{p.Room, p.Day}] = append(roomLanes[laneKey{p.Room, p.Day}], booking{p.StartMinute, end})
		sk := laneKey{task.sectionLane(), p.Day}
		sectionLanes[sk] = append(sectionLanes[sk], booking{p.StartMinute, end})
	}

	checkLane := func(lanes map[laneKey][]booking, label string) {
		for key, bookings := range lanes {
			for i := 0; i < len(bookings); i++ {
				for j := i + 1; j < len(bookings); j++ {
					a, b := bookings[i], bookings[j]
					assert.False(t, a.start < b.end && b.start < a.end,
						"%s lane %v has overlapping bookings %v and %v", label, key, a, b)
				}
			}
		}
	}
	checkLane(roomLanes, "room")
	checkLane(sectionLanes, "section")

	assert.Equal(t, len(tasks), res.Placed()+len(res.Unplaced), "every task must be placed or reported")
	for _, u := range res.Unplaced {
		_, placed := res.Assignment[u.Task.ID]
		assert.False(t, placed, "task %s is both placed and unplaced", u.Task.ID)
	}
}

func mustExpand(t *testing.T, cat Catalog) []Task {
	t.Helper()
	tasks, err := Expand(cat.Components)
	require.NoError(t, err)
	return tasks
}

func TestSolveSingleSession(t *testing.T) {
	// 1 theory component, 1 section, 1 session of 50 min, one classroom,
	// Monday 08:00-17:00: exactly one booking at the window start.
	cat := Catalog{
		Components: []Component{{
			ID: "comp-1", CourseCode: "CSE101", Title: "Intro", Semester: "Fall 2025",
			Sections: []string{"A"}, Type: ClassTypeTheory,
			SessionsPerWeek: 1, DurationMinutes: 50, Requirement: AnyClassroom(),
		}},
		Rooms:    Rooms{Classrooms: []string{"C101"}},
		Calendar: Calendar{WorkingDays: []string{"Monday"}, StartMinute: 480, EndMinute: 1020},
	}
	tasks := mustExpand(t, cat)

	res := Solve(context.Background(), tasks, cat, Options{})
	require.Empty(t, res.Unplaced)
	require.Len(t, res.Assignment, 1)

	p := res.Assignment["comp-1/A/0"]
	assert.Equal(t, Placement{Day: "Monday", StartMinute: 480, Room: "C101"}, p)

	rows := Project(tasks, res.Assignment, cat.Calendar)
	require.Len(t, rows, 1)
	assert.Equal(t, "Monday", rows[0].Day)
	assert.Equal(t, "08:00-08:50", rows[0].TimeRange)
	assert.Equal(t, "C101", rows[0].Room)
}

func TestSolveSectionExclusivityForcesUnplaced(t *testing.T) {
	// Two components share one section; the window only fits one 50-min
	// session, so exactly one task must be reported unplaced.
	cat := Catalog{
		Components: []Component{
			{ID: "comp-1", CourseCode: "CSE101", Semester: "Fall 2025", Sections: []string{"A"},
				Type: ClassTypeTheory, SessionsPerWeek: 1, DurationMinutes: 50, Requirement: AnyClassroom()},
			{ID: "comp-2", CourseCode: "CSE102", Semester: "Fall 2025", Sections: []string{"A"},
				Type: ClassTypeTheory, SessionsPerWeek: 1, DurationMinutes: 50, Requirement: AnyClassroom()},
		},
		Rooms:    Rooms{Classrooms: []string{"C101", "C102"}},
		Calendar: Calendar{WorkingDays: []string{"Monday"}, StartMinute: 480, EndMinute: 540},
	}
	tasks := mustExpand(t, cat)

	res := Solve(context.Background(), tasks, cat, Options{})
	assert.Equal(t, 1, res.Placed())
	require.Len(t, res.Unplaced, 1)
	assert.False(t, res.BudgetExhausted)
	assertHardConstraints(t, tasks, res, cat)
}

func TestSolveBacktrackingRecoversFromGreedyDeadEnd(t *testing.T) {
	// Greedy leftmost placement wedges the short section-A task into the
	// middle of the day, leaving no room for the long section-B task. Only
	// backtracking finds the full assignment.
	cat := Catalog{
		Components: []Component{
			{ID: "lab", CourseCode: "CSE103", Semester: "Fall 2025", Sections: []string{"A"},
				Type: ClassTypeLab, SessionsPerWeek: 1, DurationMinutes: 50, Requirement: AnyLab()},
			{ID: "short", CourseCode: "CSE101", Semester: "Fall 2025", Sections: []string{"A"},
				Type: ClassTypeTheory, SessionsPerWeek: 1, DurationMinutes: 30, Requirement: AnyClassroom()},
			{ID: "long", CourseCode: "CSE102", Semester: "Fall 2025", Sections: []string{"B"},
				Type: ClassTypeTheory, SessionsPerWeek: 1, DurationMinutes: 70, Requirement: AnyClassroom()},
		},
		Rooms:    Rooms{Classrooms: []string{"C101"}, Labs: []string{"L501"}},
		Calendar: Calendar{WorkingDays: []string{"Monday"}, StartMinute: 480, EndMinute: 580},
	}
	tasks := mustExpand(t, cat)

	res := Solve(context.Background(), tasks, cat, Options{})
	assert.Empty(t, res.Unplaced)
	assert.Equal(t, 3, res.Placed())
	assert.Greater(t, res.Stats.Backtracks, 0)
	assertHardConstraints(t, tasks, res, cat)
}

func TestSolveDeterminism(t *testing.T) {
	cat := clusterCatalog()
	tasks := mustExpand(t, cat)

	first := Solve(context.Background(), tasks, cat, Options{})
	second := Solve(context.Background(), tasks, cat, Options{})
	assert.Equal(t, first.Assignment, second.Assignment)
	assert.Equal(t, first.Unplaced, second.Unplaced)
	assert.Equal(t, first.Stats, second.Stats)
}

func TestSolveMinimumGap(t *testing.T) {
	cat := Catalog{
		Components: []Component{
			{ID: "comp-1", CourseCode: "CSE101", Semester: "Fall 2025", Sections: []string{"A"},
				Type: ClassTypeTheory, SessionsPerWeek: 2, DurationMinutes: 50, Requirement: AnyClassroom()},
		},
		Rooms:    Rooms{Classrooms: []string{"C101"}},
		Calendar: Calendar{WorkingDays: []string{"Monday"}, StartMinute: 480, EndMinute: 660},
	}
	tasks := mustExpand(t, cat)

	res := Solve(context.Background(), tasks, cat, Options{MinGapMinutes: 10})
	require.Empty(t, res.Unplaced)

	first := res.Assignment["comp-1/A/0"]
	second := res.Assignment["comp-1/A/1"]
	if first.StartMinute > second.StartMinute {
		first, second = second, first
	}
	assert.GreaterOrEqual(t, second.StartMinute, first.StartMinute+50+10)
}

func TestSolveBackToBackAllowedWithZeroGap(t *testing.T) {
	cat := Catalog{
		Components: []Component{
			{ID: "comp-1", CourseCode: "CSE101", Semester: "Fall 2025", Sections: []string{"A"},
				Type: ClassTypeTheory, SessionsPerWeek: 2, DurationMinutes: 50, Requirement: AnyClassroom()},
		},
		Rooms:    Rooms{Classrooms: []string{"C101"}},
		Calendar: Calendar{WorkingDays: []string{"Monday"}, StartMinute: 480, EndMinute: 580},
	}
	tasks := mustExpand(t, cat)

	res := Solve(context.Background(), tasks, cat, Options{})
	require.Empty(t, res.Unplaced)
	assertHardConstraints(t, tasks, res, cat)
}

func TestSolveEmptyTaskList(t *testing.T) {
	res := Solve(context.Background(), nil, validCatalog(), Options{})
	assert.Empty(t, res.Assignment)
	assert.Empty(t, res.Unplaced)
	assert.False(t, res.BudgetExhausted)
}

func TestSolveCancelledContextStillReturns(t *testing.T) {
	cat := clusterCatalog()
	tasks := mustExpand(t, cat)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := Solve(ctx, tasks, cat, Options{})
	// The greedy pass ignores cancellation, so a best-effort result is
	// always available; invariants must hold regardless.
	assertHardConstraints(t, tasks, res, cat)
}

func TestSolveTinyNodeBudgetFlagsExhaustion(t *testing.T) {
	// An infeasible catalog with a one-node budget cannot finish its
	// backtracking pass and must say so.
	cat := Catalog{
		Components: []Component{
			{ID: "comp-1", CourseCode: "CSE101", Semester: "Fall 2025", Sections: []string{"A"},
				Type: ClassTypeTheory, SessionsPerWeek: 3, DurationMinutes: 50, Requirement: AnyClassroom()},
		},
		Rooms:    Rooms{Classrooms: []string{"C101"}},
		Calendar: Calendar{WorkingDays: []string{"Monday"}, StartMinute: 480, EndMinute: 580},
	}
	tasks := mustExpand(t, cat)

	res := Solve(context.Background(), tasks, cat, Options{NodeBudget: 1})
	assert.True(t, res.BudgetExhausted)
	assert.NotEmpty(t, res.Unplaced)
	assertHardConstraints(t, tasks, res, cat)
}

func TestSolveFullFeasibilityUnderGenerousSlack(t *testing.T) {
	// Property check: random catalogs whose demand stays well under half of
	// the per-category capacity must always schedule completely.
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 25; round++ {
		cat := randomSlackCatalog(rng)
		tasks := mustExpand(t, cat)

		res := Solve(context.Background(), tasks, cat, Options{})
		assert.Emptyf(t, res.Unplaced, "round %d: demand fits with 2x slack but %d tasks were unplaced", round, len(res.Unplaced))
		assertHardConstraints(t, tasks, res, cat)
	}
}

// clusterCatalog is a moderately busy, fully feasible catalog used by the
// determinism and cancellation tests.
func clusterCatalog() Catalog {
	components := []Component{
		{ID: "cse101-lec", CourseCode: "CSE101", Title: "Programming", Semester: "Fall 2025",
			Sections: []string{"A", "B"}, Type: ClassTypeTheory, SessionsPerWeek: 2, DurationMinutes: 50, Requirement: AnyClassroom()},
		{ID: "cse101-lab", CourseCode: "CSE101", Title: "Programming Lab", Semester: "Fall 2025",
			Sections: []string{"A", "B"}, Type: ClassTypeLab, SessionsPerWeek: 1, DurationMinutes: 100, Requirement: AnyLab()},
		{ID: "mat110-lec", CourseCode: "MAT110", Title: "Calculus", Semester: "Fall 2025",
			Sections: []string{"A", "B"}, Type: ClassTypeTheory, SessionsPerWeek: 3, DurationMinutes: 50, Requirement: AnyClassroom()},
		{ID: "phy201-lab", CourseCode: "PHY201", Title: "Physics Lab", Semester: "Spring 2026",
			Sections: []string{"A"}, Type: ClassTypeLab, SessionsPerWeek: 1, DurationMinutes: 120, Requirement: SpecificRoom("L502")},
	}
	return Catalog{
		Components: components,
		Rooms:      Rooms{Classrooms: []string{"C101", "C102"}, Labs: []string{"L501", "L502"}},
		Calendar: Calendar{
			WorkingDays: []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday"},
			StartMinute: 480,
			EndMinute:   1020,
		},
	}
}

func randomSlackCatalog(rng *rand.Rand) Catalog {
	days := []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday"}
	cal := Calendar{WorkingDays: days, StartMinute: 480, EndMinute: 1020}
	rooms := Rooms{Classrooms: []string{"C101", "C102", "C103"}, Labs: []string{"L501", "L502"}}

	window := cal.EndMinute - cal.StartMinute
	classroomCapacity := window * len(days) * len(rooms.Classrooms)
	labCapacity := window * len(days) * len(rooms.Labs)
	sectionCapacity := window * len(days)

	durations := []int{50, 75, 100}
	sections := []string{"A", "B"}
	semesters := []string{"Fall 2025", "Spring 2026"}

	var components []Component
	classroomDemand, labDemand := 0, 0
	sectionDemand := make(map[string]int)

	for i := 0; i < 8; i++ {
		duration := durations[rng.Intn(len(durations))]
		sessions := 1 + rng.Intn(2)
		semester := semesters[rng.Intn(len(semesters))]
		section := sections[rng.Intn(len(sections))]
		lane := semester + "|" + section
		demand := duration * sessions

		isLab := rng.Intn(3) == 0
		// Keep totals under half of capacity so the slack precondition of
		// the property holds.
		if sectionDemand[lane]+demand > sectionCapacity/2 {
			continue
		}
		if isLab && labDemand+demand > labCapacity/2 {
			continue
		}
		if !isLab && classroomDemand+demand > classroomCapacity/2 {
			continue
		}

		comp := Component{
			ID:              fmt.Sprintf("comp-%d", i),
			CourseCode:      fmt.Sprintf("GEN%03d", i),
			Semester:        semester,
			Sections:        []string{section},
			SessionsPerWeek: sessions,
			DurationMinutes: duration,
		}
		if isLab {
			comp.Type = ClassTypeLab
			if rng.Intn(2) == 0 {
				comp.Requirement = SpecificRoom(rooms.Labs[rng.Intn(len(rooms.Labs))])
			} else {
				comp.Requirement = AnyLab()
			}
			labDemand += demand
		} else {
			comp.Type = ClassTypeTheory
			comp.Requirement = AnyClassroom()
			classroomDemand += demand
		}
		sectionDemand[lane] += demand
		components = append(components, comp)
	}

	return Catalog{Components: components, Rooms: rooms, Calendar: cal}
}
