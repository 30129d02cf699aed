package engine

import "sort"

// interval is a half-open booking [start, end) on one lane.
type interval struct {
	start  int
	end    int
	taskID string
}

// overlaps applies the half-open test with an optional minimum gap between
// consecutive bookings on the same lane. With gap zero, back-to-back
// bookings sharing an endpoint are legal.
func (iv interval) overlaps(start, end, gap int) bool {
	return start < iv.end+gap && iv.start < end+gap
}

type laneKey struct {
	name string // room name, or semester|section
	day  string
}

// laneBoard tracks committed bookings across the two conflict axes: one lane
// per (room, day) and one per (section, day).
type laneBoard struct {
	gap      int
	rooms    map[laneKey][]interval
	sections map[laneKey][]interval
}

func newLaneBoard(gapMinutes int) *laneBoard {
	if gapMinutes < 0 {
		gapMinutes = 0
	}
	return &laneBoard{
		gap:      gapMinutes,
		rooms:    make(map[laneKey][]interval),
		sections: make(map[laneKey][]interval),
	}
}

func conflicts(lane []interval, start, end, gap int) bool {
	for _, iv := range lane {
		if iv.overlaps(start, end, gap) {
			return true
		}
	}
	return false
}

// fits reports whether the placement is legal on both lanes.
func (b *laneBoard) fits(t Task, p Placement) bool {
	end := p.StartMinute + t.DurationMinutes
	if conflicts(b.rooms[laneKey{p.Room, p.Day}], p.StartMinute, end, b.gap) {
		return false
	}
	return !conflicts(b.sections[laneKey{t.sectionLane(), p.Day}], p.StartMinute, end, b.gap)
}

func (b *laneBoard) commit(t Task, p Placement) {
	iv := interval{start: p.StartMinute, end: p.StartMinute + t.DurationMinutes, taskID: t.ID}
	roomKey := laneKey{p.Room, p.Day}
	sectionKey := laneKey{t.sectionLane(), p.Day}
	b.rooms[roomKey] = insertSorted(b.rooms[roomKey], iv)
	b.sections[sectionKey] = insertSorted(b.sections[sectionKey], iv)
}

func (b *laneBoard) release(t Task, p Placement) {
	roomKey := laneKey{p.Room, p.Day}
	sectionKey := laneKey{t.sectionLane(), p.Day}
	b.rooms[roomKey] = removeTask(b.rooms[roomKey], t.ID)
	b.sections[sectionKey] = removeTask(b.sections[sectionKey], t.ID)
}

func insertSorted(lane []interval, iv interval) []interval {
	at := sort.Search(len(lane), func(i int) bool { return lane[i].start >= iv.start })
	lane = append(lane, interval{})
	copy(lane[at+1:], lane[at:])
	lane[at] = iv
	return lane
}

func removeTask(lane []interval, taskID string) []interval {
	for i, iv := range lane {
		if iv.taskID == taskID {
			return append(lane[:i], lane[i+1:]...)
		}
	}
	return lane
}

// legalRooms computes the eligibility set implied by the task's room
// requirement. The pool's input order is preserved so candidate enumeration
// stays deterministic.
func legalRooms(t Task, rooms Rooms) []string {
	switch t.Requirement.Kind {
	case RequireAnyClassroom:
		return rooms.Classrooms
	case RequireAnyLab:
		return rooms.Labs
	case RequireSpecificRoom:
		return []string{t.Requirement.Room}
	default:
		return nil
	}
}

// candidateStarts enumerates the start minutes worth trying for the task in
// the given room and day. Scanning every minute is unnecessary: if any legal
// placement exists next to the current bookings, one exists that is aligned
// to the window edge or packed against an existing booking on either lane,
// so only those anchor points are produced. Sorted ascending, deduplicated.
func (b *laneBoard) candidateStarts(t Task, day, room string, cal Calendar) []int {
	latest := cal.EndMinute - t.DurationMinutes
	if latest < cal.StartMinute {
		return nil
	}

	anchors := map[int]struct{}{
		cal.StartMinute: {},
		latest:          {},
	}
	addLane := func(lane []interval) {
		for _, iv := range lane {
			anchors[iv.end+b.gap] = struct{}{}
			anchors[iv.start-t.DurationMinutes-b.gap] = struct{}{}
		}
	}
	addLane(b.rooms[laneKey{room, day}])
	addLane(b.sections[laneKey{t.sectionLane(), day}])

	starts := make([]int, 0, len(anchors))
	for start := range anchors {
		if start >= cal.StartMinute && start <= latest {
			starts = append(starts, start)
		}
	}
	sort.Ints(starts)
	return starts
}

// candidates lists every legal placement for the task against the current
// board, in deterministic order: working days, then pool order, then start.
func (b *laneBoard) candidates(t Task, cat Catalog) []Placement {
	var result []Placement
	for _, day := range cat.Calendar.WorkingDays {
		for _, room := range legalRooms(t, cat.Rooms) {
			for _, start := range b.candidateStarts(t, day, room, cat.Calendar) {
				p := Placement{Day: day, StartMinute: start, Room: room}
				if b.fits(t, p) {
					result = append(result, p)
				}
			}
		}
	}
	return result
}

// firstPlacement returns the first legal placement in candidate order
// without materialising the full list.
func (b *laneBoard) firstPlacement(t Task, cat Catalog) (Placement, bool) {
	for _, day := range cat.Calendar.WorkingDays {
		for _, room := range legalRooms(t, cat.Rooms) {
			for _, start := range b.candidateStarts(t, day, room, cat.Calendar) {
				p := Placement{Day: day, StartMinute: start, Room: room}
				if b.fits(t, p) {
					return p, true
				}
			}
		}
	}
	return Placement{}, false
}
