package engine

import (
	"context"
	"sort"
)

// DefaultNodeBudget bounds the backtracking search when the caller does not
// supply a budget.
const DefaultNodeBudget = 200_000

// Options tunes one solver run.
type Options struct {
	// NodeBudget caps the number of committed placements the backtracking
	// pass may try before settling for the best partial result.
	NodeBudget int
	// MinGapMinutes forces idle time between consecutive bookings on the
	// same lane. Zero allows back-to-back sessions.
	MinGapMinutes int
}

// Placement assigns a task to a (day, start minute, room) triple.
type Placement struct {
	Day         string `json:"day"`
	StartMinute int    `json:"startMinute"`
	Room        string `json:"room"`
}

// UnplacedTask reports a task the search could not legally place.
type UnplacedTask struct {
	Task   Task   `json:"task"`
	Reason string `json:"reason"`
}

// SearchStats summarises the effort spent by one run.
type SearchStats struct {
	Nodes      int `json:"nodes"`
	Backtracks int `json:"backtracks"`
}

// Result is the solver output. Infeasibility is not an error: a non-empty
// Unplaced list is the normal way of reporting tasks that did not fit, and
// BudgetExhausted marks runs cut short by the node budget or the caller's
// context, where relaxing constraints or adding rooms may still help.
type Result struct {
	Assignment      map[string]Placement `json:"assignment"`
	Unplaced        []UnplacedTask       `json:"unplaced"`
	BudgetExhausted bool                 `json:"budgetExhausted"`
	Stats           SearchStats          `json:"stats"`
}

// Placed reports the number of assigned tasks.
func (r Result) Placed() int {
	return len(r.Assignment)
}

// Solve searches for a complete conflict-free assignment of tasks to slots.
//
// The run is two-phased. A greedy pass walks tasks most-constrained-first and
// commits the first legal placement of each, never aborting: tasks without a
// legal slot are recorded and the pass continues, maximising the placed
// count. When the greedy pass leaves tasks unplaced, a chronological
// backtracking pass retries alternative placements for earlier tasks,
// bounded by the node budget and the caller's context; it keeps the deepest
// consistent prefix found and greedily extends it before returning.
//
// Solve always terminates and always returns a result, deterministic for a
// given catalog and options (context cancellation excepted).
func Solve(ctx context.Context, tasks []Task, cat Catalog, opts Options) Result {
	if opts.NodeBudget <= 0 {
		opts.NodeBudget = DefaultNodeBudget
	}
	if len(tasks) == 0 {
		return Result{Assignment: map[string]Placement{}}
	}

	order := orderTasks(tasks, cat)

	greedy := greedyPass(order, cat, newLaneBoard(opts.MinGapMinutes), map[string]Placement{})
	if len(greedy.Unplaced) == 0 {
		return greedy
	}

	s := &search{
		order:  order,
		cat:    cat,
		opts:   opts,
		board:  newLaneBoard(opts.MinGapMinutes),
		assign: make(map[string]Placement, len(order)),
		best:   map[string]Placement{},
	}
	status := s.dfs(ctx, 0)

	stats := SearchStats{
		Nodes:      greedy.Stats.Nodes + s.nodes,
		Backtracks: greedy.Stats.Backtracks + s.backtracks,
	}

	if status == dfsFound {
		return Result{Assignment: s.assign, Stats: stats}
	}

	// Extend the deepest consistent prefix greedily so later tasks that
	// still fit are not thrown away with the failed branch.
	fromBest := extendPrefix(order, cat, opts, s.best)
	fromBest.Stats = stats
	fromBest.BudgetExhausted = status == dfsAborted

	if fromBest.Placed() >= greedy.Placed() {
		return fromBest
	}
	greedy.Stats = stats
	greedy.BudgetExhausted = fromBest.BudgetExhausted
	return greedy
}

// orderTasks sorts most-constrained-first: smallest eligibility set, then the
// section carrying the most demand, then the longest session, then task ID.
// The order is total, so repeated runs search identically.
func orderTasks(tasks []Task, cat Catalog) []Task {
	demand := make(map[string]int)
	for _, t := range tasks {
		demand[t.sectionLane()] += t.DurationMinutes
	}

	order := make([]Task, len(tasks))
	copy(order, tasks)
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		ra, rb := len(legalRooms(a, cat.Rooms)), len(legalRooms(b, cat.Rooms))
		if ra != rb {
			return ra < rb
		}
		da, db := demand[a.sectionLane()], demand[b.sectionLane()]
		if da != db {
			return da > db
		}
		if a.DurationMinutes != b.DurationMinutes {
			return a.DurationMinutes > b.DurationMinutes
		}
		return a.ID < b.ID
	})
	return order
}

// greedyPass places each task at its first legal slot, committing prefix
// placements passed in seeded form and skipping tasks already assigned.
func greedyPass(order []Task, cat Catalog, board *laneBoard, seeded map[string]Placement) Result {
	assign := make(map[string]Placement, len(order))
	var unplaced []UnplacedTask
	nodes := 0

	for _, t := range order {
		if p, ok := seeded[t.ID]; ok {
			assign[t.ID] = p
			continue
		}
		p, ok := board.firstPlacement(t, cat)
		if !ok {
			unplaced = append(unplaced, UnplacedTask{
				Task:   t,
				Reason: "no conflict-free slot within the daily window",
			})
			continue
		}
		board.commit(t, p)
		assign[t.ID] = p
		nodes++
	}

	return Result{Assignment: assign, Unplaced: unplaced, Stats: SearchStats{Nodes: nodes}}
}

// extendPrefix rebuilds a board from the prefix assignment and completes the
// remaining tasks greedily.
func extendPrefix(order []Task, cat Catalog, opts Options, prefix map[string]Placement) Result {
	board := newLaneBoard(opts.MinGapMinutes)
	for _, t := range order {
		if p, ok := prefix[t.ID]; ok {
			board.commit(t, p)
		}
	}
	return greedyPass(order, cat, board, prefix)
}

type dfsStatus int

const (
	dfsFound dfsStatus = iota
	dfsExhausted
	dfsAborted
)

type search struct {
	order  []Task
	cat    Catalog
	opts   Options
	board  *laneBoard
	assign map[string]Placement

	nodes      int
	backtracks int

	bestDepth int
	best      map[string]Placement
}

func (s *search) exhausted(ctx context.Context) bool {
	if s.nodes >= s.opts.NodeBudget {
		return true
	}
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// capture snapshots the current prefix when it is the deepest seen so far.
func (s *search) capture(depth int) {
	if depth <= s.bestDepth {
		return
	}
	s.bestDepth = depth
	s.best = make(map[string]Placement, len(s.assign))
	for id, p := range s.assign {
		s.best[id] = p
	}
}

func (s *search) dfs(ctx context.Context, i int) dfsStatus {
	if i == len(s.order) {
		s.capture(i)
		return dfsFound
	}
	if s.exhausted(ctx) {
		s.capture(i)
		return dfsAborted
	}

	t := s.order[i]
	for _, p := range s.board.candidates(t, s.cat) {
		s.nodes++
		s.board.commit(t, p)
		s.assign[t.ID] = p
		s.capture(i + 1)

		switch s.dfs(ctx, i+1) {
		case dfsFound:
			return dfsFound
		case dfsAborted:
			return dfsAborted
		}

		s.board.release(t, p)
		delete(s.assign, t.ID)
		s.backtracks++

		if s.exhausted(ctx) {
			return dfsAborted
		}
	}
	return dfsExhausted
}
