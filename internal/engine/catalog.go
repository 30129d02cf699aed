// Package engine builds conflict-free weekly routines from an immutable
// catalog snapshot. It is a pure library: no I/O, no globals, and every
// failure mode is representable in its return values.
package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ClassType distinguishes lecture components from lab components.
type ClassType string

const (
	ClassTypeTheory ClassType = "THEORY"
	ClassTypeLab    ClassType = "LAB"
)

// RequirementKind tags the room requirement union.
type RequirementKind string

const (
	RequireAnyClassroom RequirementKind = "ANY_CLASSROOM"
	RequireAnyLab       RequirementKind = "ANY_LAB"
	RequireSpecificRoom RequirementKind = "SPECIFIC_ROOM"
)

// RoomRequirement is a tagged union: Room is set only for SPECIFIC_ROOM.
type RoomRequirement struct {
	Kind RequirementKind `json:"kind"`
	Room string          `json:"room,omitempty"`
}

// AnyClassroom returns the requirement theory components always carry.
func AnyClassroom() RoomRequirement {
	return RoomRequirement{Kind: RequireAnyClassroom}
}

// AnyLab returns the interchangeable-lab requirement.
func AnyLab() RoomRequirement {
	return RoomRequirement{Kind: RequireAnyLab}
}

// SpecificRoom pins a component to one named lab.
func SpecificRoom(name string) RoomRequirement {
	return RoomRequirement{Kind: RequireSpecificRoom, Room: name}
}

// Component is a recurring teaching unit requiring SessionsPerWeek sessions
// of DurationMinutes each, for every listed section.
type Component struct {
	ID              string          `json:"id"`
	CourseCode      string          `json:"courseCode"`
	Title           string          `json:"title"`
	Semester        string          `json:"semester"`
	Sections        []string        `json:"sections"`
	Type            ClassType       `json:"type"`
	SessionsPerWeek int             `json:"sessionsPerWeek"`
	DurationMinutes int             `json:"durationMinutes"`
	Requirement     RoomRequirement `json:"requirement"`
}

// Rooms is the institution-wide resource pool.
type Rooms struct {
	Classrooms []string `json:"classrooms"`
	Labs       []string `json:"labs"`
}

// Calendar fixes the weekly grid: working day labels in display order and a
// [StartMinute, EndMinute) daily window shared across all days.
type Calendar struct {
	WorkingDays []string `json:"workingDays"`
	StartMinute int      `json:"startMinute"`
	EndMinute   int      `json:"endMinute"`
}

// DayIndex maps each working day label to its display/tie-break position.
func (c Calendar) DayIndex() map[string]int {
	idx := make(map[string]int, len(c.WorkingDays))
	for i, day := range c.WorkingDays {
		idx[day] = i
	}
	return idx
}

// Catalog is the input contract to the engine: one scheduling run consumes
// exactly one catalog snapshot and never mutates it.
type Catalog struct {
	Components []Component `json:"components"`
	Rooms      Rooms       `json:"rooms"`
	Calendar   Calendar    `json:"calendar"`
}

// Fingerprint hashes the canonical JSON encoding of the snapshot. Equal
// catalogs produce equal fingerprints, so the value doubles as a cache key
// for previously computed results.
func (c Catalog) Fingerprint() string {
	payload, err := json.Marshal(c)
	if err != nil {
		// Catalog contains only plain data types; Marshal cannot fail.
		return ""
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Problem describes one prerequisite violation detected before any search.
type Problem struct {
	ComponentID string `json:"componentId,omitempty"`
	Message     string `json:"message"`
}

func (p Problem) String() string {
	if p.ComponentID == "" {
		return p.Message
	}
	return fmt.Sprintf("component %s: %s", p.ComponentID, p.Message)
}

// ValidateCatalog checks all prerequisites the solver depends on. A non-empty
// result means the run must not start; the list is meant to be shown to the
// end user verbatim.
func ValidateCatalog(c Catalog) []Problem {
	var problems []Problem

	if len(c.Calendar.WorkingDays) == 0 {
		problems = append(problems, Problem{Message: "no working days configured"})
	}
	window := c.Calendar.EndMinute - c.Calendar.StartMinute
	if c.Calendar.StartMinute < 0 || c.Calendar.EndMinute > 24*60 || window <= 0 {
		problems = append(problems, Problem{Message: "daily window is empty or inverted"})
	}

	labSet := make(map[string]struct{}, len(c.Rooms.Labs))
	for _, lab := range c.Rooms.Labs {
		labSet[lab] = struct{}{}
	}

	needsClassroom := false
	needsAnyLab := false
	for _, comp := range c.Components {
		if len(comp.Sections) == 0 {
			problems = append(problems, Problem{ComponentID: comp.ID, Message: "has no sections"})
		}
		if comp.SessionsPerWeek <= 0 {
			problems = append(problems, Problem{ComponentID: comp.ID, Message: "sessions per week must be positive"})
		}
		if comp.DurationMinutes <= 0 {
			problems = append(problems, Problem{ComponentID: comp.ID, Message: "duration must be positive"})
		}
		if window > 0 && comp.DurationMinutes > window {
			problems = append(problems, Problem{
				ComponentID: comp.ID,
				Message:     fmt.Sprintf("session duration %d min exceeds the %d min daily window", comp.DurationMinutes, window),
			})
		}

		switch comp.Type {
		case ClassTypeTheory:
			if comp.Requirement.Kind != RequireAnyClassroom {
				problems = append(problems, Problem{ComponentID: comp.ID, Message: "theory components must use any available classroom"})
			}
			needsClassroom = true
		case ClassTypeLab:
			switch comp.Requirement.Kind {
			case RequireAnyLab:
				needsAnyLab = true
			case RequireSpecificRoom:
				if _, ok := labSet[comp.Requirement.Room]; !ok {
					problems = append(problems, Problem{
						ComponentID: comp.ID,
						Message:     fmt.Sprintf("requires lab %q which is not in the lab pool", comp.Requirement.Room),
					})
				}
			default:
				problems = append(problems, Problem{ComponentID: comp.ID, Message: "lab components must use a lab room requirement"})
			}
		default:
			problems = append(problems, Problem{ComponentID: comp.ID, Message: fmt.Sprintf("unknown class type %q", comp.Type)})
		}
	}

	if needsClassroom && len(c.Rooms.Classrooms) == 0 {
		problems = append(problems, Problem{Message: "theory components exist but the classroom pool is empty"})
	}
	if needsAnyLab && len(c.Rooms.Labs) == 0 {
		problems = append(problems, Problem{Message: "lab components request any available lab but the lab pool is empty"})
	}

	return problems
}
