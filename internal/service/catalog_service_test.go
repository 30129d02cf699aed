package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusops/routine-api/internal/dto"
	"github.com/campusops/routine-api/internal/engine"
	"github.com/campusops/routine-api/internal/models"
	appErrors "github.com/campusops/routine-api/pkg/errors"
)

type semesterRepoStub struct {
	items map[string]models.Semester
}

func newSemesterRepoStub() *semesterRepoStub {
	return &semesterRepoStub{items: make(map[string]models.Semester)}
}

func (s *semesterRepoStub) List(ctx context.Context) ([]models.Semester, error) {
	var list []models.Semester
	for _, semester := range s.items {
		list = append(list, semester)
	}
	return list, nil
}

func (s *semesterRepoStub) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	if semester, ok := s.items[id]; ok {
		return &semester, nil
	}
	return nil, sql.ErrNoRows
}

func (s *semesterRepoStub) ExistsByName(ctx context.Context, name string) (bool, error) {
	for _, semester := range s.items {
		if semester.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *semesterRepoStub) Create(ctx context.Context, semester *models.Semester) error {
	if semester.ID == "" {
		semester.ID = "sem-stub"
	}
	s.items[semester.ID] = *semester
	return nil
}

func (s *semesterRepoStub) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, ok := s.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.items, id)
	return nil
}

type roomRepoStub struct {
	items  map[string]models.Room
	pinned map[string]int
}

func newRoomRepoStub() *roomRepoStub {
	return &roomRepoStub{items: make(map[string]models.Room), pinned: make(map[string]int)}
}

func (s *roomRepoStub) List(ctx context.Context, kind string) ([]models.Room, error) {
	var list []models.Room
	for _, room := range s.items {
		if kind == "" || string(room.Kind) == kind {
			list = append(list, room)
		}
	}
	return list, nil
}

func (s *roomRepoStub) FindByID(ctx context.Context, id string) (*models.Room, error) {
	if room, ok := s.items[id]; ok {
		return &room, nil
	}
	return nil, sql.ErrNoRows
}

func (s *roomRepoStub) ExistsByName(ctx context.Context, name string) (bool, error) {
	for _, room := range s.items {
		if room.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *roomRepoStub) Create(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = "room-" + room.Name
	}
	s.items[room.ID] = *room
	return nil
}

func (s *roomRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := s.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.items, id)
	return nil
}

func (s *roomRepoStub) CountSpecificRequirements(ctx context.Context, name string) (int, error) {
	return s.pinned[name], nil
}

type componentRepoStub struct {
	items map[string]models.ClassComponent
}

func newComponentRepoStub() *componentRepoStub {
	return &componentRepoStub{items: make(map[string]models.ClassComponent)}
}

func (s *componentRepoStub) List(ctx context.Context, filter models.ComponentFilter) ([]models.ClassComponent, int, error) {
	all, err := s.ListAll(ctx)
	return all, len(all), err
}

func (s *componentRepoStub) ListAll(ctx context.Context) ([]models.ClassComponent, error) {
	var list []models.ClassComponent
	for _, component := range s.items {
		list = append(list, component)
	}
	return list, nil
}

func (s *componentRepoStub) FindByID(ctx context.Context, id string) (*models.ClassComponent, error) {
	if component, ok := s.items[id]; ok {
		return &component, nil
	}
	return nil, sql.ErrNoRows
}

func (s *componentRepoStub) Create(ctx context.Context, component *models.ClassComponent) error {
	if component.ID == "" {
		component.ID = fmt.Sprintf("comp-stub-%d", len(s.items)+1)
	}
	s.items[component.ID] = *component
	return nil
}

func (s *componentRepoStub) Update(ctx context.Context, component *models.ClassComponent) error {
	s.items[component.ID] = *component
	return nil
}

func (s *componentRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := s.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.items, id)
	return nil
}

func (s *componentRepoStub) StripSection(ctx context.Context, exec sqlx.ExtContext, semesterID, section string) (int, error) {
	updated := 0
	for id, component := range s.items {
		if component.SemesterID != semesterID {
			continue
		}
		var kept pq.StringArray
		for _, name := range component.Sections {
			if name != section {
				kept = append(kept, name)
			}
		}
		if len(kept) != len(component.Sections) {
			component.Sections = kept
			s.items[id] = component
			updated++
		}
	}
	return updated, nil
}

func (s *componentRepoStub) DeleteEmptySections(ctx context.Context, exec sqlx.ExtContext, semesterID string) (int, error) {
	removed := 0
	for id, component := range s.items {
		if component.SemesterID == semesterID && len(component.Sections) == 0 {
			delete(s.items, id)
			removed++
		}
	}
	return removed, nil
}

func (s *componentRepoStub) DeleteBySemester(ctx context.Context, exec sqlx.ExtContext, semesterID string) (int, error) {
	removed := 0
	for id, component := range s.items {
		if component.SemesterID == semesterID {
			delete(s.items, id)
			removed++
		}
	}
	return removed, nil
}

type settingsRepoStub struct {
	calendar *models.CalendarSettings
}

func (s *settingsRepoStub) GetCalendar(ctx context.Context) (*models.CalendarSettings, error) {
	if s.calendar == nil {
		return nil, sql.ErrNoRows
	}
	return s.calendar, nil
}

func (s *settingsRepoStub) UpsertCalendar(ctx context.Context, settings *models.CalendarSettings) error {
	s.calendar = settings
	return nil
}

type invalidatorStub struct {
	calls int
}

func (s *invalidatorStub) DeleteByPattern(ctx context.Context, pattern string) error {
	s.calls++
	return nil
}

type catalogFixture struct {
	svc         *CatalogService
	semesters   *semesterRepoStub
	rooms       *roomRepoStub
	components  *componentRepoStub
	settings    *settingsRepoStub
	invalidator *invalidatorStub
}

func newCatalogFixture(t *testing.T, tx txProvider) catalogFixture {
	t.Helper()
	f := catalogFixture{
		semesters:   newSemesterRepoStub(),
		rooms:       newRoomRepoStub(),
		components:  newComponentRepoStub(),
		settings:    &settingsRepoStub{},
		invalidator: &invalidatorStub{},
	}
	f.svc = NewCatalogService(f.semesters, f.rooms, f.components, f.settings, f.invalidator, tx, nil, nil)
	return f
}

func TestCatalogServiceCreateSemesterRejectsDuplicate(t *testing.T) {
	f := newCatalogFixture(t, nil)

	_, err := f.svc.CreateSemester(context.Background(), dto.CreateSemesterRequest{Name: "Fall 2025"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.invalidator.calls)

	_, err = f.svc.CreateSemester(context.Background(), dto.CreateSemesterRequest{Name: "Fall 2025"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestCatalogServiceDeleteSemesterCascades(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()
	f := newCatalogFixture(t, db)

	f.semesters.items["sem-1"] = models.Semester{ID: "sem-1", Name: "Fall 2025"}
	f.components.items["comp-1"] = models.ClassComponent{ID: "comp-1", SemesterID: "sem-1"}
	f.components.items["comp-2"] = models.ClassComponent{ID: "comp-2", SemesterID: "sem-1"}
	f.components.items["comp-3"] = models.ClassComponent{ID: "comp-3", SemesterID: "sem-2"}

	mock.ExpectBegin()
	mock.ExpectCommit()

	removed, err := f.svc.DeleteSemester(context.Background(), "sem-1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Len(t, f.components.items, 1)
	assert.NotContains(t, f.semesters.items, "sem-1")
	assert.Equal(t, 1, f.invalidator.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogServiceRemoveSectionCascades(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()
	f := newCatalogFixture(t, db)

	f.semesters.items["sem-1"] = models.Semester{ID: "sem-1", Name: "Fall 2025"}
	f.components.items["comp-1"] = models.ClassComponent{
		ID: "comp-1", SemesterID: "sem-1", Sections: pq.StringArray{"A", "B"},
	}
	f.components.items["comp-2"] = models.ClassComponent{
		ID: "comp-2", SemesterID: "sem-1", Sections: pq.StringArray{"B"},
	}

	mock.ExpectBegin()
	mock.ExpectCommit()

	updated, removed, err := f.svc.RemoveSection(context.Background(), "sem-1", "B")
	require.NoError(t, err)
	assert.Equal(t, 2, updated)
	assert.Equal(t, 1, removed)
	assert.Equal(t, pq.StringArray{"A"}, f.components.items["comp-1"].Sections)
	assert.NotContains(t, f.components.items, "comp-2")
	assert.Equal(t, 1, f.invalidator.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogServiceRemoveSectionUnknownSemester(t *testing.T) {
	f := newCatalogFixture(t, nil)

	_, _, err := f.svc.RemoveSection(context.Background(), "sem-404", "A")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestCatalogServiceCreateComponentValidatesRequirement(t *testing.T) {
	f := newCatalogFixture(t, nil)
	f.semesters.items["sem-1"] = models.Semester{ID: "sem-1", Name: "Fall 2025"}

	_, err := f.svc.CreateComponent(context.Background(), dto.CreateComponentRequest{
		SemesterID:      "00000000-0000-0000-0000-000000000001",
		CourseCode:      "CSE101",
		Sections:        []string{"A"},
		ClassType:       "THEORY",
		SessionsPerWeek: 2,
		DurationMinutes: 50,
		RequirementKind: "ANY_LAB",
	})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestCatalogServiceCreateComponent(t *testing.T) {
	f := newCatalogFixture(t, nil)
	f.semesters.items["00000000-0000-0000-0000-000000000001"] = models.Semester{
		ID: "00000000-0000-0000-0000-000000000001", Name: "Fall 2025",
	}

	component, err := f.svc.CreateComponent(context.Background(), dto.CreateComponentRequest{
		SemesterID:      "00000000-0000-0000-0000-000000000001",
		CourseCode:      "cse101",
		Title:           "Programming",
		Sections:        []string{"A", "B"},
		ClassType:       "THEORY",
		SessionsPerWeek: 2,
		DurationMinutes: 50,
		RequirementKind: "ANY_CLASSROOM",
	})
	require.NoError(t, err)
	assert.Equal(t, "CSE101", component.CourseCode)
	assert.Equal(t, "Fall 2025", component.SemesterName)
	assert.Equal(t, 1, f.invalidator.calls)
}

func TestCatalogServiceDeleteRoomPinnedByComponent(t *testing.T) {
	f := newCatalogFixture(t, nil)
	f.rooms.items["room-1"] = models.Room{ID: "room-1", Name: "L501", Kind: models.RoomKindLab}
	f.rooms.pinned["L501"] = 1

	err := f.svc.DeleteRoom(context.Background(), "room-1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
	assert.Contains(t, f.rooms.items, "room-1")
}

func TestCatalogServiceCalendarDefaultsAndUpdate(t *testing.T) {
	f := newCatalogFixture(t, nil)

	calendar, err := f.svc.GetCalendar(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 480, calendar.StartMinute)
	assert.Equal(t, 1020, calendar.EndMinute)
	assert.Len(t, []string(calendar.WorkingDays), 5)

	updated, err := f.svc.UpdateCalendar(context.Background(), dto.UpdateCalendarRequest{
		WorkingDays: []string{"Monday", "Wednesday"},
		StartTime:   "09:00",
		EndTime:     "15:30",
	})
	require.NoError(t, err)
	assert.Equal(t, 540, updated.StartMinute)
	assert.Equal(t, 930, updated.EndMinute)

	_, err = f.svc.UpdateCalendar(context.Background(), dto.UpdateCalendarRequest{
		WorkingDays: []string{"Monday"},
		StartTime:   "15:00",
		EndTime:     "09:00",
	})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestCatalogServiceBuildSnapshot(t *testing.T) {
	f := newCatalogFixture(t, nil)
	f.rooms.items["room-1"] = models.Room{ID: "room-1", Name: "C101", Kind: models.RoomKindClassroom}
	f.rooms.items["room-2"] = models.Room{ID: "room-2", Name: "L501", Kind: models.RoomKindLab}
	lab := "L501"
	f.components.items["comp-1"] = models.ClassComponent{
		ID: "comp-1", SemesterID: "sem-1", SemesterName: "Fall 2025", CourseCode: "PHY201",
		Sections: pq.StringArray{"A"}, ClassType: "LAB", SessionsPerWeek: 1,
		DurationMinutes: 100, RequirementKind: "SPECIFIC_ROOM", RequirementRoom: &lab,
	}

	catalog, err := f.svc.BuildSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"C101"}, catalog.Rooms.Classrooms)
	assert.Equal(t, []string{"L501"}, catalog.Rooms.Labs)
	require.Len(t, catalog.Components, 1)
	assert.Equal(t, engine.SpecificRoom("L501"), catalog.Components[0].Requirement)
	assert.Empty(t, engine.ValidateCatalog(catalog))
}
