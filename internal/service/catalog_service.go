package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/campusops/routine-api/internal/dto"
	"github.com/campusops/routine-api/internal/engine"
	"github.com/campusops/routine-api/internal/models"
	appErrors "github.com/campusops/routine-api/pkg/errors"
)

// routineCachePattern matches every cached payload derived from the catalog.
const routineCachePattern = "routine:*"

type semesterRepository interface {
	List(ctx context.Context) ([]models.Semester, error)
	FindByID(ctx context.Context, id string) (*models.Semester, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, semester *models.Semester) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type roomRepository interface {
	List(ctx context.Context, kind string) ([]models.Room, error)
	FindByID(ctx context.Context, id string) (*models.Room, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, room *models.Room) error
	Delete(ctx context.Context, id string) error
	CountSpecificRequirements(ctx context.Context, name string) (int, error)
}

type componentRepository interface {
	List(ctx context.Context, filter models.ComponentFilter) ([]models.ClassComponent, int, error)
	ListAll(ctx context.Context) ([]models.ClassComponent, error)
	FindByID(ctx context.Context, id string) (*models.ClassComponent, error)
	Create(ctx context.Context, component *models.ClassComponent) error
	Update(ctx context.Context, component *models.ClassComponent) error
	Delete(ctx context.Context, id string) error
	StripSection(ctx context.Context, exec sqlx.ExtContext, semesterID, section string) (int, error)
	DeleteEmptySections(ctx context.Context, exec sqlx.ExtContext, semesterID string) (int, error)
	DeleteBySemester(ctx context.Context, exec sqlx.ExtContext, semesterID string) (int, error)
}

type settingsRepository interface {
	GetCalendar(ctx context.Context) (*models.CalendarSettings, error)
	UpsertCalendar(ctx context.Context, settings *models.CalendarSettings) error
}

type cacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// CatalogService manages the scheduling catalog: semesters, rooms, class
// components and the calendar. Every mutation invalidates cached routine
// payloads, since they are keyed by catalog fingerprint.
type CatalogService struct {
	semesters  semesterRepository
	rooms      roomRepository
	components componentRepository
	settings   settingsRepository
	cache      cacheInvalidator
	tx         txProvider
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(
	semesters semesterRepository,
	rooms roomRepository,
	components componentRepository,
	settings settingsRepository,
	cache cacheInvalidator,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		semesters:  semesters,
		rooms:      rooms,
		components: components,
		settings:   settings,
		cache:      cache,
		tx:         tx,
		validator:  validate,
		logger:     logger,
	}
}

func (s *CatalogService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, routineCachePattern); err != nil {
		s.logger.Warn("routine cache invalidation failed", zap.Error(err))
	}
}

// ListSemesters returns all semesters.
func (s *CatalogService) ListSemesters(ctx context.Context) ([]models.Semester, error) {
	semesters, err := s.semesters.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list semesters")
	}
	return semesters, nil
}

// CreateSemester adds a semester ensuring name uniqueness.
func (s *CatalogService) CreateSemester(ctx context.Context, req dto.CreateSemesterRequest) (*models.Semester, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid semester payload")
	}

	req.Name = strings.TrimSpace(req.Name)
	exists, err := s.semesters.ExistsByName(ctx, req.Name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check semester name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "semester already exists")
	}

	semester := &models.Semester{Name: req.Name}
	if err := s.semesters.Create(ctx, semester); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create semester")
	}
	s.invalidate(ctx)
	return semester, nil
}

// DeleteSemester removes a semester and every component under it in one
// transaction.
func (s *CatalogService) DeleteSemester(ctx context.Context, id string) (int, error) {
	if _, err := s.semesters.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	removed, err := s.components.DeleteBySemester(ctx, tx, id)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete semester components")
	}
	if err = s.semesters.Delete(ctx, tx, id); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete semester")
	}
	if err = tx.Commit(); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit semester delete")
	}

	s.invalidate(ctx)
	s.logger.Info("semester deleted", zap.String("semester_id", id), zap.Int("components_removed", removed))
	return removed, nil
}

// RemoveSection strips a section from every component of the semester and
// drops components left with no sections. Returns (components updated,
// components removed).
func (s *CatalogService) RemoveSection(ctx context.Context, semesterID, section string) (int, int, error) {
	section = strings.TrimSpace(section)
	if section == "" {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, "section name is required")
	}
	if _, err := s.semesters.FindByID(ctx, semesterID); err != nil {
		if err == sql.ErrNoRows {
			return 0, 0, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	updated, err := s.components.StripSection(ctx, tx, semesterID, section)
	if err != nil {
		return 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to strip section")
	}
	removed, err := s.components.DeleteEmptySections(ctx, tx, semesterID)
	if err != nil {
		return 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop empty components")
	}
	if err = tx.Commit(); err != nil {
		return 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit section removal")
	}

	s.invalidate(ctx)
	s.logger.Info("section removed",
		zap.String("semester_id", semesterID),
		zap.String("section", section),
		zap.Int("components_updated", updated),
		zap.Int("components_removed", removed))
	return updated, removed, nil
}

// ListRooms returns rooms, optionally filtered by kind.
func (s *CatalogService) ListRooms(ctx context.Context, kind string) ([]models.Room, error) {
	if kind != "" && kind != string(models.RoomKindClassroom) && kind != string(models.RoomKindLab) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "kind must be CLASSROOM or LAB")
	}
	rooms, err := s.rooms.List(ctx, kind)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rooms")
	}
	return rooms, nil
}

// CreateRoom adds a room to one of the two pools.
func (s *CatalogService) CreateRoom(ctx context.Context, req dto.CreateRoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}

	req.Name = strings.TrimSpace(req.Name)
	exists, err := s.rooms.ExistsByName(ctx, req.Name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check room name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "room already exists")
	}

	room := &models.Room{Name: req.Name, Kind: models.RoomKind(req.Kind)}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create room")
	}
	s.invalidate(ctx)
	return room, nil
}

// DeleteRoom removes a room unless some component pins it by name.
func (s *CatalogService) DeleteRoom(ctx context.Context, id string) error {
	room, err := s.rooms.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}

	count, err := s.rooms.CountSpecificRequirements(ctx, room.Name)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check room dependencies")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "room is pinned by class components")
	}

	if err := s.rooms.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete room")
	}
	s.invalidate(ctx)
	return nil
}

// ListComponents returns paginated components.
func (s *CatalogService) ListComponents(ctx context.Context, filter models.ComponentFilter) ([]models.ClassComponent, *models.Pagination, error) {
	components, total, err := s.components.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list components")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return components, pagination, nil
}

// GetComponent returns a component by identifier.
func (s *CatalogService) GetComponent(ctx context.Context, id string) (*models.ClassComponent, error) {
	component, err := s.components.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "component not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load component")
	}
	return component, nil
}

func validateRequirement(classType, kind string, room *string) error {
	if classType == string(engine.ClassTypeTheory) && kind != string(engine.RequireAnyClassroom) {
		return appErrors.Clone(appErrors.ErrValidation, "theory components must use ANY_CLASSROOM")
	}
	if classType == string(engine.ClassTypeLab) && kind == string(engine.RequireAnyClassroom) {
		return appErrors.Clone(appErrors.ErrValidation, "lab components must use ANY_LAB or SPECIFIC_ROOM")
	}
	if kind == string(engine.RequireSpecificRoom) && (room == nil || strings.TrimSpace(*room) == "") {
		return appErrors.Clone(appErrors.ErrValidation, "SPECIFIC_ROOM requires requirementRoom")
	}
	if kind != string(engine.RequireSpecificRoom) && room != nil {
		return appErrors.Clone(appErrors.ErrValidation, "requirementRoom only applies to SPECIFIC_ROOM")
	}
	return nil
}

// CreateComponent registers a class component under a semester.
func (s *CatalogService) CreateComponent(ctx context.Context, req dto.CreateComponentRequest) (*models.ClassComponent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid component payload")
	}
	if err := validateRequirement(req.ClassType, req.RequirementKind, req.RequirementRoom); err != nil {
		return nil, err
	}

	semester, err := s.semesters.FindByID(ctx, req.SemesterID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}

	component := &models.ClassComponent{
		SemesterID:      semester.ID,
		SemesterName:    semester.Name,
		CourseCode:      strings.ToUpper(strings.TrimSpace(req.CourseCode)),
		Title:           strings.TrimSpace(req.Title),
		Sections:        pq.StringArray(req.Sections),
		ClassType:       req.ClassType,
		SessionsPerWeek: req.SessionsPerWeek,
		DurationMinutes: req.DurationMinutes,
		RequirementKind: req.RequirementKind,
		RequirementRoom: req.RequirementRoom,
	}
	if err := s.components.Create(ctx, component); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create component")
	}
	s.invalidate(ctx)
	return component, nil
}

// UpdateComponent applies a partial update to a component.
func (s *CatalogService) UpdateComponent(ctx context.Context, id string, req dto.UpdateComponentRequest) (*models.ClassComponent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid component payload")
	}

	component, err := s.GetComponent(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.CourseCode != nil {
		component.CourseCode = strings.ToUpper(strings.TrimSpace(*req.CourseCode))
	}
	if req.Title != nil {
		component.Title = strings.TrimSpace(*req.Title)
	}
	if len(req.Sections) > 0 {
		component.Sections = pq.StringArray(req.Sections)
	}
	if req.ClassType != nil {
		component.ClassType = *req.ClassType
	}
	if req.SessionsPerWeek != nil {
		component.SessionsPerWeek = *req.SessionsPerWeek
	}
	if req.DurationMinutes != nil {
		component.DurationMinutes = *req.DurationMinutes
	}
	if req.RequirementKind != nil {
		component.RequirementKind = *req.RequirementKind
		if *req.RequirementKind != string(engine.RequireSpecificRoom) {
			component.RequirementRoom = nil
		}
	}
	if req.RequirementRoom != nil {
		component.RequirementRoom = req.RequirementRoom
	}
	if err := validateRequirement(component.ClassType, component.RequirementKind, component.RequirementRoom); err != nil {
		return nil, err
	}

	if err := s.components.Update(ctx, component); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update component")
	}
	s.invalidate(ctx)
	return component, nil
}

// DeleteComponent removes a component.
func (s *CatalogService) DeleteComponent(ctx context.Context, id string) error {
	if err := s.components.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "component not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete component")
	}
	s.invalidate(ctx)
	return nil
}

// GetCalendar returns the configured calendar, falling back to the default
// Sunday-Thursday 08:00-17:00 week when none has been saved.
func (s *CatalogService) GetCalendar(ctx context.Context) (*models.CalendarSettings, error) {
	settings, err := s.settings.GetCalendar(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return &models.CalendarSettings{
				WorkingDays: pq.StringArray{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday"},
				StartMinute: 480,
				EndMinute:   1020,
			}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar")
	}
	return settings, nil
}

// UpdateCalendar replaces the scheduling calendar.
func (s *CatalogService) UpdateCalendar(ctx context.Context, req dto.UpdateCalendarRequest) (*models.CalendarSettings, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid calendar payload")
	}

	start, err := engine.ParseClock(req.StartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid startTime: %v", err))
	}
	end, err := engine.ParseClock(req.EndTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid endTime: %v", err))
	}
	if end <= start {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endTime must be after startTime")
	}

	settings := &models.CalendarSettings{
		WorkingDays: pq.StringArray(req.WorkingDays),
		StartMinute: start,
		EndMinute:   end,
	}
	if err := s.settings.UpsertCalendar(ctx, settings); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save calendar")
	}
	s.invalidate(ctx)
	return settings, nil
}

// BuildSnapshot assembles the immutable catalog the solver consumes.
func (s *CatalogService) BuildSnapshot(ctx context.Context) (engine.Catalog, error) {
	components, err := s.components.ListAll(ctx)
	if err != nil {
		return engine.Catalog{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load components")
	}
	rooms, err := s.rooms.List(ctx, "")
	if err != nil {
		return engine.Catalog{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
	}
	calendar, err := s.GetCalendar(ctx)
	if err != nil {
		return engine.Catalog{}, err
	}

	catalog := engine.Catalog{
		Calendar: engine.Calendar{
			WorkingDays: []string(calendar.WorkingDays),
			StartMinute: calendar.StartMinute,
			EndMinute:   calendar.EndMinute,
		},
	}
	for _, room := range rooms {
		switch room.Kind {
		case models.RoomKindClassroom:
			catalog.Rooms.Classrooms = append(catalog.Rooms.Classrooms, room.Name)
		case models.RoomKindLab:
			catalog.Rooms.Labs = append(catalog.Rooms.Labs, room.Name)
		}
	}
	for _, c := range components {
		requirement := engine.AnyClassroom()
		switch c.RequirementKind {
		case string(engine.RequireAnyLab):
			requirement = engine.AnyLab()
		case string(engine.RequireSpecificRoom):
			if c.RequirementRoom != nil {
				requirement = engine.SpecificRoom(*c.RequirementRoom)
			}
		}
		catalog.Components = append(catalog.Components, engine.Component{
			ID:              c.ID,
			CourseCode:      c.CourseCode,
			Title:           c.Title,
			Semester:        c.SemesterName,
			Sections:        []string(c.Sections),
			Type:            engine.ClassType(c.ClassType),
			SessionsPerWeek: c.SessionsPerWeek,
			DurationMinutes: c.DurationMinutes,
			Requirement:     requirement,
		})
	}
	return catalog, nil
}
