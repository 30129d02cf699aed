package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/campusops/routine-api/internal/dto"
	"github.com/campusops/routine-api/internal/engine"
	"github.com/campusops/routine-api/internal/models"
	appErrors "github.com/campusops/routine-api/pkg/errors"
)

type snapshotBuilder interface {
	BuildSnapshot(ctx context.Context) (engine.Catalog, error)
}

type routineRepository interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, routine *models.Routine) error
	InsertRows(ctx context.Context, exec sqlx.ExtContext, rows []models.RoutineRow) error
	List(ctx context.Context, filter models.RoutineFilter) ([]models.Routine, int, error)
	FindByID(ctx context.Context, id string) (*models.Routine, error)
	ListRows(ctx context.Context, routineID string, filter models.RoutineRowFilter) ([]models.RoutineRow, error)
	Delete(ctx context.Context, id string) error
}

type routineCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type solverObserver interface {
	ObserveSolverRun(duration time.Duration, placed, unplaced, nodes int, budgetExhausted bool)
	ObserveCacheLookup(hit bool)
}

// RoutineConfig governs solver and caching behaviour.
type RoutineConfig struct {
	NodeBudget    int
	Timeout       time.Duration
	MinGapMinutes int
	ProposalTTL   time.Duration
	CacheTTL      time.Duration
}

// RoutineService builds routine proposals from the catalog, persists saved
// proposals as versioned routines, and serves stored routines.
type RoutineService struct {
	catalog   snapshotBuilder
	routines  routineRepository
	cache     routineCache
	metrics   solverObserver
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
	cfg       RoutineConfig
	store     *proposalStore
}

// NewRoutineService wires routine dependencies.
func NewRoutineService(
	catalog snapshotBuilder,
	routines routineRepository,
	cache routineCache,
	metrics solverObserver,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg RoutineConfig,
) *RoutineService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NodeBudget <= 0 {
		cfg.NodeBudget = engine.DefaultNodeBudget
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	return &RoutineService{
		catalog:   catalog,
		routines:  routines,
		cache:     cache,
		metrics:   metrics,
		tx:        tx,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		store:     newProposalStore(cfg.ProposalTTL),
	}
}

func cacheKey(fingerprint string, opts engine.Options) string {
	return fmt.Sprintf("routine:solve:%s:%d:%d", fingerprint, opts.NodeBudget, opts.MinGapMinutes)
}

// Generate runs the solver against the current catalog and stores the
// proposal for a later Save. Identical catalog and options reuse the cached
// result instead of searching again.
func (s *RoutineService) Generate(ctx context.Context, req dto.GenerateRoutineRequest) (*dto.GenerateRoutineResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generate payload")
	}

	catalog, err := s.catalog.BuildSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if problems := engine.ValidateCatalog(catalog); len(problems) > 0 {
		return nil, appErrors.WithDetails(appErrors.ErrUnschedulable, "catalog cannot be scheduled", problems)
	}

	tasks, err := engine.Expand(catalog.Components)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to expand catalog")
	}

	opts := engine.Options{NodeBudget: s.cfg.NodeBudget, MinGapMinutes: s.cfg.MinGapMinutes}
	if req.NodeBudget != nil {
		opts.NodeBudget = *req.NodeBudget
	}
	if req.MinGapMinutes != nil {
		opts.MinGapMinutes = *req.MinGapMinutes
	}

	fingerprint := catalog.Fingerprint()
	key := cacheKey(fingerprint, opts)

	var payload proposalPayload
	fromCache := false
	if s.cache != nil {
		if err := s.cache.Get(ctx, key, &payload); err == nil {
			fromCache = true
		} else if err != appErrors.ErrCacheMiss {
			s.logger.Warn("routine cache lookup failed", zap.Error(err))
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveCacheLookup(fromCache)
	}

	if !fromCache {
		solveCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		started := time.Now()
		result := engine.Solve(solveCtx, tasks, catalog, opts)
		cancel()

		payload = buildPayload(tasks, result, catalog)
		if s.metrics != nil {
			s.metrics.ObserveSolverRun(time.Since(started), result.Placed(), len(result.Unplaced), result.Stats.Nodes, result.BudgetExhausted)
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, key, payload, s.cfg.CacheTTL); err != nil {
				s.logger.Warn("routine cache store failed", zap.Error(err))
			}
		}
	}

	proposal := routineProposal{
		ProposalID:  uuid.NewString(),
		Fingerprint: fingerprint,
		Payload:     payload,
		RequestedAt: time.Now().UTC(),
	}
	s.store.Save(proposal)

	status := string(models.RoutineStatusComplete)
	if len(payload.Unplaced) > 0 {
		status = string(models.RoutineStatusPartial)
	}
	s.logger.Info("routine generated",
		zap.String("proposal_id", proposal.ProposalID),
		zap.String("fingerprint", fingerprint),
		zap.Int("placed", len(payload.Rows)),
		zap.Int("unplaced", len(payload.Unplaced)),
		zap.Bool("from_cache", fromCache))

	return &dto.GenerateRoutineResponse{
		ProposalID:         proposal.ProposalID,
		CatalogFingerprint: fingerprint,
		Status:             status,
		Rows:               payload.Rows,
		Unplaced:           payload.Unplaced,
		Stats:              payload.Stats,
		FromCache:          fromCache,
	}, nil
}

// Save persists a previously generated proposal as the next routine version.
func (s *RoutineService) Save(ctx context.Context, req dto.SaveRoutineRequest, createdBy string) (*models.Routine, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save payload")
	}

	proposal, ok := s.store.Get(req.ProposalID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}

	status := models.RoutineStatusComplete
	if len(proposal.Payload.Unplaced) > 0 {
		status = models.RoutineStatusPartial
	}
	routine := &models.Routine{
		CatalogFingerprint: proposal.Fingerprint,
		Status:             status,
		PlacedCount:        len(proposal.Payload.Rows),
		UnplacedCount:      len(proposal.Payload.Unplaced),
		NodesExplored:      proposal.Payload.Stats.Nodes,
		Backtracks:         proposal.Payload.Stats.Backtracks,
		BudgetExhausted:    proposal.Payload.Stats.BudgetExhausted,
		CreatedBy:          createdBy,
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.routines.CreateVersioned(ctx, tx, routine); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist routine")
	}

	rows := make([]models.RoutineRow, 0, len(proposal.Payload.Rows))
	for _, row := range proposal.Payload.Rows {
		rows = append(rows, models.RoutineRow{
			RoutineID:       routine.ID,
			Semester:        row.Semester,
			Section:         row.Section,
			Day:             row.Day,
			StartMinute:     row.StartMinute,
			DurationMinutes: row.DurationMinutes,
			TimeRange:       row.TimeRange,
			CourseCode:      row.CourseCode,
			Title:           row.Title,
			Room:            row.Room,
			ClassType:       row.ClassType,
			TaskID:          row.TaskID,
		})
	}
	if err = s.routines.InsertRows(ctx, tx, rows); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist routine rows")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit routine")
	}

	s.store.Delete(req.ProposalID)
	s.logger.Info("routine saved",
		zap.String("routine_id", routine.ID),
		zap.Int("version", routine.Version),
		zap.String("status", string(routine.Status)))
	return routine, nil
}

// List returns paginated routine headers.
func (s *RoutineService) List(ctx context.Context, filter models.RoutineFilter) ([]models.Routine, *models.Pagination, error) {
	routines, total, err := s.routines.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list routines")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return routines, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a routine header by identifier.
func (s *RoutineService) Get(ctx context.Context, id string) (*models.Routine, error) {
	routine, err := s.routines.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "routine not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load routine")
	}
	return routine, nil
}

// Rows returns a routine's rows in display order, optionally filtered.
func (s *RoutineService) Rows(ctx context.Context, id string, filter models.RoutineRowFilter) ([]models.RoutineRow, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.routines.ListRows(ctx, id, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load routine rows")
	}
	return rows, nil
}

// Grid groups a routine's rows into per-section timetable grids.
func (s *RoutineService) Grid(ctx context.Context, id string) ([]dto.RoutineGridResponse, error) {
	rows, err := s.Rows(ctx, id, models.RoutineRowFilter{})
	if err != nil {
		return nil, err
	}

	type gridKey struct {
		semester, section string
	}
	var order []gridKey
	grids := make(map[gridKey]*dto.RoutineGridResponse)
	for _, row := range rows {
		key := gridKey{row.Semester, row.Section}
		grid, ok := grids[key]
		if !ok {
			grid = &dto.RoutineGridResponse{
				Semester: row.Semester,
				Section:  row.Section,
				Days:     make(map[string][]dto.RoutineGridCell),
			}
			grids[key] = grid
			order = append(order, key)
		}
		grid.Days[row.Day] = append(grid.Days[row.Day], dto.RoutineGridCell{
			TimeRange:  row.TimeRange,
			CourseCode: row.CourseCode,
			Title:      row.Title,
			Room:       row.Room,
			ClassType:  row.ClassType,
		})
	}

	result := make([]dto.RoutineGridResponse, 0, len(order))
	for _, key := range order {
		result = append(result, *grids[key])
	}
	return result, nil
}

// Delete removes a stored routine and its rows.
func (s *RoutineService) Delete(ctx context.Context, id string) error {
	if err := s.routines.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "routine not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete routine")
	}
	s.logger.Info("routine deleted", zap.String("routine_id", id))
	return nil
}

// proposalPayload is the cacheable projection of one solver run.
type proposalPayload struct {
	Rows     []dto.RoutineRowResponse   `json:"rows"`
	Unplaced []dto.UnplacedTaskResponse `json:"unplaced"`
	Stats    dto.SolverStatsResponse    `json:"stats"`
}

func buildPayload(tasks []engine.Task, result engine.Result, catalog engine.Catalog) proposalPayload {
	projected := engine.Project(tasks, result.Assignment, catalog.Calendar)
	rows := make([]dto.RoutineRowResponse, 0, len(projected))
	for _, row := range projected {
		rows = append(rows, dto.RoutineRowResponse{
			Semester:        row.Semester,
			Section:         row.Section,
			Day:             row.Day,
			TimeRange:       row.TimeRange,
			StartMinute:     row.StartMinute,
			DurationMinutes: row.DurationMinutes,
			CourseCode:      row.CourseCode,
			Title:           row.Title,
			Room:            row.Room,
			ClassType:       string(row.Type),
			TaskID:          row.TaskID,
		})
	}

	unplaced := make([]dto.UnplacedTaskResponse, 0, len(result.Unplaced))
	for _, u := range result.Unplaced {
		unplaced = append(unplaced, dto.UnplacedTaskResponse{
			TaskID:     u.Task.ID,
			CourseCode: u.Task.CourseCode,
			Semester:   u.Task.Semester,
			Section:    u.Task.Section,
			Reason:     u.Reason,
		})
	}

	return proposalPayload{
		Rows:     rows,
		Unplaced: unplaced,
		Stats: dto.SolverStatsResponse{
			Nodes:           result.Stats.Nodes,
			Backtracks:      result.Stats.Backtracks,
			BudgetExhausted: result.BudgetExhausted,
		},
	}
}

type routineProposal struct {
	ProposalID  string
	Fingerprint string
	Payload     proposalPayload
	RequestedAt time.Time
}

type proposalStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]routineProposal
}

func newProposalStore(ttl time.Duration) *proposalStore {
	return &proposalStore{
		ttl:   ttl,
		items: make(map[string]routineProposal),
	}
}

func (s *proposalStore) Save(proposal routineProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[proposal.ProposalID] = proposal
}

func (s *proposalStore) Get(id string) (routineProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return routineProposal{}, false
	}
	if time.Since(proposal.RequestedAt) > s.ttl {
		s.Delete(id)
		return routineProposal{}, false
	}
	return proposal, true
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}
