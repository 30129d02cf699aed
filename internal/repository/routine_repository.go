package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusops/routine-api/internal/models"
)

// RoutineRepository persists versioned routines and their rows.
type RoutineRepository struct {
	db *sqlx.DB
}

// NewRoutineRepository constructs repository.
func NewRoutineRepository(db *sqlx.DB) *RoutineRepository {
	return &RoutineRepository{db: db}
}

func (r *RoutineRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateVersioned inserts a routine header assigning the next global version.
func (r *RoutineRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, routine *models.Routine) error {
	if routine == nil {
		return fmt.Errorf("routine payload is nil")
	}
	if routine.ID == "" {
		routine.ID = uuid.NewString()
	}
	if routine.Status == "" {
		routine.Status = models.RoutineStatusComplete
	}
	if routine.CreatedAt.IsZero() {
		routine.CreatedAt = time.Now().UTC()
	}

	target := r.exec(exec)

	const nextVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1 FROM routines`
	if err := sqlx.GetContext(ctx, target, &routine.Version, nextVersionQuery); err != nil {
		return fmt.Errorf("compute next routine version: %w", err)
	}

	const insertQuery = `
INSERT INTO routines (id, version, catalog_fingerprint, status, placed_count, unplaced_count,
	nodes_explored, backtracks, budget_exhausted, created_by, created_at)
VALUES (:id, :version, :catalog_fingerprint, :status, :placed_count, :unplaced_count,
	:nodes_explored, :backtracks, :budget_exhausted, :created_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, routine); err != nil {
		return fmt.Errorf("insert routine: %w", err)
	}
	return nil
}

// InsertRows persists a routine's rows preserving display order.
func (r *RoutineRepository) InsertRows(ctx context.Context, exec sqlx.ExtContext, rows []models.RoutineRow) error {
	if len(rows) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO routine_rows (id, routine_id, position, semester, section, day, start_minute, duration_minutes,
	time_range, course_code, title, room, class_type, task_id, created_at)
VALUES (:id, :routine_id, :position, :semester, :section, :day, :start_minute, :duration_minutes,
	:time_range, :course_code, :title, :room, :class_type, :task_id, :created_at)`
	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = uuid.NewString()
		}
		rows[i].Position = i
		rows[i].CreatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, target, query, rows[i]); err != nil {
			return fmt.Errorf("insert routine row %d: %w", i, err)
		}
	}
	return nil
}

// List returns routine headers matching filters with pagination metadata.
func (r *RoutineRepository) List(ctx context.Context, filter models.RoutineFilter) ([]models.Routine, int, error) {
	base := "FROM routines WHERE 1=1"
	var args []interface{}
	if filter.Status != "" {
		base += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, version, catalog_fingerprint, status, placed_count, unplaced_count,
nodes_explored, backtracks, budget_exhausted, created_by, created_at %s ORDER BY version DESC LIMIT %d OFFSET %d`,
		base, size, offset)
	var routines []models.Routine
	if err := r.db.SelectContext(ctx, &routines, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list routines: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count routines: %w", err)
	}
	return routines, total, nil
}

// FindByID loads a routine header by its identifier.
func (r *RoutineRepository) FindByID(ctx context.Context, id string) (*models.Routine, error) {
	const query = `SELECT id, version, catalog_fingerprint, status, placed_count, unplaced_count,
nodes_explored, backtracks, budget_exhausted, created_by, created_at FROM routines WHERE id = $1`
	var routine models.Routine
	if err := r.db.GetContext(ctx, &routine, query, id); err != nil {
		return nil, err
	}
	return &routine, nil
}

// ListRows returns a routine's rows in display order, optionally filtered.
func (r *RoutineRepository) ListRows(ctx context.Context, routineID string, filter models.RoutineRowFilter) ([]models.RoutineRow, error) {
	base := `SELECT id, routine_id, position, semester, section, day, start_minute, duration_minutes,
time_range, course_code, title, room, class_type, task_id, created_at
FROM routine_rows WHERE routine_id = $1`
	args := []interface{}{routineID}
	var conditions []string

	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.Section != "" {
		conditions = append(conditions, fmt.Sprintf("section = $%d", len(args)+1))
		args = append(args, filter.Section)
	}
	if filter.Day != "" {
		conditions = append(conditions, fmt.Sprintf("day = $%d", len(args)+1))
		args = append(args, filter.Day)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}
	base += " ORDER BY position ASC"

	var rows []models.RoutineRow
	if err := r.db.SelectContext(ctx, &rows, base, args...); err != nil {
		return nil, fmt.Errorf("list routine rows: %w", err)
	}
	return rows, nil
}

// Delete removes a routine; its rows cascade at the schema level.
func (r *RoutineRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM routines WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete routine: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("routine rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
