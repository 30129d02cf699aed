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

// ComponentRepository handles persistence for class components.
type ComponentRepository struct {
	db *sqlx.DB
}

// NewComponentRepository creates a new repository instance.
func NewComponentRepository(db *sqlx.DB) *ComponentRepository {
	return &ComponentRepository{db: db}
}

func (r *ComponentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const componentColumns = `c.id, c.semester_id, s.name AS semester_name, c.course_code, c.title, c.sections,
c.class_type, c.sessions_per_week, c.duration_minutes, c.requirement_kind, c.requirement_room, c.created_at, c.updated_at`

// List returns components matching filters with pagination metadata.
func (r *ComponentRepository) List(ctx context.Context, filter models.ComponentFilter) ([]models.ClassComponent, int, error) {
	base := "FROM class_components c JOIN semesters s ON s.id = c.semester_id WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.SemesterID != "" {
		conditions = append(conditions, fmt.Sprintf("c.semester_id = $%d", len(args)+1))
		args = append(args, filter.SemesterID)
	}
	if filter.CourseCode != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(c.course_code) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.CourseCode)+"%")
	}
	if filter.ClassType != "" {
		conditions = append(conditions, fmt.Sprintf("c.class_type = $%d", len(args)+1))
		args = append(args, filter.ClassType)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY s.name ASC, c.course_code ASC, c.class_type ASC LIMIT %d OFFSET %d",
		componentColumns, base, size, offset)
	var components []models.ClassComponent
	if err := r.db.SelectContext(ctx, &components, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list components: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count components: %w", err)
	}

	return components, total, nil
}

// ListAll returns every component in deterministic order, used when building
// a solver snapshot of the whole catalog.
func (r *ComponentRepository) ListAll(ctx context.Context) ([]models.ClassComponent, error) {
	query := fmt.Sprintf("SELECT %s FROM class_components c JOIN semesters s ON s.id = c.semester_id ORDER BY c.id ASC", componentColumns)
	var components []models.ClassComponent
	if err := r.db.SelectContext(ctx, &components, query); err != nil {
		return nil, fmt.Errorf("list all components: %w", err)
	}
	return components, nil
}

// FindByID returns a component by id.
func (r *ComponentRepository) FindByID(ctx context.Context, id string) (*models.ClassComponent, error) {
	query := fmt.Sprintf("SELECT %s FROM class_components c JOIN semesters s ON s.id = c.semester_id WHERE c.id = $1", componentColumns)
	var component models.ClassComponent
	if err := r.db.GetContext(ctx, &component, query, id); err != nil {
		return nil, err
	}
	return &component, nil
}

// Create persists a new class component.
func (r *ComponentRepository) Create(ctx context.Context, component *models.ClassComponent) error {
	if component.ID == "" {
		component.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if component.CreatedAt.IsZero() {
		component.CreatedAt = now
	}
	component.UpdatedAt = now

	const query = `
INSERT INTO class_components (id, semester_id, course_code, title, sections, class_type, sessions_per_week,
	duration_minutes, requirement_kind, requirement_room, created_at, updated_at)
VALUES (:id, :semester_id, :course_code, :title, :sections, :class_type, :sessions_per_week,
	:duration_minutes, :requirement_kind, :requirement_room, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, component); err != nil {
		return fmt.Errorf("create component: %w", err)
	}
	return nil
}

// Update modifies a class component.
func (r *ComponentRepository) Update(ctx context.Context, component *models.ClassComponent) error {
	component.UpdatedAt = time.Now().UTC()
	const query = `
UPDATE class_components SET course_code = :course_code, title = :title, sections = :sections,
	class_type = :class_type, sessions_per_week = :sessions_per_week, duration_minutes = :duration_minutes,
	requirement_kind = :requirement_kind, requirement_room = :requirement_room, updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, component); err != nil {
		return fmt.Errorf("update component: %w", err)
	}
	return nil
}

// Delete removes a component record.
func (r *ComponentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM class_components WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete component: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("component rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// StripSection removes a section name from every component of the semester
// that carries it. Runs inside the caller's transaction when exec is given.
func (r *ComponentRepository) StripSection(ctx context.Context, exec sqlx.ExtContext, semesterID, section string) (int, error) {
	target := r.exec(exec)
	const query = `
UPDATE class_components SET sections = array_remove(sections, $1), updated_at = $2
WHERE semester_id = $3 AND $1 = ANY(sections)`
	result, err := target.ExecContext(ctx, query, section, time.Now().UTC(), semesterID)
	if err != nil {
		return 0, fmt.Errorf("strip section: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("strip section rows affected: %w", err)
	}
	return int(affected), nil
}

// DeleteEmptySections removes the semester's components whose section list
// has become empty.
func (r *ComponentRepository) DeleteEmptySections(ctx context.Context, exec sqlx.ExtContext, semesterID string) (int, error) {
	target := r.exec(exec)
	const query = `DELETE FROM class_components WHERE semester_id = $1 AND cardinality(sections) = 0`
	result, err := target.ExecContext(ctx, query, semesterID)
	if err != nil {
		return 0, fmt.Errorf("delete empty components: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("empty components rows affected: %w", err)
	}
	return int(affected), nil
}

// DeleteBySemester removes every component under a semester, in the same
// transaction as the semester delete.
func (r *ComponentRepository) DeleteBySemester(ctx context.Context, exec sqlx.ExtContext, semesterID string) (int, error) {
	target := r.exec(exec)
	result, err := target.ExecContext(ctx, `DELETE FROM class_components WHERE semester_id = $1`, semesterID)
	if err != nil {
		return 0, fmt.Errorf("delete components by semester: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("components rows affected: %w", err)
	}
	return int(affected), nil
}
