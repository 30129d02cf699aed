package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusops/routine-api/internal/models"
)

// SemesterRepository handles persistence for semesters.
type SemesterRepository struct {
	db *sqlx.DB
}

// NewSemesterRepository creates a new repository instance.
func NewSemesterRepository(db *sqlx.DB) *SemesterRepository {
	return &SemesterRepository{db: db}
}

func (r *SemesterRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns all semesters ordered by name.
func (r *SemesterRepository) List(ctx context.Context) ([]models.Semester, error) {
	const query = `SELECT id, name, created_at, updated_at FROM semesters ORDER BY name ASC`
	var semesters []models.Semester
	if err := r.db.SelectContext(ctx, &semesters, query); err != nil {
		return nil, fmt.Errorf("list semesters: %w", err)
	}
	return semesters, nil
}

// FindByID returns a semester by id.
func (r *SemesterRepository) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	const query = `SELECT id, name, created_at, updated_at FROM semesters WHERE id = $1`
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, query, id); err != nil {
		return nil, err
	}
	return &semester, nil
}

// ExistsByName checks uniqueness of the semester name.
func (r *SemesterRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	const query = `SELECT 1 FROM semesters WHERE LOWER(name) = LOWER($1) LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, name); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check semester name: %w", err)
	}
	return true, nil
}

// Create persists a new semester.
func (r *SemesterRepository) Create(ctx context.Context, semester *models.Semester) error {
	if semester.ID == "" {
		semester.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if semester.CreatedAt.IsZero() {
		semester.CreatedAt = now
	}
	semester.UpdatedAt = now

	const query = `INSERT INTO semesters (id, name, created_at, updated_at) VALUES (:id, :name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, semester); err != nil {
		return fmt.Errorf("create semester: %w", err)
	}
	return nil
}

// Delete removes a semester. Component cleanup happens in the same
// transaction at the service layer.
func (r *SemesterRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	target := r.exec(exec)
	result, err := target.ExecContext(ctx, `DELETE FROM semesters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete semester: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("semester rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
