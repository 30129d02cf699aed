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

// RoomRepository handles persistence for rooms.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository creates a new repository instance.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// List returns rooms, optionally filtered by kind, ordered by name.
func (r *RoomRepository) List(ctx context.Context, kind string) ([]models.Room, error) {
	query := `SELECT id, name, kind, created_at, updated_at FROM rooms`
	var args []interface{}
	if kind != "" {
		query += ` WHERE kind = $1`
		args = append(args, kind)
	}
	query += ` ORDER BY name ASC`

	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, args...); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// FindByID returns a room by id.
func (r *RoomRepository) FindByID(ctx context.Context, id string) (*models.Room, error) {
	const query = `SELECT id, name, kind, created_at, updated_at FROM rooms WHERE id = $1`
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		return nil, err
	}
	return &room, nil
}

// ExistsByName checks uniqueness of the room name across both pools.
func (r *RoomRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	const query = `SELECT 1 FROM rooms WHERE LOWER(name) = LOWER($1) LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, name); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check room name: %w", err)
	}
	return true, nil
}

// Create persists a new room.
func (r *RoomRepository) Create(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now

	const query = `INSERT INTO rooms (id, name, kind, created_at, updated_at) VALUES (:id, :name, :kind, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

// Delete removes a room record.
func (r *RoomRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("room rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountSpecificRequirements returns how many components pin this room by name.
func (r *RoomRepository) CountSpecificRequirements(ctx context.Context, name string) (int, error) {
	const query = `SELECT COUNT(*) FROM class_components WHERE requirement_kind = 'SPECIFIC_ROOM' AND requirement_room = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, name); err != nil {
		return 0, fmt.Errorf("count specific room requirements: %w", err)
	}
	return count, nil
}
