package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campusops/routine-api/internal/models"
)

// calendarSettingsID pins the single calendar row.
const calendarSettingsID = "default"

// SettingsRepository persists the shared scheduling calendar.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository creates a new repository instance.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetCalendar loads the calendar settings row.
func (r *SettingsRepository) GetCalendar(ctx context.Context) (*models.CalendarSettings, error) {
	const query = `SELECT id, working_days, start_minute, end_minute, updated_at FROM calendar_settings WHERE id = $1`
	var settings models.CalendarSettings
	if err := r.db.GetContext(ctx, &settings, query, calendarSettingsID); err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpsertCalendar replaces the calendar settings row.
func (r *SettingsRepository) UpsertCalendar(ctx context.Context, settings *models.CalendarSettings) error {
	settings.ID = calendarSettingsID
	settings.UpdatedAt = time.Now().UTC()

	const query = `
INSERT INTO calendar_settings (id, working_days, start_minute, end_minute, updated_at)
VALUES (:id, :working_days, :start_minute, :end_minute, :updated_at)
ON CONFLICT (id) DO UPDATE SET working_days = EXCLUDED.working_days,
	start_minute = EXCLUDED.start_minute, end_minute = EXCLUDED.end_minute, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, settings); err != nil {
		return fmt.Errorf("upsert calendar settings: %w", err)
	}
	return nil
}
