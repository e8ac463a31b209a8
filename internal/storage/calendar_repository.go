package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rental-manager/backend/internal/storage/models"
	"github.com/volatiletech/null/v8"
)

// CalendarRepository provides data access for per-property calendar settings.
type CalendarRepository struct {
	BaseRepository
}

// NewCalendarRepository creates a new calendar settings repository.
func NewCalendarRepository(db *DB) *CalendarRepository {
	return &CalendarRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// GetSettings retrieves the calendar settings for a property.
// Returns nil, nil when the property has never been configured.
func (r *CalendarRepository) GetSettings(ctx context.Context, propertyID string) (*models.CalendarSettings, error) {
	settings := &models.CalendarSettings{}

	err := r.DB().GetContext(ctx, settings, r.Q(`
		SELECT property_id, ical_url, sync_enabled, last_sync_at, updated_at
		FROM calendar_settings WHERE property_id = ?
	`), propertyID)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying calendar settings: %w", err)
	}

	return settings, nil
}

// SaveSettings inserts or replaces the URL and enabled flag for a property.
// The last sync timestamp is only written by TouchLastSync.
func (r *CalendarRepository) SaveSettings(ctx context.Context, settings *models.CalendarSettings) error {
	settings.UpdatedAt = r.Now()

	_, err := r.DB().ExecContext(ctx, r.Q(`
		INSERT INTO calendar_settings (property_id, ical_url, sync_enabled, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (property_id) DO UPDATE SET
			ical_url = excluded.ical_url,
			sync_enabled = excluded.sync_enabled,
			updated_at = excluded.updated_at
	`), settings.PropertyID, settings.ICalURL, settings.SyncEnabled, settings.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving calendar settings: %w", err)
	}

	return nil
}

// TouchLastSync records the time of the latest sync pass for a property.
func (r *CalendarRepository) TouchLastSync(ctx context.Context, propertyID string, at time.Time) error {
	at = at.UTC()

	_, err := r.DB().ExecContext(ctx, r.Q(`
		INSERT INTO calendar_settings (property_id, sync_enabled, last_sync_at, updated_at)
		VALUES (?, FALSE, ?, ?)
		ON CONFLICT (property_id) DO UPDATE SET
			last_sync_at = excluded.last_sync_at,
			updated_at = excluded.updated_at
	`), propertyID, null.TimeFrom(at), at)

	if err != nil {
		return fmt.Errorf("updating last sync time: %w", err)
	}

	return nil
}

// ListSyncTargets retrieves all properties with sync enabled and a calendar URL configured.
func (r *CalendarRepository) ListSyncTargets(ctx context.Context) ([]models.SyncTarget, error) {
	var targets []models.SyncTarget

	err := r.DB().SelectContext(ctx, &targets, `
		SELECT cs.property_id, p.name, cs.ical_url
		FROM calendar_settings cs
		JOIN properties p ON p.id = cs.property_id
		WHERE cs.sync_enabled = TRUE
		  AND cs.ical_url IS NOT NULL
		  AND cs.ical_url <> ''
		ORDER BY cs.last_sync_at ASC NULLS FIRST, p.name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying sync targets: %w", err)
	}

	return targets, nil
}
