package calendar

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/volatiletech/null/v8"
	"golang.org/x/sync/singleflight"

	"github.com/rental-manager/backend/internal/storage/models"
)

// Settings errors
var (
	ErrPropertyNotFound = errors.New("property not found")
	ErrInvalidURL       = errors.New("invalid calendar URL")
)

// PropertyStore resolves properties by ID.
type PropertyStore interface {
	GetByID(ctx context.Context, id string) (*models.Property, error)
}

// SettingsStore persists per-property calendar settings.
type SettingsStore interface {
	GetSettings(ctx context.Context, propertyID string) (*models.CalendarSettings, error)
	SaveSettings(ctx context.Context, settings *models.CalendarSettings) error
	TouchLastSync(ctx context.Context, propertyID string, at time.Time) error
	ListSyncTargets(ctx context.Context) ([]models.SyncTarget, error)
}

// CalendarSource downloads raw calendar text.
type CalendarSource interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// SyncService imports external calendars into property bookings.
type SyncService struct {
	properties PropertyStore
	settings   SettingsStore
	source     CalendarSource
	parser     *Parser
	reconciler *Reconciler

	locks keyedMutex
	group singleflight.Group
	now   func() time.Time
}

// NewSyncService creates a new calendar sync service.
func NewSyncService(properties PropertyStore, settings SettingsStore, bookings BookingStore, source CalendarSource) *SyncService {
	return &SyncService{
		properties: properties,
		settings:   settings,
		source:     source,
		parser:     NewParser(),
		reconciler: NewReconciler(bookings),
		now:        time.Now,
	}
}

// SyncProperty imports the calendar at icalURL into the given property.
// It always returns a result; failures are reported through its fields.
func (s *SyncService) SyncProperty(ctx context.Context, propertyID, icalURL string) (result *models.SyncResult) {
	// A started sync runs to completion; the fetch timeout bounds it.
	ctx = context.WithoutCancel(ctx)
	result = s.newResult(propertyID)
	defer s.recoverInto(result)

	unlock := s.locks.Lock(propertyID)
	defer unlock()

	property, err := s.properties.GetByID(ctx, propertyID)
	if err != nil {
		return fail(result, "Failed to load property", err.Error())
	}
	if property == nil {
		return fail(result, "Property not found", ErrPropertyNotFound.Error())
	}

	icalURL = strings.TrimSpace(icalURL)
	if icalURL == "" {
		return fail(result, "No calendar URL provided", "missing calendar URL")
	}

	log.Printf("Syncing calendar for property %s (%s) from %s", property.ID, property.Name, redactURL(icalURL))

	events, stats, err := s.fetchAndParse(ctx, icalURL)
	if err != nil {
		log.Printf("Calendar sync failed for property %s: %v", property.ID, err)
		return fail(result, describeError(err), err.Error())
	}
	if stats.Dropped > 0 {
		log.Printf("Dropped %d of %d calendar entries for property %s (missing UID or dates)",
			stats.Dropped, stats.Total, property.ID)
	}

	result.EventsFound = len(events)
	source := PlatformFromURL(icalURL)
	for _, event := range events {
		s.reconciler.Apply(ctx, property.ID, source, event, result)
	}

	if err := s.settings.TouchLastSync(ctx, property.ID, s.now().UTC()); err != nil {
		log.Printf("Failed to update last sync time for property %s: %v", property.ID, err)
		result.AddError("updating last sync time: %v", err)
	}

	s.finish(result)
	log.Printf("Calendar sync completed for property %s: %d events, %d created, %d updated, %d errors",
		property.ID, result.EventsFound, result.BookingsCreated, result.BookingsUpdated, len(result.Errors))

	return result
}

// SyncStoredProperty syncs a property from its saved calendar settings.
// Disabled or unconfigured properties are rejected without any network I/O.
func (s *SyncService) SyncStoredProperty(ctx context.Context, propertyID string) (result *models.SyncResult) {
	result = s.newResult(propertyID)
	defer s.recoverInto(result)

	settings, err := s.GetSettings(ctx, propertyID)
	if err != nil {
		return fail(result, "Failed to load calendar settings", err.Error())
	}
	if settings == nil {
		return fail(result, "Property not found", ErrPropertyNotFound.Error())
	}
	if !settings.SyncEnabled {
		return fail(result, "Calendar sync is disabled for this property", "calendar sync disabled")
	}
	if strings.TrimSpace(settings.ICalURL.String) == "" {
		return fail(result, "No calendar URL configured for this property", "calendar URL not configured")
	}

	return s.SyncProperty(ctx, propertyID, settings.ICalURL.String)
}

// SyncAll syncs every property with calendar sync enabled, one at a time.
// Overlapping calls share a single pass. The pass ignores cancellation of the
// caller's ctx, since joined callers depend on it finishing.
func (s *SyncService) SyncAll(ctx context.Context) ([]models.SyncResult, error) {
	ctx = context.WithoutCancel(ctx)
	v, err, shared := s.group.Do("sync-all", func() (any, error) {
		targets, err := s.settings.ListSyncTargets(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing sync targets: %w", err)
		}

		results := make([]models.SyncResult, 0, len(targets))
		for _, target := range targets {
			results = append(results, *s.SyncStoredProperty(ctx, target.PropertyID))
		}
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Println("Joined calendar sync pass already in progress")
	}

	return v.([]models.SyncResult), nil
}

// TestURL fetches and parses a calendar without touching any bookings.
func (s *SyncService) TestURL(ctx context.Context, rawURL string) models.TestURLResult {
	events, _, err := s.fetchAndParse(ctx, strings.TrimSpace(rawURL))
	if err != nil {
		return models.TestURLResult{Error: describeError(err)}
	}
	return models.TestURLResult{Valid: true, EventCount: len(events)}
}

// GetSettings returns a property's calendar settings, or nil if the property
// does not exist. Properties without saved settings get disabled defaults.
func (s *SyncService) GetSettings(ctx context.Context, propertyID string) (*models.CalendarSettings, error) {
	property, err := s.properties.GetByID(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("getting property: %w", err)
	}
	if property == nil {
		return nil, nil
	}

	settings, err := s.settings.GetSettings(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("getting calendar settings: %w", err)
	}
	if settings == nil {
		settings = &models.CalendarSettings{PropertyID: propertyID}
	}

	return settings, nil
}

// UpdateSettings applies a partial settings change and returns the result.
func (s *SyncService) UpdateSettings(ctx context.Context, propertyID string, update models.CalendarSettingsUpdate) (*models.CalendarSettings, error) {
	settings, err := s.GetSettings(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return nil, ErrPropertyNotFound
	}

	if update.ICalURL != nil {
		u := strings.TrimSpace(*update.ICalURL)
		if u == "" {
			settings.ICalURL = null.String{}
		} else {
			if err := ValidateURL(u); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
			}
			settings.ICalURL = null.StringFrom(u)
		}
	}
	if update.SyncEnabled != nil {
		settings.SyncEnabled = *update.SyncEnabled
	}

	if err := s.settings.SaveSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("saving calendar settings: %w", err)
	}

	return settings, nil
}

func (s *SyncService) fetchAndParse(ctx context.Context, rawURL string) ([]models.CalendarEvent, ParseStats, error) {
	data, err := s.source.Fetch(ctx, rawURL)
	if err != nil {
		return nil, ParseStats{}, err
	}
	return s.parser.Parse(data)
}

func (s *SyncService) newResult(propertyID string) *models.SyncResult {
	return &models.SyncResult{
		PropertyID: propertyID,
		Errors:     []string{},
		SyncedAt:   s.now().UTC(),
	}
}

// recoverInto converts a panic during a sync into a failed result.
func (s *SyncService) recoverInto(result *models.SyncResult) {
	r := recover()
	if r == nil {
		return
	}
	log.Printf("Calendar sync panicked for property %s: %v\n%s", result.PropertyID, r, debug.Stack())
	fail(result, fmt.Sprintf("Sync failed: %v", r), fmt.Sprint(r))
}

func (s *SyncService) finish(result *models.SyncResult) {
	result.Success = len(result.Errors) == 0
	if result.Success {
		result.Message = fmt.Sprintf("Synced %d events: %d created, %d updated",
			result.EventsFound, result.BookingsCreated, result.BookingsUpdated)
		return
	}
	result.Message = fmt.Sprintf("Synced %d events with %d errors: %d created, %d updated",
		result.EventsFound, len(result.Errors), result.BookingsCreated, result.BookingsUpdated)
}

func fail(result *models.SyncResult, message, errMsg string) *models.SyncResult {
	result.Success = false
	result.Message = message
	result.Errors = append(result.Errors, errMsg)
	return result
}

// describeError turns a fetch or parse failure into an owner-facing message.
func describeError(err error) string {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Diagnostic()
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return "Calendar data could not be parsed"
	}
	return err.Error()
}

// keyedMutex serializes work per key. Entries are never removed; there is
// one per property.
type keyedMutex struct {
	locks sync.Map
}

func (k *keyedMutex) Lock(key string) func() {
	v, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
