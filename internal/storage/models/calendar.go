// Package models contains the domain models for the application.
package models

import (
	"fmt"
	"time"

	"github.com/volatiletech/null/v8"
)

// CalendarSettings holds a property's iCal import configuration.
type CalendarSettings struct {
	PropertyID  string      `db:"property_id" json:"propertyId"`
	ICalURL     null.String `db:"ical_url" json:"icalUrl"`
	SyncEnabled bool        `db:"sync_enabled" json:"syncEnabled"`
	LastSyncAt  null.Time   `db:"last_sync_at" json:"lastSyncAt"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updatedAt"`
}

// CalendarSettingsUpdate carries a partial settings change. Nil fields are left untouched;
// an empty ICalURL clears the stored URL.
type CalendarSettingsUpdate struct {
	ICalURL     *string `json:"icalUrl,omitempty"`
	SyncEnabled *bool   `json:"syncEnabled,omitempty"`
}

// CalendarEvent represents a parsed event from an iCal feed.
type CalendarEvent struct {
	UID         string    `json:"uid"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Location    string    `json:"location,omitempty"`
	Organizer   string    `json:"organizer,omitempty"`
}

// SyncResult contains the outcome of a single calendar sync invocation.
type SyncResult struct {
	PropertyID      string    `json:"propertyId"`
	Success         bool      `json:"success"`
	Message         string    `json:"message"`
	EventsFound     int       `json:"eventsFound"`
	BookingsCreated int       `json:"bookingsCreated"`
	BookingsUpdated int       `json:"bookingsUpdated"`
	BookingsSkipped int       `json:"bookingsSkipped"`
	Errors          []string  `json:"errors"`
	SyncedAt        time.Time `json:"syncedAt"`
}

// AddError records a non-fatal error on the result.
func (r *SyncResult) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// TestURLResult reports whether a calendar URL could be fetched and parsed.
type TestURLResult struct {
	Valid      bool   `json:"valid"`
	EventCount int    `json:"eventCount"`
	Error      string `json:"error,omitempty"`
}
