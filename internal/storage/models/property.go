package models

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Property is a rental unit whose bookings are managed by the application.
type Property struct {
	ID        string      `db:"id" json:"id"`
	Name      string      `db:"name" json:"name"`
	Slug      string      `db:"slug" json:"slug"`
	Address   null.String `db:"address" json:"address"`
	MaxGuests int         `db:"max_guests" json:"max_guests"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}

// SyncTarget is a property that is enabled for scheduled calendar import.
type SyncTarget struct {
	PropertyID string `db:"property_id"`
	Name       string `db:"name"`
	ICalURL    string `db:"ical_url"`
}
