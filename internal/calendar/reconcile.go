package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/rental-manager/backend/internal/storage/models"
)

const placeholderNotePrefix = "[PLACEHOLDER] "

// BookingStore is the booking persistence used by the reconciler.
type BookingStore interface {
	GetByExternalID(ctx context.Context, propertyID, externalID string) (*models.Booking, error)
	Create(ctx context.Context, b *models.Booking) error
	UpdateFromCalendar(ctx context.Context, b *models.Booking) error
}

// Reconciler applies calendar events to a property's bookings.
type Reconciler struct {
	bookings BookingStore
	now      func() time.Time
}

// NewReconciler creates a new reconciler.
func NewReconciler(bookings BookingStore) *Reconciler {
	return &Reconciler{
		bookings: bookings,
		now:      time.Now,
	}
}

// Apply creates or updates the booking for a single event and records the
// outcome on result. Failures are recorded as errors, never returned.
func (r *Reconciler) Apply(ctx context.Context, propertyID, source string, event models.CalendarEvent, result *models.SyncResult) {
	nights := models.NightsBetween(event.Start, event.End)
	if nights <= 0 {
		result.BookingsSkipped++
		result.AddError("event %s: invalid date range %s to %s",
			event.UID, event.Start.Format(time.RFC3339), event.End.Format(time.RFC3339))
		return
	}

	existing, err := r.bookings.GetByExternalID(ctx, propertyID, event.UID)
	if err != nil {
		result.AddError("event %s: looking up booking: %v", event.UID, err)
		return
	}

	guest := ExtractGuestInfo(event)
	now := r.now().UTC()

	if existing != nil {
		existing.GuestName = guest.Name
		existing.GuestEmail = optionalString(guest.Email)
		existing.GuestPhone = optionalString(guest.Phone)
		existing.GuestCount = guest.GuestCount
		existing.CheckInDate = event.Start
		existing.CheckOutDate = event.End
		existing.NightsCount = nights
		existing.Notes = null.StringFrom(updateNotes(now, event.Description))

		if err := r.bookings.UpdateFromCalendar(ctx, existing); err != nil {
			result.AddError("event %s: updating booking: %v", event.UID, err)
			return
		}
		result.BookingsUpdated++
		return
	}

	booking := &models.Booking{
		PropertyID:    propertyID,
		ExternalID:    null.StringFrom(event.UID),
		GuestName:     guest.Name,
		GuestEmail:    optionalString(guest.Email),
		GuestPhone:    optionalString(guest.Phone),
		GuestCount:    guest.GuestCount,
		CheckInDate:   event.Start,
		CheckOutDate:  event.End,
		NightsCount:   nights,
		Status:        models.BookingStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		BookingSource: source,
		Notes:         null.StringFrom(createNotes(now, guest.Placeholder, event.Description)),
	}
	if err := r.bookings.Create(ctx, booking); err != nil {
		result.AddError("event %s: creating booking: %v", event.UID, err)
		return
	}
	result.BookingsCreated++
}

func createNotes(now time.Time, placeholder bool, description string) string {
	var b strings.Builder
	if placeholder {
		b.WriteString(placeholderNotePrefix)
	}
	b.WriteString("Imported from calendar sync on ")
	b.WriteString(now.Format(time.RFC3339))
	if d := strings.TrimSpace(description); d != "" {
		b.WriteString("\n\n")
		b.WriteString(d)
	}
	return b.String()
}

func updateNotes(now time.Time, description string) string {
	note := fmt.Sprintf("Updated from calendar sync on %s", now.Format(time.RFC3339))
	if d := strings.TrimSpace(description); d != "" {
		note += "\n\n" + d
	}
	return note
}

func optionalString(s string) null.String {
	if s == "" {
		return null.String{}
	}
	return null.StringFrom(s)
}
