package calendar

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/rental-manager/backend/internal/storage/models"
)

// memoryBookings is an in-memory BookingStore.
type memoryBookings struct {
	byKey     map[string]*models.Booking
	createErr error
	nextID    int
}

func newMemoryBookings() *memoryBookings {
	return &memoryBookings{byKey: make(map[string]*models.Booking)}
}

func (m *memoryBookings) GetByExternalID(_ context.Context, propertyID, externalID string) (*models.Booking, error) {
	b, ok := m.byKey[propertyID+"/"+externalID]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (m *memoryBookings) Create(_ context.Context, b *models.Booking) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	b.ID = fmt.Sprintf("booking-%d", m.nextID)
	cp := *b
	m.byKey[b.PropertyID+"/"+b.ExternalID.String] = &cp
	return nil
}

func (m *memoryBookings) UpdateFromCalendar(_ context.Context, b *models.Booking) error {
	cp := *b
	m.byKey[b.PropertyID+"/"+b.ExternalID.String] = &cp
	return nil
}

func fixedNow() time.Time {
	return time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
}

func newTestReconciler(store BookingStore) *Reconciler {
	r := NewReconciler(store)
	r.now = fixedNow
	return r
}

func day(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestReconcilerCreatesBooking(t *testing.T) {
	store := newMemoryBookings()
	r := newTestReconciler(store)
	result := &models.SyncResult{}

	r.Apply(context.Background(), "prop-1", SourceBookingCom, models.CalendarEvent{
		UID:         "abc123",
		Summary:     "Jane Roe",
		Description: "Late arrival",
		Start:       day(1),
		End:         day(4),
	}, result)

	assert.Equal(t, 1, result.BookingsCreated)
	assert.Empty(t, result.Errors)

	b := store.byKey["prop-1/abc123"]
	require.NotNil(t, b)
	assert.Equal(t, "Jane Roe", b.GuestName)
	assert.Equal(t, 3, b.NightsCount)
	assert.Equal(t, 1, b.GuestCount)
	assert.Equal(t, models.BookingStatusPending, b.Status)
	assert.Equal(t, models.PaymentStatusPending, b.PaymentStatus)
	assert.Equal(t, SourceBookingCom, b.BookingSource)
	assert.Zero(t, b.TotalAmount)
	assert.Equal(t, "Imported from calendar sync on 2025-02-01T12:00:00Z\n\nLate arrival", b.Notes.String)
}

func TestReconcilerMarksPlaceholders(t *testing.T) {
	store := newMemoryBookings()
	r := newTestReconciler(store)
	result := &models.SyncResult{}

	r.Apply(context.Background(), "prop-1", SourceAirbnb, models.CalendarEvent{
		UID: "blk", Summary: "Not available", Start: day(1), End: day(2),
	}, result)

	b := store.byKey["prop-1/blk"]
	require.NotNil(t, b)
	assert.Equal(t, BlockedGuestLabel, b.GuestName)
	assert.Equal(t, "[PLACEHOLDER] Imported from calendar sync on 2025-02-01T12:00:00Z", b.Notes.String)
}

func TestReconcilerUpdatesExistingBooking(t *testing.T) {
	store := newMemoryBookings()
	store.byKey["prop-1/abc123"] = &models.Booking{
		ID:            "existing",
		PropertyID:    "prop-1",
		ExternalID:    null.StringFrom("abc123"),
		GuestName:     "Old Name",
		Status:        models.BookingStatusConfirmed,
		PaymentStatus: models.PaymentStatusPaid,
		TotalAmount:   450,
		BookingSource: SourceBookingCom,
	}
	r := newTestReconciler(store)
	result := &models.SyncResult{}

	r.Apply(context.Background(), "prop-1", SourceICal, models.CalendarEvent{
		UID: "abc123", Summary: "New Name - 3 guests", Start: day(2), End: day(6),
	}, result)

	assert.Equal(t, 0, result.BookingsCreated)
	assert.Equal(t, 1, result.BookingsUpdated)

	b := store.byKey["prop-1/abc123"]
	assert.Equal(t, "existing", b.ID)
	assert.Equal(t, "New Name", b.GuestName)
	assert.Equal(t, 3, b.GuestCount)
	assert.Equal(t, 4, b.NightsCount)
	assert.Equal(t, day(2), b.CheckInDate)
	assert.Equal(t, models.BookingStatusConfirmed, b.Status)
	assert.Equal(t, models.PaymentStatusPaid, b.PaymentStatus)
	assert.Equal(t, 450.0, b.TotalAmount)
	assert.Equal(t, SourceBookingCom, b.BookingSource)
	assert.Equal(t, "Updated from calendar sync on 2025-02-01T12:00:00Z", b.Notes.String)
}

func TestReconcilerRejectsInvalidRange(t *testing.T) {
	store := newMemoryBookings()
	r := newTestReconciler(store)
	result := &models.SyncResult{}

	events := []models.CalendarEvent{
		{UID: "ok-1", Summary: "Ann Lee", Start: day(1), End: day(3)},
		{UID: "bad", Summary: "Bob Stone", Start: day(5), End: day(5)},
		{UID: "ok-2", Summary: "Cara Diaz", Start: day(7), End: day(9)},
	}
	for _, e := range events {
		r.Apply(context.Background(), "prop-1", SourceICal, e, result)
	}

	assert.Equal(t, 2, result.BookingsCreated)
	assert.Equal(t, 1, result.BookingsSkipped)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "bad")
	assert.Contains(t, result.Errors[0], "invalid date range")
	assert.NotContains(t, store.byKey, "prop-1/bad")
}

func TestReconcilerRecordsWriteFailures(t *testing.T) {
	store := newMemoryBookings()
	store.createErr = errors.New("disk full")
	r := newTestReconciler(store)
	result := &models.SyncResult{}

	r.Apply(context.Background(), "prop-1", SourceICal, models.CalendarEvent{
		UID: "e1", Summary: "Ann Lee", Start: day(1), End: day(2),
	}, result)

	assert.Zero(t, result.BookingsCreated)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "e1")
	assert.Contains(t, result.Errors[0], "disk full")
}
