package storage

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/rental-manager/backend/internal/storage/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, RunMigrations(db))
	return db
}

func createProperty(t *testing.T, repo *PropertyRepository, name string) *models.Property {
	t.Helper()

	p := &models.Property{Name: name, MaxGuests: 4}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, RunMigrations(db))

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM _migrations"))
	assert.Equal(t, 1, count)
}

func TestRunMigrationsRejectsModifiedFile(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Exec("UPDATE _migrations SET checksum = 'stale'")
	require.NoError(t, err)

	err = RunMigrations(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "modified after being applied")
}

func TestLoadMigrationsOrdersByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/010_later.sql":  {Data: []byte("SELECT 10;")},
		"migrations/002_second.sql": {Data: []byte("SELECT 2;")},
		"migrations/001_first.sql":  {Data: []byte("SELECT 1;")},
	}

	got, err := loadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{got[0].Version, got[1].Version, got[2].Version})
	assert.Len(t, got[0].Checksum, 64)

	_, err = loadMigrations(fstest.MapFS{
		"migrations/001_a.sql": {Data: []byte("SELECT 1;")},
		"migrations/1_b.sql":   {Data: []byte("SELECT 1;")},
	})
	assert.Error(t, err)

	_, err = loadMigrations(fstest.MapFS{"migrations/initial.sql": {Data: []byte("SELECT 1;")}})
	assert.Error(t, err)
}

func TestPropertyRepositorySlugs(t *testing.T) {
	repo := NewPropertyRepository(newTestDB(t))

	first := createProperty(t, repo, "Sea View Loft")
	second := createProperty(t, repo, "Sea View Loft")

	assert.Equal(t, "sea-view-loft", first.Slug)
	assert.Equal(t, "sea-view-loft-2", second.Slug)
	assert.NotEqual(t, first.ID, second.ID)

	got, err := repo.GetByID(context.Background(), first.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Sea View Loft", got.Name)
	assert.Equal(t, 4, got.MaxGuests)

	missing, err := repo.GetByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPropertyRepositoryDeleteCascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	props := NewPropertyRepository(db)
	bookings := NewBookingRepository(db)
	calendars := NewCalendarRepository(db)

	p := createProperty(t, props, "Cabin")
	require.NoError(t, calendars.TouchLastSync(ctx, p.ID, time.Now()))
	require.NoError(t, bookings.Create(ctx, &models.Booking{
		PropertyID:   p.ID,
		GuestName:    "Jane Roe",
		GuestCount:   1,
		CheckInDate:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		CheckOutDate: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC),
		NightsCount:  3,
	}))

	require.NoError(t, props.Delete(ctx, p.ID))

	list, err := bookings.ListByProperty(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	settings, err := calendars.GetSettings(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, settings)

	assert.ErrorIs(t, props.Delete(ctx, p.ID), ErrNotFound)
}

func TestCalendarRepositorySettings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	props := NewPropertyRepository(db)
	calendars := NewCalendarRepository(db)

	enabled := createProperty(t, props, "Enabled")
	disabled := createProperty(t, props, "Disabled")
	noURL := createProperty(t, props, "No URL")

	settings, err := calendars.GetSettings(ctx, enabled.ID)
	require.NoError(t, err)
	assert.Nil(t, settings)

	require.NoError(t, calendars.SaveSettings(ctx, &models.CalendarSettings{
		PropertyID:  enabled.ID,
		ICalURL:     null.StringFrom("https://example.com/a.ics"),
		SyncEnabled: true,
	}))
	require.NoError(t, calendars.SaveSettings(ctx, &models.CalendarSettings{
		PropertyID:  disabled.ID,
		ICalURL:     null.StringFrom("https://example.com/b.ics"),
		SyncEnabled: false,
	}))
	require.NoError(t, calendars.SaveSettings(ctx, &models.CalendarSettings{
		PropertyID:  noURL.ID,
		SyncEnabled: true,
	}))

	targets, err := calendars.ListSyncTargets(ctx)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, enabled.ID, targets[0].PropertyID)
	assert.Equal(t, "https://example.com/a.ics", targets[0].ICalURL)

	syncedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, calendars.TouchLastSync(ctx, enabled.ID, syncedAt))

	settings, err = calendars.GetSettings(ctx, enabled.ID)
	require.NoError(t, err)
	require.NotNil(t, settings)
	assert.True(t, settings.SyncEnabled)
	assert.Equal(t, "https://example.com/a.ics", settings.ICalURL.String)
	require.True(t, settings.LastSyncAt.Valid)
	assert.True(t, syncedAt.Equal(settings.LastSyncAt.Time))

	// Saving settings must not clear the last sync time.
	settings.SyncEnabled = false
	require.NoError(t, calendars.SaveSettings(ctx, settings))
	settings, err = calendars.GetSettings(ctx, enabled.ID)
	require.NoError(t, err)
	assert.False(t, settings.SyncEnabled)
	assert.True(t, settings.LastSyncAt.Valid)
}

func TestBookingRepositoryExternalIDIsUniquePerProperty(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	props := NewPropertyRepository(db)
	bookings := NewBookingRepository(db)

	a := createProperty(t, props, "A")
	b := createProperty(t, props, "B")

	newBooking := func(propertyID string) *models.Booking {
		return &models.Booking{
			PropertyID:   propertyID,
			ExternalID:   null.StringFrom("abc123"),
			GuestName:    "Jane Roe",
			GuestCount:   2,
			CheckInDate:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			CheckOutDate: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC),
			NightsCount:  3,
		}
	}

	first := newBooking(a.ID)
	require.NoError(t, bookings.Create(ctx, first))
	assert.Len(t, first.Reference, 10)
	assert.Equal(t, models.BookingStatusPending, first.Status)
	assert.Equal(t, models.PaymentStatusPending, first.PaymentStatus)

	assert.Error(t, bookings.Create(ctx, newBooking(a.ID)))
	assert.NoError(t, bookings.Create(ctx, newBooking(b.ID)))

	got, err := bookings.GetByExternalID(ctx, a.ID, "abc123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, 3, got.NightsCount)
	assert.True(t, first.CheckInDate.Equal(got.CheckInDate))

	none, err := bookings.GetByExternalID(ctx, a.ID, "other")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestBookingRepositoryUpdateFromCalendarKeepsStatusAndMoney(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	p := createProperty(t, NewPropertyRepository(db), "Flat")
	bookings := NewBookingRepository(db)

	b := &models.Booking{
		PropertyID:   p.ID,
		GuestName:    "Old Name",
		GuestCount:   1,
		CheckInDate:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		CheckOutDate: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		NightsCount:  1,
		TotalAmount:  250,
	}
	require.NoError(t, bookings.Create(ctx, b))
	require.NoError(t, bookings.UpdateStatus(ctx, b.ID, models.BookingStatusConfirmed, models.PaymentStatusPaid))

	b.GuestName = "New Name"
	b.Status = models.BookingStatusCancelled
	b.TotalAmount = 0
	b.NightsCount = 2
	b.CheckOutDate = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	require.NoError(t, bookings.UpdateFromCalendar(ctx, b))

	got, err := bookings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Name", got.GuestName)
	assert.Equal(t, 2, got.NightsCount)
	assert.Equal(t, models.BookingStatusConfirmed, got.Status)
	assert.Equal(t, models.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, 250.0, got.TotalAmount)
}

func TestBookingRepositoryHasOverlap(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	p := createProperty(t, NewPropertyRepository(db), "Flat")
	bookings := NewBookingRepository(db)

	mar := func(d int) time.Time { return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC) }

	b := &models.Booking{PropertyID: p.ID, GuestName: "Ann", GuestCount: 1, CheckInDate: mar(10), CheckOutDate: mar(13), NightsCount: 3}
	require.NoError(t, bookings.Create(ctx, b))

	tests := []struct {
		in, out int
		want    bool
	}{
		{7, 10, false},
		{13, 15, false},
		{9, 11, true},
		{12, 20, true},
		{11, 12, true},
		{1, 30, true},
	}
	for _, tt := range tests {
		got, err := bookings.HasOverlap(ctx, p.ID, mar(tt.in), mar(tt.out))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "stay %d-%d", tt.in, tt.out)
	}

	require.NoError(t, bookings.UpdateStatus(ctx, b.ID, models.BookingStatusCancelled, models.PaymentStatusRefunded))
	got, err := bookings.HasOverlap(ctx, p.ID, mar(9), mar(11))
	require.NoError(t, err)
	assert.False(t, got, "cancelled bookings do not block")
}
