package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rental-manager/backend/internal/storage/models"
)

const bookingColumns = `id, reference, property_id, external_id, guest_name, guest_email, guest_phone,
	guest_count, check_in_date, check_out_date, nights_count, status, payment_status,
	total_amount, cleaning_fee, service_fee, taxes, booking_source, notes, created_at, updated_at`

// BookingRepository provides data access for bookings.
type BookingRepository struct {
	BaseRepository
}

// NewBookingRepository creates a new booking repository.
func NewBookingRepository(db *DB) *BookingRepository {
	return &BookingRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create inserts a new booking.
func (r *BookingRepository) Create(ctx context.Context, b *models.Booking) error {
	b.ID = GenerateID()
	b.Reference = GenerateReference()
	b.CreatedAt = r.Now()
	b.UpdatedAt = b.CreatedAt
	b.CheckInDate = b.CheckInDate.UTC()
	b.CheckOutDate = b.CheckOutDate.UTC()
	if b.Status == "" {
		b.Status = models.BookingStatusPending
	}
	if b.PaymentStatus == "" {
		b.PaymentStatus = models.PaymentStatusPending
	}
	if b.BookingSource == "" {
		b.BookingSource = models.BookingSourceDirect
	}

	_, err := r.DB().NamedExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES (
			:id, :reference, :property_id, :external_id, :guest_name, :guest_email, :guest_phone,
			:guest_count, :check_in_date, :check_out_date, :nights_count, :status, :payment_status,
			:total_amount, :cleaning_fee, :service_fee, :taxes, :booking_source, :notes, :created_at, :updated_at
		)
	`, b)
	if err != nil {
		return fmt.Errorf("inserting booking: %w", err)
	}

	return nil
}

// GetByID retrieves a booking by its ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	return r.getOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
}

// GetByExternalID retrieves a booking by property ID and external calendar UID.
func (r *BookingRepository) GetByExternalID(ctx context.Context, propertyID, externalID string) (*models.Booking, error) {
	return r.getOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE property_id = ? AND external_id = ?`, propertyID, externalID)
}

func (r *BookingRepository) getOne(ctx context.Context, query string, args ...any) (*models.Booking, error) {
	b := &models.Booking{}

	err := r.DB().GetContext(ctx, b, r.Q(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying booking: %w", err)
	}

	return b, nil
}

// ListByProperty retrieves all bookings for a property, latest check-in first.
func (r *BookingRepository) ListByProperty(ctx context.Context, propertyID string) ([]models.Booking, error) {
	var bookings []models.Booking

	err := r.DB().SelectContext(ctx, &bookings, r.Q(`
		SELECT `+bookingColumns+` FROM bookings
		WHERE property_id = ?
		ORDER BY check_in_date DESC
	`), propertyID)
	if err != nil {
		return nil, fmt.Errorf("querying bookings: %w", err)
	}

	return bookings, nil
}

// HasOverlap reports whether a non-cancelled booking at the property overlaps
// the stay [checkIn, checkOut).
func (r *BookingRepository) HasOverlap(ctx context.Context, propertyID string, checkIn, checkOut time.Time) (bool, error) {
	var count int
	err := r.DB().GetContext(ctx, &count, r.Q(`
		SELECT COUNT(*) FROM bookings
		WHERE property_id = ?
		  AND status <> ?
		  AND check_in_date < ?
		  AND check_out_date > ?
	`), propertyID, models.BookingStatusCancelled, checkOut.UTC(), checkIn.UTC())
	if err != nil {
		return false, fmt.Errorf("checking booking overlap: %w", err)
	}

	return count > 0, nil
}

// UpdateFromCalendar overwrites the guest, stay and note fields of a booking.
// Status and financial fields are left untouched.
func (r *BookingRepository) UpdateFromCalendar(ctx context.Context, b *models.Booking) error {
	b.UpdatedAt = r.Now()
	b.CheckInDate = b.CheckInDate.UTC()
	b.CheckOutDate = b.CheckOutDate.UTC()

	result, err := r.DB().NamedExecContext(ctx, `
		UPDATE bookings SET
			guest_name = :guest_name, guest_email = :guest_email, guest_phone = :guest_phone,
			guest_count = :guest_count, check_in_date = :check_in_date, check_out_date = :check_out_date,
			nights_count = :nights_count, notes = :notes, updated_at = :updated_at
		WHERE id = :id
	`, b)
	if err != nil {
		return fmt.Errorf("updating booking: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("booking %s: %w", b.ID, ErrNotFound)
	}

	return nil
}

// UpdateStatus updates the booking and payment status of a booking.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id, status, paymentStatus string) error {
	result, err := r.DB().ExecContext(ctx, r.Q(`
		UPDATE bookings SET status = ?, payment_status = ?, updated_at = ? WHERE id = ?
	`), status, paymentStatus, r.Now(), id)
	if err != nil {
		return fmt.Errorf("updating booking status: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("booking %s: %w", id, ErrNotFound)
	}

	return nil
}

// Delete removes a booking by ID.
func (r *BookingRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB().ExecContext(ctx, r.Q("DELETE FROM bookings WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("deleting booking: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("booking %s: %w", id, ErrNotFound)
	}

	return nil
}
