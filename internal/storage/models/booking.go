package models

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Booking status constants
const (
	BookingStatusPending    = "pending"
	BookingStatusConfirmed  = "confirmed"
	BookingStatusCheckedIn  = "checked_in"
	BookingStatusCheckedOut = "checked_out"
	BookingStatusCancelled  = "cancelled"
)

// Payment status constants
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
)

// BookingSourceDirect marks bookings entered through the API rather than imported.
const BookingSourceDirect = "direct"

// Booking is a guest stay at a property.
type Booking struct {
	ID            string      `db:"id" json:"id"`
	Reference     string      `db:"reference" json:"reference"`
	PropertyID    string      `db:"property_id" json:"property_id"`
	ExternalID    null.String `db:"external_id" json:"external_id"`
	GuestName     string      `db:"guest_name" json:"guest_name"`
	GuestEmail    null.String `db:"guest_email" json:"guest_email"`
	GuestPhone    null.String `db:"guest_phone" json:"guest_phone"`
	GuestCount    int         `db:"guest_count" json:"guest_count"`
	CheckInDate   time.Time   `db:"check_in_date" json:"check_in_date"`
	CheckOutDate  time.Time   `db:"check_out_date" json:"check_out_date"`
	NightsCount   int         `db:"nights_count" json:"nights_count"`
	Status        string      `db:"status" json:"status"`
	PaymentStatus string      `db:"payment_status" json:"payment_status"`
	TotalAmount   float64     `db:"total_amount" json:"total_amount"`
	CleaningFee   float64     `db:"cleaning_fee" json:"cleaning_fee"`
	ServiceFee    float64     `db:"service_fee" json:"service_fee"`
	Taxes         float64     `db:"taxes" json:"taxes"`
	BookingSource string      `db:"booking_source" json:"booking_source"`
	Notes         null.String `db:"notes" json:"notes"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// IsValidBookingStatus reports whether s is a known booking status.
func IsValidBookingStatus(s string) bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCheckedIn,
		BookingStatusCheckedOut, BookingStatusCancelled:
		return true
	}
	return false
}

// IsValidPaymentStatus reports whether s is a known payment status.
func IsValidPaymentStatus(s string) bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusRefunded:
		return true
	}
	return false
}

// NightsBetween returns the number of nights between two instants, rounding partial days up.
func NightsBetween(start, end time.Time) int {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	day := 24 * time.Hour
	nights := int(d / day)
	if d%day != 0 {
		nights++
	}
	return nights
}
