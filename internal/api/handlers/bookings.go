package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/volatiletech/null/v8"

	"github.com/rental-manager/backend/internal/api/middleware"
	"github.com/rental-manager/backend/internal/storage"
	"github.com/rental-manager/backend/internal/storage/models"
	"github.com/rental-manager/backend/internal/websocket"
)

// CreateBookingRequest is the body for entering a booking by hand.
type CreateBookingRequest struct {
	GuestName    string  `json:"guest_name"`
	GuestEmail   *string `json:"guest_email"`
	GuestPhone   *string `json:"guest_phone"`
	GuestCount   int     `json:"guest_count"`
	CheckInDate  string  `json:"check_in_date"`
	CheckOutDate string  `json:"check_out_date"`
	TotalAmount  float64 `json:"total_amount"`
	CleaningFee  float64 `json:"cleaning_fee"`
	ServiceFee   float64 `json:"service_fee"`
	Taxes        float64 `json:"taxes"`
	Notes        *string `json:"notes"`
}

// UpdateBookingStatusRequest is the body for PATCH /bookings/{id}/status.
type UpdateBookingStatusRequest struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

// parseStayDate accepts YYYY-MM-DD (midnight UTC) or RFC 3339.
func parseStayDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ListBookings returns the bookings of a property.
func ListBookings(properties *storage.PropertyRepository, bookings *storage.BookingRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		propertyID := mux.Vars(r)["id"]

		p, err := properties.GetByID(ctx, propertyID)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query property")
			return
		}
		if p == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Property not found")
			return
		}

		list, err := bookings.ListByProperty(ctx, propertyID)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query bookings")
			return
		}
		if list == nil {
			list = []models.Booking{}
		}

		middleware.WriteJSON(w, http.StatusOK, list)
	}
}

// CreateBooking adds a direct booking to a property, rejecting overlapping stays.
func CreateBooking(properties *storage.PropertyRepository, bookings *storage.BookingRepository, hub *websocket.Hub) http.HandlerFunc {
	broadcaster := websocket.NewEventBroadcaster(hub)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		propertyID := mux.Vars(r)["id"]

		var req CreateBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		p, err := properties.GetByID(ctx, propertyID)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query property")
			return
		}
		if p == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Property not found")
			return
		}

		if strings.TrimSpace(req.GuestName) == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "guest_name is required")
			return
		}
		checkIn, err := parseStayDate(req.CheckInDate)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "check_in_date must be YYYY-MM-DD or RFC 3339")
			return
		}
		checkOut, err := parseStayDate(req.CheckOutDate)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "check_out_date must be YYYY-MM-DD or RFC 3339")
			return
		}
		nights := models.NightsBetween(checkIn, checkOut)
		if nights <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "check_out_date must be after check_in_date")
			return
		}
		if req.GuestCount < 1 {
			req.GuestCount = 1
		}
		if req.GuestCount > p.MaxGuests {
			middleware.WriteErrorWithDetails(w, http.StatusBadRequest, middleware.ErrValidation,
				"guest_count exceeds the property's capacity", map[string]int{"max_guests": p.MaxGuests})
			return
		}

		overlap, err := bookings.HasOverlap(ctx, propertyID, checkIn, checkOut)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to check availability")
			return
		}
		if overlap {
			middleware.WriteError(w, http.StatusConflict, middleware.ErrConflict, "The property is already booked for these dates")
			return
		}

		b := &models.Booking{
			PropertyID:    propertyID,
			GuestName:     strings.TrimSpace(req.GuestName),
			GuestEmail:    null.StringFromPtr(req.GuestEmail),
			GuestPhone:    null.StringFromPtr(req.GuestPhone),
			GuestCount:    req.GuestCount,
			CheckInDate:   checkIn,
			CheckOutDate:  checkOut,
			NightsCount:   nights,
			TotalAmount:   req.TotalAmount,
			CleaningFee:   req.CleaningFee,
			ServiceFee:    req.ServiceFee,
			Taxes:         req.Taxes,
			BookingSource: models.BookingSourceDirect,
			Notes:         null.StringFromPtr(req.Notes),
		}
		if err := bookings.Create(ctx, b); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create booking")
			return
		}

		broadcaster.BroadcastBookingChanged(b.ID, b.PropertyID, "created")
		middleware.WriteJSON(w, http.StatusCreated, b)
	}
}

// GetBooking returns a single booking by ID.
func GetBooking(bookings *storage.BookingRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := bookings.GetByID(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query booking")
			return
		}
		if b == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Booking not found")
			return
		}

		middleware.WriteJSON(w, http.StatusOK, b)
	}
}

// UpdateBookingStatus changes the booking and payment status.
func UpdateBookingStatus(bookings *storage.BookingRepository, hub *websocket.Hub) http.HandlerFunc {
	broadcaster := websocket.NewEventBroadcaster(hub)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := mux.Vars(r)["id"]

		var req UpdateBookingStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		b, err := bookings.GetByID(ctx, id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query booking")
			return
		}
		if b == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Booking not found")
			return
		}

		if req.Status == "" {
			req.Status = b.Status
		}
		if req.PaymentStatus == "" {
			req.PaymentStatus = b.PaymentStatus
		}
		if !models.IsValidBookingStatus(req.Status) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Unknown booking status")
			return
		}
		if !models.IsValidPaymentStatus(req.PaymentStatus) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Unknown payment status")
			return
		}

		if err := bookings.UpdateStatus(ctx, id, req.Status, req.PaymentStatus); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update booking")
			return
		}
		b.Status = req.Status
		b.PaymentStatus = req.PaymentStatus

		broadcaster.BroadcastBookingChanged(b.ID, b.PropertyID, "updated")
		middleware.WriteJSON(w, http.StatusOK, b)
	}
}

// DeleteBooking removes a booking.
func DeleteBooking(bookings *storage.BookingRepository, hub *websocket.Hub) http.HandlerFunc {
	broadcaster := websocket.NewEventBroadcaster(hub)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := mux.Vars(r)["id"]

		b, err := bookings.GetByID(ctx, id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query booking")
			return
		}
		if b == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Booking not found")
			return
		}

		if err := bookings.Delete(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to delete booking")
			return
		}

		broadcaster.BroadcastBookingChanged(b.ID, b.PropertyID, "deleted")
		w.WriteHeader(http.StatusNoContent)
	}
}
