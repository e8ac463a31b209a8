package websocket

import (
	"encoding/json"
	"time"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypeCalendarSyncCompleted  MessageType = "calendar.sync_completed"
	TypeCalendarSyncError      MessageType = "calendar.sync_error"
	TypeSchedulerStatusChanged MessageType = "calendar.scheduler_status_changed"
	TypeBookingChanged         MessageType = "booking.changed"
	TypeNotification           MessageType = "notification"

	// Client -> Server command types
	TypePing MessageType = "ping"

	// Server -> Client response types
	TypePong  MessageType = "pong"
	TypeError MessageType = "error"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// CalendarSyncPayload is the payload for calendar.sync_completed and calendar.sync_error events.
type CalendarSyncPayload struct {
	PropertyID      string   `json:"property_id"`
	Status          string   `json:"status"` // "success" or "error"
	Message         string   `json:"message"`
	EventsFound     int      `json:"events_found"`
	BookingsCreated int      `json:"bookings_created"`
	BookingsUpdated int      `json:"bookings_updated"`
	BookingsSkipped int      `json:"bookings_skipped"`
	Errors          []string `json:"errors,omitempty"`
}

// SchedulerStatusPayload is the payload for calendar.scheduler_status_changed events.
type SchedulerStatusPayload struct {
	State     string     `json:"state"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
}

// BookingChangedPayload is the payload for booking.changed events.
type BookingChangedPayload struct {
	BookingID  string `json:"booking_id"`
	PropertyID string `json:"property_id"`
	Action     string `json:"action"` // created, updated, deleted
}

// NotificationPayload is the payload for notification events.
type NotificationPayload struct {
	Level       string `json:"level"` // info, warning, error, success
	Title       string `json:"title"`
	Message     string `json:"message"`
	Dismissible bool   `json:"dismissible"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	OriginalType string `json:"original_type,omitempty"`
}
