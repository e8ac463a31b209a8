package websocket

import (
	"fmt"
	"log"
	"time"

	"github.com/rental-manager/backend/internal/storage/models"
)

// EventBroadcaster handles broadcasting WebSocket events.
type EventBroadcaster struct {
	hub *Hub
}

// NewEventBroadcaster creates a new event broadcaster. A nil hub yields a
// broadcaster that drops every event.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub}
}

// BroadcastSyncResult sends calendar.sync_completed for a successful sync,
// or calendar.sync_error otherwise.
func (b *EventBroadcaster) BroadcastSyncResult(result models.SyncResult) {
	payload := CalendarSyncPayload{
		PropertyID:      result.PropertyID,
		Status:          "success",
		Message:         result.Message,
		EventsFound:     result.EventsFound,
		BookingsCreated: result.BookingsCreated,
		BookingsUpdated: result.BookingsUpdated,
		BookingsSkipped: result.BookingsSkipped,
		Errors:          result.Errors,
	}

	msgType := TypeCalendarSyncCompleted
	if !result.Success {
		payload.Status = "error"
		msgType = TypeCalendarSyncError
	}

	b.broadcast(NewMessage(msgType, payload))
}

// BroadcastSchedulerStatusChanged sends a scheduler state transition.
func (b *EventBroadcaster) BroadcastSchedulerStatusChanged(state string, lastRunAt *time.Time) {
	b.broadcast(NewMessage(TypeSchedulerStatusChanged, SchedulerStatusPayload{
		State:     state,
		LastRunAt: lastRunAt,
	}))
}

// BroadcastBookingChanged sends a booking.changed event.
func (b *EventBroadcaster) BroadcastBookingChanged(bookingID, propertyID, action string) {
	b.broadcast(NewMessage(TypeBookingChanged, BookingChangedPayload{
		BookingID:  bookingID,
		PropertyID: propertyID,
		Action:     action,
	}))
}

// BroadcastNotification sends a notification to all connected clients.
func (b *EventBroadcaster) BroadcastNotification(level, title, message string) {
	payload := NotificationPayload{
		Level:       level,
		Title:       title,
		Message:     message,
		Dismissible: true,
	}

	b.broadcast(NewMessage(TypeNotification, payload))
}

// BroadcastSyncPassSummary notifies clients that a sync pass over all properties finished.
func (b *EventBroadcaster) BroadcastSyncPassSummary(results []models.SyncResult) {
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}

	level := "success"
	if failed > 0 {
		level = "warning"
	}
	b.BroadcastNotification(level, "Calendar sync",
		fmt.Sprintf("Synced %d properties, %d failed", len(results), failed))
}

// broadcast sends a message to all connected clients.
func (b *EventBroadcaster) broadcast(msg Message) {
	if b == nil || b.hub == nil {
		return
	}

	data, err := msg.JSON()
	if err != nil {
		log.Printf("Error encoding WebSocket message: %v", err)
		return
	}

	b.hub.Broadcast(data)
}
