// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"net/http"

	"github.com/rental-manager/backend/internal/api/middleware"
	"github.com/rental-manager/backend/internal/calendar"
	"github.com/rental-manager/backend/internal/storage"
	"github.com/rental-manager/backend/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
	Version     string `json:"version,omitempty"`
}

// HealthCheck returns a handler that performs a health check.
func HealthCheck(db *storage.DB, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.PingContext(r.Context()) == nil

		status := "healthy"
		code := http.StatusOK
		if !dbConnected {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		middleware.WriteJSON(w, code, HealthResponse{
			Status:      status,
			DBConnected: dbConnected,
			Version:     version,
		})
	}
}

// StatusResponse represents the system status response.
type StatusResponse struct {
	PropertiesCount     int                      `json:"properties_count"`
	SyncEnabledCount    int                      `json:"sync_enabled_count"`
	BookingsCount       int                      `json:"bookings_count"`
	PlaceholderBookings int                      `json:"placeholder_bookings"`
	WebSocketClients    int                      `json:"websocket_clients"`
	Scheduler           calendar.SchedulerStatus `json:"scheduler"`
}

// Status returns a handler that provides system status information.
func Status(db *storage.DB, hub *websocket.Hub, scheduler *calendar.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var resp StatusResponse

		db.GetContext(ctx, &resp.PropertiesCount, "SELECT COUNT(*) FROM properties")
		db.GetContext(ctx, &resp.SyncEnabledCount, "SELECT COUNT(*) FROM calendar_settings WHERE sync_enabled = TRUE")
		db.GetContext(ctx, &resp.BookingsCount, "SELECT COUNT(*) FROM bookings")
		db.GetContext(ctx, &resp.PlaceholderBookings, "SELECT COUNT(*) FROM bookings WHERE notes LIKE '[PLACEHOLDER]%'")

		if hub != nil {
			resp.WebSocketClients = hub.ClientCount()
		}
		if scheduler != nil {
			resp.Scheduler = scheduler.Status()
		} else {
			resp.Scheduler = calendar.SchedulerStatus{State: calendar.StateStopped}
		}

		middleware.WriteJSON(w, http.StatusOK, resp)
	}
}
