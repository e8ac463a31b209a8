// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rental-manager/backend/internal/api/handlers"
	"github.com/rental-manager/backend/internal/api/middleware"
	"github.com/rental-manager/backend/internal/calendar"
	"github.com/rental-manager/backend/internal/storage"
	"github.com/rental-manager/backend/internal/websocket"
)

// Services holds the dependencies injected into the HTTP handlers.
type Services struct {
	DB        *storage.DB
	Hub       *websocket.Hub
	Sync      *calendar.SyncService
	Scheduler *calendar.Scheduler

	// JWTSecret enables bearer token auth on every route except health.
	JWTSecret string
	// StaticDir, if set, is served at the root.
	StaticDir string
	Version   string
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(s Services) *mux.Router {
	properties := storage.NewPropertyRepository(s.DB)
	bookings := storage.NewBookingRepository(s.DB)

	r := mux.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logging)
	r.Use(middleware.ErrorRecovery)

	// API subrouter
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Auth(s.JWTSecret, "/api/health"))

	// Health and status endpoints
	api.HandleFunc("/health", handlers.HealthCheck(s.DB, s.Version)).Methods("GET")
	api.HandleFunc("/status", handlers.Status(s.DB, s.Hub, s.Scheduler)).Methods("GET")

	// WebSocket endpoint
	api.HandleFunc("/ws", handlers.WebSocketUpgrade(s.Hub)).Methods("GET")

	// Property endpoints
	api.HandleFunc("/properties", handlers.ListProperties(properties)).Methods("GET")
	api.HandleFunc("/properties", handlers.CreateProperty(properties)).Methods("POST")
	api.HandleFunc("/properties/{id}", handlers.GetProperty(properties)).Methods("GET")
	api.HandleFunc("/properties/{id}", handlers.UpdateProperty(properties)).Methods("PUT")
	api.HandleFunc("/properties/{id}", handlers.DeleteProperty(properties)).Methods("DELETE")

	// Booking endpoints
	api.HandleFunc("/properties/{id}/bookings", handlers.ListBookings(properties, bookings)).Methods("GET")
	api.HandleFunc("/properties/{id}/bookings", handlers.CreateBooking(properties, bookings, s.Hub)).Methods("POST")
	api.HandleFunc("/bookings/{id}", handlers.GetBooking(bookings)).Methods("GET")
	api.HandleFunc("/bookings/{id}", handlers.DeleteBooking(bookings, s.Hub)).Methods("DELETE")
	api.HandleFunc("/bookings/{id}/status", handlers.UpdateBookingStatus(bookings, s.Hub)).Methods("PATCH")

	// Calendar endpoints
	api.HandleFunc("/properties/{id}/calendar", handlers.GetCalendarSettings(s.Sync)).Methods("GET")
	api.HandleFunc("/properties/{id}/calendar", handlers.UpdateCalendarSettings(s.Sync)).Methods("PUT")
	api.HandleFunc("/properties/{id}/calendar/sync", handlers.SyncPropertyCalendar(s.Sync, s.Hub)).Methods("POST")
	api.HandleFunc("/calendar/test", handlers.TestCalendarURL(s.Sync)).Methods("POST")
	api.HandleFunc("/calendar/sync-all", handlers.SyncAllCalendars(s.Sync, s.Hub)).Methods("POST")
	api.HandleFunc("/calendar/scheduler", handlers.SchedulerStatus(s.Scheduler)).Methods("GET")

	// Serve static frontend files
	if s.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.StaticDir)))
	}

	return r
}
