package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/rental-manager/backend/internal/api/middleware"
	"github.com/rental-manager/backend/internal/calendar"
	"github.com/rental-manager/backend/internal/storage/models"
	"github.com/rental-manager/backend/internal/websocket"
)

// CalendarSyncRequest is the optional body for a property sync.
type CalendarSyncRequest struct {
	ICalURL string `json:"icalUrl"`
}

// GetCalendarSettings returns a property's calendar settings.
func GetCalendarSettings(svc *calendar.SyncService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := svc.GetSettings(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load calendar settings")
			return
		}
		if settings == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Property not found")
			return
		}

		middleware.WriteJSON(w, http.StatusOK, settings)
	}
}

// UpdateCalendarSettings applies a partial settings change.
func UpdateCalendarSettings(svc *calendar.SyncService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.CalendarSettingsUpdate
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		settings, err := svc.UpdateSettings(r.Context(), mux.Vars(r)["id"], req)
		switch {
		case errors.Is(err, calendar.ErrPropertyNotFound):
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Property not found")
			return
		case errors.Is(err, calendar.ErrInvalidURL):
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "icalUrl must be an http(s) URL")
			return
		case err != nil:
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to save calendar settings")
			return
		}

		middleware.WriteJSON(w, http.StatusOK, settings)
	}
}

// SyncPropertyCalendar imports a property's calendar and returns the SyncResult.
// With an icalUrl in the body that URL is used; otherwise the stored settings are.
func SyncPropertyCalendar(svc *calendar.SyncService, hub *websocket.Hub) http.HandlerFunc {
	broadcaster := websocket.NewEventBroadcaster(hub)

	return func(w http.ResponseWriter, r *http.Request) {
		var req CalendarSyncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		propertyID := mux.Vars(r)["id"]
		var result *models.SyncResult
		if url := strings.TrimSpace(req.ICalURL); url != "" {
			result = svc.SyncProperty(context.WithoutCancel(r.Context()), propertyID, url)
		} else {
			result = svc.SyncStoredProperty(context.WithoutCancel(r.Context()), propertyID)
		}

		broadcaster.BroadcastSyncResult(*result)
		middleware.WriteJSON(w, http.StatusOK, result)
	}
}

// TestCalendarURL checks that a URL serves a parseable calendar.
func TestCalendarURL(svc *calendar.SyncService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CalendarSyncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		if strings.TrimSpace(req.ICalURL) == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "icalUrl is required")
			return
		}

		middleware.WriteJSON(w, http.StatusOK, svc.TestURL(r.Context(), req.ICalURL))
	}
}

// SyncAllCalendars runs a sync pass over every enabled property.
func SyncAllCalendars(svc *calendar.SyncService, hub *websocket.Hub) http.HandlerFunc {
	broadcaster := websocket.NewEventBroadcaster(hub)

	return func(w http.ResponseWriter, r *http.Request) {
		results, err := svc.SyncAll(context.WithoutCancel(r.Context()))
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to list properties for sync")
			return
		}

		for _, result := range results {
			broadcaster.BroadcastSyncResult(result)
		}
		broadcaster.BroadcastSyncPassSummary(results)
		middleware.WriteJSON(w, http.StatusOK, results)
	}
}

// SchedulerStatus reports the calendar scheduler state.
func SchedulerStatus(scheduler *calendar.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if scheduler == nil {
			middleware.WriteJSON(w, http.StatusOK, calendar.SchedulerStatus{State: calendar.StateStopped})
			return
		}
		middleware.WriteJSON(w, http.StatusOK, scheduler.Status())
	}
}
