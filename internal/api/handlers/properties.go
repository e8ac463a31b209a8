package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/volatiletech/null/v8"

	"github.com/rental-manager/backend/internal/api/middleware"
	"github.com/rental-manager/backend/internal/storage"
	"github.com/rental-manager/backend/internal/storage/models"
)

// PropertyRequest is the body for creating or updating a property.
type PropertyRequest struct {
	Name      string  `json:"name"`
	Address   *string `json:"address"`
	MaxGuests int     `json:"max_guests"`
}

func (req PropertyRequest) validate() string {
	if strings.TrimSpace(req.Name) == "" {
		return "Name is required"
	}
	if req.MaxGuests < 0 {
		return "max_guests cannot be negative"
	}
	return ""
}

// ListProperties returns all properties.
func ListProperties(repo *storage.PropertyRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		properties, err := repo.List(r.Context())
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query properties")
			return
		}

		if properties == nil {
			properties = []models.Property{}
		}
		middleware.WriteJSON(w, http.StatusOK, properties)
	}
}

// CreateProperty adds a new property.
func CreateProperty(repo *storage.PropertyRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PropertyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		if msg := req.validate(); msg != "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, msg)
			return
		}

		p := &models.Property{
			Name:      strings.TrimSpace(req.Name),
			Address:   null.StringFromPtr(req.Address),
			MaxGuests: req.MaxGuests,
		}
		if err := repo.Create(r.Context(), p); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create property")
			return
		}

		middleware.WriteJSON(w, http.StatusCreated, p)
	}
}

// GetProperty returns a single property by ID.
func GetProperty(repo *storage.PropertyRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := repo.GetByID(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query property")
			return
		}
		if p == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Property not found")
			return
		}

		middleware.WriteJSON(w, http.StatusOK, p)
	}
}

// UpdateProperty replaces a property's editable fields.
func UpdateProperty(repo *storage.PropertyRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req PropertyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		if msg := req.validate(); msg != "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, msg)
			return
		}

		p, err := repo.GetByID(ctx, mux.Vars(r)["id"])
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query property")
			return
		}
		if p == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Property not found")
			return
		}

		p.Name = strings.TrimSpace(req.Name)
		p.Address = null.StringFromPtr(req.Address)
		if req.MaxGuests > 0 {
			p.MaxGuests = req.MaxGuests
		}

		if err := repo.Update(ctx, p); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update property")
			return
		}

		middleware.WriteJSON(w, http.StatusOK, p)
	}
}

// DeleteProperty removes a property with its bookings and calendar settings.
func DeleteProperty(repo *storage.PropertyRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := repo.Delete(r.Context(), mux.Vars(r)["id"])
		switch {
		case errors.Is(err, storage.ErrNotFound):
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Property not found")
			return
		case err != nil:
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to delete property")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
