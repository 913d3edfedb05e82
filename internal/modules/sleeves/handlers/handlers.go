// Package handlers provides HTTP handlers for sleeve management.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/rebalancer/internal/modules/sleeves"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// SleeveStore persists sleeves
type SleeveStore interface {
	GetAll(ctx context.Context) ([]sleeves.Sleeve, error)
	GetByID(ctx context.Context, id string) (*sleeves.Sleeve, error)
	Create(ctx context.Context, s sleeves.Sleeve) (*sleeves.Sleeve, error)
	Update(ctx context.Context, s sleeves.Sleeve) (*sleeves.Sleeve, error)
	Delete(ctx context.Context, id string) error
}

// CacheInvalidator drops computed results that depend on sleeve definitions
type CacheInvalidator interface {
	InvalidateAll()
}

// Handler handles sleeve HTTP requests
type Handler struct {
	store       SleeveStore
	invalidator CacheInvalidator
	log         zerolog.Logger
}

// NewHandler creates a new sleeve handler
func NewHandler(store SleeveStore, invalidator CacheInvalidator, log zerolog.Logger) *Handler {
	return &Handler{
		store:       store,
		invalidator: invalidator,
		log:         log.With().Str("handler", "sleeves").Logger(),
	}
}

// HandleList handles GET /api/sleeves
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.GetAll(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeData(w, http.StatusOK, list)
}

// HandleGet handles GET /api/sleeves/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sleeve, err := h.store.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeSleeveError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, sleeve)
}

// HandleCreate handles POST /api/sleeves
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var sleeve sleeves.Sleeve
	if err := json.NewDecoder(r.Body).Decode(&sleeve); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.store.Create(r.Context(), sleeve)
	if err != nil {
		h.writeSleeveError(w, err)
		return
	}
	h.invalidator.InvalidateAll()
	h.writeData(w, http.StatusCreated, created)
}

// HandleUpdate handles PUT /api/sleeves/{id}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var sleeve sleeves.Sleeve
	if err := json.NewDecoder(r.Body).Decode(&sleeve); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	sleeve.ID = chi.URLParam(r, "id")

	updated, err := h.store.Update(r.Context(), sleeve)
	if err != nil {
		h.writeSleeveError(w, err)
		return
	}
	h.invalidator.InvalidateAll()
	h.writeData(w, http.StatusOK, updated)
}

// HandleDelete handles DELETE /api/sleeves/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeSleeveError(w, err)
		return
	}
	h.invalidator.InvalidateAll()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeSleeveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sleeves.ErrSleeveNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, sleeves.ErrMissingName),
		errors.Is(err, sleeves.ErrNoMembers),
		errors.Is(err, sleeves.ErrEmptyTicker),
		errors.Is(err, sleeves.ErrDuplicateTicker),
		errors.Is(err, sleeves.ErrInvalidRank):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case strings.Contains(err.Error(), "UNIQUE constraint failed"):
		h.writeError(w, http.StatusConflict, "sleeve name already exists")
	case strings.Contains(err.Error(), "FOREIGN KEY constraint failed"):
		h.writeError(w, http.StatusConflict, "sleeve is referenced by an allocation model")
	default:
		h.log.Error().Err(err).Msg("Sleeve request failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
