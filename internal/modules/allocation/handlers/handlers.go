// Package handlers provides HTTP handlers for allocation models and their drift.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/rebalancer/internal/modules/allocation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ModelStore persists allocation models
type ModelStore interface {
	GetAll(ctx context.Context) ([]allocation.Model, error)
	GetByID(ctx context.Context, id string) (*allocation.Model, error)
	Create(ctx context.Context, m allocation.Model) (*allocation.Model, error)
	Update(ctx context.Context, m allocation.Model) (*allocation.Model, error)
	Delete(ctx context.Context, id string) error
}

// DriftService computes drift reports and rebalance suggestions
type DriftService interface {
	ComputeDrift(ctx context.Context, accountID, modelID string) (*allocation.DriftReport, error)
	SuggestRebalance(ctx context.Context, accountID, modelID string) ([]allocation.RebalanceTrade, error)
	DriftTolerance() int
	InvalidateAll()
}

// Handler handles allocation HTTP requests
type Handler struct {
	models ModelStore
	drift  DriftService
	log    zerolog.Logger
}

// NewHandler creates a new allocation handler
func NewHandler(models ModelStore, drift DriftService, log zerolog.Logger) *Handler {
	return &Handler{
		models: models,
		drift:  drift,
		log:    log.With().Str("handler", "allocation").Logger(),
	}
}

// HandleListModels handles GET /api/allocation/models
func (h *Handler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.models.GetAll(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeData(w, http.StatusOK, models)
}

// HandleGetModel handles GET /api/allocation/models/{id}
func (h *Handler) HandleGetModel(w http.ResponseWriter, r *http.Request) {
	model, err := h.models.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeModelError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, model)
}

// HandleCreateModel handles POST /api/allocation/models.
// Members saved without any weight get equal weights.
func (h *Handler) HandleCreateModel(w http.ResponseWriter, r *http.Request) {
	var model allocation.Model
	if err := json.NewDecoder(r.Body).Decode(&model); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.models.Create(r.Context(), model)
	if err != nil {
		h.writeModelError(w, err)
		return
	}
	h.writeData(w, http.StatusCreated, created)
}

// HandleUpdateModel handles PUT /api/allocation/models/{id}
func (h *Handler) HandleUpdateModel(w http.ResponseWriter, r *http.Request) {
	var model allocation.Model
	if err := json.NewDecoder(r.Body).Decode(&model); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	model.ID = chi.URLParam(r, "id")

	updated, err := h.models.Update(r.Context(), model)
	if err != nil {
		h.writeModelError(w, err)
		return
	}
	h.drift.InvalidateAll()
	h.writeData(w, http.StatusOK, updated)
}

// HandleDeleteModel handles DELETE /api/allocation/models/{id}
func (h *Handler) HandleDeleteModel(w http.ResponseWriter, r *http.Request) {
	if err := h.models.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeModelError(w, err)
		return
	}
	h.drift.InvalidateAll()
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetDrift handles GET /api/allocation/models/{id}/drift?account_id=
func (h *Handler) HandleGetDrift(w http.ResponseWriter, r *http.Request) {
	modelID := chi.URLParam(r, "id")
	accountID := r.URL.Query().Get("account_id")

	report, err := h.drift.ComputeDrift(r.Context(), accountID, modelID)
	if err != nil {
		h.writeModelError(w, err)
		return
	}

	tolerance := h.drift.DriftTolerance()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"report": report,
			"rows":   report.Rows(),
		},
		"metadata": map[string]interface{}{
			"timestamp":    time.Now().Format(time.RFC3339),
			"tolerance_bp": tolerance,
			"out_of_band":  len(report.OutOfTolerance(tolerance)),
		},
	})
}

// HandleGetRebalance handles GET /api/allocation/models/{id}/rebalance?account_id=
func (h *Handler) HandleGetRebalance(w http.ResponseWriter, r *http.Request) {
	trades, err := h.drift.SuggestRebalance(r.Context(), r.URL.Query().Get("account_id"), chi.URLParam(r, "id"))
	if err != nil {
		h.writeModelError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": trades,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"count":     len(trades),
			"note":      "Rebalance suggestions ignore wash-sale restrictions",
		},
	})
}

func (h *Handler) writeModelError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, allocation.ErrModelNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, allocation.ErrMissingName),
		errors.Is(err, allocation.ErrNoActiveMembers),
		errors.Is(err, allocation.ErrWeightSum),
		errors.Is(err, allocation.ErrNegativeWeight),
		errors.Is(err, allocation.ErrDuplicateSleeve),
		errors.Is(err, allocation.ErrUnknownSleeve):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error().Err(err).Msg("Allocation request failed")
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
