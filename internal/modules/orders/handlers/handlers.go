// Package handlers provides HTTP handlers for the order lifecycle.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/rebalancer/internal/modules/orders"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CacheInvalidator drops computed results after fills create new restrictions
type CacheInvalidator interface {
	InvalidateAll()
}

// Handler handles order HTTP requests
type Handler struct {
	service     *orders.Service
	invalidator CacheInvalidator
	log         zerolog.Logger
}

// NewHandler creates a new order handler
func NewHandler(service *orders.Service, invalidator CacheInvalidator, log zerolog.Logger) *Handler {
	return &Handler{
		service:     service,
		invalidator: invalidator,
		log:         log.With().Str("handler", "orders").Logger(),
	}
}

// StatusRequest represents a status update reported by the user or broker
type StatusRequest struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// FillRequest represents an execution report
type FillRequest struct {
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	ExecutedAt *time.Time      `json:"executed_at,omitempty"`
}

// OrderDetail is an order with its derived fill summary and execution log
type OrderDetail struct {
	Order      *orders.Order      `json:"order"`
	Summary    *orders.Summary    `json:"summary"`
	Executions []orders.Execution `json:"executions"`
}

// HandleList handles GET /api/orders?account_id=&status=&limit=
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := orders.ListFilter{AccountID: q.Get("account_id")}

	if raw := q.Get("status"); raw != "" {
		status, err := orders.ParseStatus(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = status
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.writeOrderError(w, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": list,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"count":     len(list),
		},
	})
}

// HandleGet handles GET /api/orders/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeOrderError(w, err)
		return
	}
	executions, err := h.service.Executions(r.Context(), id)
	if err != nil {
		h.writeOrderError(w, err)
		return
	}
	if executions == nil {
		executions = []orders.Execution{}
	}
	summary := orders.Summarize(*order, executions)

	h.writeData(w, http.StatusOK, OrderDetail{Order: order, Summary: &summary, Executions: executions})
}

// HandlePreview handles POST /api/orders/{id}/preview
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Preview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeOrderError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, order)
}

// HandleSubmit handles POST /api/orders/{id}/submit
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Submit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeOrderError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, order)
}

// HandleUpdateStatus handles POST /api/orders/{id}/status
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	status, err := orders.ParseStatus(req.Status)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), status, req.Message)
	if err != nil {
		h.writeOrderError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, order)
}

// HandleRecordFill handles POST /api/orders/{id}/fills
func (h *Handler) HandleRecordFill(w http.ResponseWriter, r *http.Request) {
	var req FillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var executedAt time.Time
	if req.ExecutedAt != nil {
		executedAt = *req.ExecutedAt
	}

	summary, err := h.service.RecordFill(r.Context(), chi.URLParam(r, "id"), req.Quantity, req.Price, executedAt)
	if err != nil {
		h.writeOrderError(w, err)
		return
	}
	if h.invalidator != nil {
		h.invalidator.InvalidateAll()
	}
	h.writeData(w, http.StatusOK, summary)
}

func (h *Handler) writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, orders.ErrInvalidTransition), errors.Is(err, orders.ErrStatusConflict):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, orders.ErrInvalidFill), errors.Is(err, orders.ErrOverfill):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error().Err(err).Msg("Order request failed")
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
