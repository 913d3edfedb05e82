// Package handlers provides HTTP handlers for harvest proposals and wash-sale restrictions.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/rebalancer/internal/modules/orders"
	"github.com/aristath/rebalancer/internal/modules/rebalancing"
	"github.com/rs/zerolog"
)

// Handler handles rebalancing HTTP requests
type Handler struct {
	service *rebalancing.Service
	log     zerolog.Logger
}

// NewHandler creates a new rebalancing handler
func NewHandler(service *rebalancing.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "rebalancing").Logger(),
	}
}

// PromoteRequest represents a request to promote harvest proposals to draft orders
type PromoteRequest struct {
	AccountID     string `json:"account_id"`
	PerTradingDay bool   `json:"per_trading_day"`
}

// RestrictionView is a wash-sale restriction as returned by the API
type RestrictionView struct {
	Ticker        string    `json:"ticker"`
	SleeveID      string    `json:"sleeve_id,omitempty"`
	AccountID     string    `json:"account_id,omitempty"`
	LossAmount    string    `json:"loss_amount"`
	SoldAt        time.Time `json:"sold_at"`
	BlockedUntil  time.Time `json:"blocked_until"`
	DaysToUnblock int       `json:"days_to_unblock"`
}

// HandleGetProposals handles GET /api/harvesting/proposals?account_id=&refresh=true
func (h *Handler) HandleGetProposals(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if r.URL.Query().Get("refresh") == "true" {
		h.service.Invalidate(accountID)
	}

	set, err := h.service.ProposeTrades(r.Context(), accountID)
	if err != nil {
		h.log.Error().Err(err).Str("account_id", accountID).Msg("Failed to compute proposals")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": set,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"count":     len(set.Proposals),
		},
	})
}

// HandlePromote handles POST /api/harvesting/promote
func (h *Handler) HandlePromote(w http.ResponseWriter, r *http.Request) {
	var req PromoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.AccountID == "" {
		h.writeError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	result, err := h.service.PromoteProposals(r.Context(), req.AccountID, orders.IdempotencyPolicy{PerTradingDay: req.PerTradingDay})
	if err != nil {
		h.log.Error().Err(err).Str("account_id", req.AccountID).Msg("Failed to promote proposals")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": result,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetRestrictions handles GET /api/harvesting/restrictions
func (h *Handler) HandleGetRestrictions(w http.ResponseWriter, r *http.Request) {
	restrictions, err := h.service.ActiveRestrictions(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	now := time.Now()
	views := make([]RestrictionView, 0, len(restrictions))
	for _, rs := range restrictions {
		views = append(views, RestrictionView{
			Ticker:        rs.Ticker,
			SleeveID:      rs.SleeveID,
			AccountID:     rs.AccountID,
			LossAmount:    rs.LossAmount.StringFixed(2),
			SoldAt:        rs.SoldAt,
			BlockedUntil:  rs.BlockedUntil,
			DaysToUnblock: rs.DaysToUnblock(now),
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": views,
		"metadata": map[string]interface{}{
			"timestamp": now.Format(time.RFC3339),
			"count":     len(views),
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
