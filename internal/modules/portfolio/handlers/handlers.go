// Package handlers provides HTTP handlers for accounts, positions, securities and quotes.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CacheInvalidator drops computed proposals and drift when inputs change
type CacheInvalidator interface {
	Invalidate(accountID string)
	InvalidateAll()
}

// Handler handles portfolio HTTP requests
type Handler struct {
	service     *portfolio.Service
	invalidator CacheInvalidator
	log         zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.Service, invalidator CacheInvalidator, log zerolog.Logger) *Handler {
	return &Handler{
		service:     service,
		invalidator: invalidator,
		log:         log.With().Str("handler", "portfolio").Logger(),
	}
}

// PositionRequest is the body of a position upsert
type PositionRequest struct {
	Quantity          decimal.Decimal `json:"quantity"`
	CostBasisPerShare decimal.Decimal `json:"cost_basis_per_share"`
	OpenedAt          *time.Time      `json:"opened_at,omitempty"`
}

// QuoteRequest is the body of a live quote update
type QuoteRequest struct {
	Price    decimal.Decimal `json:"price"`
	QuotedAt *time.Time      `json:"quoted_at,omitempty"`
}

// HandleListAccounts handles GET /api/portfolio/accounts
func (h *Handler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.Repository().GetAccounts(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	h.writeData(w, http.StatusOK, accounts)
}

// HandleCreateAccount handles POST /api/portfolio/accounts
func (h *Handler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var account domain.Account
	if err := json.NewDecoder(r.Body).Decode(&account); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.Repository().CreateAccount(r.Context(), account); err != nil {
		h.writePortfolioError(w, err)
		return
	}
	h.invalidator.Invalidate(account.ID)

	saved, err := h.service.Repository().GetAccount(r.Context(), account.ID)
	if err != nil {
		h.writePortfolioError(w, err)
		return
	}
	h.writeData(w, http.StatusCreated, saved)
}

// HandleGetHoldings handles GET /api/portfolio/holdings and /api/portfolio/accounts/{id}/holdings
func (h *Handler) HandleGetHoldings(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if accountID != "" {
		if _, err := h.service.Repository().GetAccount(r.Context(), accountID); err != nil {
			h.writePortfolioError(w, err)
			return
		}
	}

	holdings, err := h.service.GetHoldings(r.Context(), accountID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeData(w, http.StatusOK, holdings)
}

// HandleUpsertPosition handles PUT /api/portfolio/accounts/{id}/positions/{ticker}
func (h *Handler) HandleUpsertPosition(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	position := domain.Position{
		AccountID:         chi.URLParam(r, "id"),
		Ticker:            chi.URLParam(r, "ticker"),
		Quantity:          req.Quantity,
		CostBasisPerShare: req.CostBasisPerShare,
	}
	if req.OpenedAt != nil {
		position.OpenedAt = *req.OpenedAt
	}

	if err := h.service.Repository().UpsertPosition(r.Context(), position); err != nil {
		h.writePortfolioError(w, err)
		return
	}
	h.invalidator.Invalidate(position.AccountID)

	h.log.Info().
		Str("account_id", position.AccountID).
		Str("ticker", domain.NormalizeTicker(position.Ticker)).
		Str("quantity", position.Quantity.String()).
		Msg("Position saved")

	h.writeData(w, http.StatusOK, map[string]string{
		"account_id": position.AccountID,
		"ticker":     domain.NormalizeTicker(position.Ticker),
	})
}

// HandleDeletePosition handles DELETE /api/portfolio/accounts/{id}/positions/{ticker}
func (h *Handler) HandleDeletePosition(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if err := h.service.Repository().DeletePosition(r.Context(), accountID, chi.URLParam(r, "ticker")); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.invalidator.Invalidate(accountID)
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetSecurity handles GET /api/portfolio/securities/{ticker}
func (h *Handler) HandleGetSecurity(w http.ResponseWriter, r *http.Request) {
	security, err := h.service.Repository().GetSecurity(r.Context(), chi.URLParam(r, "ticker"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if security == nil {
		h.writeError(w, http.StatusNotFound, "security not found")
		return
	}
	h.writeData(w, http.StatusOK, security)
}

// HandleUpsertSecurity handles PUT /api/portfolio/securities/{ticker}
func (h *Handler) HandleUpsertSecurity(w http.ResponseWriter, r *http.Request) {
	var security domain.Security
	if err := json.NewDecoder(r.Body).Decode(&security); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	security.Ticker = chi.URLParam(r, "ticker")

	if err := h.service.Repository().UpsertSecurity(r.Context(), security); err != nil {
		h.writePortfolioError(w, err)
		return
	}
	h.invalidator.InvalidateAll()

	saved, err := h.service.Repository().GetSecurity(r.Context(), security.Ticker)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeData(w, http.StatusOK, saved)
}

// HandleSetQuote handles PUT /api/portfolio/quotes/{ticker}
func (h *Handler) HandleSetQuote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	quotedAt := time.Now()
	if req.QuotedAt != nil {
		quotedAt = *req.QuotedAt
	}

	ticker := chi.URLParam(r, "ticker")
	if err := h.service.Repository().SetQuote(r.Context(), ticker, req.Price, quotedAt); err != nil {
		h.writePortfolioError(w, err)
		return
	}
	// Quotes feed every account's valuation
	h.invalidator.InvalidateAll()

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"ticker":    domain.NormalizeTicker(ticker),
		"price":     req.Price,
		"quoted_at": quotedAt.UTC(),
	})
}

func (h *Handler) writePortfolioError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, portfolio.ErrAccountNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, portfolio.ErrInvalidAccountType),
		errors.Is(err, portfolio.ErrMissingAccountID),
		errors.Is(err, portfolio.ErrEmptyTicker),
		errors.Is(err, portfolio.ErrNegativeQuantity),
		errors.Is(err, portfolio.ErrNegativePrice):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error().Err(err).Msg("Portfolio request failed")
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
