package portfolio

import (
	"context"
	"fmt"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Holding is a position valued at its resolved price
type Holding struct {
	domain.Position
	Price       domain.ResolvedPrice `json:"price"`
	MarketValue decimal.Decimal      `json:"market_value"`
	CostBasis   decimal.Decimal      `json:"cost_basis"`
	GainLoss    domain.GainLoss      `json:"gain_loss"`
}

// Holdings summarizes an account
type Holdings struct {
	AccountID        string          `json:"account_id"`
	Positions        []Holding       `json:"positions"`
	TotalValue       decimal.Decimal `json:"total_value"`
	TotalCostBasis   decimal.Decimal `json:"total_cost_basis"`
	UnrealizedGain   decimal.Decimal `json:"unrealized_gain"`
	UnrealizedLosses decimal.Decimal `json:"unrealized_losses"`
}

// Service values holdings against live quotes
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a new portfolio service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "portfolio").Logger(),
	}
}

// Repository exposes the underlying repository
func (s *Service) Repository() *Repository {
	return s.repo
}

// GetHoldings values the positions of an account (all accounts when accountID is empty).
// A live quote overrides the stored security price.
func (s *Service) GetHoldings(ctx context.Context, accountID string) (*Holdings, error) {
	positions, err := s.repo.GetPositions(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load positions: %w", err)
	}
	prices, err := s.repo.GetPrices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load prices: %w", err)
	}

	return Value(accountID, positions, prices), nil
}

// Value prices positions with the live table, falling back to each position's own price
func Value(accountID string, positions []domain.Position, prices domain.PriceTable) *Holdings {
	h := &Holdings{
		AccountID:        accountID,
		Positions:        make([]Holding, 0, len(positions)),
		TotalValue:       decimal.Zero,
		TotalCostBasis:   decimal.Zero,
		UnrealizedGain:   decimal.Zero,
		UnrealizedLosses: decimal.Zero,
	}

	for _, pos := range positions {
		fallback := pos.CurrentPrice
		price := prices.Resolve(pos.Ticker, &fallback)
		pos.CurrentPrice = price.Value

		gl := pos.GainLoss()
		holding := Holding{
			Position:    pos,
			Price:       price,
			MarketValue: pos.MarketValue(),
			CostBasis:   pos.CostBasis(),
			GainLoss:    gl,
		}
		h.Positions = append(h.Positions, holding)

		h.TotalValue = h.TotalValue.Add(holding.MarketValue)
		h.TotalCostBasis = h.TotalCostBasis.Add(holding.CostBasis)
		if gl.IsLoss() {
			h.UnrealizedLosses = h.UnrealizedLosses.Add(gl.Dollar)
		} else {
			h.UnrealizedGain = h.UnrealizedGain.Add(gl.Dollar)
		}
	}

	return h
}
