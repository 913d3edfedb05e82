// Package rebalancing composes the harvesting, allocation and order engines over stored data.
package rebalancing

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/modules/allocation"
	"github.com/aristath/rebalancer/internal/modules/harvesting"
	"github.com/aristath/rebalancer/internal/modules/orders"
	"github.com/aristath/rebalancer/internal/modules/sleeves"
	"github.com/aristath/rebalancer/internal/modules/washsale"
	"github.com/rs/zerolog"
)

// PositionProvider loads holdings; an empty accountID means every account
type PositionProvider interface {
	GetPositions(ctx context.Context, accountID string) ([]domain.Position, error)
}

// PriceProvider loads the live price table
type PriceProvider interface {
	GetPrices(ctx context.Context) (domain.PriceTable, error)
}

// SleeveProvider loads sleeve definitions
type SleeveProvider interface {
	GetAll(ctx context.Context) ([]sleeves.Sleeve, error)
}

// ModelProvider loads allocation models
type ModelProvider interface {
	GetByID(ctx context.Context, id string) (*allocation.Model, error)
}

// RestrictionProvider loads wash-sale restrictions active at a point in time
type RestrictionProvider interface {
	GetActive(ctx context.Context, now time.Time) ([]washsale.Restriction, error)
}

// OrderPromoter turns executable proposals into draft orders
type OrderPromoter interface {
	PromoteProposalsToOrders(ctx context.Context, proposals []harvesting.TradeProposal, policy orders.IdempotencyPolicy) (orders.PromotionResult, error)
}

// Deps groups the service's collaborators
type Deps struct {
	Positions    PositionProvider
	Prices       PriceProvider
	Sleeves      SleeveProvider
	Models       ModelProvider
	Restrictions RestrictionProvider
	Orders       OrderPromoter
}

// ProposalSet is the cached result of a harvest scan
type ProposalSet struct {
	AccountID    string                     `json:"account_id"`
	Proposals    []harvesting.TradeProposal `json:"proposals"`
	Summary      harvesting.Summary         `json:"summary"`
	Restrictions []washsale.Restriction     `json:"restrictions"`
	GeneratedAt  time.Time                  `json:"generated_at"`
}

// Service orchestrates harvest scans, drift reports and order promotion
type Service struct {
	deps        Deps
	generator   *harvesting.Generator
	caches      *Caches
	toleranceBP int
	clock       domain.Clock
	log         zerolog.Logger
}

// NewService creates a new rebalancing service.
// The generator's clock is replaced by the service clock.
func NewService(deps Deps, generator *harvesting.Generator, caches *Caches, toleranceBP int, log zerolog.Logger) *Service {
	s := &Service{
		deps:        deps,
		generator:   generator,
		caches:      caches,
		toleranceBP: toleranceBP,
		log:         log.With().Str("service", "rebalancing").Logger(),
	}
	s.SetClock(time.Now)
	return s
}

// SetClock overrides the time source
func (s *Service) SetClock(clock domain.Clock) {
	s.clock = clock
	s.generator.WithClock(clock)
}

// Caches exposes the result caches
func (s *Service) Caches() *Caches {
	return s.caches
}

// DriftTolerance returns the configured drift tolerance in basis points
func (s *Service) DriftTolerance() int {
	return s.toleranceBP
}

// ProposeTrades returns the harvest proposals for an account, cached per account
func (s *Service) ProposeTrades(ctx context.Context, accountID string) (*ProposalSet, error) {
	return s.caches.Proposals.GetOrLoad(ProposalKey{AccountID: accountID}, func() (*ProposalSet, error) {
		return s.scan(ctx, accountID)
	})
}

// ComputeDrift returns the drift of an account against a model, cached per pair
func (s *Service) ComputeDrift(ctx context.Context, accountID, modelID string) (*allocation.DriftReport, error) {
	return s.caches.Drift.GetOrLoad(DriftKey{AccountID: accountID, ModelID: modelID}, func() (*allocation.DriftReport, error) {
		model, err := s.deps.Models.GetByID(ctx, modelID)
		if err != nil {
			return nil, err
		}
		positions, err := s.deps.Positions.GetPositions(ctx, accountID)
		if err != nil {
			return nil, fmt.Errorf("failed to load positions: %w", err)
		}
		sleeveList, err := s.deps.Sleeves.GetAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load sleeves: %w", err)
		}
		prices, err := s.deps.Prices.GetPrices(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load prices: %w", err)
		}

		report, err := allocation.ComputeAllocationDrift(*model, sleeveList, positions, prices)
		if err != nil {
			return nil, fmt.Errorf("failed to compute drift for model %s: %w", modelID, err)
		}
		report.GeneratedAt = s.clock()

		s.log.Debug().
			Str("account_id", accountID).
			Str("model_id", modelID).
			Str("total_value", report.TotalValue.StringFixed(2)).
			Float64("max_abs_deviation", report.Summary.MaxAbsDeviation).
			Msg("Computed allocation drift")
		return report, nil
	})
}

// SuggestRebalance derives whole-portfolio rebalance trades from the account's drift.
// These trades are not wash-sale aware.
func (s *Service) SuggestRebalance(ctx context.Context, accountID, modelID string) ([]allocation.RebalanceTrade, error) {
	report, err := s.ComputeDrift(ctx, accountID, modelID)
	if err != nil {
		return nil, err
	}
	sleeveList, err := s.deps.Sleeves.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sleeves: %w", err)
	}

	trades := allocation.SuggestRebalance(report, sleeves.NewRegistry(sleeveList), s.toleranceBP)
	if trades == nil {
		trades = []allocation.RebalanceTrade{}
	}
	return trades, nil
}

// PromoteProposals rescans the account and promotes every executable proposal to a draft order.
// The fresh scan replaces the cached one.
func (s *Service) PromoteProposals(ctx context.Context, accountID string, policy orders.IdempotencyPolicy) (orders.PromotionResult, error) {
	set, err := s.scan(ctx, accountID)
	if err != nil {
		return orders.PromotionResult{}, err
	}
	s.caches.Proposals.Set(ProposalKey{AccountID: accountID}, set)

	result, err := s.deps.Orders.PromoteProposalsToOrders(ctx, set.Proposals, policy)
	if err != nil {
		return result, fmt.Errorf("failed to promote proposals for %s: %w", accountID, err)
	}
	return result, nil
}

// ActiveRestrictions returns the wash-sale restrictions active now
func (s *Service) ActiveRestrictions(ctx context.Context) ([]washsale.Restriction, error) {
	now := s.clock()
	restrictions, err := s.deps.Restrictions.GetActive(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load restrictions: %w", err)
	}
	return washsale.NewTracker(restrictions, now).Active(), nil
}

// Invalidate drops cached results for an account
func (s *Service) Invalidate(accountID string) {
	dropped := s.caches.Invalidate(accountID)
	s.log.Debug().Str("account_id", accountID).Int("drift_entries", dropped).Msg("Invalidated cached results")
}

// InvalidateAll drops every cached result; used when shared data such as sleeves or quotes change
func (s *Service) InvalidateAll() {
	s.caches.Clear()
	s.log.Debug().Msg("Cleared cached results")
}

func (s *Service) scan(ctx context.Context, accountID string) (*ProposalSet, error) {
	now := s.clock()

	positions, err := s.deps.Positions.GetPositions(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load positions: %w", err)
	}
	sleeveList, err := s.deps.Sleeves.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sleeves: %w", err)
	}
	restrictions, err := s.deps.Restrictions.GetActive(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load restrictions: %w", err)
	}
	prices, err := s.deps.Prices.GetPrices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load prices: %w", err)
	}

	proposals := s.generator.Generate(positions, sleeveList, restrictions, prices)
	if proposals == nil {
		proposals = []harvesting.TradeProposal{}
	}

	return &ProposalSet{
		AccountID:    accountID,
		Proposals:    proposals,
		Summary:      harvesting.Summarize(proposals),
		Restrictions: washsale.NewTracker(restrictions, now).Active(),
		GeneratedAt:  now,
	}, nil
}
