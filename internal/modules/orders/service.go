package orders

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/modules/harvesting"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Store persists orders and their execution log
type Store interface {
	Insert(ctx context.Context, o Order) (bool, error)
	Get(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, from, to Status, update StatusUpdate) error
	ApplyFill(ctx context.Context, e Execution, from, to Status, within func(tx *sql.Tx) error) error
	Executions(ctx context.Context, orderID string) ([]Execution, error)
}

// Broker previews and places orders
type Broker interface {
	PreviewOrder(ctx context.Context, req domain.BrokerOrderRequest) (*domain.BrokerPreviewResult, error)
	PlaceOrder(ctx context.Context, req domain.BrokerOrderRequest) (*domain.BrokerOrderResult, error)
}

// RestrictionRecorder records wash-sale restrictions for sales that realized a loss.
// It writes through the ledger transaction that records the fill.
type RestrictionRecorder interface {
	RecordLossSaleTx(ctx context.Context, tx *sql.Tx, ticker, sleeveID, accountID string, realized decimal.Decimal, soldAt time.Time) error
}

// Observer receives lifecycle counters
type Observer interface {
	OrdersPromoted(created, skipped, rejected int)
	OrderStatusChanged(status Status)
}

// PromotionResult reports what happened to each promoted proposal
type PromotionResult struct {
	Created  int     `json:"created"`
	Skipped  int     `json:"skipped"`
	Rejected int     `json:"rejected"`
	Orders   []Order `json:"orders"`
}

// Service runs the order lifecycle
type Service struct {
	store    Store
	broker   Broker
	recorder RestrictionRecorder
	observer Observer
	clock    domain.Clock
	log      zerolog.Logger
}

// NewService creates a new order service
func NewService(store Store, broker Broker, recorder RestrictionRecorder, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		broker:   broker,
		recorder: recorder,
		clock:    time.Now,
		log:      log.With().Str("service", "orders").Logger(),
	}
}

// SetObserver attaches an observer
func (s *Service) SetObserver(observer Observer) {
	s.observer = observer
}

// SetClock overrides the time source
func (s *Service) SetClock(clock domain.Clock) {
	s.clock = clock
}

// PromoteProposalsToOrders creates DRAFT orders from proposals.
// Proposals that cannot execute are rejected. Proposals whose idempotency key is
// already queued are skipped and logged, never reported as errors.
func (s *Service) PromoteProposalsToOrders(ctx context.Context, proposals []harvesting.TradeProposal, policy IdempotencyPolicy) (PromotionResult, error) {
	var result PromotionResult
	now := s.clock().UTC().Truncate(time.Second)

	for _, p := range proposals {
		if !p.CanExecute || !p.Quantity.IsPositive() || !p.Price.IsPositive() {
			result.Rejected++
			s.log.Debug().
				Str("ticker", p.Ticker).
				Str("type", string(p.Type)).
				Str("blocking_reason", p.BlockingReason).
				Msg("Proposal not executable, not promoted")
			continue
		}

		order := Order{
			ID:                uuid.New().String(),
			AccountID:         p.AccountID,
			Ticker:            domain.NormalizeTicker(p.Ticker),
			Side:              string(p.Type),
			Quantity:          p.Quantity,
			LimitPrice:        domain.RoundCents(p.Price),
			SleeveID:          p.SleeveID,
			CostBasisPerShare: p.CostBasisPerShare,
			ReplacementTicker: p.ReplacementTicker,
			Reason:            p.Reason,
			Status:            StatusDraft,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		order.IdempotencyKey = policy.Key(order.AccountID, order.Ticker, order.Side, order.Quantity, order.LimitPrice, now)

		created, err := s.store.Insert(ctx, order)
		if err != nil {
			return result, fmt.Errorf("failed to promote proposal for %s: %w", order.Ticker, err)
		}
		if !created {
			result.Skipped++
			s.log.Info().
				Str("idempotency_key", order.IdempotencyKey).
				Msg("Order already queued")
			continue
		}

		result.Created++
		result.Orders = append(result.Orders, order)
	}

	s.log.Info().
		Int("created", result.Created).
		Int("skipped", result.Skipped).
		Int("rejected", result.Rejected).
		Msg("Proposals promoted to orders")
	if s.observer != nil {
		s.observer.OrdersPromoted(result.Created, result.Skipped, result.Rejected)
	}

	return result, nil
}

// Get returns one order
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.store.Get(ctx, id)
}

// List returns orders matching the filter
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	return s.store.List(ctx, filter)
}

// Preview asks the broker to validate a DRAFT or previously previewed order
func (s *Service) Preview(ctx context.Context, id string) (*Order, error) {
	order, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != StatusDraft && !order.Status.IsPreview() {
		return nil, fmt.Errorf("%w: cannot preview order in %s", ErrInvalidTransition, order.Status)
	}

	preview, err := s.broker.PreviewOrder(ctx, order.BrokerRequest())
	if err != nil {
		return nil, fmt.Errorf("failed to preview order %s: %w", id, err)
	}

	to := previewStatus(preview.Status)
	update := StatusUpdate{Message: strings.Join(preview.Messages, "; ")}
	if err := s.transition(ctx, order, to, update); err != nil {
		return nil, err
	}

	return s.store.Get(ctx, id)
}

// Submit places a previewed order with the broker.
// Only PREVIEW_OK and PREVIEW_WARN orders can be submitted; anything else fails with
// ErrInvalidTransition and the broker is never called.
func (s *Service) Submit(ctx context.Context, id string) (*Order, error) {
	order, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanSubmit() {
		return nil, fmt.Errorf("%w: cannot submit order in %s", ErrInvalidTransition, order.Status)
	}

	placed, err := s.broker.PlaceOrder(ctx, order.BrokerRequest())
	if err != nil {
		return nil, fmt.Errorf("failed to submit order %s: %w", id, err)
	}

	to, err := ParseStatus(placed.Status)
	if err != nil {
		return nil, fmt.Errorf("broker returned invalid status for order %s: %w", id, err)
	}
	submittedAt := s.clock().UTC()
	update := StatusUpdate{
		Message:       placed.Message,
		BrokerOrderID: placed.BrokerOrderID,
		SubmittedAt:   &submittedAt,
	}
	if err := s.transition(ctx, order, to, update); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("order_id", id).
		Str("broker_order_id", placed.BrokerOrderID).
		Str("status", string(to)).
		Msg("Order submitted")

	return s.store.Get(ctx, id)
}

// UpdateStatus applies a status reported by the broker or the user
func (s *Service) UpdateStatus(ctx context.Context, id string, to Status, message string) (*Order, error) {
	order, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, order, to, StatusUpdate{Message: message}); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// RecordFill appends an execution to a live order and advances it to
// PARTIALLY_FILLED or FILLED. A SELL fill below cost basis records a wash-sale restriction
// in the same ledger transaction, so a failed restriction write leaves no fill behind.
func (s *Service) RecordFill(ctx context.Context, id string, quantity, price decimal.Decimal, executedAt time.Time) (*Summary, error) {
	if !quantity.IsPositive() || !price.IsPositive() {
		return nil, ErrInvalidFill
	}

	order, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.IsLive() {
		return nil, fmt.Errorf("%w: cannot fill order in %s", ErrInvalidTransition, order.Status)
	}

	executions, err := s.store.Executions(ctx, id)
	if err != nil {
		return nil, err
	}
	before := Summarize(*order, executions)
	if quantity.GreaterThan(before.RemainingQuantity) {
		return nil, fmt.Errorf("%w: %s > %s", ErrOverfill, quantity, before.RemainingQuantity)
	}

	if executedAt.IsZero() {
		executedAt = s.clock()
	}
	execution := Execution{
		ID:         uuid.New().String(),
		OrderID:    id,
		Quantity:   quantity,
		Price:      price,
		ExecutedAt: executedAt.UTC(),
		CreatedAt:  s.clock().UTC(),
	}

	to := StatusPartiallyFilled
	if quantity.Equal(before.RemainingQuantity) {
		to = StatusFilled
	}
	if to != order.Status {
		if err := ValidateTransition(order.Status, to); err != nil {
			return nil, err
		}
	}

	var record func(tx *sql.Tx) error
	if order.Side == SideSell && s.recorder != nil {
		if loss := realized(*order, quantity, price); loss.IsNegative() {
			record = func(tx *sql.Tx) error {
				if err := s.recorder.RecordLossSaleTx(ctx, tx, order.Ticker, order.SleeveID, order.AccountID, loss, execution.ExecutedAt); err != nil {
					return fmt.Errorf("failed to record wash-sale restriction: %w", err)
				}
				return nil
			}
		}
	}

	// Fill, status and restriction commit together or not at all
	if err := s.store.ApplyFill(ctx, execution, order.Status, to, record); err != nil {
		return nil, err
	}

	if to != order.Status {
		s.log.Debug().
			Str("order_id", order.ID).
			Str("from", string(order.Status)).
			Str("to", string(to)).
			Msg("Order transitioned")
		if s.observer != nil {
			s.observer.OrderStatusChanged(to)
		}
		order.Status = to
	}

	summary := Summarize(*order, append(executions, execution))
	return &summary, nil
}

// Summary derives fill totals for an order
func (s *Service) Summary(ctx context.Context, id string) (*Summary, error) {
	order, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	executions, err := s.store.Executions(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := Summarize(*order, executions)
	return &summary, nil
}

// Executions returns the fill log of an order
func (s *Service) Executions(ctx context.Context, id string) ([]Execution, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Executions(ctx, id)
}

func (s *Service) transition(ctx context.Context, order *Order, to Status, update StatusUpdate) error {
	if err := ValidateTransition(order.Status, to); err != nil {
		return err
	}
	if err := s.store.UpdateStatus(ctx, order.ID, order.Status, to, update); err != nil {
		return err
	}

	s.log.Debug().
		Str("order_id", order.ID).
		Str("from", string(order.Status)).
		Str("to", string(to)).
		Msg("Order transitioned")
	if s.observer != nil {
		s.observer.OrderStatusChanged(to)
	}
	return nil
}

func previewStatus(brokerStatus string) Status {
	switch brokerStatus {
	case domain.PreviewStatusOK:
		return StatusPreviewOK
	case domain.PreviewStatusWarn:
		return StatusPreviewWarn
	default:
		return StatusPreviewError
	}
}
