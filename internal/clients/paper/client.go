// Package paper provides an in-process broker that previews and accepts orders without
// sending them anywhere.
package paper

import (
	"context"
	"fmt"
	"sync"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// BrokerStatusWorking is the status of an accepted order
const BrokerStatusWorking = "WORKING"

// Client is a paper-trading broker
type Client struct {
	mu           sync.Mutex
	warnNotional decimal.Decimal
	placed       map[string]domain.BrokerOrderRequest // broker order id -> request
	log          zerolog.Logger
}

// NewClient creates a paper broker that warns on orders above warnNotional.
// A zero warnNotional disables the warning.
func NewClient(warnNotional decimal.Decimal, log zerolog.Logger) *Client {
	return &Client{
		warnNotional: warnNotional,
		placed:       make(map[string]domain.BrokerOrderRequest),
		log:          log.With().Str("client", "paper").Logger(),
	}
}

// PreviewOrder validates an order.
// Non-positive or fractional quantities and non-positive prices are errors.
func (c *Client) PreviewOrder(ctx context.Context, req domain.BrokerOrderRequest) (*domain.BrokerPreviewResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var errs []string
	if req.Symbol == "" {
		errs = append(errs, "symbol is required")
	}
	if req.Side != "BUY" && req.Side != "SELL" {
		errs = append(errs, fmt.Sprintf("unsupported side %q", req.Side))
	}
	if !req.Quantity.IsPositive() {
		errs = append(errs, "quantity must be positive")
	} else if !req.Quantity.Equal(req.Quantity.Truncate(0)) {
		errs = append(errs, "quantity must be whole shares")
	}
	if !req.LimitPrice.IsPositive() {
		errs = append(errs, "limit price must be positive")
	}
	if len(errs) > 0 {
		return &domain.BrokerPreviewResult{Status: domain.PreviewStatusError, Messages: errs}, nil
	}

	notional := req.Notional()
	if c.warnNotional.IsPositive() && notional.GreaterThan(c.warnNotional) {
		return &domain.BrokerPreviewResult{
			Status: domain.PreviewStatusWarn,
			Messages: []string{fmt.Sprintf("order value %s exceeds %s",
				domain.FormatUSD(notional), domain.FormatUSD(c.warnNotional))},
		}, nil
	}

	return &domain.BrokerPreviewResult{Status: domain.PreviewStatusOK}, nil
}

// PlaceOrder accepts an order and returns it as working
func (c *Client) PlaceOrder(ctx context.Context, req domain.BrokerOrderRequest) (*domain.BrokerOrderResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	preview, err := c.PreviewOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	if preview.Status == domain.PreviewStatusError {
		return nil, fmt.Errorf("paper broker rejected order %s: %v", req.ClientOrderID, preview.Messages)
	}

	brokerOrderID := "paper-" + uuid.New().String()

	c.mu.Lock()
	c.placed[brokerOrderID] = req
	c.mu.Unlock()

	c.log.Info().
		Str("broker_order_id", brokerOrderID).
		Str("client_order_id", req.ClientOrderID).
		Str("symbol", req.Symbol).
		Str("side", req.Side).
		Str("quantity", req.Quantity.String()).
		Str("limit_price", req.LimitPrice.StringFixed(2)).
		Msg("Paper order accepted")

	return &domain.BrokerOrderResult{
		BrokerOrderID: brokerOrderID,
		Status:        BrokerStatusWorking,
		Message:       "accepted by paper broker",
	}, nil
}

// Placed returns the request behind a broker order id
func (c *Client) Placed(brokerOrderID string) (domain.BrokerOrderRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.placed[brokerOrderID]
	return req, ok
}

// PlacedCount returns how many orders were accepted
func (c *Client) PlacedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.placed)
}
