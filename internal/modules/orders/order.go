package orders

import (
	"errors"
	"time"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	// ErrOrderNotFound is returned when an order id does not exist
	ErrOrderNotFound = errors.New("order not found")
	// ErrStatusConflict is returned when the order changed status concurrently
	ErrStatusConflict = errors.New("order status changed concurrently")
	// ErrInvalidFill is returned for non-positive fill quantities or prices
	ErrInvalidFill = errors.New("fill quantity and price must be positive")
	// ErrOverfill is returned when a fill exceeds the remaining quantity
	ErrOverfill = errors.New("fill exceeds remaining quantity")
)

// Order sides
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Order is a persisted order created from an accepted trade proposal
type Order struct {
	ID                string          `json:"id"`
	AccountID         string          `json:"account_id"`
	Ticker            string          `json:"ticker"`
	Side              string          `json:"side"`
	Quantity          decimal.Decimal `json:"quantity"`
	LimitPrice        decimal.Decimal `json:"limit_price"`
	SleeveID          string          `json:"sleeve_id,omitempty"`
	CostBasisPerShare decimal.Decimal `json:"cost_basis_per_share"`
	ReplacementTicker string          `json:"replacement_ticker,omitempty"`
	Reason            string          `json:"reason,omitempty"`
	Status            Status          `json:"status"`
	StatusMessage     string          `json:"status_message,omitempty"`
	BrokerOrderID     string          `json:"broker_order_id,omitempty"`
	IdempotencyKey    string          `json:"idempotency_key"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	SubmittedAt       *time.Time      `json:"submitted_at,omitempty"`
}

// BrokerRequest converts the order to a broker request
func (o Order) BrokerRequest() domain.BrokerOrderRequest {
	return domain.BrokerOrderRequest{
		ClientOrderID: o.ID,
		AccountID:     o.AccountID,
		Symbol:        o.Ticker,
		Side:          o.Side,
		Quantity:      o.Quantity,
		LimitPrice:    o.LimitPrice,
	}
}

// Execution is an immutable fill record
type Execution struct {
	ID         string          `json:"id"`
	OrderID    string          `json:"order_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	ExecutedAt time.Time       `json:"executed_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Summary is derived from an order and its execution log
type Summary struct {
	OrderID           string          `json:"order_id"`
	Status            Status          `json:"status"`
	Quantity          decimal.Decimal `json:"quantity"`
	FilledQuantity    decimal.Decimal `json:"filled_quantity"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	AveragePrice      decimal.Decimal `json:"average_price"`
	FilledValue       decimal.Decimal `json:"filled_value"`
	RealizedPnL       decimal.Decimal `json:"realized_pnl"`
	Executions        int             `json:"executions"`
}

// Summarize derives fill totals from the execution log.
// Realized P&L is only meaningful for SELL orders and is measured against the cost basis.
func Summarize(order Order, executions []Execution) Summary {
	filled := decimal.Zero
	value := decimal.Zero
	pnl := decimal.Zero

	for _, e := range executions {
		filled = filled.Add(e.Quantity)
		value = value.Add(e.Quantity.Mul(e.Price))
		if order.Side == SideSell {
			pnl = pnl.Add(realized(order, e.Quantity, e.Price))
		}
	}

	avg := decimal.Zero
	if filled.IsPositive() {
		avg = value.Div(filled).Round(4)
	}

	remaining := order.Quantity.Sub(filled)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	return Summary{
		OrderID:           order.ID,
		Status:            order.Status,
		Quantity:          order.Quantity,
		FilledQuantity:    filled,
		RemainingQuantity: remaining,
		AveragePrice:      avg,
		FilledValue:       domain.RoundCents(value),
		RealizedPnL:       domain.RoundCents(pnl),
		Executions:        len(executions),
	}
}

func realized(order Order, quantity, price decimal.Decimal) decimal.Decimal {
	return quantity.Mul(price.Sub(order.CostBasisPerShare))
}
