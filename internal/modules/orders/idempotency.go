package orders

import (
	"fmt"
	"time"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/shopspring/decimal"
)

// IdempotencyPolicy controls how idempotency keys are derived.
// The key always covers account, ticker, side, quantity and limit price in cents.
type IdempotencyPolicy struct {
	// PerTradingDay adds the UTC date so the same trade can be queued again on a later day
	PerTradingDay bool `json:"per_trading_day"`
}

// Key derives the idempotency key for an order
func (p IdempotencyPolicy) Key(accountID, ticker, side string, quantity, price decimal.Decimal, now time.Time) string {
	key := fmt.Sprintf("%s|%s|%s|%s|%d",
		accountID,
		domain.NormalizeTicker(ticker),
		side,
		quantity.String(),
		domain.ToCents(price),
	)
	if p.PerTradingDay {
		key += "|" + now.UTC().Format("2006-01-02")
	}
	return key
}
