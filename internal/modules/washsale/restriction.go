// Package washsale tracks securities that cannot be repurchased because a loss
// was realized on them inside the wash-sale window.
//
// Restrictions are immutable. They expire purely by comparing BlockedUntil with
// the current time at read; nothing ever deletes them.
package washsale

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/shopspring/decimal"
)

// WindowDays is the length of the wash-sale window after a loss sale
const WindowDays = 31

// Window is WindowDays as a duration
const Window = WindowDays * 24 * time.Hour

var (
	// ErrMissingTicker is returned when a restriction has no ticker
	ErrMissingTicker = errors.New("restriction ticker is required")
	// ErrMissingSoldAt is returned when a restriction has no sale time
	ErrMissingSoldAt = errors.New("restriction sold_at is required")
	// ErrNotALoss is returned when a restriction is recorded for a non-negative result
	ErrNotALoss = errors.New("restriction loss amount must be negative")
)

// Restriction is a wash-sale record for a ticker sold at a loss
type Restriction struct {
	ID           int64           `json:"id"`
	Ticker       string          `json:"ticker"`
	SleeveID     string          `json:"sleeve_id,omitempty"`
	AccountID    string          `json:"account_id,omitempty"`
	LossAmount   decimal.Decimal `json:"loss_amount"`
	SoldAt       time.Time       `json:"sold_at"`
	BlockedUntil time.Time       `json:"blocked_until"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewRestriction builds a restriction with BlockedUntil = soldAt + 31 days
func NewRestriction(ticker, sleeveID, accountID string, loss decimal.Decimal, soldAt time.Time) (Restriction, error) {
	r := Restriction{
		Ticker:       domain.NormalizeTicker(ticker),
		SleeveID:     sleeveID,
		AccountID:    accountID,
		LossAmount:   domain.RoundCents(loss),
		SoldAt:       soldAt.UTC().Truncate(time.Second),
		BlockedUntil: soldAt.UTC().Truncate(time.Second).Add(Window),
	}
	if err := r.Validate(); err != nil {
		return Restriction{}, err
	}
	return r, nil
}

// Validate checks the restriction before it is persisted
func (r Restriction) Validate() error {
	if r.Ticker == "" {
		return ErrMissingTicker
	}
	if r.SoldAt.IsZero() {
		return ErrMissingSoldAt
	}
	if !r.LossAmount.IsNegative() {
		return fmt.Errorf("%w: got %s", ErrNotALoss, r.LossAmount)
	}
	return nil
}

// IsActive reports whether the restriction still blocks repurchase at now
func (r Restriction) IsActive(now time.Time) bool {
	return r.BlockedUntil.After(now)
}

// DaysToUnblock returns max(0, ceil((BlockedUntil - now) / 1 day))
func (r Restriction) DaysToUnblock(now time.Time) int {
	return DaysUntil(r.BlockedUntil, now)
}

// DaysUntil returns the whole days, rounded up, from now until t; never negative
func DaysUntil(t, now time.Time) int {
	remaining := t.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Hours() / 24))
}
