// Package harvesting turns unrealized losses in taxable accounts into
// wash-sale-safe SELL/BUY proposals.
package harvesting

import (
	"sort"
	"time"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/shopspring/decimal"
)

// Thresholds are the loss levels a position must reach to be harvested.
// Either threshold is sufficient.
type Thresholds struct {
	MinLossPercent decimal.Decimal `json:"min_loss_percent"`
	MinLossDollars decimal.Decimal `json:"min_loss_dollars"`
}

// DefaultThresholds returns 5% / $2500
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinLossPercent: decimal.NewFromInt(5),
		MinLossDollars: decimal.NewFromInt(2500),
	}
}

// Qualifies reports whether a gain/loss is a loss that meets either threshold.
// The percentage is compared unrounded.
func (t Thresholds) Qualifies(gl domain.GainLoss) bool {
	if !gl.Dollar.IsNegative() {
		return false
	}
	return gl.ExactPercent().Abs().GreaterThanOrEqual(t.MinLossPercent) ||
		gl.Dollar.Abs().GreaterThanOrEqual(t.MinLossDollars)
}

// Candidate is a taxable position that qualifies for harvesting
type Candidate struct {
	Position   domain.Position      `json:"position"`
	Price      domain.ResolvedPrice `json:"price"`
	GainLoss   domain.GainLoss      `json:"gain_loss"`
	DaysHeld   int                  `json:"days_held"`
	IsLongTerm bool                 `json:"is_long_term"`
}

// SelectCandidates filters positions down to harvestable losses.
// Only taxable accounts are considered. Positions are valued at the live price when
// one exists, otherwise at their own current price. Output is sorted by account id, then ticker.
func SelectCandidates(positions []domain.Position, prices domain.PriceTable, thresholds Thresholds, now time.Time) []Candidate {
	var candidates []Candidate
	for _, pos := range positions {
		if pos.AccountType != domain.AccountTypeTaxable || !pos.Quantity.IsPositive() {
			continue
		}

		fallback := pos.CurrentPrice
		price := prices.Resolve(pos.Ticker, &fallback)
		valued := pos
		valued.Ticker = domain.NormalizeTicker(pos.Ticker)
		valued.CurrentPrice = price.Value

		gl := valued.GainLoss()
		if !thresholds.Qualifies(gl) {
			continue
		}

		candidates = append(candidates, Candidate{
			Position:   valued,
			Price:      price,
			GainLoss:   gl,
			DaysHeld:   valued.DaysHeld(now),
			IsLongTerm: valued.IsLongTerm(now),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].Position, candidates[j].Position
		if a.AccountID != b.AccountID {
			return a.AccountID < b.AccountID
		}
		return a.Ticker < b.Ticker
	})

	return candidates
}
