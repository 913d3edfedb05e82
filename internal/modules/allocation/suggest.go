package allocation

import (
	"fmt"
	"sort"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/modules/sleeves"
	"github.com/shopspring/decimal"
)

// RebalanceTrade is a whole-portfolio rebalance trade derived from drift.
// TLHSafe is always false: these trades ignore wash-sale restrictions.
type RebalanceTrade struct {
	Side           string          `json:"side"`
	SleeveID       string          `json:"sleeve_id"`
	SleeveName     string          `json:"sleeve_name"`
	Ticker         string          `json:"ticker"`
	Quantity       decimal.Decimal `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	EstimatedValue decimal.Decimal `json:"estimated_value"`
	Reason         string          `json:"reason"`
	TLHSafe        bool            `json:"tlh_safe"`
}

// SuggestRebalance proposes trades that bring out-of-tolerance sleeves back to target.
// Overweight sleeves sell their most overweight holdings first, never touching legacy
// members. Underweight sleeves buy their best-ranked active, non-legacy member.
// Quantities are whole shares.
func SuggestRebalance(report *DriftReport, registry *sleeves.Registry, toleranceBP int) []RebalanceTrade {
	if report == nil {
		return nil
	}

	var trades []RebalanceTrade
	for _, row := range report.OutOfTolerance(toleranceBP) {
		sleeve, ok := registry.Get(row.SleeveID)
		if !ok {
			continue
		}
		securities := report.SecuritiesOf(row.SleeveID)

		if row.Drift.IsPositive() {
			trades = append(trades, sellDown(row, sleeve, securities)...)
		} else if row.Drift.IsNegative() {
			if trade, ok := buyUp(row, sleeve, securities); ok {
				trades = append(trades, trade)
			}
		}
	}

	sort.SliceStable(trades, func(i, j int) bool {
		if trades[i].SleeveName != trades[j].SleeveName {
			return trades[i].SleeveName < trades[j].SleeveName
		}
		return trades[i].Side == "SELL" && trades[j].Side != "SELL"
	})

	return trades
}

func sellDown(row SleeveRow, sleeve sleeves.Sleeve, securities []SecurityRow) []RebalanceTrade {
	sort.SliceStable(securities, func(i, j int) bool {
		return securities[i].Drift.GreaterThan(securities[j].Drift)
	})

	remaining := row.Drift
	var trades []RebalanceTrade
	for _, sec := range securities {
		if !remaining.IsPositive() {
			break
		}
		if member, ok := sleeve.Member(sec.Ticker); ok && member.IsLegacy {
			continue
		}
		if !sec.Quantity.IsPositive() || !sec.Price.Tradable() {
			continue
		}

		qty := decimal.Min(sec.Quantity, remaining.Div(sec.Price.Value).Floor())
		if !qty.IsPositive() {
			continue
		}
		value := domain.RoundCents(qty.Mul(sec.Price.Value))
		remaining = remaining.Sub(value)

		trades = append(trades, RebalanceTrade{
			Side:           "SELL",
			SleeveID:       row.SleeveID,
			SleeveName:     row.SleeveName,
			Ticker:         sec.Ticker,
			Quantity:       qty,
			Price:          sec.Price.Value,
			EstimatedValue: value,
			Reason: fmt.Sprintf("%s is %s%% over target (%s pts)",
				row.SleeveName, row.DriftPercent.StringFixed(2), row.DeviationPoints().StringFixed(2)),
		})
	}
	return trades
}

func buyUp(row SleeveRow, sleeve sleeves.Sleeve, securities []SecurityRow) (RebalanceTrade, bool) {
	priceOf := make(map[string]domain.ResolvedPrice, len(securities))
	for _, sec := range securities {
		priceOf[sec.Ticker] = sec.Price
	}

	for _, m := range sleeve.ActiveMembers() {
		if m.IsLegacy {
			continue
		}
		ticker := domain.NormalizeTicker(m.Ticker)
		price, ok := priceOf[ticker]
		if !ok || !price.Tradable() {
			continue
		}

		qty := row.Drift.Abs().Div(price.Value).Floor()
		if !qty.IsPositive() {
			return RebalanceTrade{}, false
		}

		return RebalanceTrade{
			Side:           "BUY",
			SleeveID:       row.SleeveID,
			SleeveName:     row.SleeveName,
			Ticker:         ticker,
			Quantity:       qty,
			Price:          price.Value,
			EstimatedValue: domain.RoundCents(qty.Mul(price.Value)),
			Reason: fmt.Sprintf("%s is %s%% under target (%s pts)",
				row.SleeveName, row.DriftPercent.Abs().StringFixed(2), row.DeviationPoints().StringFixed(2)),
		}, true
	}
	return RebalanceTrade{}, false
}
