package harvesting

import (
	"testing"
	"time"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 14, 16, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func taxablePosition(account, ticker, qty, costBasis, price string) domain.Position {
	return domain.Position{
		AccountID:         account,
		AccountType:       domain.AccountTypeTaxable,
		Ticker:            ticker,
		Quantity:          dec(qty),
		CostBasisPerShare: dec(costBasis),
		CurrentPrice:      dec(price),
		OpenedAt:          testNow.AddDate(0, -3, 0),
	}
}

func TestThresholds_DualThreshold(t *testing.T) {
	testCases := []struct {
		name      string
		position  domain.Position
		dollar    string
		percent   string
		qualifies bool
	}{
		{
			name:      "dollar threshold met, percent missed",
			position:  taxablePosition("acc", "VTI", "100", "1000", "970"),
			dollar:    "-3000",
			percent:   "-3.00",
			qualifies: true,
		},
		{
			name:      "percent threshold met, dollar missed",
			position:  taxablePosition("acc", "VTI", "1", "1666.67", "1566.67"),
			dollar:    "-100",
			percent:   "-6.00",
			qualifies: true,
		},
		{
			name:      "neither threshold met",
			position:  taxablePosition("acc", "VTI", "1", "5000", "4950"),
			dollar:    "-50",
			percent:   "-1.00",
			qualifies: false,
		},
		{
			name:      "percent just under threshold does not round up",
			position:  taxablePosition("acc", "VTI", "1", "20000", "19000.01"),
			dollar:    "-999.99",
			percent:   "-5.00",
			qualifies: false,
		},
		{
			name:      "percent exactly at threshold",
			position:  taxablePosition("acc", "VTI", "1", "20000", "19000"),
			dollar:    "-1000",
			percent:   "-5.00",
			qualifies: true,
		},
		{
			name:      "gain never qualifies",
			position:  taxablePosition("acc", "VTI", "100", "100", "200"),
			dollar:    "10000",
			percent:   "100.00",
			qualifies: false,
		},
	}

	thresholds := DefaultThresholds()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gl := tc.position.GainLoss()
			assert.True(t, gl.Dollar.Equal(dec(tc.dollar)), "dollar %s", gl.Dollar)
			assert.Equal(t, tc.percent, gl.Percent.StringFixed(2))
			assert.Equal(t, tc.qualifies, thresholds.Qualifies(gl))
		})
	}
}

func TestThresholds_ZeroCostBasisUsesDollarThreshold(t *testing.T) {
	thresholds := DefaultThresholds()

	small := taxablePosition("acc", "GIFT", "10", "0", "0")
	assert.False(t, thresholds.Qualifies(small.GainLoss()))

	gl := domain.GainLoss{Dollar: dec("-2500"), Percent: decimal.Zero}
	assert.True(t, thresholds.Qualifies(gl))
}

func TestSelectCandidates_PercentBoundaryIsNotRounded(t *testing.T) {
	below := taxablePosition("acc", "VTI", "1", "20000", "19000.01")
	gl := below.GainLoss()
	assert.True(t, gl.Percent.Equal(dec("-5")), "display percent rounds to %s", gl.Percent)
	assert.True(t, gl.ExactPercent().Equal(dec("-4.99995")), "exact percent %s", gl.ExactPercent())

	candidates := SelectCandidates([]domain.Position{below}, nil, DefaultThresholds(), testNow)
	assert.Empty(t, candidates)
}

func TestSelectCandidates_TaxableOnlyAndSorted(t *testing.T) {
	deferred := taxablePosition("ira", "VTI", "100", "1000", "900")
	deferred.AccountType = domain.AccountTypeTaxDeferred
	exempt := taxablePosition("roth", "VTI", "100", "1000", "900")
	exempt.AccountType = domain.AccountTypeTaxExempt

	positions := []domain.Position{
		taxablePosition("b-acc", "VEA", "100", "50", "40"),
		deferred,
		taxablePosition("a-acc", "vxus", "100", "50", "40"),
		exempt,
		taxablePosition("a-acc", "BND", "100", "50", "40"),
		taxablePosition("a-acc", "AGG", "100", "50", "60"),
	}

	candidates := SelectCandidates(positions, nil, DefaultThresholds(), testNow)
	require.Len(t, candidates, 3)
	assert.Equal(t, "a-acc/BND", candidates[0].Position.AccountID+"/"+candidates[0].Position.Ticker)
	assert.Equal(t, "a-acc/VXUS", candidates[1].Position.AccountID+"/"+candidates[1].Position.Ticker)
	assert.Equal(t, "b-acc/VEA", candidates[2].Position.AccountID+"/"+candidates[2].Position.Ticker)
}

func TestSelectCandidates_LivePriceOverridesPositionPrice(t *testing.T) {
	pos := taxablePosition("acc", "VTI", "100", "100", "99")
	prices := domain.PriceTable{"VTI": dec("80")}

	candidates := SelectCandidates([]domain.Position{pos}, prices, DefaultThresholds(), testNow)
	require.Len(t, candidates, 1)
	assert.Equal(t, domain.PriceSourceLive, candidates[0].Price.Source)
	assert.True(t, candidates[0].GainLoss.Dollar.Equal(dec("-2000")))

	assert.Empty(t, SelectCandidates([]domain.Position{pos}, nil, DefaultThresholds(), testNow))
}

func TestSelectCandidates_LongTermIsInformational(t *testing.T) {
	old := taxablePosition("acc", "VTI", "100", "100", "80")
	old.OpenedAt = testNow.AddDate(-2, 0, 0)
	young := taxablePosition("acc", "VEA", "100", "100", "80")

	candidates := SelectCandidates([]domain.Position{old, young}, nil, DefaultThresholds(), testNow)
	require.Len(t, candidates, 2)
	assert.False(t, candidates[0].IsLongTerm)
	assert.True(t, candidates[1].IsLongTerm)
	assert.Greater(t, candidates[1].DaysHeld, 365)
}
