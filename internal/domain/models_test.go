package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPosition_GainLoss(t *testing.T) {
	tests := []struct {
		name            string
		quantity        string
		costBasis       string
		price           string
		expectedDollar  string
		expectedPercent string
	}{
		{
			name:            "loss",
			quantity:        "100",
			costBasis:       "50",
			price:           "47",
			expectedDollar:  "-300",
			expectedPercent: "-6",
		},
		{
			name:            "gain",
			quantity:        "10",
			costBasis:       "100",
			price:           "110",
			expectedDollar:  "100",
			expectedPercent: "10",
		},
		{
			name:            "zero cost basis gives zero percent",
			quantity:        "10",
			costBasis:       "0",
			price:           "5",
			expectedDollar:  "50",
			expectedPercent: "0",
		},
		{
			name:            "fractional cents round",
			quantity:        "3",
			costBasis:       "10.005",
			price:           "10",
			expectedDollar:  "-0.02",
			expectedPercent: "-0.0666",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := Position{
				Quantity:          dec(tt.quantity),
				CostBasisPerShare: dec(tt.costBasis),
				CurrentPrice:      dec(tt.price),
			}
			gl := pos.GainLoss()
			assert.True(t, dec(tt.expectedDollar).Equal(gl.Dollar), "dollar: got %s", gl.Dollar)
			assert.True(t, dec(tt.expectedPercent).Equal(gl.Percent), "percent: got %s", gl.Percent)
		})
	}
}

func TestPosition_DaysHeldAndLongTerm(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	pos := Position{OpenedAt: now.AddDate(0, 0, -366)}
	assert.Equal(t, 366, pos.DaysHeld(now))
	assert.True(t, pos.IsLongTerm(now))

	pos.OpenedAt = now.AddDate(0, 0, -365)
	assert.Equal(t, 365, pos.DaysHeld(now))
	assert.False(t, pos.IsLongTerm(now))

	pos.OpenedAt = now.Add(time.Hour)
	assert.Equal(t, 0, pos.DaysHeld(now))

	assert.Equal(t, 0, Position{}.DaysHeld(now))
}

func TestAccount_IsTaxable(t *testing.T) {
	assert.True(t, Account{Type: AccountTypeTaxable}.IsTaxable())
	assert.False(t, Account{Type: AccountTypeTaxDeferred}.IsTaxable())
	assert.False(t, Account{Type: AccountTypeTaxExempt}.IsTaxable())
}

func TestAccountType_IsValid(t *testing.T) {
	assert.True(t, AccountTypeTaxable.IsValid())
	assert.True(t, AccountTypeTaxExempt.IsValid())
	assert.False(t, AccountType("ROTH").IsValid())
}

func TestAssetTypeFromString(t *testing.T) {
	assert.Equal(t, AssetTypeETF, AssetTypeFromString(" etf "))
	assert.Equal(t, AssetTypeEquity, AssetTypeFromString("EQUITY"))
	assert.Equal(t, AssetTypeUnknown, AssetTypeFromString("warrant"))
}

func TestNormalizeTicker(t *testing.T) {
	assert.Equal(t, "VTI", NormalizeTicker("  vti "))
}
