package domain

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Hundred is the decimal constant 100
var Hundred = decimal.NewFromInt(100)

// RoundCents rounds a currency amount to two decimal places, half away from zero
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ToCents converts a currency amount to integer cents
func ToCents(d decimal.Decimal) int64 {
	return d.Mul(Hundred).Round(0).IntPart()
}

// FromCents converts integer cents to a currency amount
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// FormatUSD formats an amount as dollars with two decimals, e.g. "$1,020.50"
func FormatUSD(d decimal.Decimal) string {
	return money.New(ToCents(d), money.USD).Display()
}
