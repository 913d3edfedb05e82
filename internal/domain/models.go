// Package domain provides core domain models and types.
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType represents the tax treatment of an account
type AccountType string

const (
	AccountTypeTaxable     AccountType = "TAXABLE"
	AccountTypeTaxDeferred AccountType = "TAX_DEFERRED"
	AccountTypeTaxExempt   AccountType = "TAX_EXEMPT"
)

// IsValid reports whether the account type is one of the known values
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeTaxable, AccountTypeTaxDeferred, AccountTypeTaxExempt:
		return true
	}
	return false
}

// AssetType represents the type of financial product/instrument
type AssetType string

const (
	AssetTypeEquity     AssetType = "EQUITY"
	AssetTypeETF        AssetType = "ETF"
	AssetTypeMutualFund AssetType = "MUTUALFUND"
	AssetTypeBond       AssetType = "BOND"
	AssetTypeCash       AssetType = "CASH"
	AssetTypeUnknown    AssetType = "UNKNOWN"
)

// AssetTypeFromString parses an asset type, falling back to AssetTypeUnknown
func AssetTypeFromString(s string) AssetType {
	switch t := AssetType(strings.ToUpper(strings.TrimSpace(s))); t {
	case AssetTypeEquity, AssetTypeETF, AssetTypeMutualFund, AssetTypeBond, AssetTypeCash:
		return t
	}
	return AssetTypeUnknown
}

// Account is a brokerage account holding positions
type Account struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Type      AccountType `json:"type"`
	CreatedAt time.Time   `json:"created_at"`
}

// IsTaxable reports whether losses in this account can be harvested
func (a Account) IsTaxable() bool {
	return a.Type == AccountTypeTaxable
}

// Security is a tradable instrument keyed by ticker
type Security struct {
	Ticker    string          `json:"ticker"`
	Name      string          `json:"name,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Sector    string          `json:"sector,omitempty"`
	Industry  string          `json:"industry,omitempty"`
	AssetType AssetType       `json:"asset_type"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Position is an account-scoped holding.
// Market value and gain/loss are always derived from quantity, cost basis and price.
type Position struct {
	ID                int64           `json:"id"`
	AccountID         string          `json:"account_id"`
	AccountType       AccountType     `json:"account_type"`
	Ticker            string          `json:"ticker"`
	Quantity          decimal.Decimal `json:"quantity"`
	CostBasisPerShare decimal.Decimal `json:"cost_basis_per_share"`
	CurrentPrice      decimal.Decimal `json:"current_price"`
	OpenedAt          time.Time       `json:"opened_at"`
}

// GainLoss is the unrealized gain or loss of a position
type GainLoss struct {
	Dollar    decimal.Decimal `json:"dollar"`     // Rounded to cents, negative for a loss
	Percent   decimal.Decimal `json:"percent"`    // Percentage points rounded to 4 places, for display
	CostBasis decimal.Decimal `json:"cost_basis"` // Total cost the percentage is measured against
}

// ExactPercent returns dollar / cost basis * 100 without rounding.
// Threshold comparisons use it so a rounded -5.0000 cannot stand in for -4.99995.
// Without a positive cost basis it falls back to Percent.
func (g GainLoss) ExactPercent() decimal.Decimal {
	if !g.CostBasis.IsPositive() {
		return g.Percent
	}
	return g.Dollar.Div(g.CostBasis).Mul(Hundred)
}

// IsLoss reports whether the gain/loss is strictly negative
func (g GainLoss) IsLoss() bool {
	return g.Dollar.IsNegative()
}

// MarketValue returns quantity * current price, rounded to cents
func (p Position) MarketValue() decimal.Decimal {
	return RoundCents(p.Quantity.Mul(p.CurrentPrice))
}

// MarketValueAt returns quantity * price, rounded to cents
func (p Position) MarketValueAt(price decimal.Decimal) decimal.Decimal {
	return RoundCents(p.Quantity.Mul(price))
}

// CostBasis returns the total cost basis, rounded to cents
func (p Position) CostBasis() decimal.Decimal {
	return RoundCents(p.Quantity.Mul(p.CostBasisPerShare))
}

// GainLoss returns the unrealized gain/loss at the current price.
// A zero cost basis yields a zero percentage.
func (p Position) GainLoss() GainLoss {
	cost := p.CostBasis()
	dollar := p.MarketValue().Sub(cost)

	percent := decimal.Zero
	if cost.IsPositive() {
		percent = dollar.Div(cost).Mul(Hundred).Round(4)
	}

	return GainLoss{Dollar: dollar, Percent: percent, CostBasis: cost}
}

// DaysHeld returns the number of whole days since the position was opened
func (p Position) DaysHeld(now time.Time) int {
	if p.OpenedAt.IsZero() || now.Before(p.OpenedAt) {
		return 0
	}
	return int(now.Sub(p.OpenedAt) / (24 * time.Hour))
}

// IsLongTerm reports whether the position has been held for more than a year
func (p Position) IsLongTerm(now time.Time) bool {
	return p.DaysHeld(now) > 365
}

// NormalizeTicker upper-cases and trims a ticker symbol
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
