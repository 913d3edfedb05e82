package domain

import "github.com/shopspring/decimal"

// PriceTable maps tickers to live prices.
// A missing entry means "no price available", which is distinct from a stored zero price.
type PriceTable map[string]decimal.Decimal

// Lookup returns the live price for a ticker and whether one exists
func (t PriceTable) Lookup(ticker string) (decimal.Decimal, bool) {
	if t == nil {
		return decimal.Zero, false
	}
	price, ok := t[NormalizeTicker(ticker)]
	return price, ok
}

// PriceSource records where a resolved price came from
type PriceSource string

const (
	// PriceSourceLive is a price from the live price table
	PriceSourceLive PriceSource = "live"
	// PriceSourcePosition is the fallback price of a held position
	PriceSourcePosition PriceSource = "position"
	// PriceSourceNone means no price could be resolved
	PriceSourceNone PriceSource = "none"
)

// ResolvedPrice is a price together with its provenance
type ResolvedPrice struct {
	Value  decimal.Decimal `json:"value"`
	Source PriceSource     `json:"source"`
}

// Known reports whether a price was resolved at all
func (r ResolvedPrice) Known() bool {
	return r.Source != PriceSourceNone
}

// Tradable reports whether the price can be used to size an order
func (r ResolvedPrice) Tradable() bool {
	return r.Known() && r.Value.IsPositive()
}

// Resolve looks up ticker in the live table and falls back to the given position price.
// A nil fallback means no fallback exists.
func (t PriceTable) Resolve(ticker string, fallback *decimal.Decimal) ResolvedPrice {
	if price, ok := t.Lookup(ticker); ok {
		return ResolvedPrice{Value: price, Source: PriceSourceLive}
	}
	if fallback != nil {
		return ResolvedPrice{Value: *fallback, Source: PriceSourcePosition}
	}
	return ResolvedPrice{Value: decimal.Zero, Source: PriceSourceNone}
}
