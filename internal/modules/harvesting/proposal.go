package harvesting

import (
	"sort"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/shopspring/decimal"
)

// TradeType is the side of a proposed trade
type TradeType string

const (
	// TradeTypeSell sells the full loss position
	TradeTypeSell TradeType = "SELL"
	// TradeTypeBuy buys the replacement
	TradeTypeBuy TradeType = "BUY"
)

// TradeProposal is a single proposed trade. Proposals are recomputed per request and never stored.
type TradeProposal struct {
	Type              TradeType          `json:"type"`
	AccountID         string             `json:"account_id"`
	Ticker            string             `json:"ticker"`
	SleeveID          string             `json:"sleeve_id,omitempty"`
	SleeveName        string             `json:"sleeve_name,omitempty"`
	Quantity          decimal.Decimal    `json:"quantity"`
	Price             decimal.Decimal    `json:"price"`
	PriceSource       domain.PriceSource `json:"price_source"`
	EstimatedValue    decimal.Decimal    `json:"estimated_value"`
	CostBasisPerShare decimal.Decimal    `json:"cost_basis_per_share"`
	LossAmount        decimal.Decimal    `json:"loss_amount"`
	IsLongTerm        bool               `json:"is_long_term"`
	Reason            string             `json:"reason"`
	CanExecute        bool               `json:"can_execute"`
	BlockingReason    string             `json:"blocking_reason,omitempty"`
	BlockKind         BlockKind          `json:"block_kind,omitempty"`
	ReplacementTicker string             `json:"replacement_ticker,omitempty"`
}

// IsBlocked reports whether the proposal carries a blocking reason
func (p TradeProposal) IsBlocked() bool {
	return !p.CanExecute
}

// SortProposals orders proposals by sleeve name, then SELL before BUY.
// The sort is stable so equal keys keep their input order.
func SortProposals(proposals []TradeProposal) {
	sort.SliceStable(proposals, func(i, j int) bool {
		a, b := proposals[i], proposals[j]
		if a.SleeveName != b.SleeveName {
			return a.SleeveName < b.SleeveName
		}
		return sideOrder(a.Type) < sideOrder(b.Type)
	})
}

func sideOrder(t TradeType) int {
	if t == TradeTypeSell {
		return 0
	}
	return 1
}

// Summary aggregates a proposal list
type Summary struct {
	Sells           int             `json:"sells"`
	Buys            int             `json:"buys"`
	Blocked         int             `json:"blocked"`
	HarvestableLoss decimal.Decimal `json:"harvestable_loss"`
	ExecutableLoss  decimal.Decimal `json:"executable_loss"`
}

// Summarize counts proposals and totals the losses they would realize
func Summarize(proposals []TradeProposal) Summary {
	s := Summary{HarvestableLoss: decimal.Zero, ExecutableLoss: decimal.Zero}
	for _, p := range proposals {
		switch p.Type {
		case TradeTypeSell:
			s.Sells++
			s.HarvestableLoss = s.HarvestableLoss.Add(p.LossAmount)
			if p.CanExecute {
				s.ExecutableLoss = s.ExecutableLoss.Add(p.LossAmount)
			} else {
				s.Blocked++
			}
		case TradeTypeBuy:
			s.Buys++
		}
	}
	return s
}
