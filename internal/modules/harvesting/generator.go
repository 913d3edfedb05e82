package harvesting

import (
	"fmt"
	"time"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/modules/sleeves"
	"github.com/aristath/rebalancer/internal/modules/washsale"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Observer receives data-integrity and volume signals from the generator
type Observer interface {
	SleeveNotFound(accountID, ticker string)
	ProposalsGenerated(summary Summary)
}

// Generator composes candidate selection and replacement resolution into trade proposals
type Generator struct {
	thresholds Thresholds
	clock      domain.Clock
	observer   Observer
	log        zerolog.Logger
}

// NewGenerator creates a proposal generator
func NewGenerator(thresholds Thresholds, log zerolog.Logger) *Generator {
	return &Generator{
		thresholds: thresholds,
		clock:      time.Now,
		log:        log.With().Str("component", "harvest_generator").Logger(),
	}
}

// WithClock overrides the time source
func (g *Generator) WithClock(clock domain.Clock) *Generator {
	g.clock = clock
	return g
}

// WithObserver attaches an observer
func (g *Generator) WithObserver(observer Observer) *Generator {
	g.observer = observer
	return g
}

// Thresholds returns the configured loss thresholds
func (g *Generator) Thresholds() Thresholds {
	return g.thresholds
}

// ComputeProposedTrades runs the generator with default thresholds at the current time
func ComputeProposedTrades(
	positions []domain.Position,
	sleeveList []sleeves.Sleeve,
	restrictedSecurities []washsale.Restriction,
	prices domain.PriceTable,
) []TradeProposal {
	return NewGenerator(DefaultThresholds(), zerolog.Nop()).
		Generate(positions, sleeveList, restrictedSecurities, prices)
}

// Generate produces proposals for every qualifying loss position.
// A SELL is always emitted, blocked or not. A BUY follows only when a replacement
// resolves and at least one whole share can be bought.
func (g *Generator) Generate(
	positions []domain.Position,
	sleeveList []sleeves.Sleeve,
	restrictedSecurities []washsale.Restriction,
	prices domain.PriceTable,
) []TradeProposal {
	now := g.clock()
	registry := sleeves.NewRegistry(sleeveList)
	resolver := NewResolver(washsale.NewTracker(restrictedSecurities, now))

	candidates := SelectCandidates(positions, prices, g.thresholds, now)
	proposals := make([]TradeProposal, 0, len(candidates)*2)

	for _, c := range candidates {
		proposals = append(proposals, g.proposeFor(c, registry, resolver, prices)...)
	}

	SortProposals(proposals)

	summary := Summarize(proposals)
	g.log.Debug().
		Int("candidates", len(candidates)).
		Int("sells", summary.Sells).
		Int("buys", summary.Buys).
		Int("blocked", summary.Blocked).
		Msg("Harvest proposals computed")
	if g.observer != nil {
		g.observer.ProposalsGenerated(summary)
	}

	return proposals
}

func (g *Generator) proposeFor(c Candidate, registry *sleeves.Registry, resolver *Resolver, prices domain.PriceTable) []TradeProposal {
	pos := c.Position
	sell := TradeProposal{
		Type:              TradeTypeSell,
		AccountID:         pos.AccountID,
		Ticker:            pos.Ticker,
		Quantity:          pos.Quantity,
		Price:             c.Price.Value,
		PriceSource:       c.Price.Source,
		EstimatedValue:    pos.MarketValue(),
		CostBasisPerShare: pos.CostBasisPerShare,
		LossAmount:        c.GainLoss.Dollar,
		IsLongTerm:        c.IsLongTerm,
		Reason: fmt.Sprintf("Harvest %s loss (%s%%) on %s",
			domain.FormatUSD(c.GainLoss.Dollar.Abs()), c.GainLoss.Percent.Abs().StringFixed(2), pos.Ticker),
	}

	sleeve, ok := registry.SleeveFor(pos.Ticker)
	if !ok {
		g.log.Warn().
			Str("account_id", pos.AccountID).
			Str("ticker", pos.Ticker).
			Msg("Sleeve not found for held ticker")
		if g.observer != nil {
			g.observer.SleeveNotFound(pos.AccountID, pos.Ticker)
		}
		return []TradeProposal{block(sell, BlockSleeveNotFound, fmt.Sprintf("Sleeve not found for %s", pos.Ticker))}
	}

	sell.SleeveID = sleeve.ID
	sell.SleeveName = sleeve.Name

	if member, ok := sleeve.Member(pos.Ticker); ok && member.IsLegacy {
		return []TradeProposal{block(sell, BlockLegacyHolding,
			fmt.Sprintf("%s is a legacy holding in sleeve %s and must not be sold", pos.Ticker, sleeve.Name))}
	}

	resolution := resolver.Resolve(sleeve, pos.Ticker)
	if !resolution.Resolved() {
		return []TradeProposal{block(sell, resolution.Kind, resolution.Reason)}
	}

	replacement := resolution.Replacement.Ticker
	sell.CanExecute = true
	sell.ReplacementTicker = replacement

	fallback := pos.CurrentPrice
	price := prices.Resolve(replacement, &fallback)
	if !price.Tradable() {
		return []TradeProposal{sell}
	}

	buyQty := sell.EstimatedValue.Div(price.Value).Floor()
	if buyQty.LessThan(decimal.NewFromInt(1)) {
		return []TradeProposal{sell}
	}

	buy := TradeProposal{
		Type:              TradeTypeBuy,
		AccountID:         pos.AccountID,
		Ticker:            domain.NormalizeTicker(replacement),
		SleeveID:          sleeve.ID,
		SleeveName:        sleeve.Name,
		Quantity:          buyQty,
		Price:             price.Value,
		PriceSource:       price.Source,
		EstimatedValue:    domain.RoundCents(buyQty.Mul(price.Value)),
		CostBasisPerShare: price.Value,
		LossAmount:        decimal.Zero,
		Reason:            fmt.Sprintf("Replace %s with %s to keep %s exposure", pos.Ticker, replacement, sleeve.Name),
		CanExecute:        true,
	}

	return []TradeProposal{sell, buy}
}

func block(p TradeProposal, kind BlockKind, reason string) TradeProposal {
	p.CanExecute = false
	p.BlockKind = kind
	p.BlockingReason = reason
	return p
}
