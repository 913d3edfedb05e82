package allocation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/modules/sleeves"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var basisPoints = decimal.NewFromInt(TotalBasisPoints)

// DriftReport is the result of comparing holdings against a model
type DriftReport struct {
	ModelID     string          `json:"model_id"`
	ModelName   string          `json:"model_name"`
	TotalValue  decimal.Decimal `json:"total_value"`
	Sleeves     []SleeveRow     `json:"sleeves"`
	Securities  []SecurityRow   `json:"securities"`
	Unassigned  *UnassignedRow  `json:"unassigned,omitempty"`
	Summary     DriftSummary    `json:"summary"`
	GeneratedAt time.Time       `json:"generated_at"` // Stamped by the caller; zero from ComputeAllocationDrift
}

// Rows returns every row in display order: each sleeve followed by its
// securities, then the unassigned row if present
func (r *DriftReport) Rows() []Row {
	rows := make([]Row, 0, len(r.Sleeves)+len(r.Securities)+1)
	for _, s := range r.Sleeves {
		rows = append(rows, s)
		for _, sec := range r.Securities {
			if sec.SleeveID == s.SleeveID {
				rows = append(rows, sec)
			}
		}
	}
	if r.Unassigned != nil {
		rows = append(rows, *r.Unassigned)
	}
	return rows
}

// SecuritiesOf returns the security rows of one sleeve
func (r *DriftReport) SecuritiesOf(sleeveID string) []SecurityRow {
	var rows []SecurityRow
	for _, sec := range r.Securities {
		if sec.SleeveID == sleeveID {
			rows = append(rows, sec)
		}
	}
	return rows
}

// DriftSummary holds portfolio-level deviation statistics in percentage points
type DriftSummary struct {
	MaxAbsDeviation  float64 `json:"max_abs_deviation"`
	MeanAbsDeviation float64 `json:"mean_abs_deviation"`
	RMSDeviation     float64 `json:"rms_deviation"`
}

// OutOfTolerance returns sleeve rows whose allocation deviates from target by more
// than toleranceBP basis points of the portfolio
func (r *DriftReport) OutOfTolerance(toleranceBP int) []SleeveRow {
	limit := decimal.NewFromInt(int64(toleranceBP)).Div(domain.Hundred)
	var rows []SleeveRow
	for _, s := range r.Sleeves {
		if s.DeviationPoints().Abs().GreaterThan(limit) {
			rows = append(rows, s)
		}
	}
	return rows
}

type holding struct {
	ticker   string
	quantity decimal.Decimal
	value    decimal.Decimal
	price    domain.ResolvedPrice
}

// ComputeAllocationDrift compares holdings with the model's target weights.
// Holdings are aggregated by ticker across accounts and valued at the live
// price, falling back to the position's own price.
func ComputeAllocationDrift(model Model, sleeveList []sleeves.Sleeve, holdings []domain.Position, prices domain.PriceTable) (*DriftReport, error) {
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid allocation model: %w", err)
	}

	byID := make(map[string]sleeves.Sleeve, len(sleeveList))
	for _, s := range sleeveList {
		byID[s.ID] = s
	}
	if err := model.ValidateSleeves(func(id string) bool { _, ok := byID[id]; return ok }); err != nil {
		return nil, err
	}

	held := aggregateHoldings(holdings, prices)
	total := decimal.Zero
	for _, h := range held {
		total = total.Add(h.value)
	}

	modelSleeves := make([]sleeves.Sleeve, 0, len(model.Members))
	for _, member := range model.Members {
		modelSleeves = append(modelSleeves, byID[member.SleeveID])
	}
	sort.Slice(modelSleeves, func(i, j int) bool {
		if modelSleeves[i].Name != modelSleeves[j].Name {
			return modelSleeves[i].Name < modelSleeves[j].Name
		}
		return modelSleeves[i].ID < modelSleeves[j].ID
	})

	// a ticker in several model sleeves counts toward the lowest sleeve id
	owner := make(map[string]string)
	for _, s := range modelSleeves {
		for _, m := range s.Members {
			ticker := domain.NormalizeTicker(m.Ticker)
			if existing, ok := owner[ticker]; ok && existing <= s.ID {
				continue
			}
			owner[ticker] = s.ID
		}
	}

	report := &DriftReport{
		ModelID:    model.ID,
		ModelName:  model.Name,
		TotalValue: total,
	}

	for _, s := range modelSleeves {
		weight := model.Weight(s.ID)
		targetValue := domain.RoundCents(total.Mul(decimal.NewFromInt(int64(weight))).Div(basisPoints))

		current := decimal.Zero
		for _, m := range s.Members {
			ticker := domain.NormalizeTicker(m.Ticker)
			if owner[ticker] != s.ID {
				continue
			}
			if h, ok := held[ticker]; ok {
				current = current.Add(h.value)
			}
		}

		report.Sleeves = append(report.Sleeves, SleeveRow{
			Type:           RowKindSleeve,
			SleeveID:       s.ID,
			SleeveName:     s.Name,
			TargetWeightBP: weight,
			Measure:        measure(current, targetValue, decimal.NewFromInt(int64(weight)), total),
		})
		report.Securities = append(report.Securities, securityRows(s, owner, held, weight, targetValue, total, prices)...)
	}

	var unassigned []string
	unassignedValue := decimal.Zero
	for ticker, h := range held {
		if _, ok := owner[ticker]; ok {
			continue
		}
		unassigned = append(unassigned, ticker)
		unassignedValue = unassignedValue.Add(h.value)
	}
	if len(unassigned) > 0 {
		sort.Strings(unassigned)
		report.Unassigned = &UnassignedRow{
			Type:    RowKindUnassigned,
			Tickers: unassigned,
			Measure: measure(unassignedValue, decimal.Zero, decimal.Zero, total),
		}
	}

	report.Summary = summarize(report)

	return report, nil
}

// securityRows splits the sleeve target across its active members with equal weights.
// Held inactive members are listed with a zero target.
func securityRows(s sleeves.Sleeve, owner map[string]string, held map[string]holding, sleeveWeight int, sleeveTarget, total decimal.Decimal, prices domain.PriceTable) []SecurityRow {
	active := s.ActiveMembers()
	shares := EqualWeights(len(active))
	shareOf := make(map[string]int, len(active))
	for i, m := range active {
		shareOf[domain.NormalizeTicker(m.Ticker)] = shares[i]
	}

	var rows []SecurityRow
	for _, m := range s.RankedMembers() {
		ticker := domain.NormalizeTicker(m.Ticker)
		if owner[ticker] != s.ID {
			continue
		}
		h, isHeld := held[ticker]
		if !m.IsActive && !isHeld {
			continue
		}

		share := shareOf[ticker]
		target := domain.RoundCents(sleeveTarget.Mul(decimal.NewFromInt(int64(share))).Div(basisPoints))
		targetBP := decimal.NewFromInt(int64(sleeveWeight * share)).Div(basisPoints)

		row := SecurityRow{
			Type:     RowKindSecurity,
			SleeveID: s.ID,
			Ticker:   ticker,
			ShareBP:  share,
			Quantity: decimal.Zero,
			IsActive: m.IsActive,
			Price:    prices.Resolve(ticker, nil),
			Measure:  measure(decimal.Zero, target, targetBP, total),
		}
		if isHeld {
			row.Quantity = h.quantity
			row.Price = h.price
			row.Measure = measure(h.value, target, targetBP, total)
		}
		rows = append(rows, row)
	}
	return rows
}

func aggregateHoldings(positions []domain.Position, prices domain.PriceTable) map[string]holding {
	held := make(map[string]holding)
	for _, pos := range positions {
		if pos.Quantity.IsZero() {
			continue
		}
		ticker := domain.NormalizeTicker(pos.Ticker)
		fallback := pos.CurrentPrice
		price := prices.Resolve(ticker, &fallback)

		h := held[ticker]
		if h.ticker == "" {
			h = holding{ticker: ticker, quantity: decimal.Zero, value: decimal.Zero, price: price}
		}
		h.quantity = h.quantity.Add(pos.Quantity)
		h.value = h.value.Add(pos.MarketValueAt(price.Value))
		held[ticker] = h
	}
	return held
}

func measure(current, target, targetBP, total decimal.Decimal) Measure {
	m := Measure{
		CurrentValue:   domain.RoundCents(current),
		TargetValue:    target,
		Drift:          domain.RoundCents(current.Sub(target)),
		CurrentPercent: decimal.Zero,
		TargetPercent:  targetBP.Div(domain.Hundred).Round(2),
	}
	if total.IsPositive() {
		m.CurrentPercent = current.Div(total).Mul(domain.Hundred).Round(2)
	}
	if target.IsPositive() {
		m.DriftPercent = m.Drift.Div(target).Mul(domain.Hundred).Round(2)
	} else {
		m.DriftPercent = m.CurrentPercent
	}
	return m
}

func summarize(report *DriftReport) DriftSummary {
	deviations := make([]float64, 0, len(report.Sleeves)+1)
	for _, s := range report.Sleeves {
		deviations = append(deviations, s.DeviationPoints().InexactFloat64())
	}
	if report.Unassigned != nil {
		deviations = append(deviations, report.Unassigned.DeviationPoints().InexactFloat64())
	}
	if len(deviations) == 0 {
		return DriftSummary{}
	}

	abs := make([]float64, len(deviations))
	for i, d := range deviations {
		abs[i] = math.Abs(d)
	}

	return DriftSummary{
		MaxAbsDeviation:  floats.Max(abs),
		MeanAbsDeviation: stat.Mean(abs, nil),
		RMSDeviation:     floats.Norm(deviations, 2) / math.Sqrt(float64(len(deviations))),
	}
}
