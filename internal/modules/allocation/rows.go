package allocation

import (
	"fmt"
	"strings"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/shopspring/decimal"
)

// RowKind tags a drift report row
type RowKind string

const (
	// RowKindSleeve is a per-sleeve row
	RowKindSleeve RowKind = "SLEEVE"
	// RowKindSecurity is a per-security row inside a sleeve
	RowKindSecurity RowKind = "SECURITY"
	// RowKindUnassigned collects holdings outside the model
	RowKindUnassigned RowKind = "UNASSIGNED"
)

// Row is one line of a drift report. The set of implementations is closed:
// SleeveRow, SecurityRow and UnassignedRow.
type Row interface {
	Kind() RowKind
	Figures() Measure
	isRow()
}

// Measure holds the drift figures shared by every row kind.
// Percentages are of total portfolio value, except DriftPercent which is relative to TargetValue.
type Measure struct {
	CurrentValue   decimal.Decimal `json:"current_value"`
	TargetValue    decimal.Decimal `json:"target_value"`
	Drift          decimal.Decimal `json:"drift"`
	CurrentPercent decimal.Decimal `json:"current_percent"`
	TargetPercent  decimal.Decimal `json:"target_percent"`
	DriftPercent   decimal.Decimal `json:"drift_percent"`
}

// DeviationPoints returns current minus target allocation, in percentage points
func (m Measure) DeviationPoints() decimal.Decimal {
	return m.CurrentPercent.Sub(m.TargetPercent)
}

// SleeveRow is the drift of one model sleeve
type SleeveRow struct {
	Type           RowKind `json:"type"`
	SleeveID       string  `json:"sleeve_id"`
	SleeveName     string  `json:"sleeve_name"`
	TargetWeightBP int     `json:"target_weight_bp"`
	Measure
}

// SecurityRow is the drift of one sleeve member
type SecurityRow struct {
	Type     RowKind              `json:"type"`
	SleeveID string               `json:"sleeve_id"`
	Ticker   string               `json:"ticker"`
	ShareBP  int                  `json:"share_bp"`
	Quantity decimal.Decimal      `json:"quantity"`
	Price    domain.ResolvedPrice `json:"price"`
	IsActive bool                 `json:"is_active"`
	Measure
}

// UnassignedRow collects holdings that belong to no model sleeve
type UnassignedRow struct {
	Type    RowKind  `json:"type"`
	Tickers []string `json:"tickers"`
	Measure
}

func (SleeveRow) Kind() RowKind     { return RowKindSleeve }
func (SecurityRow) Kind() RowKind   { return RowKindSecurity }
func (UnassignedRow) Kind() RowKind { return RowKindUnassigned }

func (r SleeveRow) Figures() Measure     { return r.Measure }
func (r SecurityRow) Figures() Measure   { return r.Measure }
func (r UnassignedRow) Figures() Measure { return r.Measure }

func (SleeveRow) isRow()     {}
func (SecurityRow) isRow()   {}
func (UnassignedRow) isRow() {}

// Label renders a short human-readable name for a row
func Label(row Row) string {
	switch r := row.(type) {
	case SleeveRow:
		return r.SleeveName
	case SecurityRow:
		return "  " + r.Ticker
	case UnassignedRow:
		return fmt.Sprintf("Unassigned (%s)", strings.Join(r.Tickers, ", "))
	default:
		panic(fmt.Sprintf("allocation: unknown row type %T", row))
	}
}
