package testing

import (
	"time"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/modules/allocation"
	"github.com/aristath/rebalancer/internal/modules/sleeves"
	"github.com/shopspring/decimal"
)

// FixtureNow is the reference clock used by fixtures
var FixtureNow = time.Date(2026, 3, 16, 15, 30, 0, 0, time.UTC)

// NewSleeveFixtures returns a US total-market and an international sleeve
func NewSleeveFixtures() []sleeves.Sleeve {
	return []sleeves.Sleeve{
		{
			ID:   "us-total",
			Name: "US Total Market",
			Members: []sleeves.Member{
				{Ticker: "VTI", Rank: 1, IsActive: true},
				{Ticker: "ITOT", Rank: 2, IsActive: true},
				{Ticker: "SCHB", Rank: 3, IsActive: true},
			},
		},
		{
			ID:   "intl",
			Name: "International",
			Members: []sleeves.Member{
				{Ticker: "VXUS", Rank: 1, IsActive: true},
				{Ticker: "IXUS", Rank: 2, IsActive: true},
			},
		},
	}
}

// NewModelFixture returns a 60/40 model over the fixture sleeves
func NewModelFixture() allocation.Model {
	return allocation.Model{
		ID:   "sixty-forty",
		Name: "60/40 Equity",
		Members: []allocation.Member{
			{SleeveID: "us-total", TargetWeightBP: 6000, IsActive: true},
			{SleeveID: "intl", TargetWeightBP: 4000, IsActive: true},
		},
	}
}

// NewAccountFixture returns a taxable account
func NewAccountFixture() domain.Account {
	return domain.Account{
		ID:        "taxable-1",
		Name:      "Joint Brokerage",
		Type:      domain.AccountTypeTaxable,
		CreatedAt: FixtureNow.AddDate(-2, 0, 0),
	}
}

// NewPositionFixtures returns holdings in the fixture account: VTI at a loss, VXUS at a gain
func NewPositionFixtures() []domain.Position {
	return []domain.Position{
		{
			AccountID:         "taxable-1",
			AccountType:       domain.AccountTypeTaxable,
			Ticker:            "VTI",
			Quantity:          decimal.NewFromInt(200),
			CostBasisPerShare: decimal.NewFromInt(250),
			CurrentPrice:      decimal.NewFromInt(220),
			OpenedAt:          FixtureNow.AddDate(0, -8, 0),
		},
		{
			AccountID:         "taxable-1",
			AccountType:       domain.AccountTypeTaxable,
			Ticker:            "VXUS",
			Quantity:          decimal.NewFromInt(300),
			CostBasisPerShare: decimal.NewFromInt(55),
			CurrentPrice:      decimal.NewFromInt(60),
			OpenedAt:          FixtureNow.AddDate(-1, -2, 0),
		},
	}
}
