package portfolio

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/rebalancer/internal/database"
	"github.com/aristath/rebalancer/internal/domain"
	testingpkg "github.com/aristath/rebalancer/internal/testing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db := testingpkg.NewTestDB(t, database.NamePortfolio)
	return NewRepository(db.Conn(), testingpkg.NopLogger())
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRepository_Accounts(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateAccount(ctx, domain.Account{ID: "ira", Name: "IRA", Type: domain.AccountTypeTaxDeferred}))
	require.NoError(t, repo.CreateAccount(ctx, domain.Account{ID: "brokerage", Name: "Brokerage", Type: domain.AccountTypeTaxable}))

	accounts, err := repo.GetAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "brokerage", accounts[0].ID)
	assert.True(t, accounts[0].IsTaxable())
	assert.False(t, accounts[1].IsTaxable())

	_, err = repo.GetAccount(ctx, "missing")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	err = repo.CreateAccount(ctx, domain.Account{ID: "x", Type: "ROTH"})
	assert.ErrorIs(t, err, ErrInvalidAccountType)
}

func TestRepository_PositionsJoinSecurityPrice(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	opened := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.CreateAccount(ctx, domain.Account{ID: "brokerage", Name: "Brokerage", Type: domain.AccountTypeTaxable}))
	require.NoError(t, repo.UpsertSecurity(ctx, domain.Security{Ticker: "vti", Name: "Vanguard Total", Price: dec("220.50"), AssetType: domain.AssetTypeETF}))
	require.NoError(t, repo.UpsertPosition(ctx, domain.Position{
		AccountID:         "brokerage",
		Ticker:            "VTI",
		Quantity:          dec("10"),
		CostBasisPerShare: dec("250"),
		OpenedAt:          opened,
	}))
	require.NoError(t, repo.UpsertPosition(ctx, domain.Position{
		AccountID:         "brokerage",
		Ticker:            "ZZZ",
		Quantity:          dec("1"),
		CostBasisPerShare: dec("5"),
	}))

	positions, err := repo.GetPositions(ctx, "brokerage")
	require.NoError(t, err)
	require.Len(t, positions, 2)

	vti := positions[0]
	assert.Equal(t, "VTI", vti.Ticker)
	assert.Equal(t, domain.AccountTypeTaxable, vti.AccountType)
	assert.True(t, vti.CurrentPrice.Equal(dec("220.50")))
	assert.True(t, vti.Quantity.Equal(dec("10")))
	assert.Equal(t, opened, vti.OpenedAt)

	assert.Equal(t, "ZZZ", positions[1].Ticker)
	assert.True(t, positions[1].CurrentPrice.IsZero())

	// Update keeps the original open date
	require.NoError(t, repo.UpsertPosition(ctx, domain.Position{
		AccountID:         "brokerage",
		Ticker:            "VTI",
		Quantity:          dec("15"),
		CostBasisPerShare: dec("240"),
	}))
	positions, err = repo.GetPositions(ctx, "")
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.True(t, positions[0].Quantity.Equal(dec("15")))
	assert.Equal(t, opened, positions[0].OpenedAt)

	require.NoError(t, repo.DeletePosition(ctx, "brokerage", "zzz"))
	positions, err = repo.GetPositions(ctx, "brokerage")
	require.NoError(t, err)
	assert.Len(t, positions, 1)
}

func TestRepository_UpsertPositionValidation(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	testCases := []struct {
		name     string
		position domain.Position
		wantErr  error
	}{
		{"missing ticker", domain.Position{AccountID: "a"}, ErrEmptyTicker},
		{"missing account id", domain.Position{Ticker: "VTI"}, ErrMissingAccountID},
		{"negative quantity", domain.Position{AccountID: "a", Ticker: "VTI", Quantity: dec("-1")}, ErrNegativeQuantity},
		{"unknown account", domain.Position{AccountID: "nope", Ticker: "VTI", Quantity: dec("1")}, ErrAccountNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := repo.UpsertPosition(ctx, tc.position)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestRepository_Quotes(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.SetQuote(ctx, "vti", dec("221.10"), now))
	require.NoError(t, repo.SetQuote(ctx, "ITOT", dec("0"), now))
	require.NoError(t, repo.SetQuote(ctx, "VTI", dec("222"), now))

	prices, err := repo.GetPrices(ctx)
	require.NoError(t, err)
	assert.Len(t, prices, 2)

	price, ok := prices.Lookup("VTI")
	require.True(t, ok)
	assert.True(t, price.Equal(dec("222")))

	// A stored zero is still a known price
	price, ok = prices.Lookup("ITOT")
	assert.True(t, ok)
	assert.True(t, price.IsZero())

	_, ok = prices.Lookup("SCHB")
	assert.False(t, ok)

	assert.ErrorIs(t, repo.SetQuote(ctx, "VTI", dec("-1"), now), ErrNegativePrice)
}

func TestRepository_GetSecurity(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	sec, err := repo.GetSecurity(ctx, "VTI")
	require.NoError(t, err)
	assert.Nil(t, sec)

	require.NoError(t, repo.UpsertSecurity(ctx, domain.Security{Ticker: "VTI", Name: "Vanguard Total", Price: dec("220"), AssetType: domain.AssetTypeETF}))
	sec, err = repo.GetSecurity(ctx, "vti")
	require.NoError(t, err)
	require.NotNil(t, sec)
	assert.Equal(t, "Vanguard Total", sec.Name)
	assert.Equal(t, domain.AssetTypeETF, sec.AssetType)
}
