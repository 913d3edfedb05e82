package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/rebalancer/internal/database"
	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	testingpkg "github.com/aristath/rebalancer/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Data     json.RawMessage        `json:"data"`
	Metadata map[string]interface{} `json:"metadata"`
	Error    string                 `json:"error"`
}

type recordingInvalidator struct {
	accounts []string
	all      int
}

func (r *recordingInvalidator) Invalidate(accountID string) {
	r.accounts = append(r.accounts, accountID)
}

func (r *recordingInvalidator) InvalidateAll() {
	r.all++
}

func setupRouter(t *testing.T) (http.Handler, *recordingInvalidator) {
	t.Helper()
	ctx := context.Background()
	log := testingpkg.NopLogger()

	db := testingpkg.NewTestDB(t, database.NamePortfolio)
	repo := portfolio.NewRepository(db.Conn(), log)
	require.NoError(t, repo.CreateAccount(ctx, testingpkg.NewAccountFixture()))
	for _, pos := range testingpkg.NewPositionFixtures() {
		require.NoError(t, repo.UpsertSecurity(ctx, domain.Security{Ticker: pos.Ticker, Price: pos.CurrentPrice}))
		require.NoError(t, repo.UpsertPosition(ctx, pos))
	}

	invalidator := &recordingInvalidator{}
	router := chi.NewRouter()
	NewHandler(portfolio.NewService(repo, log), invalidator, log).RegisterRoutes(router)
	return router, invalidator
}

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	reader := bytes.NewReader(nil)
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if rec.Code != http.StatusNoContent {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestAccounts(t *testing.T) {
	router, invalidator := setupRouter(t)

	rec, env := doRequest(t, router, http.MethodPost, "/portfolio/accounts",
		domain.Account{ID: "ira-1", Name: "Rollover IRA", Type: domain.AccountTypeTaxDeferred})
	require.Equal(t, http.StatusCreated, rec.Code)
	var account domain.Account
	require.NoError(t, json.Unmarshal(env.Data, &account))
	assert.Equal(t, "Rollover IRA", account.Name)
	assert.Equal(t, []string{"ira-1"}, invalidator.accounts)

	rec, env = doRequest(t, router, http.MethodGet, "/portfolio/accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var accounts []domain.Account
	require.NoError(t, json.Unmarshal(env.Data, &accounts))
	require.Len(t, accounts, 2)
	assert.Equal(t, "ira-1", accounts[0].ID)
	assert.Equal(t, "taxable-1", accounts[1].ID)

	rec, _ = doRequest(t, router, http.MethodPost, "/portfolio/accounts",
		domain.Account{ID: "roth-1", Type: "ROTH"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHoldings(t *testing.T) {
	router, invalidator := setupRouter(t)

	rec, env := doRequest(t, router, http.MethodGet, "/portfolio/accounts/taxable-1/holdings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var holdings portfolio.Holdings
	require.NoError(t, json.Unmarshal(env.Data, &holdings))
	require.Len(t, holdings.Positions, 2)
	assert.True(t, holdings.TotalValue.Equal(decimal.NewFromInt(62000)), holdings.TotalValue.String())

	// A live quote overrides the stored security price
	rec, _ = doRequest(t, router, http.MethodPut, "/portfolio/quotes/vti", QuoteRequest{Price: decimal.NewFromInt(210)})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, invalidator.all)

	rec, env = doRequest(t, router, http.MethodGet, "/portfolio/holdings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &holdings))
	assert.True(t, holdings.TotalValue.Equal(decimal.NewFromInt(60000)), holdings.TotalValue.String())

	rec, _ = doRequest(t, router, http.MethodGet, "/portfolio/accounts/nope/holdings", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPositions(t *testing.T) {
	router, invalidator := setupRouter(t)

	rec, _ := doRequest(t, router, http.MethodPut, "/portfolio/accounts/taxable-1/positions/itot",
		PositionRequest{Quantity: decimal.NewFromInt(10), CostBasisPerShare: decimal.NewFromInt(100)})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doRequest(t, router, http.MethodPut, "/portfolio/accounts/taxable-1/positions/itot",
		PositionRequest{Quantity: decimal.NewFromInt(-1)})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = doRequest(t, router, http.MethodPut, "/portfolio/accounts/missing/positions/itot",
		PositionRequest{Quantity: decimal.NewFromInt(1)})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env := doRequest(t, router, http.MethodGet, "/portfolio/accounts/taxable-1/holdings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var holdings portfolio.Holdings
	require.NoError(t, json.Unmarshal(env.Data, &holdings))
	assert.Len(t, holdings.Positions, 3)

	rec, _ = doRequest(t, router, http.MethodDelete, "/portfolio/accounts/taxable-1/positions/ITOT", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"taxable-1", "taxable-1"}, invalidator.accounts)
}

func TestSecurities(t *testing.T) {
	router, invalidator := setupRouter(t)

	rec, _ := doRequest(t, router, http.MethodGet, "/portfolio/securities/ITOT", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env := doRequest(t, router, http.MethodPut, "/portfolio/securities/itot",
		domain.Security{Name: "iShares Core S&P Total", Price: decimal.NewFromInt(120), AssetType: domain.AssetTypeETF})
	require.Equal(t, http.StatusOK, rec.Code)
	var security domain.Security
	require.NoError(t, json.Unmarshal(env.Data, &security))
	assert.Equal(t, "ITOT", security.Ticker)
	assert.True(t, security.Price.Equal(decimal.NewFromInt(120)))
	assert.Equal(t, 1, invalidator.all)

	rec, _ = doRequest(t, router, http.MethodGet, "/portfolio/securities/itot", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
