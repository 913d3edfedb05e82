package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/rebalancer/internal/clients/paper"
	"github.com/aristath/rebalancer/internal/database"
	"github.com/aristath/rebalancer/internal/modules/orders"
	"github.com/aristath/rebalancer/internal/modules/washsale"
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

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) InvalidateAll() {
	c.calls++
}

type fixture struct {
	router       http.Handler
	repo         *orders.Repository
	restrictions *washsale.Repository
	invalidator  *countingInvalidator
}

func setup(t *testing.T) *fixture {
	t.Helper()
	log := testingpkg.NopLogger()
	ledgerDB := testingpkg.NewTestDB(t, database.NameLedger)

	repo := orders.NewRepository(ledgerDB.Conn(), log)
	restrictions := washsale.NewRepository(ledgerDB.Conn(), log)
	broker := paper.NewClient(decimal.NewFromInt(1000000), log)
	service := orders.NewService(repo, broker, restrictions, log)
	invalidator := &countingInvalidator{}

	router := chi.NewRouter()
	NewHandler(service, invalidator, log).RegisterRoutes(router)

	return &fixture{router: router, repo: repo, restrictions: restrictions, invalidator: invalidator}
}

func (f *fixture) insertDraft(t *testing.T, id, key string) {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	created, err := f.repo.Insert(context.Background(), orders.Order{
		ID:                id,
		AccountID:         "taxable-1",
		Ticker:            "VTI",
		Side:              orders.SideSell,
		Quantity:          decimal.NewFromInt(100),
		LimitPrice:        decimal.NewFromInt(220),
		SleeveID:          "us-total",
		CostBasisPerShare: decimal.NewFromInt(250),
		ReplacementTicker: "ITOT",
		Reason:            "tax-loss harvest",
		Status:            orders.StatusDraft,
		IdempotencyKey:    key,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	require.NoError(t, err)
	require.True(t, created)
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
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestOrderLifecycle(t *testing.T) {
	f := setup(t)
	f.insertDraft(t, "order-1", "key-1")

	rec, env := doRequest(t, f.router, http.MethodGet, "/orders?account_id=taxable-1&status=draft", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, env.Metadata["count"])

	// A draft cannot go straight to the broker
	rec, env = doRequest(t, f.router, http.MethodPost, "/orders/order-1/submit", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, env.Error, "invalid order status transition")

	var order orders.Order
	rec, env = doRequest(t, f.router, http.MethodPost, "/orders/order-1/preview", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, orders.StatusPreviewOK, order.Status)

	rec, env = doRequest(t, f.router, http.MethodPost, "/orders/order-1/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, orders.StatusWorking, order.Status)
	assert.NotEmpty(t, order.BrokerOrderID)
	assert.NotNil(t, order.SubmittedAt)

	var summary orders.Summary
	rec, env = doRequest(t, f.router, http.MethodPost, "/orders/order-1/fills", map[string]string{"quantity": "40", "price": "220"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, orders.StatusPartiallyFilled, summary.Status)
	assert.True(t, summary.RemainingQuantity.Equal(decimal.NewFromInt(60)))

	rec, _ = doRequest(t, f.router, http.MethodPost, "/orders/order-1/fills", map[string]string{"quantity": "100", "price": "220"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, env = doRequest(t, f.router, http.MethodPost, "/orders/order-1/fills", map[string]string{"quantity": "60", "price": "220"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, orders.StatusFilled, summary.Status)
	assert.True(t, summary.RealizedPnL.Equal(decimal.NewFromInt(-3000)))
	assert.Equal(t, 2, f.invalidator.calls)

	active, err := f.restrictions.GetActive(context.Background(), time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, active)
	assert.Equal(t, "VTI", active[0].Ticker)

	var detail OrderDetail
	rec, env = doRequest(t, f.router, http.MethodGet, "/orders/order-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Len(t, detail.Executions, 2)
	assert.True(t, detail.Summary.FilledQuantity.Equal(decimal.NewFromInt(100)))
}

func TestHandleUpdateStatus(t *testing.T) {
	f := setup(t)
	f.insertDraft(t, "order-2", "key-2")

	rec, _ := doRequest(t, f.router, http.MethodPost, "/orders/order-2/status", StatusRequest{Status: "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var order orders.Order
	rec, env := doRequest(t, f.router, http.MethodPost, "/orders/order-2/status", StatusRequest{Status: "canceled", Message: "changed my mind"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, orders.StatusCanceled, order.Status)
	assert.Equal(t, "changed my mind", order.StatusMessage)

	// Terminal orders accept nothing
	rec, _ = doRequest(t, f.router, http.MethodPost, "/orders/order-2/status", StatusRequest{Status: "WORKING"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleErrors(t *testing.T) {
	f := setup(t)
	f.insertDraft(t, "order-3", "key-3")

	rec, _ := doRequest(t, f.router, http.MethodGet, "/orders/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doRequest(t, f.router, http.MethodGet, "/orders?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doRequest(t, f.router, http.MethodGet, "/orders?status=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doRequest(t, f.router, http.MethodPost, "/orders/order-3/fills", map[string]string{"quantity": "0", "price": "220"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Fills need a live order
	rec, _ = doRequest(t, f.router, http.MethodPost, "/orders/order-3/fills", map[string]string{"quantity": "1", "price": "220"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 0, f.invalidator.calls)
}
