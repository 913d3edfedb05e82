package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/rebalancer/internal/modules/harvesting"
	"github.com/aristath/rebalancer/internal/modules/orders"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHarvestObserver(t *testing.T) {
	r := NewRegistry()

	r.SleeveNotFound("taxable-1", "ARKK")
	r.SleeveNotFound("taxable-1", "QQQ")
	r.ProposalsGenerated(harvesting.Summary{
		Sells:           2,
		Buys:            1,
		Blocked:         1,
		HarvestableLoss: decimal.NewFromInt(-9000),
		ExecutableLoss:  decimal.NewFromInt(-6000),
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(r.SleeveNotFoundTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.ProposalsTotal.WithLabelValues("sell")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ProposalsTotal.WithLabelValues("buy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ProposalsTotal.WithLabelValues("blocked")))
	assert.Equal(t, 9000.0, testutil.ToFloat64(r.HarvestableLoss))
	assert.Equal(t, 6000.0, testutil.ToFloat64(r.ExecutableLoss))
}

func TestOrderObserver(t *testing.T) {
	r := NewRegistry()

	r.OrdersPromoted(2, 1, 0)
	r.OrdersPromoted(0, 2, 1)
	r.OrderStatusChanged(orders.StatusPreviewOK)
	r.OrderStatusChanged(orders.StatusWorking)
	r.OrderStatusChanged(orders.StatusWorking)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.OrdersPromotedTotal.WithLabelValues("created")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.OrdersPromotedTotal.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.OrdersPromotedTotal.WithLabelValues("rejected")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.OrderTransitions.WithLabelValues("WORKING")))
}

func TestObserveJobAndRequest(t *testing.T) {
	r := NewRegistry()

	r.ObserveJob("harvest-scan", 120*time.Millisecond, nil)
	r.ObserveJob("harvest-scan", 80*time.Millisecond, errors.New("boom"))
	r.ObserveRequest(http.MethodGet, http.StatusOK, 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.JobRunsTotal.WithLabelValues("harvest-scan", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.JobRunsTotal.WithLabelValues("harvest-scan", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.HTTPRequestsTotal.WithLabelValues("GET", "200")))
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.OrderStatusChanged(orders.StatusFilled)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `rebalancer_order_transitions_total{status="FILLED"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
