// Package metrics exposes Prometheus collectors for harvest scans, order flow and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/rebalancer/internal/modules/harvesting"
	"github.com/aristath/rebalancer/internal/modules/orders"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all rebalancer metrics on a private Prometheus registry
type Registry struct {
	registry *prometheus.Registry

	SleeveNotFoundTotal prometheus.Counter
	ProposalsTotal      *prometheus.CounterVec
	HarvestableLoss     prometheus.Gauge
	ExecutableLoss      prometheus.Gauge
	OrdersPromotedTotal *prometheus.CounterVec
	OrderTransitions    *prometheus.CounterVec
	JobRunsTotal        *prometheus.CounterVec
	JobDuration         *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewRegistry creates and registers every collector
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		SleeveNotFoundTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rebalancer_sleeve_not_found_total",
			Help: "Harvest candidates skipped because their ticker belongs to no sleeve",
		}),
		ProposalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rebalancer_proposals_total",
			Help: "Trade proposals generated by type",
		}, []string{"type"}),
		HarvestableLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rebalancer_harvestable_loss_dollars",
			Help: "Loss the most recent scan could realize, blocked proposals included",
		}),
		ExecutableLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rebalancer_executable_loss_dollars",
			Help: "Loss the most recent scan could realize through executable proposals",
		}),
		OrdersPromotedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rebalancer_orders_promoted_total",
			Help: "Proposals promoted to draft orders by result",
		}, []string{"result"}),
		OrderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rebalancer_order_transitions_total",
			Help: "Order status transitions by target status",
		}, []string{"status"}),
		JobRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rebalancer_job_runs_total",
			Help: "Scheduled job runs by job and result",
		}, []string{"job", "result"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rebalancer_job_duration_seconds",
			Help:    "Duration of scheduled jobs in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"job"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rebalancer_http_requests_total",
			Help: "HTTP requests by method and status code",
		}, []string{"method", "code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rebalancer_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}

	r.registry.MustRegister(
		r.SleeveNotFoundTotal,
		r.ProposalsTotal,
		r.HarvestableLoss,
		r.ExecutableLoss,
		r.OrdersPromotedTotal,
		r.OrderTransitions,
		r.JobRunsTotal,
		r.JobDuration,
		r.HTTPRequestsTotal,
		r.HTTPRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Gatherer exposes the underlying registry
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler serves the registry in the Prometheus text format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// SleeveNotFound implements harvesting.Observer
func (r *Registry) SleeveNotFound(accountID, ticker string) {
	r.SleeveNotFoundTotal.Inc()
}

// ProposalsGenerated implements harvesting.Observer
func (r *Registry) ProposalsGenerated(summary harvesting.Summary) {
	r.ProposalsTotal.WithLabelValues("sell").Add(float64(summary.Sells))
	r.ProposalsTotal.WithLabelValues("buy").Add(float64(summary.Buys))
	r.ProposalsTotal.WithLabelValues("blocked").Add(float64(summary.Blocked))
	r.HarvestableLoss.Set(summary.HarvestableLoss.Abs().InexactFloat64())
	r.ExecutableLoss.Set(summary.ExecutableLoss.Abs().InexactFloat64())
}

// OrdersPromoted implements orders.Observer
func (r *Registry) OrdersPromoted(created, skipped, rejected int) {
	r.OrdersPromotedTotal.WithLabelValues("created").Add(float64(created))
	r.OrdersPromotedTotal.WithLabelValues("skipped").Add(float64(skipped))
	r.OrdersPromotedTotal.WithLabelValues("rejected").Add(float64(rejected))
}

// OrderStatusChanged implements orders.Observer
func (r *Registry) OrderStatusChanged(status orders.Status) {
	r.OrderTransitions.WithLabelValues(string(status)).Inc()
}

// ObserveJob records one scheduled job run
func (r *Registry) ObserveJob(job string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	r.JobRunsTotal.WithLabelValues(job, result).Inc()
	r.JobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// ObserveRequest records one HTTP request
func (r *Registry) ObserveRequest(method string, status int, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	r.HTTPRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

var (
	_ harvesting.Observer = (*Registry)(nil)
	_ orders.Observer     = (*Registry)(nil)
)
