package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config configures metric const labels.
type Config struct {
	ServiceName string
	Environment string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	gatewayOps    *prometheus.CounterVec
	ledgerEntries *prometheus.CounterVec
	payoutBatches *prometheus.CounterVec
	rateLimited   *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New builds the metric instruments on a dedicated registry.
func New(cfg Config) (*Metrics, error) {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "fanstack"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	gatewayOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "fanstack_gateway_operations_total",
		Help:        "Payment gateway calls by operation and outcome.",
		ConstLabels: constLabels,
	}, []string{"operation", "outcome"})
	ledgerEntries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "fanstack_ledger_entries_total",
		Help:        "Earnings ledger entries recorded by source type.",
		ConstLabels: constLabels,
	}, []string{"source_type"})
	payoutBatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "fanstack_payout_batches_total",
		Help:        "Payout batch runs by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	rateLimited := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "fanstack_rate_limit_denied_total",
		Help:        "Requests denied by the token bucket limiter.",
		ConstLabels: constLabels,
	}, []string{"endpoint"})

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "fanstack_http_requests_total",
		Help:        "HTTP requests by method, route and status.",
		ConstLabels: constLabels,
	}, []string{"method", "route", "status"})
	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "fanstack_http_request_duration_seconds",
		Help:        "HTTP request latency by route.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ConstLabels: constLabels,
	}, []string{"method", "route"})

	registry := prometheus.NewRegistry()
	for _, collector := range []prometheus.Collector{
		gatewayOps,
		ledgerEntries,
		payoutBatches,
		rateLimited,
		httpRequests,
		httpDuration,
	} {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}

	return &Metrics{
		gatewayOps:    gatewayOps,
		ledgerEntries: ledgerEntries,
		payoutBatches: payoutBatches,
		rateLimited:   rateLimited,
		httpRequests:  httpRequests,
		httpDuration:  httpDuration,
		registry:      registry,
	}, nil
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// GinMiddleware records request counts and latency per route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordGatewayOperation increments gateway call counts.
func (m *Metrics) RecordGatewayOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.gatewayOps.WithLabelValues(strings.TrimSpace(operation), strings.TrimSpace(outcome)).Inc()
}

// RecordLedgerEntry increments ledger entry counts.
func (m *Metrics) RecordLedgerEntry(sourceType string) {
	if m == nil {
		return
	}
	m.ledgerEntries.WithLabelValues(strings.TrimSpace(sourceType)).Inc()
}

// RecordPayoutBatch increments payout batch counts by outcome.
func (m *Metrics) RecordPayoutBatch(outcome string) {
	if m == nil {
		return
	}
	m.payoutBatches.WithLabelValues(strings.TrimSpace(outcome)).Inc()
}

// RecordRateLimitDenied increments deny counts for an endpoint.
func (m *Metrics) RecordRateLimitDenied(endpoint string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(strings.TrimSpace(endpoint)).Inc()
}
