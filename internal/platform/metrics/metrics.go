package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process-wide Prometheus metrics: HTTP traffic, guest
// throttling and transaction retries. Module metrics live next to their services.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	RateLimited     *prometheus.CounterVec
	TxRetries       prometheus.Counter
	TxFailures      *prometheus.CounterVec
}

// New creates and registers the process metrics with reg. A nil reg uses the
// default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "carp_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route pattern and status",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route", "status"}),
		RateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "carp_rate_limit_decisions_total",
			Help: "Guest requests throttled or let through because the limiter failed",
		}, []string{"outcome"}),
		TxRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "carp_tx_retries_total",
			Help: "Transactions re-run after a serialization failure, deadlock or dropped connection",
		}),
		TxFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "carp_tx_failures_total",
			Help: "Transactions that failed with an infrastructure error, by kind",
		}, []string{"kind"}),
	}
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, start time.Time) {
	m.RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
}

// IncrementRateLimited records a limiter decision other than a plain allow.
func (m *Metrics) IncrementRateLimited(outcome string) {
	m.RateLimited.WithLabelValues(outcome).Inc()
}

// IncrementTxRetries records one transaction retry.
func (m *Metrics) IncrementTxRetries() {
	m.TxRetries.Inc()
}

// IncrementTxFailure records a transaction that gave up.
func (m *Metrics) IncrementTxFailure(kind string) {
	m.TxFailures.WithLabelValues(kind).Inc()
}

// Handler serves the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}
