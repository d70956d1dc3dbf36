package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rejection reasons.
const (
	ReasonEventFull    = "event_full"
	ReasonDuplicate    = "duplicate"
	ReasonUnauthorized = "unauthorized"
)

// Metrics provides observability for the registration module.
// The over-capacity and duplicate rejection counters are the only audit trail
// the core keeps of refused admissions.
type Metrics struct {
	Admissions        *prometheus.CounterVec
	Rejections        *prometheus.CounterVec
	Withdrawals       prometheus.Counter
	AdmissionDuration prometheus.Histogram
}

// New registers the registration metrics with reg (nil means the default registry).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Admissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "carp_registrations_admitted_total",
			Help: "Registrations committed, by source",
		}, []string{"source"}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "carp_registrations_rejected_total",
			Help: "Registrations refused, by reason",
		}, []string{"reason"}),
		Withdrawals: factory.NewCounter(prometheus.CounterOpts{
			Name: "carp_registrations_withdrawn_total",
			Help: "Registrations removed by unregister",
		}),
		AdmissionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "carp_registration_admission_duration_seconds",
			Help:    "Duration of Register calls including retries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

func (m *Metrics) IncrementAdmitted(source string) {
	m.Admissions.WithLabelValues(source).Inc()
}

func (m *Metrics) IncrementRejected(reason string) {
	m.Rejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementWithdrawn() {
	m.Withdrawals.Inc()
}

// ObserveAdmission records the duration of a Register call started at start.
func (m *Metrics) ObserveAdmission(start time.Time) {
	m.AdmissionDuration.Observe(time.Since(start).Seconds())
}
