package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for identity resolution.
type Metrics struct {
	ParticipantsCreated prometheus.Counter
	NamesEnriched       prometheus.Counter
	ResolveRaces        prometheus.Counter
	AccountsClaimed     prometheus.Counter
	ResolveDuration     prometheus.Histogram
}

// New registers the identity metrics with reg (nil means the default registry).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		ParticipantsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "carp_participants_created_total",
			Help: "Participants created by identity resolution",
		}),
		NamesEnriched: factory.NewCounter(prometheus.CounterOpts{
			Name: "carp_participant_names_enriched_total",
			Help: "Stored participant names replaced by a more complete claimed name",
		}),
		ResolveRaces: factory.NewCounter(prometheus.CounterOpts{
			Name: "carp_resolve_races_total",
			Help: "Resolutions that lost a concurrent create and re-read the winner",
		}),
		AccountsClaimed: factory.NewCounter(prometheus.CounterOpts{
			Name: "carp_participant_accounts_claimed_total",
			Help: "Shadow profiles claimed by an account",
		}),
		ResolveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "carp_resolve_duration_seconds",
			Help:    "Duration of Resolve operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementParticipantsCreated() { m.ParticipantsCreated.Inc() }
func (m *Metrics) IncrementNamesEnriched()       { m.NamesEnriched.Inc() }
func (m *Metrics) IncrementResolveRaces()        { m.ResolveRaces.Inc() }
func (m *Metrics) IncrementAccountsClaimed()     { m.AccountsClaimed.Inc() }

// ObserveResolve records the duration of a Resolve call started at start.
func (m *Metrics) ObserveResolve(start time.Time) {
	m.ResolveDuration.Observe(time.Since(start).Seconds())
}
