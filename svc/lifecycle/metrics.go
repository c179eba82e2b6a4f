package lifecycle

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for fsm_transitions_total.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Metrics holds the transition collectors. A nil *Metrics records nothing.
type Metrics struct {
	TransitionsTotal   *prometheus.CounterVec
	TransitionDuration *prometheus.HistogramVec
}

// NewMetrics registers the collectors with registerer, or with the default
// registerer when nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &Metrics{
		TransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsm_transitions_total",
				Help: "Transition attempts by entity type and outcome",
			},
			[]string{"entity_type", "outcome"},
		),
		TransitionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fsm_transition_duration_seconds",
				Help:    "Transition latency including hooks and persistence",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"entity_type"},
		),
	}
}

func (m *Metrics) observe(entityType, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(entityType, outcome).Inc()
	m.TransitionDuration.WithLabelValues(entityType).Observe(d.Seconds())
}
