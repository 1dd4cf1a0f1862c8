package app

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/example/charkeep/internal/ports/primary"
)

// Metrics holds the Prometheus collectors updated by the coordinator.
type Metrics struct {
	// flushes counts flush attempts.
	// Labels: trigger, outcome (persisted, skipped, failed)
	flushes *prometheus.CounterVec

	// migrations counts first writes that registered a user.
	migrations prometheus.Counter

	// flushDuration measures flushes that reached the store.
	// Labels: trigger
	flushDuration *prometheus.HistogramVec

	// sessions tracks connected sessions.
	sessions prometheus.Gauge
}

// NewMetrics registers the collectors with reg. A nil reg leaves them
// unregistered, which tests use to avoid global state.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		flushes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "charkeep",
			Name:      "flush_total",
			Help:      "Flush attempts by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		migrations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "charkeep",
			Name:      "migrations_total",
			Help:      "Users whose first server-side record was written",
		}),
		flushDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "charkeep",
			Name:      "flush_duration_seconds",
			Help:      "Time spent persisting one record",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"trigger"}),
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "charkeep",
			Name:      "sessions_active",
			Help:      "Connected sessions currently tracked",
		}),
	}
}

func (m *Metrics) observeFlush(trigger, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.flushes.WithLabelValues(trigger, outcome).Inc()
	if outcome != primary.OutcomeSkipped {
		m.flushDuration.WithLabelValues(trigger).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) observeMigration() {
	if m == nil {
		return
	}
	m.migrations.Inc()
}

func (m *Metrics) setSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}
