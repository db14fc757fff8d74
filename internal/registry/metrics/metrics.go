// Package metrics exposes the registry's Prometheus instrumentation:
// transition counters, claim contention, and the pause gauge. Grounded on
// the teacher's deploy/exporter submodule and the wider pack's use of
// github.com/prometheus/client_golang for process instrumentation.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the registry's collectors and registers them on
// construction, in the teacher's style of a single place owning wiring.
type Registry struct {
	transitions   *prometheus.CounterVec
	claimAttempts *prometheus.CounterVec
	pauseGauge    prometheus.Gauge
}

// New creates and registers the registry's collectors against reg.
func New(reg prometheus.Registerer) *Registry {
	m := &Registry{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "im2_registry",
			Name:      "transitions_total",
			Help:      "Job transitions by origin and destination stage.",
		}, []string{"from", "to"}),
		claimAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "im2_registry",
			Name:      "claim_attempts_total",
			Help:      "Worker claim attempts by outcome (won, contended).",
		}, []string{"outcome"}),
		pauseGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "im2_registry",
			Name:      "paused",
			Help:      "1 if the pipeline pause switch is on, 0 otherwise.",
		}),
	}
	reg.MustRegister(m.transitions, m.claimAttempts, m.pauseGauge)
	return m
}

// ObserveTransition records a committed (non-idempotent) transition.
func (m *Registry) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// ObserveClaim records a claim attempt's outcome ("won" or "contended").
func (m *Registry) ObserveClaim(outcome string) {
	if m == nil {
		return
	}
	m.claimAttempts.WithLabelValues(outcome).Inc()
}

// SetPaused reflects the current pause switch state.
func (m *Registry) SetPaused(paused bool) {
	if m == nil {
		return
	}
	if paused {
		m.pauseGauge.Set(1)
	} else {
		m.pauseGauge.Set(0)
	}
}
