// Package metrics exposes agent counters over Prometheus. Each agent owns a
// registry, so several agents in one process never collide. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/authguard/internal/model"
)

const namespace = "authguard"

// Flush outcomes.
const (
	FlushSent       = "sent"
	FlushSkipped    = "skipped_empty"
	FlushSuppressed = "suppressed"
	FlushForbidden  = "forbidden"
	FlushFailed     = "failed"
)

// Metrics holds the agent collectors.
type Metrics struct {
	registry *prometheus.Registry

	flushes      *prometheus.CounterVec
	flushLatency prometheus.Histogram
	decisions    *prometheus.CounterVec
	events       *prometheus.CounterVec
	recoveries   *prometheus.CounterVec
	state        *prometheus.GaugeVec
}

// New creates collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		flushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "sync", Name: "flushes_total", Help: "Flush cycles by outcome."},
			[]string{"outcome"},
		),
		flushLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{Namespace: namespace, Subsystem: "sync", Name: "request_seconds", Help: "Latency of /v1/verify requests.", Buckets: prometheus.DefBuckets},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "enforce", Name: "decisions_total", Help: "Decisions received by verdict."},
			[]string{"verdict"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "capture", Name: "events_total", Help: "Input events by kind and capture result."},
			[]string{"kind", "result"},
		),
		recoveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "recovery", Name: "attempts_total", Help: "Recovery attempts by result."},
			[]string{"result"},
		),
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Namespace: namespace, Subsystem: "enforce", Name: "state", Help: "1 for the current enforcement state, 0 otherwise."},
			[]string{"state"},
		),
	}
	m.registry.MustRegister(m.flushes, m.flushLatency, m.decisions, m.events, m.recoveries, m.state)
	m.SetState(model.Active)
	return m
}

// Registry returns the underlying registry, for callers that add their own
// collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Flush counts one flush cycle. latency is observed only for cycles that
// reached the network.
func (m *Metrics) Flush(outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.flushes.WithLabelValues(outcome).Inc()
	if latency > 0 {
		m.flushLatency.Observe(latency.Seconds())
	}
}

// Decision counts a decision by verdict.
func (m *Metrics) Decision(v model.Verdict) {
	if m == nil {
		return
	}
	label := string(v)
	if !v.Known() {
		label = "invalid"
	}
	m.decisions.WithLabelValues(label).Inc()
}

// EventInvalid labels events that failed validation. Their kind is not
// used as a label since callers may send arbitrary values.
const EventInvalid = "invalid"

// Event counts one input event.
func (m *Metrics) Event(kind model.EventKind, result string) {
	if m == nil {
		return
	}
	label := string(kind)
	switch kind {
	case model.KeyDown, model.KeyUp, model.PointerMove, model.Scroll:
	default:
		label = EventInvalid
	}
	if result == EventInvalid {
		label = EventInvalid
	}
	m.events.WithLabelValues(label, result).Inc()
}

// Recovery counts one recovery attempt.
func (m *Metrics) Recovery(result string) {
	if m == nil {
		return
	}
	m.recoveries.WithLabelValues(result).Inc()
}

// SetState marks s as the current state.
func (m *Metrics) SetState(s model.State) {
	if m == nil {
		return
	}
	for _, st := range []model.State{model.Active, model.Locked, model.Verifying} {
		v := 0.0
		if st == s {
			v = 1
		}
		m.state.WithLabelValues(st.String()).Set(v)
	}
}
