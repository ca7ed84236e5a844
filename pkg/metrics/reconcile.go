package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Reconciliation outcomes.
const (
	OutcomeApplied          = "applied"
	OutcomeAlreadyConfirmed = "already_confirmed"
	OutcomeNoop             = "noop"
	OutcomeUnknownEntity    = "unknown_entity"
	OutcomeReissued         = "reissued"
	OutcomeError            = "error"
)

// ReconcileMetrics tracks reconciliation decisions and provider latency.
type ReconcileMetrics struct {
	events           *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	providerFailures *prometheus.CounterVec
}

func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	if reg == nil {
		return &ReconcileMetrics{}
	}
	m := &ReconcileMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_events_total",
			Help:      "Reconciliation decisions by source, entity and outcome.",
		}, []string{"source", "entity", "outcome"}),
		providerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Latency of payment provider calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider", "operation"}),
		providerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_request_failures_total",
			Help:      "Failed payment provider calls.",
		}, []string{"provider", "operation"}),
	}
	reg.MustRegister(m.events, m.providerDuration, m.providerFailures)
	return m
}

// IncEvent counts one reconciliation decision.
func (m *ReconcileMetrics) IncEvent(source, entity, outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(source), normalizeLabel(entity), normalizeLabel(outcome)).Inc()
}

// ObserveProvider records a provider call. A non-nil err also bumps the
// failure counter.
func (m *ReconcileMetrics) ObserveProvider(provider, operation string, took time.Duration, err error) {
	if m == nil || m.providerDuration == nil {
		return
	}
	provider, operation = normalizeLabel(provider), normalizeLabel(operation)
	m.providerDuration.WithLabelValues(provider, operation).Observe(took.Seconds())
	if err != nil {
		m.providerFailures.WithLabelValues(provider, operation).Inc()
	}
}
