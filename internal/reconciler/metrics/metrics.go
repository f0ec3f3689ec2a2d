package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the consent reconciler.
type Metrics struct {
	// Events by gating outcome
	EventOutcome *prometheus.CounterVec

	// Readiness transitions by trigger ("read", "timeout")
	ReadyTransitions *prometheus.CounterVec

	// Consent changes by purpose and decision
	ConsentChanges *prometheus.CounterVec

	// Current queue depth while pending
	QueueDepth prometheus.Gauge

	// Reconcile latency from change notification to applied configuration
	ReconcileLatency prometheus.Histogram
}

// New creates a Metrics instance with all reconciler metrics registered on the
// default registry.
func New() *Metrics {
	return &Metrics{
		EventOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consentgate_events_total",
			Help: "Total telemetry events by gating outcome",
		}, []string{"outcome"}), // outcome: "passed", "queued", "blocked", "replayed", "discarded"

		ReadyTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consentgate_ready_transitions_total",
			Help: "Transitions out of the pending state by trigger",
		}, []string{"trigger"}),

		ConsentChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consentgate_consent_changes_total",
			Help: "Observed consent changes by purpose and decision",
		}, []string{"purpose", "decision"}),

		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "consentgate_queue_depth",
			Help: "Number of telemetry events held while consent is pending",
		}),

		ReconcileLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "consentgate_reconcile_duration_seconds",
			Help:    "Duration of a full reconcile pass after a consent change",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
	}
}

// IncEventOutcome records one gated telemetry event.
func (m *Metrics) IncEventOutcome(outcome string) {
	if m != nil {
		m.EventOutcome.WithLabelValues(outcome).Inc()
	}
}

// IncReadyTransition records a pending-to-ready transition.
func (m *Metrics) IncReadyTransition(trigger string) {
	if m != nil {
		m.ReadyTransitions.WithLabelValues(trigger).Inc()
	}
}

// IncConsentChange records an observed consent change.
func (m *Metrics) IncConsentChange(purpose, decision string) {
	if m != nil {
		m.ConsentChanges.WithLabelValues(purpose, decision).Inc()
	}
}

// SetQueueDepth records the current pending queue size.
func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}

// ObserveReconcileLatency records the duration of a reconcile pass.
func (m *Metrics) ObserveReconcileLatency(d time.Duration) {
	if m != nil {
		m.ReconcileLatency.Observe(d.Seconds())
	}
}
