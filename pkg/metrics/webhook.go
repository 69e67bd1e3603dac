package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Webhook outcomes, used as the "outcome" label.
const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
	OutcomeError     = "error"
	OutcomeRejected  = "rejected"
)

// WebhookMetrics counts inbound provider events and how long dispatch took.
type WebhookMetrics struct {
	events   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	degraded *prometheus.CounterVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Inbound webhook events by provider, type and outcome.",
	}, []string{"provider", "type", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "processing_seconds",
		Help:      "Time spent dispatching a verified webhook event.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider", "type"})
	degraded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "degraded_steps_total",
		Help:      "Best-effort steps that failed after the core write committed.",
	}, []string{"step"})
	reg.MustRegister(events, duration, degraded)
	return &WebhookMetrics{events: events, duration: duration, degraded: degraded}
}

// Observe records one handled event.
func (w *WebhookMetrics) Observe(provider, eventType, outcome string, duration time.Duration) {
	if w == nil || w.events == nil {
		return
	}
	provider = normalizeLabel(provider)
	eventType = normalizeLabel(eventType)
	w.events.WithLabelValues(provider, eventType, normalizeLabel(outcome)).Inc()
	if duration > 0 {
		w.duration.WithLabelValues(provider, eventType).Observe(duration.Seconds())
	}
}

// IncDegraded counts a soft failure such as a fulfillment or email error.
func (w *WebhookMetrics) IncDegraded(step string) {
	if w == nil || w.degraded == nil {
		return
	}
	w.degraded.WithLabelValues(normalizeLabel(step)).Inc()
}
