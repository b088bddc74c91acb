// Package metrics exposes Prometheus instruments for the interview flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "interviewer"

// Metrics implements the interview recorder on top of Prometheus collectors.
type Metrics struct {
	sessionsStarted   prometheus.Counter
	sessionsCompleted prometheus.Counter
	sessionsAbandoned prometheus.Counter
	answersScored     prometheus.Counter
	outOfSequence     prometheus.Counter
	stepsInFlight     prometheus.Gauge
	compositeScores   prometheus.Histogram
	providerLatency   *prometheus.HistogramVec
	providerFailures  *prometheus.CounterVec
	providerFallbacks *prometheus.CounterVec
	eventsPublished   *prometheus.CounterVec
}

// New registers all collectors with reg. Pass prometheus.DefaultRegisterer in production and a
// fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		sessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Interview sessions started.",
		}),
		sessionsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Interview sessions that answered every step.",
		}),
		sessionsAbandoned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_abandoned_total",
			Help:      "Interview sessions abandoned before completion.",
		}),
		answersScored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_scored_total",
			Help:      "Answers scored and committed.",
		}),
		outOfSequence: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "out_of_sequence_total",
			Help:      "Submissions rejected because they did not target the current step.",
		}),
		stepsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "steps_in_flight",
			Help:      "Answer submissions currently being processed.",
		}),
		compositeScores: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "composite_score",
			Help:      "Distribution of fused answer scores.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		providerLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Latency of AI collaborator calls.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"provider", "operation"}),
		providerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_call_failures_total",
			Help:      "AI collaborator calls that failed or timed out.",
		}, []string{"provider", "operation"}),
		providerFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_fallbacks_total",
			Help:      "Neutral or fallback values used instead of a collaborator result.",
		}, []string{"provider", "operation"}),
		eventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events handed to the publisher by result.",
		}, []string{"type", "result"}),
	}
}

func (m *Metrics) SessionStarted() { m.sessionsStarted.Inc() }
func (m *Metrics) SessionCompleted() { m.sessionsCompleted.Inc() }
func (m *Metrics) SessionAbandoned() { m.sessionsAbandoned.Inc() }
func (m *Metrics) OutOfSequence() { m.outOfSequence.Inc() }
func (m *Metrics) StepStarted() { m.stepsInFlight.Inc() }
func (m *Metrics) StepFinished() { m.stepsInFlight.Dec() }

func (m *Metrics) AnswerScored(composite float64) {
	m.answersScored.Inc()
	m.compositeScores.Observe(composite)
}

func (m *Metrics) ProviderCall(provider, operation string, seconds float64, failed bool) {
	m.providerLatency.WithLabelValues(provider, operation).Observe(seconds)
	if failed {
		m.providerFailures.WithLabelValues(provider, operation).Inc()
	}
}

func (m *Metrics) ProviderFallback(provider, operation string) {
	m.providerFallbacks.WithLabelValues(provider, operation).Inc()
}

// EventPublished counts a domain event delivery attempt.
func (m *Metrics) EventPublished(eventType string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.eventsPublished.WithLabelValues(eventType, result).Inc()
}
