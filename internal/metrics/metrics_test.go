package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordInterviewFlow(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SessionStarted()
	m.StepStarted()
	m.AnswerScored(7.25)
	m.StepFinished()
	m.StepStarted()
	m.SessionCompleted()
	m.SessionAbandoned()
	m.OutOfSequence()
	m.OutOfSequence()

	if got := testutil.ToFloat64(m.sessionsStarted); got != 1 {
		t.Fatalf("sessions started = %v", got)
	}
	if got := testutil.ToFloat64(m.sessionsCompleted); got != 1 {
		t.Fatalf("sessions completed = %v", got)
	}
	if got := testutil.ToFloat64(m.sessionsAbandoned); got != 1 {
		t.Fatalf("sessions abandoned = %v", got)
	}
	if got := testutil.ToFloat64(m.answersScored); got != 1 {
		t.Fatalf("answers scored = %v", got)
	}
	if got := testutil.ToFloat64(m.outOfSequence); got != 2 {
		t.Fatalf("out of sequence = %v", got)
	}
	if got := testutil.ToFloat64(m.stepsInFlight); got != 1 {
		t.Fatalf("steps in flight = %v", got)
	}
}

func TestMetricsProviderCalls(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ProviderCall("gemini", "judge_answer", 0.4, false)
	m.ProviderCall("gemini", "judge_answer", 20, true)
	m.ProviderFallback("gemini", "judge_answer")
	m.EventPublished("interview.started", true)
	m.EventPublished("interview.started", false)

	if got := testutil.ToFloat64(m.providerFailures.WithLabelValues("gemini", "judge_answer")); got != 1 {
		t.Fatalf("provider failures = %v", got)
	}
	if got := testutil.ToFloat64(m.providerFallbacks.WithLabelValues("gemini", "judge_answer")); got != 1 {
		t.Fatalf("provider fallbacks = %v", got)
	}
	if got := testutil.ToFloat64(m.eventsPublished.WithLabelValues("interview.started", "error")); got != 1 {
		t.Fatalf("failed events = %v", got)
	}

	expected := `
# HELP interviewer_provider_call_failures_total AI collaborator calls that failed or timed out.
# TYPE interviewer_provider_call_failures_total counter
interviewer_provider_call_failures_total{operation="judge_answer",provider="gemini"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "interviewer_provider_call_failures_total"); err != nil {
		t.Fatalf("unexpected metrics output: %v", err)
	}
	if n := testutil.CollectAndCount(m.providerLatency); n != 1 {
		t.Fatalf("expected one latency series, got %d", n)
	}
}

func TestNewRegistersOnSeparateRegistries(t *testing.T) {
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
