package interview

import (
	"context"
	"time"
)

type EventType string

const (
	EventStarted      EventType = "interview.started"
	EventAnswerScored EventType = "interview.answer_scored"
	EventCompleted    EventType = "interview.completed"
	EventAbandoned    EventType = "interview.abandoned"
)

// Event describes a committed change of a session.
type Event struct {
	Type       EventType `json:"type"`
	SessionID  string    `json:"session_id"`
	Status     Status    `json:"status"`
	Step       int       `json:"step"`
	TotalSteps int       `json:"total_steps"`
	Score      *float64  `json:"score,omitempty"`
	Average    *float64  `json:"average,omitempty"`
	At         time.Time `json:"at"`
}

type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// Recorder receives operational measurements of the interview flow.
type Recorder interface {
	SessionStarted()
	SessionCompleted()
	SessionAbandoned()
	AnswerScored(composite float64)
	OutOfSequence()
	StepStarted()
	StepFinished()
	ProviderCall(provider, operation string, seconds float64, failed bool)
	ProviderFallback(provider, operation string)
}

type nopRecorder struct{}

func (nopRecorder) SessionStarted() {}
func (nopRecorder) SessionCompleted() {}
func (nopRecorder) SessionAbandoned() {}
func (nopRecorder) AnswerScored(float64) {}
func (nopRecorder) OutOfSequence() {}
func (nopRecorder) StepStarted() {}
func (nopRecorder) StepFinished() {}
func (nopRecorder) ProviderCall(string, string, float64, bool) {}
func (nopRecorder) ProviderFallback(string, string) {}
