package interview

import (
	"context"
	"time"
)

// StepCommit is the all-or-nothing write of one answered step.
type StepCommit struct {
	// ExpectedStep is the step index the session had when the submission was checked.
	// The commit applies only if the stored session still has it and is in progress.
	ExpectedStep int
	Session      *Session
	Answer       *Answer
	// Next is nil when the step completed the session.
	Next *Question
}

// Repository persists sessions with their questions and answers.
//
// Implementations report ErrSessionMissing for unknown ids and ErrStepConflict when an
// optimistic update finds the session at another step or no longer in progress.
type Repository interface {
	CreateSession(ctx context.Context, session *Session, first *Question) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListQuestions(ctx context.Context, sessionID string) ([]*Question, error)
	ListAnswers(ctx context.Context, sessionID string) ([]*Answer, error)
	CommitStep(ctx context.Context, commit *StepCommit) error
	// MarkAbandoned moves an in-progress session at expectedStep to abandoned.
	MarkAbandoned(ctx context.Context, id string, expectedStep int, at time.Time) error
	// ListIdle returns the ids of in-progress sessions not updated since before.
	ListIdle(ctx context.Context, before time.Time) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}
