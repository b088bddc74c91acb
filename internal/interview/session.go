package interview

import (
	"fmt"
	"strings"
	"time"

	"github.com/spigell/interviewer/internal/scoring"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusAbandoned  Status = "abandoned"
)

// Terminal reports whether no further transition may leave the status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

type Origin string

const (
	OriginPredefined Origin = "predefined"
	OriginGenerated  Origin = "generated"
)

// Job is the context a session is interviewing for. It never changes after start.
type Job struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Requirements string `json:"requirements"`
}

// Empty reports whether the job carries no description and no requirements.
func (j Job) Empty() bool {
	return strings.TrimSpace(j.Description) == "" && strings.TrimSpace(j.Requirements) == ""
}

func (j Job) normalized() Job {
	return Job{
		Title:        strings.TrimSpace(j.Title),
		Description:  strings.TrimSpace(j.Description),
		Requirements: strings.TrimSpace(j.Requirements),
	}
}

type Session struct {
	ID              string
	Job             Job
	Status          Status
	StepIndex       int
	TotalSteps      int
	ScoreHistory    []float64
	CumulativeScore float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

type Question struct {
	SessionID  string
	Order      int
	Text       string
	Difficulty scoring.Difficulty
	Origin     Origin
	CreatedAt  time.Time
}

type Answer struct {
	SessionID      string
	Order          int
	Text           string
	HasAudio       bool
	HasVideo       bool
	ContentScore   float64
	AudioScore     *float64
	VideoScore     *float64
	CompositeScore float64
	Feedback       string
	CreatedAt      time.Time
}

func newSession(id string, job Job, totalSteps int, now time.Time) *Session {
	return &Session{
		ID:           id,
		Job:          job.normalized(),
		Status:       StatusInProgress,
		TotalSteps:   totalSteps,
		ScoreHistory: []float64{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Clone returns a deep copy so callers can prepare a transition without touching the original.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}

	c := *s
	c.ScoreHistory = append([]float64(nil), s.ScoreHistory...)
	if s.CompletedAt != nil {
		at := *s.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

// NextOrder is the order of the question currently awaiting an answer.
func (s *Session) NextOrder() int {
	return s.StepIndex + 1
}

// Average is the final aggregate: cumulative score over the total number of steps.
func (s *Session) Average() float64 {
	if s.TotalSteps <= 0 {
		return 0
	}
	return scoring.Round(s.CumulativeScore / float64(s.TotalSteps))
}

func (s *Session) ensureActive() error {
	if s.Status != StatusInProgress {
		return fmt.Errorf("%w: session %s is %s", ErrInvalidState, s.ID, s.Status)
	}
	return nil
}

// recordScore appends a composite score for the current step and advances the session,
// completing it when the last step is answered.
func (s *Session) recordScore(score float64, now time.Time) error {
	if err := s.ensureActive(); err != nil {
		return err
	}

	s.ScoreHistory = append(s.ScoreHistory, score)
	s.StepIndex++
	s.CumulativeScore = scoring.Round(s.CumulativeScore + score)
	s.UpdatedAt = now

	if s.StepIndex == s.TotalSteps {
		s.Status = StatusCompleted
		s.CompletedAt = &now
	}
	return nil
}

func (s *Session) abandon(now time.Time) error {
	if err := s.ensureActive(); err != nil {
		return err
	}

	s.Status = StatusAbandoned
	s.UpdatedAt = now
	return nil
}

// Validate checks the structural invariants of a session record.
func (s *Session) Validate() error {
	switch {
	case s.StepIndex < 0 || s.StepIndex > s.TotalSteps:
		return fmt.Errorf("step index %d outside [0, %d]", s.StepIndex, s.TotalSteps)
	case len(s.ScoreHistory) != s.StepIndex:
		return fmt.Errorf("score history has %d entries for step index %d", len(s.ScoreHistory), s.StepIndex)
	case (s.Status == StatusCompleted) != (s.StepIndex == s.TotalSteps):
		return fmt.Errorf("status %s does not match step %d of %d", s.Status, s.StepIndex, s.TotalSteps)
	}
	return nil
}
