package interview

import (
	"errors"
	"testing"
	"time"
)

func TestSessionRecordScore(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	s := newSession("s1", Job{Description: " Go "}, 3, start)

	if s.Job.Description != "Go" {
		t.Fatalf("job must be normalized, got %q", s.Job.Description)
	}

	for i, score := range []float64{7.25, 8.5, 6} {
		at := start.Add(time.Duration(i+1) * time.Minute)
		if err := s.recordScore(score, at); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if err := s.Validate(); err != nil {
			t.Fatalf("invariants broken after step %d: %v", i+1, err)
		}
	}

	if s.Status != StatusCompleted || s.CompletedAt == nil {
		t.Fatalf("expected completed session, got %+v", s)
	}
	if s.CumulativeScore != 21.75 || s.Average() != 7.25 {
		t.Fatalf("unexpected totals %v / %v", s.CumulativeScore, s.Average())
	}
	if err := s.recordScore(5, start); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestSessionCloneIsDeep(t *testing.T) {
	s := newSession("s1", Job{Description: "x"}, 2, time.Now())
	if err := s.recordScore(5, time.Now()); err != nil {
		t.Fatalf("record: %v", err)
	}

	c := s.Clone()
	c.ScoreHistory[0] = 9
	if s.ScoreHistory[0] != 5 {
		t.Fatal("clone shares score history")
	}
}

func TestSessionAbandon(t *testing.T) {
	s := newSession("s1", Job{Description: "x"}, 2, time.Now())
	if err := s.abandon(time.Now()); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if !s.Status.Terminal() {
		t.Fatal("abandoned must be terminal")
	}
	if err := s.abandon(time.Now()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestSessionValidate(t *testing.T) {
	cases := []struct {
		name string
		s    Session
	}{
		{name: "history mismatch", s: Session{Status: StatusInProgress, StepIndex: 1, TotalSteps: 3}},
		{name: "step beyond total", s: Session{Status: StatusInProgress, StepIndex: 4, TotalSteps: 3, ScoreHistory: make([]float64, 4)}},
		{name: "completed early", s: Session{Status: StatusCompleted, StepIndex: 1, TotalSteps: 3, ScoreHistory: []float64{1}}},
		{name: "finished but in progress", s: Session{Status: StatusInProgress, StepIndex: 3, TotalSteps: 3, ScoreHistory: make([]float64, 3)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.s.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
