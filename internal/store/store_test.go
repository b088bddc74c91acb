package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spigell/interviewer/internal/interview"
	"github.com/spigell/interviewer/internal/scoring"

	"go.uber.org/zap"
)

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newSQLiteForTest(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLite(filepath.Join(t.TempDir(), "db", "interviews.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func repositories(t *testing.T) map[string]interview.Repository {
	return map[string]interview.Repository{
		"memory": NewMemory(),
		"sqlite": newSQLiteForTest(t),
	}
}

func seedSession(t *testing.T, repo interview.Repository, id string, totalSteps int) *interview.Session {
	t.Helper()

	s := &interview.Session{
		ID:           id,
		Job:          interview.Job{Title: "Backend engineer", Description: "Go services", Requirements: "SQL"},
		Status:       interview.StatusInProgress,
		TotalSteps:   totalSteps,
		ScoreHistory: []float64{},
		CreatedAt:    base,
		UpdatedAt:    base,
	}
	first := &interview.Question{
		SessionID:  id,
		Order:      1,
		Text:       "Introduce yourself.",
		Difficulty: scoring.Easy,
		Origin:     interview.OriginPredefined,
		CreatedAt:  base,
	}
	if err := repo.CreateSession(context.Background(), s, first); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return s
}

func commitFor(s *interview.Session, score float64, audio *float64, next *interview.Question) *interview.StepCommit {
	updated := s.Clone()
	updated.ScoreHistory = append(updated.ScoreHistory, score)
	updated.StepIndex++
	updated.CumulativeScore += score
	updated.UpdatedAt = base.Add(time.Duration(updated.StepIndex) * time.Minute)
	if updated.StepIndex == updated.TotalSteps {
		updated.Status = interview.StatusCompleted
		at := updated.UpdatedAt
		updated.CompletedAt = &at
	}

	return &interview.StepCommit{
		ExpectedStep: s.StepIndex,
		Session:      updated,
		Answer: &interview.Answer{
			SessionID:      s.ID,
			Order:          s.StepIndex + 1,
			Text:           "an answer",
			HasAudio:       audio != nil,
			ContentScore:   score,
			AudioScore:     audio,
			CompositeScore: score,
			Feedback:       "ok",
			CreatedAt:      updated.UpdatedAt,
		},
		Next: next,
	}
}

func TestRepositoryRoundTrip(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := seedSession(t, repo, "s-1", 2)

			got, err := repo.GetSession(ctx, "s-1")
			if err != nil {
				t.Fatalf("get session: %v", err)
			}
			if got.Status != interview.StatusInProgress || got.StepIndex != 0 || len(got.ScoreHistory) != 0 {
				t.Fatalf("unexpected session: %+v", got)
			}
			if !got.CreatedAt.Equal(base) || got.Job.Requirements != "SQL" {
				t.Fatalf("unexpected stored fields: %+v", got)
			}

			audio := 6.5
			next := &interview.Question{SessionID: "s-1", Order: 2, Text: "Why us?", Difficulty: scoring.Easy, Origin: interview.OriginPredefined, CreatedAt: base}
			if err := repo.CommitStep(ctx, commitFor(s, 7.25, &audio, next)); err != nil {
				t.Fatalf("commit step: %v", err)
			}

			got, err = repo.GetSession(ctx, "s-1")
			if err != nil {
				t.Fatalf("get session: %v", err)
			}
			if got.StepIndex != 1 || len(got.ScoreHistory) != 1 || got.ScoreHistory[0] != 7.25 {
				t.Fatalf("unexpected session after commit: %+v", got)
			}
			if err := got.Validate(); err != nil {
				t.Fatalf("invariants broken: %v", err)
			}

			questions, err := repo.ListQuestions(ctx, "s-1")
			if err != nil {
				t.Fatalf("list questions: %v", err)
			}
			if len(questions) != 2 || questions[0].Order != 1 || questions[1].Text != "Why us?" {
				t.Fatalf("unexpected questions: %+v", questions)
			}

			answers, err := repo.ListAnswers(ctx, "s-1")
			if err != nil {
				t.Fatalf("list answers: %v", err)
			}
			if len(answers) != 1 {
				t.Fatalf("expected 1 answer, got %d", len(answers))
			}
			if answers[0].AudioScore == nil || *answers[0].AudioScore != 6.5 || answers[0].VideoScore != nil {
				t.Fatalf("unexpected media scores: %+v", answers[0])
			}
			if !answers[0].HasAudio || answers[0].HasVideo {
				t.Fatalf("unexpected media flags: %+v", answers[0])
			}

			if err := repo.CommitStep(ctx, commitFor(got, 9, nil, nil)); err != nil {
				t.Fatalf("final commit: %v", err)
			}
			got, err = repo.GetSession(ctx, "s-1")
			if err != nil {
				t.Fatalf("get session: %v", err)
			}
			if got.Status != interview.StatusCompleted || got.CompletedAt == nil {
				t.Fatalf("expected completed session, got %+v", got)
			}
		})
	}
}

func TestRepositoryStepConflict(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := seedSession(t, repo, "s-2", 5)

			if err := repo.CommitStep(ctx, commitFor(s, 5, nil, nil)); err != nil {
				t.Fatalf("commit step: %v", err)
			}

			// Same expected step again: the stored session has moved on.
			err := repo.CommitStep(ctx, commitFor(s, 5, nil, nil))
			if !errors.Is(err, interview.ErrStepConflict) {
				t.Fatalf("expected ErrStepConflict, got %v", err)
			}

			answers, err := repo.ListAnswers(ctx, "s-2")
			if err != nil {
				t.Fatalf("list answers: %v", err)
			}
			if len(answers) != 1 {
				t.Fatalf("expected the rejected commit to leave 1 answer, got %d", len(answers))
			}
		})
	}
}

func TestRepositoryMissingSession(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := repo.GetSession(ctx, "nope"); !errors.Is(err, interview.ErrSessionMissing) {
				t.Fatalf("expected ErrSessionMissing, got %v", err)
			}

			ghost := &interview.Session{ID: "nope", TotalSteps: 3, ScoreHistory: []float64{}, Status: interview.StatusInProgress}
			if err := repo.CommitStep(ctx, commitFor(ghost, 5, nil, nil)); !errors.Is(err, interview.ErrSessionMissing) {
				t.Fatalf("expected ErrSessionMissing on commit, got %v", err)
			}

			if err := repo.MarkAbandoned(ctx, "nope", 0, base); !errors.Is(err, interview.ErrSessionMissing) {
				t.Fatalf("expected ErrSessionMissing on abandon, got %v", err)
			}
		})
	}
}

func TestRepositoryAbandonAndIdle(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedSession(t, repo, "idle", 3)
			fresh := seedSession(t, repo, "fresh", 3)
			if err := repo.CommitStep(ctx, commitFor(fresh, 4, nil, nil)); err != nil {
				t.Fatalf("commit step: %v", err)
			}

			ids, err := repo.ListIdle(ctx, base.Add(30*time.Second))
			if err != nil {
				t.Fatalf("list idle: %v", err)
			}
			if len(ids) != 1 || ids[0] != "idle" {
				t.Fatalf("expected only the idle session, got %v", ids)
			}

			if err := repo.MarkAbandoned(ctx, "idle", 0, base.Add(time.Hour)); err != nil {
				t.Fatalf("mark abandoned: %v", err)
			}
			if err := repo.MarkAbandoned(ctx, "idle", 0, base.Add(time.Hour)); !errors.Is(err, interview.ErrStepConflict) {
				t.Fatalf("expected ErrStepConflict for terminal session, got %v", err)
			}

			got, err := repo.GetSession(ctx, "idle")
			if err != nil {
				t.Fatalf("get session: %v", err)
			}
			if got.Status != interview.StatusAbandoned {
				t.Fatalf("expected abandoned, got %s", got.Status)
			}

			ids, err = repo.ListIdle(ctx, base.Add(24*time.Hour))
			if err != nil {
				t.Fatalf("list idle: %v", err)
			}
			if len(ids) != 1 || ids[0] != "fresh" {
				t.Fatalf("expected abandoned sessions to be skipped, got %v", ids)
			}
		})
	}
}

func TestRepositoryConcurrentCommits(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := seedSession(t, repo, "race", 4)

			const writers = 5
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				succeeded int
				conflicts int
			)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := repo.CommitStep(ctx, commitFor(s, 6, nil, nil))
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						succeeded++
					case errors.Is(err, interview.ErrStepConflict):
						conflicts++
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}
			wg.Wait()

			if succeeded != 1 || conflicts != writers-1 {
				t.Fatalf("expected 1 success and %d conflicts, got %d and %d", writers-1, succeeded, conflicts)
			}

			got, err := repo.GetSession(ctx, "race")
			if err != nil {
				t.Fatalf("get session: %v", err)
			}
			if got.StepIndex != 1 || len(got.ScoreHistory) != 1 {
				t.Fatalf("expected a single advance, got %+v", got)
			}
		})
	}
}

func TestRepositoryPing(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			if err := repo.Ping(context.Background()); err != nil {
				t.Fatalf("ping: %v", err)
			}
		})
	}
}

func TestIsBusy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err    error
		expect bool
	}{
		{err: nil, expect: false},
		{err: errors.New("SQLITE_BUSY: database is busy"), expect: true},
		{err: errors.New("database is locked (5)"), expect: true},
		{err: errors.New("constraint failed"), expect: false},
	}

	for _, tt := range tests {
		if got := isBusy(tt.err); got != tt.expect {
			t.Fatalf("isBusy(%v): expected %v, got %v", tt.err, tt.expect, got)
		}
	}
}
