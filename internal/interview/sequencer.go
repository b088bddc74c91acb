package interview

import (
	"context"
	"time"

	"github.com/spigell/interviewer/internal/ai"
	"github.com/spigell/interviewer/internal/logger"
	"github.com/spigell/interviewer/internal/scoring"

	"go.uber.org/zap"
)

// DefaultRecentQAWindow bounds how many past exchanges go into a generation prompt.
const DefaultRecentQAWindow = 3

// Opening questions asked before any generated one, in order.
var predefinedQuestions = []string{
	"Introduce yourself and summarize your relevant background.",
	"Explain your interest in this role.",
}

// Sequencer decides the question for a step: the fixed opening for the first steps, a
// generated question afterwards.
type Sequencer struct {
	guard  *guard
	bank   *FallbackBank
	window int
	now    func() time.Time
	logger *zap.Logger
}

func newSequencer(g *guard, bank *FallbackBank, window int, now func() time.Time, logger *zap.Logger) *Sequencer {
	if bank == nil {
		bank = DefaultFallbackBank()
	}
	if window <= 0 {
		window = DefaultRecentQAWindow
	}
	return &Sequencer{guard: g, bank: bank, window: window, now: now, logger: logger}
}

// Next returns the question for session.NextOrder(). history holds every answered exchange of
// the session, oldest first. It never fails: generation problems fall back to the built-in pool.
func (s *Sequencer) Next(ctx context.Context, session *Session, history []ai.QAPair) *Question {
	order := session.NextOrder()
	q := &Question{
		SessionID: session.ID,
		Order:     order,
		CreatedAt: s.now(),
	}

	if order <= len(predefinedQuestions) {
		q.Text = predefinedQuestions[order-1]
		q.Difficulty = scoring.Easy
		q.Origin = OriginPredefined
		return q
	}

	q.Difficulty = scoring.NextDifficulty(session.ScoreHistory)
	q.Origin = OriginGenerated

	gc := s.generationContext(session.Job, history)

	text, ok := s.guard.generate(ctx, gc, q.Difficulty)
	if !ok {
		text = s.bank.Pick(q.Difficulty, gc.PreviousQuestions)
		s.logger.Info("using fallback question",
			zap.String(logger.FieldSession, session.ID),
			zap.Int(logger.FieldStep, order),
			zap.String("difficulty", string(q.Difficulty)),
		)
	}
	q.Text = text

	return q
}

func (s *Sequencer) generationContext(job Job, history []ai.QAPair) ai.GenerationContext {
	recent := history
	if len(recent) > s.window {
		recent = recent[len(recent)-s.window:]
	}

	previous := make([]string, 0, len(history))
	for _, qa := range history {
		previous = append(previous, qa.Question)
	}

	return ai.GenerationContext{
		JobTitle:          job.Title,
		JobDescription:    job.Description,
		Requirements:      job.Requirements,
		RecentQA:          append([]ai.QAPair(nil), recent...),
		PreviousQuestions: previous,
	}
}
