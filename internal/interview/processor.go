// Package interview runs adaptive technical interviews: it sequences questions, scores answers
// and moves each session through its lifecycle.
package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/interviewer/internal/ai"
	"github.com/spigell/interviewer/internal/logger"
	"github.com/spigell/interviewer/internal/scoring"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultTotalSteps      = 15
	DefaultMaxTotalSteps   = 50
	DefaultProviderTimeout = 20 * time.Second

	// MaxAudioBytes is the inline content limit of speech recognition.
	MaxAudioBytes = 10 << 20
	// MaxVideoBytes is the inline media limit of the analysis models.
	MaxVideoBytes = 20 << 20

	eventPublishTimeout = 5 * time.Second
)

type Config struct {
	// DefaultTotalSteps is used when Start is called with zero steps.
	DefaultTotalSteps int
	MaxTotalSteps     int
	RecentQAWindow    int
	ProviderTimeout   time.Duration
}

type Deps struct {
	Repository Repository

	Generator     ai.QuestionGenerator
	Judge         ai.AnswerJudge
	SpeechToText  ai.SpeechToText
	TextToSpeech  ai.TextToSpeech
	AudioAnalyzer ai.AudioAnalyzer
	VideoAnalyzer ai.VideoAnalyzer

	Fallbacks *FallbackBank
	Events    EventPublisher
	Metrics   Recorder
	Logger    *zap.Logger

	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

// RawAnswer is a candidate submission. At least one of the fields must be set.
type RawAnswer struct {
	Text  string
	Audio []byte
	Video []byte
}

func (r RawAnswer) empty() bool {
	return strings.TrimSpace(r.Text) == "" && len(r.Audio) == 0 && len(r.Video) == 0
}

// StepResult is the outcome of one submitted answer.
type StepResult struct {
	SessionID    string
	Order        int
	Completed    bool
	Score        float64
	ContentScore float64
	AudioScore   *float64
	VideoScore   *float64
	Feedback     string
	// NextQuestion is set while the session is still in progress.
	NextQuestion *Question
	// AverageScore and TotalScore are set once the session completed.
	AverageScore float64
	TotalScore   float64
}

// Processor is the only writer of interview sessions.
type Processor struct {
	repo      Repository
	sequencer *Sequencer
	guard     *guard
	events    EventPublisher
	metrics   Recorder
	locks     *sessionLocks
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string

	defaultSteps int
	maxSteps     int
}

func NewProcessor(cfg *Config, deps *Deps) (*Processor, error) {
	if deps == nil || deps.Repository == nil {
		return nil, errors.New("interview repository is required")
	}
	if cfg == nil {
		cfg = &Config{}
	}

	maxSteps := cfg.MaxTotalSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxTotalSteps
	}
	defaultSteps := cfg.DefaultTotalSteps
	if defaultSteps <= 0 {
		defaultSteps = DefaultTotalSteps
	}
	if defaultSteps > maxSteps {
		return nil, fmt.Errorf("default total steps %d exceeds maximum %d", defaultSteps, maxSteps)
	}
	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopRecorder{}
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	newID := deps.NewID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}

	g := &guard{
		generator: deps.Generator,
		judge:     deps.Judge,
		stt:       deps.SpeechToText,
		tts:       deps.TextToSpeech,
		audio:     deps.AudioAnalyzer,
		video:     deps.VideoAnalyzer,
		timeout:   timeout,
		metrics:   metrics,
		logger:    log,
	}

	return &Processor{
		repo:         deps.Repository,
		sequencer:    newSequencer(g, deps.Fallbacks, cfg.RecentQAWindow, now, log),
		guard:        g,
		events:       deps.Events,
		metrics:      metrics,
		locks:        newSessionLocks(),
		logger:       log,
		now:          now,
		newID:        newID,
		defaultSteps: defaultSteps,
		maxSteps:     maxSteps,
	}, nil
}

// Start creates an in-progress session for job and returns it with its first question.
// totalSteps of zero selects the configured default.
func (p *Processor) Start(ctx context.Context, job Job, totalSteps int) (*Session, *Question, error) {
	if job.Empty() {
		return nil, nil, fmt.Errorf("%w: job description or requirements are required", ErrInvalidInput)
	}
	if totalSteps == 0 {
		totalSteps = p.defaultSteps
	}
	if totalSteps < 1 || totalSteps > p.maxSteps {
		return nil, nil, fmt.Errorf("%w: total steps must be within [1, %d], got %d", ErrInvalidInput, p.maxSteps, totalSteps)
	}

	session := newSession(p.newID(), job, totalSteps, p.now())
	first := p.sequencer.Next(ctx, session, nil)

	if err := p.repo.CreateSession(ctx, session, first); err != nil {
		return nil, nil, fmt.Errorf("%w: creating session: %v", ErrUnavailable, err)
	}

	p.metrics.SessionStarted()
	p.logger.Info("interview started",
		zap.String("session_id", session.ID),
		zap.Int("total_steps", session.TotalSteps),
		zap.String("job_title", session.Job.Title),
	)
	p.publish(ctx, newEvent(session, EventStarted, nil))

	return session, first, nil
}

// SubmitAnswer scores the answer to step stepOrder and advances the session. Submissions for
// one session are serialized; a submission for any step but the current one fails
// ErrOutOfSequence without touching the session.
func (p *Processor) SubmitAnswer(ctx context.Context, sessionID string, stepOrder int, raw RawAnswer) (*StepResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	switch {
	case sessionID == "":
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	case stepOrder < 1:
		return nil, fmt.Errorf("%w: step order must be positive, got %d", ErrInvalidInput, stepOrder)
	case raw.empty():
		return nil, fmt.Errorf("%w: answer text, audio or video is required", ErrInvalidInput)
	case len(raw.Audio) > MaxAudioBytes:
		return nil, fmt.Errorf("%w: audio exceeds %d bytes", ErrInvalidInput, MaxAudioBytes)
	case len(raw.Video) > MaxVideoBytes:
		return nil, fmt.Errorf("%w: video exceeds %d bytes", ErrInvalidInput, MaxVideoBytes)
	}

	// Events go out once the session lock is released so a slow broker never stalls the session.
	var pending []Event
	defer func() { p.publish(ctx, pending...) }()

	unlock := p.locks.lock(sessionID)
	defer unlock()

	p.metrics.StepStarted()
	defer p.metrics.StepFinished()

	session, err := p.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.ensureActive(); err != nil {
		return nil, err
	}
	if stepOrder != session.NextOrder() {
		p.metrics.OutOfSequence()
		return nil, fmt.Errorf("%w: expected step %d, got %d", ErrOutOfSequence, session.NextOrder(), stepOrder)
	}

	log := logger.WithFields(p.logger, logger.SessionFields(session.ID, stepOrder)...)

	questions, err := p.repo.ListQuestions(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing questions: %v", ErrUnavailable, err)
	}
	answers, err := p.repo.ListAnswers(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing answers: %v", ErrUnavailable, err)
	}

	current := findQuestion(questions, stepOrder)
	if current == nil {
		return nil, fmt.Errorf("%w: question %d of session %s is missing", ErrUnavailable, stepOrder, session.ID)
	}

	answer := p.score(ctx, current, raw)
	log.Info("answer scored",
		zap.Float64("composite_score", answer.CompositeScore),
		zap.Float64("content_score", answer.ContentScore),
		zap.Bool("has_audio", answer.HasAudio),
		zap.Bool("has_video", answer.HasVideo),
	)

	updated := session.Clone()
	if err := updated.recordScore(answer.CompositeScore, answer.CreatedAt); err != nil {
		return nil, err
	}

	var next *Question
	if updated.Status == StatusInProgress {
		history := qaHistory(questions, answers)
		history = append(history, ai.QAPair{Question: current.Text, Answer: answer.Text})
		next = p.sequencer.Next(ctx, updated, history)
	}

	commit := &StepCommit{
		ExpectedStep: session.StepIndex,
		Session:      updated,
		Answer:       answer,
		Next:         next,
	}
	if err := p.repo.CommitStep(ctx, commit); err != nil {
		return nil, p.commitError(ctx, sessionID, err)
	}

	p.metrics.AnswerScored(answer.CompositeScore)

	result := &StepResult{
		SessionID:    updated.ID,
		Order:        stepOrder,
		Completed:    updated.Status == StatusCompleted,
		Score:        answer.CompositeScore,
		ContentScore: answer.ContentScore,
		AudioScore:   answer.AudioScore,
		VideoScore:   answer.VideoScore,
		Feedback:     answer.Feedback,
		NextQuestion: next,
	}

	score := answer.CompositeScore
	pending = append(pending, newEvent(updated, EventAnswerScored, &score))

	if result.Completed {
		result.AverageScore = updated.Average()
		result.TotalScore = updated.CumulativeScore

		p.metrics.SessionCompleted()
		log.Info("interview completed",
			zap.Float64("average_score", result.AverageScore),
			zap.Float64("total_score", result.TotalScore),
		)
		pending = append(pending, newEvent(updated, EventCompleted, &result.AverageScore))
	} else {
		log.Debug("next question ready",
			zap.Int("next_step", next.Order),
			zap.String("difficulty", string(next.Difficulty)),
		)
	}

	return result, nil
}

// score resolves the answer text and fans out judge and media analysis before fusing them.
func (p *Processor) score(ctx context.Context, q *Question, raw RawAnswer) *Answer {
	answer := &Answer{
		SessionID: q.SessionID,
		Order:     q.Order,
		Text:      strings.TrimSpace(raw.Text),
		HasAudio:  len(raw.Audio) > 0,
		HasVideo:  len(raw.Video) > 0,
	}

	if answer.Text == "" && answer.HasAudio {
		answer.Text = p.guard.transcribe(ctx, raw.Audio)
	}

	// Every guarded call degrades instead of failing, so the group never returns an error.
	var g errgroup.Group
	g.Go(func() error {
		answer.ContentScore, answer.Feedback = p.guard.judgeAnswer(ctx, q.Text, answer.Text)
		return nil
	})
	if answer.HasAudio {
		g.Go(func() error {
			answer.AudioScore = p.guard.scoreAudio(ctx, raw.Audio)
			return nil
		})
	}
	if answer.HasVideo {
		g.Go(func() error {
			answer.VideoScore = p.guard.scoreVideo(ctx, raw.Video)
			return nil
		})
	}
	_ = g.Wait()

	answer.CompositeScore = scoring.Fuse(answer.ContentScore, answer.AudioScore, answer.VideoScore)
	answer.CreatedAt = p.now()

	return answer
}

// Result returns the report of a completed session.
func (p *Processor) Result(ctx context.Context, sessionID string) (*Report, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}

	session, err := p.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != StatusCompleted {
		return nil, fmt.Errorf("%w: session %s is %s", ErrInvalidState, session.ID, session.Status)
	}

	questions, err := p.repo.ListQuestions(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing questions: %v", ErrUnavailable, err)
	}
	answers, err := p.repo.ListAnswers(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing answers: %v", ErrUnavailable, err)
	}

	return buildReport(session, questions, answers), nil
}

// Abandon moves an in-progress session to abandoned. It is the entry point for timeout
// policies that live outside the processor.
func (p *Processor) Abandon(ctx context.Context, sessionID string) (*Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}

	var pending []Event
	defer func() { p.publish(ctx, pending...) }()

	unlock := p.locks.lock(sessionID)
	defer unlock()

	session, err := p.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	updated := session.Clone()
	if err := updated.abandon(p.now()); err != nil {
		return nil, err
	}

	if err := p.repo.MarkAbandoned(ctx, session.ID, session.StepIndex, updated.UpdatedAt); err != nil {
		return nil, p.commitError(ctx, sessionID, err)
	}

	p.metrics.SessionAbandoned()
	p.logger.Info("interview abandoned", logger.SessionFields(session.ID, session.StepIndex)...)
	pending = append(pending, newEvent(updated, EventAbandoned, nil))

	return updated, nil
}

// ExpireIdle abandons every in-progress session that was not updated within ttl and returns
// how many were abandoned.
func (p *Processor) ExpireIdle(ctx context.Context, ttl time.Duration) (int, error) {
	ids, err := p.repo.ListIdle(ctx, p.now().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("%w: listing idle sessions: %v", ErrUnavailable, err)
	}

	expired := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}

		_, err := p.Abandon(ctx, id)
		switch {
		case err == nil:
			expired++
		case errors.Is(err, ErrInvalidState), errors.Is(err, ErrNotFound), errors.Is(err, ErrOutOfSequence):
			// Finished or advanced since it was listed.
		default:
			return expired, err
		}
	}

	return expired, nil
}

// Vocalize returns spoken audio for a question, or nil when speech synthesis is unavailable.
func (p *Processor) Vocalize(ctx context.Context, text string) []byte {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return p.guard.synthesize(ctx, text)
}

// Ping reports whether the underlying storage is reachable.
func (p *Processor) Ping(ctx context.Context) error {
	return p.repo.Ping(ctx)
}

func (p *Processor) load(ctx context.Context, id string) (*Session, error) {
	session, err := p.repo.GetSession(ctx, id)
	switch {
	case errors.Is(err, ErrSessionMissing):
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case err != nil:
		return nil, fmt.Errorf("%w: loading session: %v", ErrUnavailable, err)
	}
	return session, nil
}

// commitError maps a failed optimistic write to the caller-facing error.
func (p *Processor) commitError(ctx context.Context, id string, err error) error {
	switch {
	case errors.Is(err, ErrSessionMissing):
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	case errors.Is(err, ErrStepConflict):
		current, loadErr := p.load(ctx, id)
		if loadErr == nil && current.Status != StatusInProgress {
			return fmt.Errorf("%w: session %s is %s", ErrInvalidState, id, current.Status)
		}
		p.metrics.OutOfSequence()
		return fmt.Errorf("%w: session %s advanced concurrently", ErrOutOfSequence, id)
	default:
		return fmt.Errorf("%w: committing step: %v", ErrUnavailable, err)
	}
}

func newEvent(s *Session, t EventType, score *float64) Event {
	event := Event{
		Type:       t,
		SessionID:  s.ID,
		Status:     s.Status,
		Step:       s.StepIndex,
		TotalSteps: s.TotalSteps,
		At:         s.UpdatedAt,
	}
	if t == EventCompleted {
		event.Average = score
	} else {
		event.Score = score
	}
	return event
}

func (p *Processor) publish(ctx context.Context, events ...Event) {
	if p.events == nil || len(events) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()

	for _, event := range events {
		if err := p.events.Publish(ctx, event); err != nil {
			p.logger.Warn("publishing interview event",
				zap.String(logger.FieldSession, event.SessionID),
				zap.String("event", string(event.Type)),
				zap.Error(err),
			)
		}
	}
}

func findQuestion(questions []*Question, order int) *Question {
	for _, q := range questions {
		if q.Order == order {
			return q
		}
	}
	return nil
}

func qaHistory(questions []*Question, answers []*Answer) []ai.QAPair {
	byOrder := make(map[int]*Answer, len(answers))
	for _, a := range answers {
		byOrder[a.Order] = a
	}

	history := make([]ai.QAPair, 0, len(answers))
	for _, q := range questions {
		if a, ok := byOrder[q.Order]; ok {
			history = append(history, ai.QAPair{Question: q.Text, Answer: a.Text})
		}
	}
	return history
}
