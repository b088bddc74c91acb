package interview

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spigell/interviewer/internal/ai"
	"github.com/spigell/interviewer/internal/scoring"

	"go.uber.org/zap"
)

// NeutralContentScore replaces the content score when the judge cannot produce one.
const NeutralContentScore = 5.0

const (
	opGenerate   = "generate_question"
	opJudge      = "judge_answer"
	opTranscribe = "transcribe"
	opSynthesize = "synthesize"
	opAudio      = "score_audio"
	opVideo      = "score_video"
)

var (
	errNotConfigured = errors.New("collaborator is not configured")
	errEmptyOutput   = errors.New("collaborator returned empty output")
	errNaNScore      = errors.New("collaborator returned NaN score")
)

// guard is the single place where collaborator calls are bounded by a timeout and their
// failures are degraded into the documented defaults.
type guard struct {
	generator ai.QuestionGenerator
	judge     ai.AnswerJudge
	stt       ai.SpeechToText
	tts       ai.TextToSpeech
	audio     ai.AudioAnalyzer
	video     ai.VideoAnalyzer

	timeout time.Duration
	metrics Recorder
	logger  *zap.Logger
}

type outcome[T any] struct {
	value T
	err   error
}

// guarded runs fn bounded by the provider timeout and records its latency. A collaborator that
// ignores cancellation is abandoned once the deadline passes, and a panicking one counts as
// failed. It reports whether fn succeeded.
func guarded[T any](ctx context.Context, g *guard, provider, op string, fn func(context.Context) (T, error)) (T, bool) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	done := make(chan outcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome[T]{err: fmt.Errorf("collaborator panicked: %v", r)}
			}
		}()
		v, err := fn(ctx)
		done <- outcome[T]{value: v, err: err}
	}()

	var res outcome[T]
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	elapsed := time.Since(start)
	g.metrics.ProviderCall(provider, op, elapsed.Seconds(), res.err != nil)

	if res.err != nil {
		g.metrics.ProviderFallback(provider, op)
		g.logger.Warn("collaborator failed, using fallback",
			zap.String("provider", provider),
			zap.String("operation", op),
			zap.Duration("elapsed", elapsed),
			zap.Error(res.err),
		)
		var zero T
		return zero, false
	}
	return res.value, true
}

// generate returns the generated question text, or false when the fallback pool must be used.
func (g *guard) generate(ctx context.Context, gc ai.GenerationContext, d scoring.Difficulty) (string, bool) {
	return guarded(ctx, g, ai.ProviderName(g.generator), opGenerate, func(ctx context.Context) (string, error) {
		if g.generator == nil {
			return "", errNotConfigured
		}
		out, err := g.generator.GenerateQuestion(ctx, gc, d)
		if err != nil {
			return "", err
		}
		text := strings.TrimSpace(out)
		if text == "" {
			return "", errEmptyOutput
		}
		return text, nil
	})
}

// judgeAnswer returns the content score and feedback, degrading to the neutral score.
func (g *guard) judgeAnswer(ctx context.Context, question, answer string) (float64, string) {
	j, ok := guarded(ctx, g, ai.ProviderName(g.judge), opJudge, func(ctx context.Context) (ai.Judgement, error) {
		if g.judge == nil {
			return ai.Judgement{}, errNotConfigured
		}
		j, err := g.judge.JudgeAnswer(ctx, question, answer)
		if err != nil {
			return ai.Judgement{}, err
		}
		if j == nil {
			return ai.Judgement{}, errEmptyOutput
		}
		if math.IsNaN(j.Score) {
			return ai.Judgement{}, errNaNScore
		}
		return ai.Judgement{Score: scoring.Clamp(j.Score), Feedback: strings.TrimSpace(j.Feedback)}, nil
	})
	if !ok {
		return NeutralContentScore, ""
	}
	return j.Score, j.Feedback
}

// transcribe returns the transcript, or an empty string on failure.
func (g *guard) transcribe(ctx context.Context, audio []byte) string {
	if g.stt == nil {
		g.logger.Debug("speech-to-text is not configured, answer text stays empty")
		return ""
	}

	text, _ := guarded(ctx, g, ai.ProviderName(g.stt), opTranscribe, func(ctx context.Context) (string, error) {
		out, err := g.stt.Transcribe(ctx, audio)
		return strings.TrimSpace(out), err
	})
	return text
}

// synthesize returns spoken audio for text, or nil when vocalization is not possible.
func (g *guard) synthesize(ctx context.Context, text string) []byte {
	if g.tts == nil {
		return nil
	}

	audio, _ := guarded(ctx, g, ai.ProviderName(g.tts), opSynthesize, func(ctx context.Context) ([]byte, error) {
		out, err := g.tts.Synthesize(ctx, text)
		if err != nil {
			return nil, err
		}
		if len(out) == 0 {
			return nil, errEmptyOutput
		}
		return out, nil
	})
	return audio
}

// scoreAudio returns the delivery score, or nil when the signal must be treated as absent.
func (g *guard) scoreAudio(ctx context.Context, audio []byte) *float64 {
	var analyzer func(context.Context, []byte) (float64, error)
	if g.audio != nil {
		analyzer = g.audio.ScoreAudio
	}
	return g.signal(ctx, ai.ProviderName(g.audio), opAudio, analyzer, audio)
}

// scoreVideo returns the presentation score, or nil when the signal must be treated as absent.
func (g *guard) scoreVideo(ctx context.Context, video []byte) *float64 {
	var analyzer func(context.Context, []byte) (float64, error)
	if g.video != nil {
		analyzer = g.video.ScoreVideo
	}
	return g.signal(ctx, ai.ProviderName(g.video), opVideo, analyzer, video)
}

func (g *guard) signal(ctx context.Context, provider, op string, analyze func(context.Context, []byte) (float64, error), media []byte) *float64 {
	if analyze == nil {
		g.logger.Debug("analyzer is not configured, signal is absent", zap.String("operation", op))
		return nil
	}

	score, ok := guarded(ctx, g, provider, op, func(ctx context.Context) (float64, error) {
		v, err := analyze(ctx, media)
		if err != nil {
			return 0, err
		}
		if math.IsNaN(v) {
			return 0, errNaNScore
		}
		return scoring.Clamp(v), nil
	})
	if !ok {
		return nil
	}
	return &score
}
