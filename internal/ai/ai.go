// Package ai declares the contracts of the external AI collaborators an interview depends on.
// Implementations live in provider subpackages; every call may fail or time out and callers
// are expected to degrade instead of failing the interview step.
package ai

import (
	"context"

	"github.com/spigell/interviewer/internal/scoring"
)

// QAPair is one asked question together with the resolved answer text.
type QAPair struct {
	Question string
	Answer   string
}

// GenerationContext is everything a QuestionGenerator sees when producing the next question.
type GenerationContext struct {
	JobTitle       string
	JobDescription string
	Requirements   string
	// RecentQA holds at most the configured window of the latest exchanges, oldest first.
	RecentQA []QAPair
	// PreviousQuestions lists every question already asked in the session.
	PreviousQuestions []string
}

// Judgement is the content score of one answer with a short feedback note.
type Judgement struct {
	Score    float64
	Feedback string
}

type QuestionGenerator interface {
	GenerateQuestion(ctx context.Context, gc GenerationContext, difficulty scoring.Difficulty) (string, error)
}

type AnswerJudge interface {
	JudgeAnswer(ctx context.Context, question, answer string) (*Judgement, error)
}

type SpeechToText interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

type TextToSpeech interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type AudioAnalyzer interface {
	ScoreAudio(ctx context.Context, audio []byte) (float64, error)
}

type VideoAnalyzer interface {
	ScoreVideo(ctx context.Context, video []byte) (float64, error)
}

// Named is implemented by collaborators that can report their provider name for logs and metrics.
type Named interface {
	Name() string
}

// ProviderName returns the provider name of a collaborator, or "custom" when it does not report one.
func ProviderName(v any) string {
	if n, ok := v.(Named); ok {
		if name := n.Name(); name != "" {
			return name
		}
	}
	return "custom"
}
