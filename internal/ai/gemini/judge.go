package gemini

import (
	"context"
	_ "embed"
	"strings"
	"unicode/utf8"

	"github.com/spigell/interviewer/internal/ai"
	"github.com/spigell/interviewer/internal/utils"

	"go.uber.org/zap"
)

const judgeSystem = "You are a strict but fair technical interview evaluator. You answer with JSON only."

//go:embed prompts/judge.md
var judgeTemplate string

// Judge scores answer content with Gemini.
type Judge struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewJudge(generator contentGenerator, maxLogLength int, logger *zap.Logger) *Judge {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Judge{generator: generator, logger: logger, maxLogLen: maxLogLength}
}

func (j *Judge) Name() string {
	return providerName
}

func (j *Judge) JudgeAnswer(ctx context.Context, question, answer string) (*ai.Judgement, error) {
	prompt := buildJudgePrompt(question, answer)

	j.logger.Debug("gemini judge request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, j.maxLogLen)),
	)

	raw, err := j.generator.GenerateContent(ctx, judgeSystem, prompt)
	if err != nil {
		return nil, err
	}

	j.logger.Debug("gemini judge response",
		zap.String("response_preview", utils.TruncateForLog(raw, j.maxLogLen)),
	)

	parsed, err := parseScored(raw)
	if err != nil {
		return nil, err
	}

	return &ai.Judgement{Score: *parsed.Score, Feedback: parsed.Feedback}, nil
}

// buildJudgePrompt fills the judge template. The answer is candidate-controlled, so it gets the
// same bracket neutralizing and length cap as job text.
func buildJudgePrompt(question, answer string) string {
	answer = sanitizeContext(answer)
	if answer == "" {
		answer = "(the candidate gave no answer)"
	}

	return strings.NewReplacer(
		"{{QUESTION}}", strings.TrimSpace(question),
		"{{ANSWER}}", answer,
	).Replace(judgeTemplate)
}
