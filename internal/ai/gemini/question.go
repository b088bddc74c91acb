// Package gemini implements the interview collaborators on top of Google Gemini.
package gemini

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/spigell/interviewer/internal/ai"
	"github.com/spigell/interviewer/internal/scoring"
	"github.com/spigell/interviewer/internal/utils"

	"go.uber.org/zap"
)

const (
	defaultMaxLogLength = 200
	maxContextRunes     = 4000

	questionSystem = "You are an experienced technical interviewer. You ask one clear, specific question at a time."
)

//go:embed prompts/question.md
var questionTemplate string

var difficultyGuidance = map[scoring.Difficulty]string{
	scoring.Easy:   "The question should test fundamental concepts, be straightforward and need a short answer of one or two sentences.",
	scoring.Medium: "The question should require practical examples, test problem-solving skills and need a paragraph-length answer.",
	scoring.Hard:   "The question should present a complex scenario such as system design or advanced trade-offs, require critical thinking and expect a detailed technical explanation.",
}

var (
	questionPrefixPattern = regexp.MustCompile(`(?i)^(?:\*\*)?(?:next\s+)?question\s*(?:\d+)?\s*[:.\-]\s*(?:\*\*)?\s*`)
	numberingPattern      = regexp.MustCompile(`^(?:\d+[.)]|[-*•])\s+`)
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

// QuestionGenerator produces interview questions with Gemini.
type QuestionGenerator struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewQuestionGenerator(generator contentGenerator, maxLogLength int, logger *zap.Logger) *QuestionGenerator {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &QuestionGenerator{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (q *QuestionGenerator) Name() string {
	return providerName
}

func (q *QuestionGenerator) GenerateQuestion(ctx context.Context, gc ai.GenerationContext, difficulty scoring.Difficulty) (string, error) {
	prompt := buildQuestionPrompt(gc, difficulty)

	q.logger.Debug("gemini question request",
		zap.String("difficulty", string(difficulty)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, q.maxLogLen)),
	)

	raw, err := q.generator.GenerateContent(ctx, questionSystem, prompt)
	if err != nil {
		return "", err
	}

	q.logger.Debug("gemini question response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, q.maxLogLen)),
	)

	question := cleanQuestion(raw)
	if question == "" {
		return "", errors.New("gemini returned no question text")
	}
	return question, nil
}

func buildQuestionPrompt(gc ai.GenerationContext, difficulty scoring.Difficulty) string {
	replacer := strings.NewReplacer(
		"{{JOB_TITLE}}", orNone(sanitizeContext(gc.JobTitle)),
		"{{JOB_DESCRIPTION}}", orNone(sanitizeContext(gc.JobDescription)),
		"{{REQUIREMENTS}}", orNone(sanitizeContext(gc.Requirements)),
		"{{DIFFICULTY}}", string(difficulty),
		"{{DIFFICULTY_GUIDANCE}}", difficultyGuidance[difficulty],
		"{{RECENT_QA}}", formatRecentQA(gc.RecentQA),
		"{{PREVIOUS_QUESTIONS}}", formatList(gc.PreviousQuestions),
	)
	return replacer.Replace(questionTemplate)
}

func formatRecentQA(pairs []ai.QAPair) string {
	if len(pairs) == 0 {
		return "none"
	}

	var b strings.Builder
	for i, qa := range pairs {
		if i > 0 {
			b.WriteString("\n")
		}
		answer := strings.TrimSpace(qa.Answer)
		if answer == "" {
			answer = "(no answer)"
		}
		fmt.Fprintf(&b, "Q%d: %s\nA%d: %s", i+1, strings.TrimSpace(qa.Question), i+1, answer)
	}
	return b.String()
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "none"
	}

	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, "- "+strings.TrimSpace(item))
	}
	return strings.Join(lines, "\n")
}

var bracketReplacer = strings.NewReplacer("[", "(", "]", ")", "{{", "(", "}}", ")")

// sanitizeContext neutralizes role markers and template braces in user-supplied job text
// and caps its length.
func sanitizeContext(s string) string {
	s = bracketReplacer.Replace(strings.TrimSpace(s))
	if utf8.RuneCountInString(s) > maxContextRunes {
		s = string([]rune(s)[:maxContextRunes])
	}
	return s
}

func orNone(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "none"
	}
	return s
}

// cleanQuestion keeps the first non-empty line of the model output without prefixes,
// numbering or surrounding quotes.
func cleanQuestion(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = questionPrefixPattern.ReplaceAllString(line, "")
		line = numberingPattern.ReplaceAllString(line, "")
		line = strings.Trim(line, "\"'`*")
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}
