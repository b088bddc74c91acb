package interview

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/spigell/interviewer/internal/scoring"

	"gopkg.in/yaml.v3"
)

//go:embed fallback_questions.yaml
var builtinFallbacks []byte

// FallbackBank is the pool of generic questions used when generation fails.
// Every difficulty tier always has at least one question.
type FallbackBank struct {
	questions map[scoring.Difficulty][]string
}

// DefaultFallbackBank returns the built-in bank.
func DefaultFallbackBank() *FallbackBank {
	bank, err := parseFallbacks(builtinFallbacks)
	if err != nil {
		panic(fmt.Sprintf("built-in fallback questions are invalid: %v", err))
	}
	return bank
}

// LoadFallbackBank reads a YAML bank keyed by difficulty from path. Tiers missing from the
// file are taken from the built-in bank. An empty path returns the built-in bank.
func LoadFallbackBank(path string) (*FallbackBank, error) {
	builtin := DefaultFallbackBank()

	path = strings.TrimSpace(path)
	if path == "" {
		return builtin, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fallback questions from %q: %w", path, err)
	}

	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing fallback questions from %q: %w", path, err)
	}

	bank := &FallbackBank{questions: make(map[scoring.Difficulty][]string)}
	for key, items := range raw {
		d, err := scoring.ParseDifficulty(key)
		if err != nil {
			return nil, fmt.Errorf("fallback questions file %q: %w", path, err)
		}
		bank.questions[d] = cleanQuestions(items)
	}

	for _, d := range scoring.Difficulties {
		if len(bank.questions[d]) == 0 {
			bank.questions[d] = builtin.questions[d]
		}
	}

	return bank, nil
}

func parseFallbacks(data []byte) (*FallbackBank, error) {
	var raw map[scoring.Difficulty][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	bank := &FallbackBank{questions: make(map[scoring.Difficulty][]string)}
	for _, d := range scoring.Difficulties {
		items := cleanQuestions(raw[d])
		if len(items) == 0 {
			return nil, fmt.Errorf("no questions for %s", d)
		}
		bank.questions[d] = items
	}
	return bank, nil
}

func cleanQuestions(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Pick returns the first question of the tier that was not asked yet. When every question of
// the tier was already asked it rotates through the tier by the number of asked questions.
func (b *FallbackBank) Pick(d scoring.Difficulty, asked []string) string {
	pool := b.questions[d]
	if len(pool) == 0 {
		pool = b.questions[scoring.Easy]
	}

	seen := make(map[string]struct{}, len(asked))
	for _, q := range asked {
		seen[strings.ToLower(strings.TrimSpace(q))] = struct{}{}
	}

	for _, q := range pool {
		if _, ok := seen[strings.ToLower(q)]; !ok {
			return q
		}
	}

	return pool[len(asked)%len(pool)]
}

// Len reports how many questions the tier holds.
func (b *FallbackBank) Len(d scoring.Difficulty) int {
	return len(b.questions[d])
}
