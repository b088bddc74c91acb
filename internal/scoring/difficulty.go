package scoring

import (
	"fmt"
	"strings"
)

// Difficulty is the tier that controls how challenging a generated question should be.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

const (
	mediumThreshold = 5.0
	hardThreshold   = 7.5
)

// Difficulties lists every tier from the easiest to the hardest.
var Difficulties = []Difficulty{Easy, Medium, Hard}

// ParseDifficulty converts a case-insensitive tier name into a Difficulty.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case Easy, Medium, Hard:
		return d, nil
	default:
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
}

// NextDifficulty selects the tier for the next generated question from the mean of the
// whole score history. An empty history yields Easy.
func NextDifficulty(history []float64) Difficulty {
	if len(history) == 0 {
		return Easy
	}

	mean := Mean(history)
	switch {
	case mean >= hardThreshold:
		return Hard
	case mean >= mediumThreshold:
		return Medium
	default:
		return Easy
	}
}

// Mean returns the arithmetic mean of scores, or 0 when there are none.
func Mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}
