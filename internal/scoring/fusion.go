// Package scoring holds the pure scoring policy of an interview: how partial signals
// combine into one composite score and how the score history picks the next difficulty.
package scoring

import "math"

const (
	MinScore = 0.0
	MaxScore = 10.0
)

// Weights are the relative weights of each signal before renormalization.
type Weights struct {
	Content float64
	Audio   float64
	Video   float64
}

// DefaultWeights favours the judged content of the answer over delivery.
var DefaultWeights = Weights{Content: 0.6, Audio: 0.2, Video: 0.2}

// Fuse combines the content score with the optional audio and video scores using DefaultWeights.
func Fuse(content float64, audio, video *float64) float64 {
	return DefaultWeights.Fuse(content, audio, video)
}

// Fuse combines the present signals. Absent signals drop out and the remaining weights are
// renormalized to sum to one. The result is clamped to [0, 10] and rounded to two decimals.
func (w Weights) Fuse(content float64, audio, video *float64) float64 {
	sum := w.Content * content
	total := w.Content

	if audio != nil {
		sum += w.Audio * *audio
		total += w.Audio
	}
	if video != nil {
		sum += w.Video * *video
		total += w.Video
	}

	if total <= 0 {
		return Round(Clamp(content))
	}

	return Round(Clamp(sum / total))
}

// Clamp bounds a score to [0, 10]. NaN is mapped to the lower bound.
func Clamp(score float64) float64 {
	switch {
	case math.IsNaN(score):
		return MinScore
	case score < MinScore:
		return MinScore
	case score > MaxScore:
		return MaxScore
	default:
		return score
	}
}

// Round rounds a score to two decimal places.
func Round(score float64) float64 {
	return math.Round(score*100) / 100
}
