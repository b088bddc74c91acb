package interview

import (
	"time"

	"github.com/spigell/interviewer/internal/scoring"
)

// Report is the read-only projection of a completed session.
type Report struct {
	SessionID    string
	Job          Job
	TotalSteps   int
	AverageScore float64
	TotalScore   float64
	CompletedAt  *time.Time
	Questions    []QuestionResult
}

// QuestionResult is the score breakdown of one answered question.
type QuestionResult struct {
	Order        int
	Question     string
	Answer       string
	Score        float64
	ContentScore float64
	AudioScore   *float64
	VideoScore   *float64
	Feedback     string
	Difficulty   scoring.Difficulty
	Origin       Origin
}

func buildReport(s *Session, questions []*Question, answers []*Answer) *Report {
	byOrder := make(map[int]*Answer, len(answers))
	for _, a := range answers {
		byOrder[a.Order] = a
	}

	report := &Report{
		SessionID:    s.ID,
		Job:          s.Job,
		TotalSteps:   s.TotalSteps,
		AverageScore: s.Average(),
		TotalScore:   s.CumulativeScore,
		CompletedAt:  s.CompletedAt,
		Questions:    make([]QuestionResult, 0, len(questions)),
	}

	for _, q := range questions {
		a, ok := byOrder[q.Order]
		if !ok {
			continue
		}
		report.Questions = append(report.Questions, QuestionResult{
			Order:        q.Order,
			Question:     q.Text,
			Answer:       a.Text,
			Score:        a.CompositeScore,
			ContentScore: a.ContentScore,
			AudioScore:   a.AudioScore,
			VideoScore:   a.VideoScore,
			Feedback:     a.Feedback,
			Difficulty:   q.Difficulty,
			Origin:       q.Origin,
		})
	}

	return report
}
