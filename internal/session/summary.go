package session

import (
	"time"

	"github.com/abhisek/quizflow/internal/analytics"
)

// Summary aggregates a run of completed questions.
type Summary struct {
	Duration       time.Duration
	TotalQuestions int
	TotalCorrect   int
	TotalRecovered int
	Accuracy       float64
	Fallbacks      int
}

// BuildSummary aggregates records. Nil records are skipped.
func BuildSummary(records []*analytics.Record) *Summary {
	s := &Summary{}
	for _, r := range records {
		if r == nil {
			continue
		}
		s.TotalQuestions++
		s.Duration += time.Duration(r.TimeSpentMs) * time.Millisecond
		if r.IsCorrect {
			s.TotalCorrect++
		}
		if r.IsRecovered {
			s.TotalRecovered++
		}
		if r.Fallback {
			s.Fallbacks++
		}
	}
	if s.TotalQuestions > 0 {
		s.Accuracy = float64(s.TotalCorrect) / float64(s.TotalQuestions)
	}
	return s
}
