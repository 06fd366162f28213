// Package results grades finished attempts and classifies performance.
package results

import (
	"math"

	"github.com/stemsi/jlpt-proctor/internal/model"
)

const (
	ExcellentThreshold = 90
	GoodThreshold      = 75
	AverageThreshold   = 60
	PassThreshold      = 50
)

// Score is the graded outcome of an attempt.
type Score struct {
	TotalQuestions      int                     `json:"total_questions"`
	CorrectAnswers      int                     `json:"correct_answers"`
	IncorrectAnswers    int                     `json:"incorrect_answers"`
	UnansweredQuestions int                     `json:"unanswered_questions"`
	Percentage          int                     `json:"percentage"`
	Performance         model.PerformanceStatus `json:"performance"`
	Status              model.PerformanceStatus `json:"status"`
}

// Grade compares answers against the question key.
func Grade(questions []model.Question, answers map[int]model.Answer) Score {
	s := Score{TotalQuestions: len(questions)}
	for _, q := range questions {
		a, ok := answers[q.ID]
		switch {
		case !ok:
			s.UnansweredQuestions++
		case a == q.CorrectAnswer:
			s.CorrectAnswers++
		default:
			s.IncorrectAnswers++
		}
	}
	s.Percentage = Percentage(s.CorrectAnswers, s.TotalQuestions)
	s.Performance = Performance(s.Percentage)
	s.Status = Overall(s.Percentage)
	return s
}

// Percentage rounds correct/total to the nearest whole percent.
func Percentage(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) * 100 / float64(total)))
}

// Performance buckets a percentage for the result screen.
func Performance(pct int) model.PerformanceStatus {
	switch {
	case pct >= ExcellentThreshold:
		return model.StatusExcellent
	case pct >= GoodThreshold:
		return model.StatusGood
	case pct >= AverageThreshold:
		return model.StatusAverage
	default:
		return model.StatusPoor
	}
}

// Overall is the status stored in practice history.
func Overall(pct int) model.PerformanceStatus {
	switch {
	case pct >= ExcellentThreshold:
		return model.StatusExcellent
	case pct >= GoodThreshold:
		return model.StatusGood
	case pct >= AverageThreshold:
		return model.StatusAverage
	case pct >= PassThreshold:
		return model.StatusPassed
	default:
		return model.StatusFailed
	}
}
