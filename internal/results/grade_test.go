package results

import (
	"testing"

	"github.com/stemsi/jlpt-proctor/internal/model"
)

func questions(keys ...model.Answer) []model.Question {
	qs := make([]model.Question, len(keys))
	for i, k := range keys {
		qs[i] = model.Question{ID: i + 1, CorrectAnswer: k}
	}
	return qs
}

func TestGrade(t *testing.T) {
	qs := questions(model.AnswerA, model.AnswerB, model.AnswerC, model.AnswerD)
	answers := map[int]model.Answer{1: model.AnswerA, 2: model.AnswerB, 3: model.AnswerA}

	s := Grade(qs, answers)
	if s.TotalQuestions != 4 || s.CorrectAnswers != 2 || s.IncorrectAnswers != 1 || s.UnansweredQuestions != 1 {
		t.Fatalf("unexpected score: %+v", s)
	}
	if s.Percentage != 50 {
		t.Errorf("percentage = %d, want 50", s.Percentage)
	}
	if s.Performance != model.StatusPoor {
		t.Errorf("performance = %s, want poor", s.Performance)
	}
	if s.Status != model.StatusPassed {
		t.Errorf("status = %s, want passed", s.Status)
	}
}

func TestGradeEmpty(t *testing.T) {
	s := Grade(nil, nil)
	if s.Percentage != 0 || s.Status != model.StatusFailed {
		t.Errorf("unexpected score for empty attempt: %+v", s)
	}
}

func TestThresholds(t *testing.T) {
	tests := []struct {
		pct         int
		performance model.PerformanceStatus
		overall     model.PerformanceStatus
	}{
		{100, model.StatusExcellent, model.StatusExcellent},
		{90, model.StatusExcellent, model.StatusExcellent},
		{89, model.StatusGood, model.StatusGood},
		{75, model.StatusGood, model.StatusGood},
		{74, model.StatusAverage, model.StatusAverage},
		{60, model.StatusAverage, model.StatusAverage},
		{59, model.StatusPoor, model.StatusPassed},
		{50, model.StatusPoor, model.StatusPassed},
		{49, model.StatusPoor, model.StatusFailed},
		{0, model.StatusPoor, model.StatusFailed},
	}
	for _, tt := range tests {
		if got := Performance(tt.pct); got != tt.performance {
			t.Errorf("Performance(%d) = %s, want %s", tt.pct, got, tt.performance)
		}
		if got := Overall(tt.pct); got != tt.overall {
			t.Errorf("Overall(%d) = %s, want %s", tt.pct, got, tt.overall)
		}
	}
}

func TestPercentageRounds(t *testing.T) {
	if got := Percentage(2, 3); got != 67 {
		t.Errorf("Percentage(2,3) = %d, want 67", got)
	}
	if got := Percentage(1, 3); got != 33 {
		t.Errorf("Percentage(1,3) = %d, want 33", got)
	}
}
