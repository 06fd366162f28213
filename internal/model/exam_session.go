package model

import (
	"time"

	"github.com/google/uuid"
)

// FinalizeReason records which path ended an attempt.
type FinalizeReason string

const (
	FinalizeManual        FinalizeReason = "manual"
	FinalizeTimeUp        FinalizeReason = "time_up"
	FinalizeMaxViolations FinalizeReason = "max_violations"
	FinalizeAbandoned     FinalizeReason = "abandoned"
)

// PerformanceStatus buckets a percentage score.
type PerformanceStatus string

const (
	StatusExcellent PerformanceStatus = "excellent"
	StatusGood      PerformanceStatus = "good"
	StatusAverage   PerformanceStatus = "average"
	StatusPoor      PerformanceStatus = "poor"
	StatusPassed    PerformanceStatus = "passed"
	StatusFailed    PerformanceStatus = "failed"
)

// PracticeRecord is one finished attempt in a user's practice history.
type PracticeRecord struct {
	ID                  uuid.UUID         `json:"id"`
	UserID              string            `json:"user_id"`
	ExamTitle           string            `json:"exam_title"`
	Level               Level             `json:"level"`
	Mode                ExamMode          `json:"mode"`
	Reason              FinalizeReason    `json:"reason"`
	TotalQuestions      int               `json:"total_questions"`
	CorrectAnswers      int               `json:"correct_answers"`
	IncorrectAnswers    int               `json:"incorrect_answers"`
	UnansweredQuestions int               `json:"unanswered_questions"`
	Percentage          int               `json:"percentage"`
	Status              PerformanceStatus `json:"status"`
	TimeSpentSeconds    int               `json:"time_spent"`
	TimeLimitSeconds    int               `json:"time_limit"`
	ViolationCount      int               `json:"violation_count"`
	Answers             map[int]Answer    `json:"answers"`
	FinishedAt          time.Time         `json:"finished_at"`
}
