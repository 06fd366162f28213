package model

import (
	"fmt"
	"strings"
)

// ExamMode enumerates how an attempt is run.
type ExamMode string

const (
	// ExamModePractice supports pause/resume and persists progress across reloads.
	ExamModePractice ExamMode = "practice"
	// ExamModeChallenge is non-pausable and always starts fresh.
	ExamModeChallenge ExamMode = "challenge"
)

// Valid reports whether m is a known mode.
func (m ExamMode) Valid() bool {
	return m == ExamModePractice || m == ExamModeChallenge
}

// TimeMode selects how the time limit of an attempt is derived.
type TimeMode string

const (
	TimeModeDefault   TimeMode = "default"
	TimeModeCustom    TimeMode = "custom"
	TimeModeUnlimited TimeMode = "unlimited"
)

// Level is a JLPT level, N1 (hardest) through N5.
type Level string

const (
	LevelN1 Level = "N1"
	LevelN2 Level = "N2"
	LevelN3 Level = "N3"
	LevelN4 Level = "N4"
	LevelN5 Level = "N5"
)

// ParseLevel normalizes a level string such as "n3".
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := levelTimeouts[l]; !ok {
		return "", fmt.Errorf("unknown JLPT level %q", s)
	}
	return l, nil
}

// ─── Exam catalog ───────────────────────────────────────────────────

const (
	DefaultTimeoutMinutes   = 60
	ChallengeTimeoutMinutes = 90
	CustomTimeoutMin        = 10
	CustomTimeoutMax        = 180

	ChallengeQuestionCount = 30
	MaxQuestionsPerExam    = 100
)

var levelTimeouts = map[Level]int{
	LevelN1: 60,
	LevelN2: 55,
	LevelN3: 50,
	LevelN4: 45,
	LevelN5: 40,
}

var levelQuestionCounts = map[Level]int{
	LevelN1: 60,
	LevelN2: 55,
	LevelN3: 50,
	LevelN4: 45,
	LevelN5: 40,
}

// TimeLimitFor returns the time limit in minutes for an attempt.
// The second return is true when the attempt has no limit and the clock counts up.
func TimeLimitFor(level Level, mode ExamMode, timeMode TimeMode, customMinutes int) (int, bool) {
	// Challenge attempts are always timed at the fixed limit.
	if mode == ExamModeChallenge {
		return ChallengeTimeoutMinutes, false
	}

	switch timeMode {
	case TimeModeUnlimited:
		return 0, true
	case TimeModeCustom:
		if customMinutes < CustomTimeoutMin {
			customMinutes = CustomTimeoutMin
		}
		if customMinutes > CustomTimeoutMax {
			customMinutes = CustomTimeoutMax
		}
		return customMinutes, false
	}

	if m, ok := levelTimeouts[level]; ok {
		return m, false
	}
	return DefaultTimeoutMinutes, false
}

// QuestionCountFor returns how many questions an attempt draws.
func QuestionCountFor(level Level, mode ExamMode) int {
	if mode == ExamModeChallenge {
		return ChallengeQuestionCount
	}
	if n, ok := levelQuestionCounts[level]; ok {
		return n
	}
	return levelQuestionCounts[LevelN5]
}

// StartExamRequest is the payload for starting an exam attempt.
type StartExamRequest struct {
	ExamTitle     string   `json:"exam_title" binding:"required,min=1,max=255"`
	Level         string   `json:"level" binding:"required,jlpt_level"`
	Mode          ExamMode `json:"mode" binding:"required,oneof=practice challenge"`
	TimeMode      TimeMode `json:"time_mode" binding:"omitempty,oneof=default custom unlimited"`
	CustomMinutes int      `json:"custom_minutes" binding:"omitempty,min=10,max=180"`
}
