package model

import "testing"

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"N1", LevelN1, false},
		{"n3", LevelN3, false},
		{" N5 ", LevelN5, false},
		{"N6", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %q, %v; want %q, err=%v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestTimeLimitFor(t *testing.T) {
	tests := []struct {
		name          string
		level         Level
		mode          ExamMode
		timeMode      TimeMode
		custom        int
		wantMinutes   int
		wantUnlimited bool
	}{
		{"practice uses level table", LevelN3, ExamModePractice, TimeModeDefault, 0, 50, false},
		{"challenge is fixed", LevelN5, ExamModeChallenge, TimeModeDefault, 0, ChallengeTimeoutMinutes, false},
		{"challenge ignores unlimited", LevelN1, ExamModeChallenge, TimeModeUnlimited, 0, ChallengeTimeoutMinutes, false},
		{"challenge ignores custom", LevelN1, ExamModeChallenge, TimeModeCustom, 25, ChallengeTimeoutMinutes, false},
		{"custom within range", LevelN2, ExamModePractice, TimeModeCustom, 25, 25, false},
		{"custom clamped low", LevelN2, ExamModePractice, TimeModeCustom, 1, CustomTimeoutMin, false},
		{"custom clamped high", LevelN2, ExamModePractice, TimeModeCustom, 999, CustomTimeoutMax, false},
		{"unlimited", LevelN1, ExamModePractice, TimeModeUnlimited, 0, 0, true},
		{"unknown level falls back", Level("N9"), ExamModePractice, TimeModeDefault, 0, DefaultTimeoutMinutes, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			minutes, unlimited := TimeLimitFor(tt.level, tt.mode, tt.timeMode, tt.custom)
			if minutes != tt.wantMinutes || unlimited != tt.wantUnlimited {
				t.Errorf("TimeLimitFor() = %d, %v; want %d, %v", minutes, unlimited, tt.wantMinutes, tt.wantUnlimited)
			}
		})
	}
}

func TestQuestionCountFor(t *testing.T) {
	if got := QuestionCountFor(LevelN1, ExamModePractice); got != 60 {
		t.Errorf("N1 practice = %d, want 60", got)
	}
	if got := QuestionCountFor(LevelN1, ExamModeChallenge); got != ChallengeQuestionCount {
		t.Errorf("N1 challenge = %d, want %d", got, ChallengeQuestionCount)
	}
	if got := QuestionCountFor(Level("X"), ExamModePractice); got != 40 {
		t.Errorf("unknown level = %d, want 40", got)
	}
}

func TestAnswerValid(t *testing.T) {
	for _, a := range []Answer{AnswerA, AnswerB, AnswerC, AnswerD} {
		if !a.Valid() {
			t.Errorf("%q should be valid", a)
		}
	}
	for _, a := range []Answer{"", "E", "a"} {
		if a.Valid() {
			t.Errorf("%q should be invalid", a)
		}
	}
}
