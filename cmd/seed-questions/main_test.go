package main

import (
	"testing"

	"github.com/stemsi/jlpt-proctor/internal/model"
)

func TestParseSeed(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    int
		wantErr bool
	}{
		{
			name: "valid",
			yaml: `
questions:
  - level: n5
    question: "「やま」の漢字は？"
    options: {A: 山, B: 川, C: 木, D: 火}
    correct: A
`,
			want: 1,
		},
		{
			name: "unknown level",
			yaml: `
questions:
  - level: N7
    question: q
    options: {A: a, B: b, C: c, D: d}
    correct: A
`,
			wantErr: true,
		},
		{
			name: "missing option",
			yaml: `
questions:
  - level: N5
    question: q
    options: {A: a, B: b, C: c}
    correct: A
`,
			wantErr: true,
		},
		{
			name: "bad answer",
			yaml: `
questions:
  - level: N5
    question: q
    options: {A: a, B: b, C: c, D: d}
    correct: E
`,
			wantErr: true,
		},
		{name: "malformed", yaml: "questions: [", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSeed([]byte(tt.yaml))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSeed() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != tt.want {
				t.Fatalf("len = %d, want %d", len(got), tt.want)
			}
			q := got[0]
			if q.Level != model.LevelN5 || q.Section != "vocabulary" || q.CorrectAnswer != model.AnswerA || q.Options.A != "山" {
				t.Errorf("question = %+v", q)
			}
		})
	}
}
