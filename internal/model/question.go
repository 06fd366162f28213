package model

// Answer is a selected multiple-choice option.
type Answer string

const (
	AnswerA Answer = "A"
	AnswerB Answer = "B"
	AnswerC Answer = "C"
	AnswerD Answer = "D"
)

// Valid reports whether a is one of A-D.
func (a Answer) Valid() bool {
	switch a {
	case AnswerA, AnswerB, AnswerC, AnswerD:
		return true
	}
	return false
}

// Options holds the four choices of a question.
type Options struct {
	A string `json:"A"`
	B string `json:"B"`
	C string `json:"C"`
	D string `json:"D"`
}

// Question is a single JLPT multiple-choice question. Questions are numbered
// from 1 within an attempt.
type Question struct {
	ID            int     `json:"id"`
	SourceID      int64   `json:"-"`
	Level         Level   `json:"level"`
	Section       string  `json:"section,omitempty"`
	Prompt        string  `json:"question"`
	Options       Options `json:"options"`
	CorrectAnswer Answer  `json:"-"`
}

// AnswerRequest is the body for selecting an answer.
type AnswerRequest struct {
	QuestionID int    `json:"question_id" binding:"required,min=1"`
	Answer     Answer `json:"answer" binding:"required,oneof=A B C D"`
}
