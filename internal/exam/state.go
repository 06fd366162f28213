// Package exam composes one exam attempt: answer state, the exam clock, the
// anti-cheat monitor, practice-mode persistence and single finalization.
package exam

import "github.com/stemsi/jlpt-proctor/internal/model"

// State is the answer sheet and navigation position of an attempt.
type State struct {
	CurrentQuestion int
	Answers         map[int]model.Answer
	// Flagged keeps flag order so the first flagged question is the oldest flag.
	Flagged []int
}

// Stats summarizes an attempt for the submission dialog.
type Stats struct {
	TotalQuestions      int `json:"total_questions"`
	AnsweredQuestions   int `json:"answered_questions"`
	UnansweredQuestions int `json:"unanswered_questions"`
	FlaggedQuestions    int `json:"flagged_questions"`
	TimeRemaining       int `json:"time_remaining"`
}

// NewState returns a fresh sheet positioned on question 1.
func NewState() State {
	return State{CurrentQuestion: 1, Answers: map[int]model.Answer{}, Flagged: []int{}}
}

func (s *State) selectAnswer(questionID int, a model.Answer) {
	s.Answers[questionID] = a
}

func (s *State) toggleFlag(questionID int) bool {
	for i, id := range s.Flagged {
		if id == questionID {
			s.Flagged = append(s.Flagged[:i], s.Flagged[i+1:]...)
			return false
		}
	}
	s.Flagged = append(s.Flagged, questionID)
	return true
}

func (s *State) goTo(n, total int) bool {
	if n < 1 || n > total {
		return false
	}
	s.CurrentQuestion = n
	return true
}

func (s *State) firstFlagged() (int, bool) {
	if len(s.Flagged) == 0 {
		return 0, false
	}
	return s.Flagged[0], true
}

func (s *State) stats(total, timeRemaining int) Stats {
	return Stats{
		TotalQuestions:      total,
		AnsweredQuestions:   len(s.Answers),
		UnansweredQuestions: total - len(s.Answers),
		FlaggedQuestions:    len(s.Flagged),
		TimeRemaining:       timeRemaining,
	}
}

func (s *State) clone() State {
	c := State{
		CurrentQuestion: s.CurrentQuestion,
		Answers:         make(map[int]model.Answer, len(s.Answers)),
		Flagged:         make([]int, len(s.Flagged)),
	}
	for k, v := range s.Answers {
		c.Answers[k] = v
	}
	copy(c.Flagged, s.Flagged)
	return c
}
