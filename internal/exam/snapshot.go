package exam

import (
	"encoding/json"
	"errors"
	"sort"

	"github.com/stemsi/jlpt-proctor/internal/model"
)

// ErrMalformedState marks a persisted value that could not be used.
var ErrMalformedState = errors.New("malformed persisted state")

// Snapshot is the persisted practice-mode shape.
type Snapshot struct {
	CurrentQuestion int                  `json:"currentQuestion"`
	Answers         map[int]model.Answer `json:"answers"`
	Flagged         []int                `json:"flagged"`
	TimeRemaining   *int                 `json:"timeRemaining,omitempty"`
}

func encodeSnapshot(st State, timeRemaining *int) (string, error) {
	snap := Snapshot{
		CurrentQuestion: st.CurrentQuestion,
		Answers:         st.Answers,
		Flagged:         st.Flagged,
		TimeRemaining:   timeRemaining,
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeSnapshot parses a persisted value, discarding entries that do not fit
// an attempt of total questions.
func decodeSnapshot(raw string, total int) (State, *int, error) {
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return State{}, nil, errors.Join(ErrMalformedState, err)
	}
	if snap.Answers == nil && snap.Flagged == nil && snap.TimeRemaining == nil && snap.CurrentQuestion == 0 {
		return State{}, nil, ErrMalformedState
	}

	st := NewState()
	if snap.CurrentQuestion >= 1 && snap.CurrentQuestion <= total {
		st.CurrentQuestion = snap.CurrentQuestion
	}

	ids := make([]int, 0, len(snap.Answers))
	for id := range snap.Answers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if a := snap.Answers[id]; id >= 1 && id <= total && a.Valid() {
			st.Answers[id] = a
		}
	}

	seen := make(map[int]bool, len(snap.Flagged))
	for _, id := range snap.Flagged {
		if id >= 1 && id <= total && !seen[id] {
			seen[id] = true
			st.Flagged = append(st.Flagged, id)
		}
	}

	var remaining *int
	if snap.TimeRemaining != nil && *snap.TimeRemaining >= 0 {
		r := *snap.TimeRemaining
		remaining = &r
	}
	return st, remaining, nil
}
