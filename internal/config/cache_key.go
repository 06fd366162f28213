package config

import (
	"fmt"
	"strings"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamStateKey returns the key holding a user's practice progress for an exam title.
func (r *CacheKeyStruct) ExamStateKey(userID, examTitle string) string {
	return fmt.Sprintf("exam-state:%s:%s", userID, slug(examTitle))
}

// ActiveSessionKey returns the key pointing at a user's live attempt for an exam title.
func (r *CacheKeyStruct) ActiveSessionKey(userID, examTitle string) string {
	return fmt.Sprintf("user:%s:active_exam:%s", userID, slug(examTitle))
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "-")
}

var CacheKey = NewCacheKeyStruct()
