package model

import (
	"time"

	"github.com/google/uuid"
)

// ViolationRecord is one anti-cheat violation as stored in the audit log.
type ViolationRecord struct {
	SessionID  uuid.UUID      `json:"session_id"`
	UserID     string         `json:"user_id"`
	ExamTitle  string         `json:"exam_title"`
	Mode       ExamMode       `json:"mode"`
	Type       string         `json:"type"`
	Severity   string         `json:"severity"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
