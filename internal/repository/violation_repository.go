package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/stemsi/jlpt-proctor/internal/model"
)

// ViolationRepository handles the anti-cheat audit log.
type ViolationRepository struct {
	db DBTX
}

// NewViolationRepository creates a new ViolationRepository.
func NewViolationRepository(db DBTX) *ViolationRepository {
	return &ViolationRepository{db: db}
}

var violationColumns = []string{"session_id", "user_id", "exam_title", "mode", "type", "severity", "message", "details", "occurred_at"}

// CopyBatch bulk-loads records with COPY.
func (r *ViolationRepository) CopyBatch(ctx context.Context, recs []model.ViolationRecord) (int64, error) {
	rows := make([][]any, 0, len(recs))
	for _, v := range recs {
		details, err := encodeDetails(v.Details)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{
			v.SessionID, v.UserID, v.ExamTitle, string(v.Mode), v.Type, v.Severity, v.Message, details, v.OccurredAt,
		})
	}

	return r.db.CopyFrom(ctx,
		pgx.Identifier{"exam_violations"},
		violationColumns,
		pgx.CopyFromRows(rows),
	)
}

// Insert writes a single record.
func (r *ViolationRepository) Insert(ctx context.Context, v model.ViolationRecord) error {
	details, err := encodeDetails(v.Details)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO exam_violations (session_id, user_id, exam_title, mode, type, severity, message, details, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)`,
		v.SessionID, v.UserID, v.ExamTitle, string(v.Mode), v.Type, v.Severity, v.Message, details, v.OccurredAt,
	)
	return err
}

// ListRecent returns the latest violations across all attempts.
func (r *ViolationRepository) ListRecent(ctx context.Context, limit int) ([]model.ViolationRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT session_id, user_id, exam_title, mode, type, severity, message, details, occurred_at
		 FROM exam_violations
		 ORDER BY occurred_at DESC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query violations: %w", err)
	}
	defer rows.Close()

	out := make([]model.ViolationRecord, 0, limit)
	for rows.Next() {
		var v model.ViolationRecord
		var mode string
		var details []byte
		if err := rows.Scan(&v.SessionID, &v.UserID, &v.ExamTitle, &mode, &v.Type, &v.Severity,
			&v.Message, &details, &v.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan violation: %w", err)
		}
		v.Mode = model.ExamMode(mode)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &v.Details); err != nil {
				return nil, fmt.Errorf("decode violation details: %w", err)
			}
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func encodeDetails(d map[string]any) (string, error) {
	if d == nil {
		return "{}", nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encode violation details: %w", err)
	}
	return string(b), nil
}
