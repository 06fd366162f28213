package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stemsi/jlpt-proctor/internal/model"
)

// PracticeHistoryRepository handles finished attempt records.
type PracticeHistoryRepository struct {
	db DBTX
}

// NewPracticeHistoryRepository creates a new PracticeHistoryRepository.
func NewPracticeHistoryRepository(db DBTX) *PracticeHistoryRepository {
	return &PracticeHistoryRepository{db: db}
}

const historyColumns = `id, user_id, exam_title, level, mode, reason, total_questions, correct_answers,
	incorrect_answers, unanswered_questions, percentage, status, time_spent, time_limit,
	violation_count, answers, finished_at`

// ListByUser returns a page of the user's history, newest first, and the total count.
func (r *PracticeHistoryRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.PracticeRecord, int, error) {
	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM practice_history WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+historyColumns+`
		 FROM practice_history WHERE user_id = $1
		 ORDER BY finished_at DESC
		 LIMIT $2 OFFSET $3`, userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	records := make([]model.PracticeRecord, 0, limit)
	for rows.Next() {
		var rec model.PracticeRecord
		var level, mode, reason, status string
		var answers []byte
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.ExamTitle, &level, &mode, &reason,
			&rec.TotalQuestions, &rec.CorrectAnswers, &rec.IncorrectAnswers, &rec.UnansweredQuestions,
			&rec.Percentage, &status, &rec.TimeSpentSeconds, &rec.TimeLimitSeconds,
			&rec.ViolationCount, &answers, &rec.FinishedAt); err != nil {
			return nil, 0, fmt.Errorf("scan history: %w", err)
		}
		rec.Level = model.Level(level)
		rec.Mode = model.ExamMode(mode)
		rec.Reason = model.FinalizeReason(reason)
		rec.Status = model.PerformanceStatus(status)
		if err := json.Unmarshal(answers, &rec.Answers); err != nil {
			return nil, 0, fmt.Errorf("decode answers of %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

// InsertBatch writes records in one statement. Records already stored are skipped.
func (r *PracticeHistoryRepository) InsertBatch(ctx context.Context, recs []model.PracticeRecord) error {
	if len(recs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range recs {
		args, err := historyArgs(rec)
		if err != nil {
			return err
		}
		batch.Queue(insertHistorySQL, args...)
	}
	return r.db.SendBatch(ctx, batch).Close()
}

// Insert writes a single record.
func (r *PracticeHistoryRepository) Insert(ctx context.Context, rec model.PracticeRecord) error {
	args, err := historyArgs(rec)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, insertHistorySQL, args...)
	return err
}

const insertHistorySQL = `INSERT INTO practice_history (` + historyColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (id) DO NOTHING`

func historyArgs(rec model.PracticeRecord) ([]any, error) {
	if rec.ID == uuid.Nil {
		return nil, fmt.Errorf("history record without id")
	}
	answers, err := json.Marshal(rec.Answers)
	if err != nil {
		return nil, fmt.Errorf("encode answers: %w", err)
	}
	finished := rec.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	return []any{
		rec.ID, rec.UserID, rec.ExamTitle, string(rec.Level), string(rec.Mode), string(rec.Reason),
		rec.TotalQuestions, rec.CorrectAnswers, rec.IncorrectAnswers, rec.UnansweredQuestions,
		rec.Percentage, string(rec.Status), rec.TimeSpentSeconds, rec.TimeLimitSeconds,
		rec.ViolationCount, string(answers), finished,
	}, nil
}
