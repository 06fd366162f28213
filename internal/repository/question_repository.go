package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/stemsi/jlpt-proctor/internal/model"
)

// QuestionRepository handles question bank access.
type QuestionRepository struct {
	db DBTX
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(db DBTX) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// ListForExam draws the questions of one attempt. Practice attempts follow the
// bank order; challenge attempts draw a random subset. Questions are renumbered
// from 1 in the order returned.
func (r *QuestionRepository) ListForExam(ctx context.Context, level model.Level, mode model.ExamMode, limit int) ([]model.Question, error) {
	order := "section, position, id"
	if mode == model.ExamModeChallenge {
		order = "random()"
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, level, section, prompt, option_a, option_b, option_c, option_d, correct_answer
		 FROM questions WHERE level = $1
		 ORDER BY `+order+`
		 LIMIT $2`, string(level), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var lvl, correct string
		if err := rows.Scan(&q.SourceID, &lvl, &q.Section, &q.Prompt,
			&q.Options.A, &q.Options.B, &q.Options.C, &q.Options.D, &correct); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Level = model.Level(lvl)
		q.CorrectAnswer = model.Answer(correct)
		q.ID = len(questions) + 1
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// CopyQuestions bulk-loads questions into the bank. Position follows slice order.
func (r *QuestionRepository) CopyQuestions(ctx context.Context, questions []model.Question) (int64, error) {
	rows := make([][]any, len(questions))
	for i, q := range questions {
		rows[i] = []any{string(q.Level), q.Section, i + 1, q.Prompt,
			q.Options.A, q.Options.B, q.Options.C, q.Options.D, string(q.CorrectAnswer)}
	}

	n, err := r.db.CopyFrom(ctx,
		pgx.Identifier{"questions"},
		[]string{"level", "section", "position", "prompt", "option_a", "option_b", "option_c", "option_d", "correct_answer"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("copy questions: %w", err)
	}
	return n, nil
}
