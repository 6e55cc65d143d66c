package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"live-session-engine/internal/domain"
)

// QuestionLoader loads question content from Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	var (
		q                  domain.Question
		qtype              string
		options, rawAnswer []byte
	)
	err := l.pool.QueryRow(ctx, `
SELECT id, text, type, options, correct_answer, points, time_limit_seconds
FROM questions
WHERE id = $1`, questionID,
	).Scan(&q.ID, &q.Text, &qtype, &options, &rawAnswer, &q.Points, &q.TimeLimitSeconds)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	q.Type = domain.QuestionType(qtype)
	if len(options) > 0 {
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return domain.Question{}, fmt.Errorf("unmarshal options: %w", err)
		}
	}
	if len(rawAnswer) > 0 {
		if err := json.Unmarshal(rawAnswer, &q.CorrectAnswer); err != nil {
			return domain.Question{}, fmt.Errorf("unmarshal correct answer: %w", err)
		}
	}
	return q, nil
}

// SaveQuestion inserts or replaces a question.
func (l *QuestionLoader) SaveQuestion(ctx context.Context, q domain.Question) error {
	options := q.Options
	if options == nil {
		options = []string{}
	}
	optData, err := json.Marshal(options)
	if err != nil {
		return err
	}
	answerData, err := json.Marshal(q.CorrectAnswer)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `
INSERT INTO questions (id, text, type, options, correct_answer, points, time_limit_seconds)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
    text = EXCLUDED.text,
    type = EXCLUDED.type,
    options = EXCLUDED.options,
    correct_answer = EXCLUDED.correct_answer,
    points = EXCLUDED.points,
    time_limit_seconds = EXCLUDED.time_limit_seconds`,
		q.ID, q.Text, string(q.Type), string(optData), string(answerData), q.Points, q.TimeLimitSeconds)
	return err
}
