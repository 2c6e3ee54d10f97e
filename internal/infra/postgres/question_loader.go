package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"timed-quiz-service/internal/domain"
)

// QuestionLoader reads the full question bank straight from Postgres. It backs the
// question caches, which hit it once per TTL rather than once per answer.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, question_text, question_image, is_image,
		       option_a, option_b, option_c, option_d,
		       correct_answer, difficulty, created_by, created_at
		FROM questions
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		var (
			q          domain.Question
			difficulty string
		)
		if err := rows.Scan(
			&q.ID, &q.QuestionText, &q.QuestionImage, &q.IsImage,
			&q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD,
			&q.CorrectAnswer, &difficulty, &q.CreatedBy, &q.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Difficulty = domain.Difficulty(difficulty)
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return out, nil
}
