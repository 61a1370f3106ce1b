package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trailpoints/internal/domain"
)

// CatalogLoader reads questions and answers straight from Postgres.
type CatalogLoader struct {
	pool *pgxpool.Pool
}

func NewCatalogLoader(pool *pgxpool.Pool) *CatalogLoader {
	return &CatalogLoader{pool: pool}
}

func (l *CatalogLoader) Question(ctx context.Context, questionID string) (domain.Question, error) {
	var q domain.Question
	err := l.pool.QueryRow(ctx,
		`SELECT id, trail_id, text, image, point FROM questions WHERE id = $1`, questionID).
		Scan(&q.ID, &q.TrailID, &q.Text, &q.Image, &q.Point)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}

	answers, err := l.answers(ctx, []string{q.ID})
	if err != nil {
		return domain.Question{}, err
	}
	q.Answers = answers[q.ID]
	return q, nil
}

func (l *CatalogLoader) Answer(ctx context.Context, answerID string) (domain.Answer, error) {
	var a domain.Answer
	err := l.pool.QueryRow(ctx,
		`SELECT id, question_id, text, is_correct FROM answers WHERE id = $1`, answerID).
		Scan(&a.ID, &a.QuestionID, &a.Text, &a.IsCorrect)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Answer{}, domain.ErrAnswerNotFound
	}
	if err != nil {
		return domain.Answer{}, fmt.Errorf("load answer: %w", err)
	}
	return a, nil
}

func (l *CatalogLoader) TrailQuestions(ctx context.Context, trailID string) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, trail_id, text, image, point FROM questions WHERE trail_id = $1 ORDER BY position, id`, trailID)
	if err != nil {
		return nil, fmt.Errorf("load trail questions: %w", err)
	}
	defer rows.Close()

	questions := []domain.Question{}
	var ids []string
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.TrailID, &q.Text, &q.Image, &q.Point); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
		ids = append(ids, q.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load trail questions: %w", err)
	}
	if len(ids) == 0 {
		return questions, nil
	}

	answers, err := l.answers(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range questions {
		questions[i].Answers = answers[questions[i].ID]
	}
	return questions, nil
}

func (l *CatalogLoader) answers(ctx context.Context, questionIDs []string) (map[string][]domain.Answer, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, question_id, text, is_correct FROM answers WHERE question_id = ANY($1) ORDER BY position, id`, questionIDs)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.Answer, len(questionIDs))
	for rows.Next() {
		var a domain.Answer
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.Text, &a.IsCorrect); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		out[a.QuestionID] = append(out[a.QuestionID], a)
	}
	return out, rows.Err()
}
