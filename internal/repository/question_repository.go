package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/classqa/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// Create inserts a question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO questions (id, session_id, text, timestamp, student_id, status)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
		q.ID, q.SessionID, q.Text, q.Timestamp, q.StudentID, q.Status,
	)
	return err
}

// GetByID retrieves a question.
func (r *QuestionRepository) GetByID(ctx context.Context, id string) (*model.Question, error) {
	q := &model.Question{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, session_id, text, timestamp, COALESCE(student_id, ''), status
		 FROM questions WHERE id = $1`, id,
	).Scan(&q.ID, &q.SessionID, &q.Text, &q.Timestamp, &q.StudentID, &q.Status)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// ListBySession returns a session's questions in submission order.
// Student IDs are not selected.
func (r *QuestionRepository) ListBySession(ctx context.Context, sessionID string) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, text, timestamp, status
		 FROM questions WHERE session_id = $1
		 ORDER BY timestamp, id`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.SessionID, &q.Text, &q.Timestamp, &q.Status); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// MarkAnswered flips an unanswered question to answered. It reports
// whether this call made the change; answered questions never flip back.
func (r *QuestionRepository) MarkAnswered(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE questions SET status = 'answered'
		 WHERE id = $1 AND status = 'unanswered'`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
