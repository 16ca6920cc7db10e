package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/classqa/internal/model"
)

const answerSelect = `SELECT a.id, a.session_id, a.text, a.timestamp, a.student_id,
        COALESCE(a.question_text, ''), COALESCE(a.active_question_id, ''),
        COUNT(l.user_id), COALESCE(ARRAY_AGG(l.user_id ORDER BY l.created_at) FILTER (WHERE l.user_id IS NOT NULL), '{}')
 FROM answers a
 LEFT JOIN answer_likes l ON l.answer_id = a.id`

// AnswerRepository handles answer and like data access.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

func scanAnswer(row pgx.Row) (*model.Answer, error) {
	a := &model.Answer{}
	if err := row.Scan(&a.ID, &a.SessionID, &a.Text, &a.Timestamp, &a.StudentID,
		&a.QuestionText, &a.ActiveQuestionID, &a.Likes, &a.LikedBy); err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts an answer.
func (r *AnswerRepository) Create(ctx context.Context, a *model.Answer) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO answers (id, session_id, text, timestamp, student_id, question_text, active_question_id)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''))`,
		a.ID, a.SessionID, a.Text, a.Timestamp, a.StudentID, a.QuestionText, a.ActiveQuestionID,
	)
	return err
}

// GetByID retrieves an answer with its persisted likes.
func (r *AnswerRepository) GetByID(ctx context.Context, id string) (*model.Answer, error) {
	return scanAnswer(r.pool.QueryRow(ctx, answerSelect+` WHERE a.id = $1 GROUP BY a.id`, id))
}

// ListBySession returns a session's answers in submission order.
func (r *AnswerRepository) ListBySession(ctx context.Context, sessionID string) ([]model.Answer, error) {
	rows, err := r.pool.Query(ctx,
		answerSelect+` WHERE a.session_id = $1 GROUP BY a.id ORDER BY a.timestamp, a.id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := []model.Answer{}
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, *a)
	}
	return answers, rows.Err()
}

// AddLikes records likes in one statement. Pairs are matched by index;
// repeats and likes on deleted answers are ignored.
func (r *AnswerRepository) AddLikes(ctx context.Context, answerIDs, userIDs []string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO answer_likes (answer_id, user_id)
		 SELECT l.answer_id, l.user_id
		 FROM UNNEST($1::text[], $2::text[]) AS l(answer_id, user_id)
		 JOIN answers a ON a.id = l.answer_id
		 ON CONFLICT (answer_id, user_id) DO NOTHING`,
		answerIDs, userIDs)
	return err
}

// AddLike records a like. Repeats are ignored.
func (r *AnswerRepository) AddLike(ctx context.Context, answerID, userID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO answer_likes (answer_id, user_id) VALUES ($1, $2)
		 ON CONFLICT (answer_id, user_id) DO NOTHING`,
		answerID, userID)
	return err
}
