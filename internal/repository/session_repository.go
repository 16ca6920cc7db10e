package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/classqa/internal/model"
)

// ErrDuplicateActiveCode is returned when an active session already holds the code.
var ErrDuplicateActiveCode = errors.New("class code already in use by an active session")

const sessionColumns = `id, code, class_name, professor_id, status, start_time, end_time`

// SessionRepository handles class session data access.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func scanSession(row pgx.Row) (*model.ClassSession, error) {
	s := &model.ClassSession{}
	if err := row.Scan(&s.ID, &s.Code, &s.ClassName, &s.ProfessorID, &s.Status, &s.StartTime, &s.EndTime); err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new active session.
func (r *SessionRepository) Create(ctx context.Context, s *model.ClassSession) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO class_sessions (id, code, class_name, professor_id, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING start_time`,
		s.ID, s.Code, s.ClassName, s.ProfessorID, s.Status,
	).Scan(&s.StartTime)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateActiveCode
		}
		return err
	}
	return nil
}

// GetByID retrieves a session by ID.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*model.ClassSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM class_sessions WHERE id = $1`, id))
}

// GetActiveByCode retrieves the active session holding a code.
func (r *SessionRepository) GetActiveByCode(ctx context.Context, code string) (*model.ClassSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM class_sessions WHERE code = $1 AND status = 'active'`, code))
}

// ListByProfessor returns a professor's sessions, newest first.
func (r *SessionRepository) ListByProfessor(ctx context.Context, professorID string) ([]model.ClassSession, error) {
	return r.list(ctx,
		`SELECT `+sessionColumns+` FROM class_sessions WHERE professor_id = $1 ORDER BY start_time DESC`,
		professorID)
}

// ListEnded returns closed and archived sessions for retention planning.
func (r *SessionRepository) ListEnded(ctx context.Context) ([]model.ClassSession, error) {
	return r.list(ctx,
		`SELECT `+sessionColumns+` FROM class_sessions WHERE status IN ('closed', 'archived') ORDER BY end_time`)
}

func (r *SessionRepository) list(ctx context.Context, query string, args ...any) ([]model.ClassSession, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []model.ClassSession{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// Close ends an active session. Returns false if it was not active.
func (r *SessionRepository) Close(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE class_sessions SET status = 'closed', end_time = $2
		 WHERE id = $1 AND status = 'active'`, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Archive moves closed sessions to archived. Returns the number changed.
func (r *SessionRepository) Archive(ctx context.Context, ids []string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE class_sessions SET status = 'archived'
		 WHERE id = ANY($1) AND status = 'closed'`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Delete removes ended sessions and, by cascade, their questions and answers.
func (r *SessionRepository) Delete(ctx context.Context, ids []string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM class_sessions WHERE id = ANY($1) AND status <> 'active'`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
