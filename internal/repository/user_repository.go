package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/classqa/internal/model"
)

// UserRepository handles participant data access.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts a participant. ID must already be set.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO users (id, name, email, type)
		 VALUES ($1, $2, NULLIF($3, ''), $4)
		 RETURNING created_at`,
		u.ID, u.Name, u.Email, u.Type,
	).Scan(&u.CreatedAt)
}

// GetByID retrieves a participant.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	u := &model.User{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, COALESCE(email, ''), type, created_at
		 FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Type, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}
