package mysql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/bryanwahyu/codescan/internal/domain/apperr"
	domain "github.com/bryanwahyu/codescan/internal/domain/users"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository { return &UserRepository{db: db} }

var _ domain.Repository = (*UserRepository)(nil)

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	const q = `
INSERT INTO users (id, email, password_hash, created_at)
VALUES (?,?,?,?)`
	u.CreatedAt = nowIfZero(u.CreatedAt)
	_, err := r.db.ExecContext(ctx, q, u.ID, u.Email, u.PasswordHash, u.CreatedAt)
	if isDuplicate(err) {
		return apperr.Conflict("email already registered")
	}
	if err != nil {
		return apperr.Persistence("insert user", err)
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const q = `
SELECT id, email, password_hash, created_at
FROM users
WHERE email = ? LIMIT 1`
	var u domain.User
	err := r.db.QueryRowContext(ctx, q, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Persistence("select user", err)
	}
	return &u, nil
}
