package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/bryanwahyu/codescan/internal/domain/apperr"
	domain "github.com/bryanwahyu/codescan/internal/domain/projects"
	"github.com/bryanwahyu/codescan/internal/domain/users"
)

type ProjectRepository struct{ db *sql.DB }

func NewProjectRepository(db *sql.DB) *ProjectRepository { return &ProjectRepository{db: db} }

var _ domain.Repository = (*ProjectRepository)(nil)

func (r *ProjectRepository) Create(ctx context.Context, p *domain.Project) error {
	const q = `INSERT INTO projects (id, user_id, project_key, name, created_at) VALUES ($1,$2,$3,$4,$5)`
	p.CreatedAt = nowIfZero(p.CreatedAt)
	if _, err := r.db.ExecContext(ctx, q, p.ID, p.OwnerID, p.Key, p.Name, p.CreatedAt); err != nil {
		return apperr.Persistence("insert project", err)
	}
	return nil
}

func (r *ProjectRepository) ListByOwner(ctx context.Context, owner users.UserID) ([]*domain.Project, error) {
	const q = `
SELECT id, user_id, project_key, name, created_at
FROM projects
WHERE user_id = $1
ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, owner)
	if err != nil {
		return nil, apperr.Persistence("list projects", err)
	}
	defer rows.Close()

	out := []*domain.Project{}
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Key, &p.Name, &p.CreatedAt); err != nil {
			return nil, apperr.Persistence("scan project", err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list projects", err)
	}
	return out, nil
}

func (r *ProjectRepository) GetByKey(ctx context.Context, owner users.UserID, key string) (*domain.Project, error) {
	const q = `
SELECT id, user_id, project_key, name, created_at
FROM projects
WHERE user_id = $1 AND project_key = $2
LIMIT 1`
	return r.one(ctx, q, owner, key)
}

func (r *ProjectRepository) FindByName(ctx context.Context, owner users.UserID, name string) (*domain.Project, error) {
	const q = `
SELECT id, user_id, project_key, name, created_at
FROM projects
WHERE user_id = $1 AND name = $2
ORDER BY created_at DESC
LIMIT 1`
	return r.one(ctx, q, owner, name)
}

func (r *ProjectRepository) one(ctx context.Context, q string, args ...any) (*domain.Project, error) {
	var p domain.Project
	err := r.db.QueryRowContext(ctx, q, args...).Scan(&p.ID, &p.OwnerID, &p.Key, &p.Name, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Persistence("select project", err)
	}
	return &p, nil
}

func (r *ProjectRepository) Delete(ctx context.Context, owner users.UserID, key string) (bool, error) {
	const q = `DELETE FROM projects WHERE user_id = $1 AND project_key = $2`
	res, err := r.db.ExecContext(ctx, q, owner, key)
	if err != nil {
		return false, apperr.Persistence("delete project", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Persistence("delete project", err)
	}
	return n > 0, nil
}
