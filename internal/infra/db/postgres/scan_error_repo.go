package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/bryanwahyu/codescan/internal/domain/apperr"
	domain "github.com/bryanwahyu/codescan/internal/domain/scanerrors"
)

type ScanErrorRepository struct{ db *sql.DB }

func NewScanErrorRepository(db *sql.DB) *ScanErrorRepository { return &ScanErrorRepository{db: db} }

var _ domain.Repository = (*ScanErrorRepository)(nil)

func (r *ScanErrorRepository) Save(ctx context.Context, e *domain.ScanError) error {
	const q = `
INSERT INTO scan_errors (project_id, project_key, phase, reason, message, details, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id`
	msg := e.Message
	if strings.TrimSpace(msg) == "" {
		msg = "-"
	}
	e.CreatedAt = nowIfZero(e.CreatedAt)
	err := r.db.QueryRowContext(ctx, q,
		e.ProjectID, stringOrDash(e.ProjectKey), stringOrDash(string(e.Phase)), stringOrDash(e.Reason),
		msg, e.Details, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return apperr.Persistence("insert scan error", err)
	}
	return nil
}

func (r *ScanErrorRepository) ListByProject(ctx context.Context, projectID string, limit int) ([]*domain.ScanError, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, project_id, project_key, phase, reason, message, details, created_at
FROM scan_errors
WHERE project_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, projectID, limit)
	if err != nil {
		return nil, apperr.Persistence("list scan errors", err)
	}
	defer rows.Close()

	out := []*domain.ScanError{}
	for rows.Next() {
		var e domain.ScanError
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.ProjectKey, &e.Phase, &e.Reason, &e.Message, &e.Details, &e.CreatedAt); err != nil {
			return nil, apperr.Persistence("scan scan error", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list scan errors", err)
	}
	return out, nil
}
