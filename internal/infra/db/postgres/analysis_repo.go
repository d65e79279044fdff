package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	domain "github.com/bryanwahyu/codescan/internal/domain/analyses"
	"github.com/bryanwahyu/codescan/internal/domain/apperr"
	"github.com/bryanwahyu/codescan/internal/domain/projects"
)

type AnalysisRepository struct{ db *sql.DB }

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository { return &AnalysisRepository{db: db} }

var _ domain.Repository = (*AnalysisRepository)(nil)

func (r *AnalysisRepository) Save(ctx context.Context, run *domain.Run) error {
	const q = `
INSERT INTO analysis_runs
  (id, project_id, project_key, issues_json, issues_count,
   blocker, critical, major, minor, info, dashboard_url, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	issues, err := json.Marshal(run.Issues)
	if err != nil {
		return apperr.Persistence("encode issues", err)
	}
	run.CreatedAt = nowIfZero(run.CreatedAt)
	c := run.SeverityCounts
	_, err = r.db.ExecContext(ctx, q,
		run.ID, run.ProjectID, stringOrDash(run.ProjectKey), string(issues), run.IssuesCount,
		c.Blocker, c.Critical, c.Major, c.Minor, c.Info, run.DashboardURL, run.CreatedAt,
	)
	if err != nil {
		return apperr.Persistence("insert analysis run", err)
	}
	return nil
}

func (r *AnalysisRepository) Latest(ctx context.Context, project projects.ProjectID) (*domain.Run, error) {
	const q = `
SELECT id, project_id, project_key, issues_json, issues_count,
       blocker, critical, major, minor, info, dashboard_url, created_at
FROM analysis_runs
WHERE project_id = $1
ORDER BY created_at DESC, id DESC
LIMIT 1`
	var (
		run    domain.Run
		issues []byte
		c      domain.SeverityCounts
	)
	err := r.db.QueryRowContext(ctx, q, project).Scan(
		&run.ID, &run.ProjectID, &run.ProjectKey, &issues, &run.IssuesCount,
		&c.Blocker, &c.Critical, &c.Major, &c.Minor, &c.Info, &run.DashboardURL, &run.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Persistence("select analysis run", err)
	}
	if err := json.Unmarshal(issues, &run.Issues); err != nil {
		return nil, apperr.Persistence("decode issues", err)
	}
	c.Total = run.IssuesCount
	run.SeverityCounts = c
	return &run, nil
}
