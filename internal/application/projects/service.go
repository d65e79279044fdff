package projects

import (
	"context"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/codescan/internal/application"
	"github.com/bryanwahyu/codescan/internal/domain/analyses"
	"github.com/bryanwahyu/codescan/internal/domain/apperr"
	"github.com/bryanwahyu/codescan/internal/domain/engine"
	domain "github.com/bryanwahyu/codescan/internal/domain/projects"
	"github.com/bryanwahyu/codescan/internal/domain/scanerrors"
	"github.com/bryanwahyu/codescan/internal/domain/users"
)

// DefaultMetricKeys are the engine measures exposed per project.
var DefaultMetricKeys = []string{"bugs", "vulnerabilities", "code_smells", "security_rating", "reliability_rating"}

// Service implements project use-cases: CRUD, provisioning and results.
type Service struct {
	Repo       domain.Repository
	Runs       analyses.Repository
	ScanErrors scanerrors.Repository
	Engine     engine.Engine
	Clock      application.Clock
	Log        *zap.Logger
	// PublicEngineURL is the engine base URL shown to users in dashboard links.
	PublicEngineURL string
}

func (s *Service) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

// Create registers the project in the engine, then stores it locally. When the
// local insert fails the engine project is deleted again.
func (s *Service) Create(ctx context.Context, owner users.UserID, name string) (*domain.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("project name is required")
	}
	now := s.Clock.Now()
	p := &domain.Project{
		ID:        domain.ProjectID(uuid.NewString()),
		OwnerID:   owner,
		Key:       domain.NewKey(owner, name, now),
		Name:      name,
		CreatedAt: now,
	}
	if err := s.Engine.CreateProject(ctx, p.Key, p.Name); err != nil {
		return nil, err
	}
	if err := s.Repo.Create(ctx, p); err != nil {
		// kompensasi: hapus project di engine supaya dua store tetap konsisten
		if derr := s.Engine.DeleteProject(context.WithoutCancel(ctx), p.Key); derr != nil {
			s.logger().Error("compensating engine delete failed",
				zap.String("project_key", p.Key), zap.Error(derr))
		}
		return nil, err
	}
	s.logger().Info("project created", zap.String("project_key", p.Key), zap.String("user_id", string(owner)))
	return p, nil
}

// List returns the owner's projects newest first.
func (s *Service) List(ctx context.Context, owner users.UserID) ([]*domain.Project, error) {
	return s.Repo.ListByOwner(ctx, owner)
}

// Delete removes the local record only; the engine project is kept.
func (s *Service) Delete(ctx context.Context, owner users.UserID, key string) error {
	ok, err := s.Repo.Delete(ctx, owner, key)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("project not found")
	}
	return nil
}

// Resolve returns the owner's project with that key.
func (s *Service) Resolve(ctx context.Context, owner users.UserID, key string) (*domain.Project, error) {
	if strings.TrimSpace(key) == "" {
		return nil, apperr.Validation("projectKey is required")
	}
	p, err := s.Repo.GetByKey(ctx, owner, key)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.NotFound("project not found")
	}
	return p, nil
}

// Ensure returns the owner's project with that name, creating it when absent.
// The bool reports whether a project was created.
func (s *Service) Ensure(ctx context.Context, owner users.UserID, name string) (*domain.Project, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, apperr.Validation("project name is required")
	}
	p, err := s.Repo.FindByName(ctx, owner, name)
	if err != nil {
		return nil, false, err
	}
	if p != nil {
		return p, false, nil
	}
	p, err = s.Create(ctx, owner, name)
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// SaveResults stores a run for the project. An empty issue list is rejected.
func (s *Service) SaveResults(ctx context.Context, owner users.UserID, key string, issues []analyses.Issue) (*analyses.Run, error) {
	if len(issues) == 0 {
		return nil, apperr.Validation("issues are required")
	}
	p, err := s.Resolve(ctx, owner, key)
	if err != nil {
		return nil, err
	}
	return s.RecordRun(ctx, p, issues)
}

// RecordRun stores a run for an already resolved project. Zero issues is a
// valid outcome here: a clean snippet still produces a run.
func (s *Service) RecordRun(ctx context.Context, p *domain.Project, issues []analyses.Issue) (*analyses.Run, error) {
	if issues == nil {
		issues = []analyses.Issue{}
	}
	run := &analyses.Run{
		ID:             analyses.RunID(uuid.NewString()),
		ProjectID:      p.ID,
		ProjectKey:     p.Key,
		CreatedAt:      s.Clock.Now(),
		Issues:         issues,
		IssuesCount:    len(issues),
		SeverityCounts: analyses.CountSeverities(issues),
		DashboardURL:   s.dashboardURL(p.Key),
	}
	if err := s.Runs.Save(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// Latest returns the newest run of the owner's project.
func (s *Service) Latest(ctx context.Context, owner users.UserID, key string) (*analyses.Run, error) {
	p, err := s.Resolve(ctx, owner, key)
	if err != nil {
		return nil, err
	}
	run, err := s.Runs.Latest(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, apperr.NotFound("no analysis results for project")
	}
	return run, nil
}

// Metrics proxies the engine measures of an owned project.
func (s *Service) Metrics(ctx context.Context, owner users.UserID, key string) (map[string]any, error) {
	p, err := s.Resolve(ctx, owner, key)
	if err != nil {
		return nil, err
	}
	return s.Engine.Measures(ctx, p.Key, DefaultMetricKeys)
}

// Errors lists the most recent submission failures of an owned project.
func (s *Service) Errors(ctx context.Context, owner users.UserID, key string, limit int) ([]*scanerrors.ScanError, error) {
	p, err := s.Resolve(ctx, owner, key)
	if err != nil {
		return nil, err
	}
	return s.ScanErrors.ListByProject(ctx, string(p.ID), limit)
}

// RecordFailure persists a submission failure. Persistence errors are logged
// and dropped so the original failure reaches the caller.
func (s *Service) RecordFailure(ctx context.Context, p *domain.Project, e *scanerrors.ScanError) {
	if s.ScanErrors == nil {
		return
	}
	e.ProjectID = string(p.ID)
	e.ProjectKey = p.Key
	e.CreatedAt = s.Clock.Now()
	if err := s.ScanErrors.Save(context.WithoutCancel(ctx), e); err != nil {
		s.logger().Error("save scan error failed", zap.String("project_key", p.Key), zap.Error(err))
	}
}

func (s *Service) dashboardURL(key string) string {
	if s.PublicEngineURL == "" {
		return ""
	}
	return strings.TrimRight(s.PublicEngineURL, "/") + "/dashboard?id=" + url.QueryEscape(key)
}
