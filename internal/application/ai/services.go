package ai

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/codescan/internal/application"
	projectsvc "github.com/bryanwahyu/codescan/internal/application/projects"
	"github.com/bryanwahyu/codescan/internal/domain/ai"
	"github.com/bryanwahyu/codescan/internal/domain/analyses"
	"github.com/bryanwahyu/codescan/internal/domain/apperr"
	"github.com/bryanwahyu/codescan/internal/domain/users"
	"github.com/bryanwahyu/codescan/internal/infra/ai/prompt"
)

// Service reviews the latest analysis run of a project with an AI client.
// A nil Client means the feature is switched off.
type Service struct {
	Projects *projectsvc.Service
	Client   ai.Client
	Clock    application.Clock
	Log      *zap.Logger
}

type Review struct {
	ProjectKey  string         `json:"projectKey"`
	RunID       analyses.RunID `json:"runId"`
	IssuesCount int            `json:"issuesCount"`
	Review      string         `json:"review"`
	CreatedAt   time.Time      `json:"createdAt"`
}

func NewService(projects *projectsvc.Service, client ai.Client, clock application.Clock, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Projects: projects, Client: client, Clock: clock, Log: log}
}

func (s *Service) Enabled() bool { return s.Client != nil }

// Review builds a prompt from the latest run and asks the client for a review.
func (s *Service) Review(ctx context.Context, owner users.UserID, key string) (*Review, error) {
	if !s.Enabled() {
		return nil, apperr.NotImplemented(ai.ErrNotConfigured.Error())
	}
	run, err := s.Projects.Latest(ctx, owner, key)
	if err != nil {
		return nil, err
	}

	text, err := s.Client.Review(ctx, prompt.ReviewSystemPrompt(), prompt.ReviewUserPrompt(run))
	if err != nil {
		if errors.Is(err, ai.ErrQuotaExceeded) {
			return nil, apperr.Upstream("AI quota exceeded, try again later", err)
		}
		s.Log.Warn("ai review failed", zap.String("project_key", key), zap.Error(err))
		return nil, apperr.Upstream("AI review failed", err)
	}

	return &Review{
		ProjectKey:  run.ProjectKey,
		RunID:       run.ID,
		IssuesCount: run.IssuesCount,
		Review:      text,
		CreatedAt:   s.Clock.Now(),
	}, nil
}
