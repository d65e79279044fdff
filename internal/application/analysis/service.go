package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/codescan/internal/application"
	projectsvc "github.com/bryanwahyu/codescan/internal/application/projects"
	"github.com/bryanwahyu/codescan/internal/domain/analyses"
	"github.com/bryanwahyu/codescan/internal/domain/apperr"
	"github.com/bryanwahyu/codescan/internal/domain/projects"
	"github.com/bryanwahyu/codescan/internal/domain/scanerrors"
	"github.com/bryanwahyu/codescan/internal/domain/scans"
	"github.com/bryanwahyu/codescan/internal/domain/users"
)

// Outcome labels reported to the metrics recorder besides the failure reasons.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Recorder observes finished submissions.
type Recorder interface {
	ObserveSubmission(outcome string, d time.Duration)
}

// Service implements the analyze use-case: provision, submit, persist.
// Service is designed to be used concurrently.
type Service struct {
	Projects     *projectsvc.Service
	Orchestrator *Orchestrator
	// Artifacts is optional; when set scanner logs are archived.
	Artifacts scans.ArtifactStore
	Metrics   Recorder
	Clock     application.Clock
	Log       *zap.Logger
}

// AnalyzeCommand untuk trigger analisis snippet
type AnalyzeCommand struct {
	Owner       users.UserID
	ProjectKey  string
	ProjectName string
	Code        string
	Language    string
}

type AnalyzeResult struct {
	Project *projects.Project
	// Created reports that the project was provisioned by this call.
	Created bool
	Run     *analyses.Run
}

func (s *Service) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

// Analyze resolves the project (by key, or by name with provisioning), runs
// one submission and stores its run. Failures after the project is known are
// written to the scan error log.
func (s *Service) Analyze(ctx context.Context, cmd AnalyzeCommand) (*AnalyzeResult, error) {
	if strings.TrimSpace(cmd.Code) == "" || strings.TrimSpace(cmd.Language) == "" {
		return nil, apperr.Validation("code and language are required")
	}
	start := time.Now()

	p, created, err := s.resolve(ctx, cmd)
	if err != nil {
		return nil, err
	}

	issues, err := s.Orchestrator.Submit(ctx, p.Key, cmd.Code, cmd.Language)
	if err != nil {
		s.observe(outcomeOf(err), start)
		var f *Failure
		if errors.As(err, &f) {
			s.Projects.RecordFailure(ctx, p, &scanerrors.ScanError{
				Phase:   f.Phase(),
				Reason:  string(f.Reason),
				Message: f.Message(),
				Details: f.Details,
			})
		}
		return nil, err
	}

	run, err := s.Projects.RecordRun(ctx, p, issues)
	if err != nil {
		s.observe(OutcomeError, start)
		s.Projects.RecordFailure(ctx, p, &scanerrors.ScanError{
			Phase:   scanerrors.PhasePersist,
			Reason:  "PersistenceFailed",
			Message: "could not store analysis results",
			Details: err.Error(),
		})
		return nil, err
	}
	s.observe(OutcomeSuccess, start)

	s.logger().Info("analysis stored",
		zap.String("project_key", p.Key),
		zap.String("run_id", string(run.ID)),
		zap.Int("issues", run.IssuesCount),
		zap.Duration("took", time.Since(start)),
	)
	return &AnalyzeResult{Project: p, Created: created, Run: run}, nil
}

func (s *Service) resolve(ctx context.Context, cmd AnalyzeCommand) (*projects.Project, bool, error) {
	if strings.TrimSpace(cmd.ProjectKey) != "" {
		p, err := s.Projects.Resolve(ctx, cmd.Owner, cmd.ProjectKey)
		return p, false, err
	}
	if strings.TrimSpace(cmd.ProjectName) != "" {
		return s.Projects.Ensure(ctx, cmd.Owner, cmd.ProjectName)
	}
	return nil, false, apperr.Validation("projectKey or projectName is required")
}

// ArchiveScan uploads the scanner output under <projectKey>/<unix>-scanner.log.
// It is meant to be installed as Orchestrator.OnScan; upload errors are logged.
func (s *Service) ArchiveScan(ctx context.Context, projectKey string, res scans.RunResult) {
	if s.Artifacts == nil {
		return
	}
	key := fmt.Sprintf("%s/%d-scanner.log", projectKey, s.Clock.Now().Unix())
	var b strings.Builder
	fmt.Fprintf(&b, "exit_code=%d duration_ms=%d\n", res.ExitCode, res.DurationMS)
	b.WriteString(res.Stdout)
	if res.Stderr != "" {
		b.WriteString("\n--- stderr ---\n")
		b.WriteString(res.Stderr)
	}

	url, err := s.Artifacts.Put(context.WithoutCancel(ctx), key, []byte(b.String()), "text/plain")
	if err != nil {
		s.logger().Warn("archive scanner log failed", zap.String("project_key", projectKey), zap.Error(err))
		return
	}
	s.logger().Debug("scanner log archived", zap.String("project_key", projectKey), zap.String("url", url))
}

func (s *Service) observe(outcome string, start time.Time) {
	if s.Metrics != nil {
		s.Metrics.ObserveSubmission(outcome, time.Since(start))
	}
}

func outcomeOf(err error) string {
	var f *Failure
	if errors.As(err, &f) {
		return string(f.Reason)
	}
	return OutcomeError
}
