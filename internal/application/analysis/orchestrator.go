package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/codescan/internal/domain/analyses"
	"github.com/bryanwahyu/codescan/internal/domain/apperr"
	"github.com/bryanwahyu/codescan/internal/domain/engine"
	"github.com/bryanwahyu/codescan/internal/domain/scans"
)

// FallbackSolutionHTML is attached when a rule description cannot be fetched.
const FallbackSolutionHTML = "<p>Sin solución disponible</p>"

// maxDetails caps scanner output carried in a failure.
const maxDetails = 4 << 10

// State of one submission.
type State string

const (
	StateSubmitted      State = "Submitted"
	StateScanning       State = "Scanning"
	StateAwaitingEngine State = "AwaitingEngine"
	StateEnriching      State = "Enriching"
	StateDone           State = "Done"
	StateFailed         State = "Failed"
)

// Config is what the orchestrator needs to know about the engine.
type Config struct {
	EngineURL    string
	Token        string
	PollTimeout  time.Duration
	PollInterval time.Duration
}

// Orchestrator drives one submission from credential check to enriched issues.
// It is safe for concurrent use; submissions to the same project key are not
// isolated from each other.
type Orchestrator struct {
	engine engine.Engine
	runner scans.Runner
	cfg    Config
	log    *zap.Logger

	// OnScan, when set, receives the scanner output of every finished scan.
	OnScan func(ctx context.Context, projectKey string, res scans.RunResult)
	// OnTransition, when set, observes every state change.
	OnTransition func(projectKey string, from, to State)
}

func NewOrchestrator(eng engine.Engine, runner scans.Runner, cfg Config, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Orchestrator{engine: eng, runner: runner, cfg: cfg, log: log}
}

type submission struct {
	key      string
	source   string
	language string
	issues   []analyses.Issue
}

// Submit scans the snippet under projectKey and returns its enriched issues.
// Any failure aborts the remaining steps; nothing is retried.
func (o *Orchestrator) Submit(ctx context.Context, projectKey, source, language string) ([]analyses.Issue, error) {
	if strings.TrimSpace(projectKey) == "" || strings.TrimSpace(source) == "" || strings.TrimSpace(language) == "" {
		return nil, apperr.Validation("projectKey, code and language are required")
	}
	s := &submission{key: projectKey, source: source, language: language}

	state := StateSubmitted
	for state != StateDone {
		next, err := o.step(ctx, state, s)
		if err != nil {
			o.transition(s.key, state, StateFailed)
			fields := []zap.Field{zap.String("project_key", s.key), zap.String("state", string(state)), zap.Error(err)}
			var f *Failure
			if errors.As(err, &f) {
				fields = append(fields, zap.String("reason", string(f.Reason)))
			}
			o.log.Warn("submission failed", fields...)
			return nil, err
		}
		o.transition(s.key, state, next)
		state = next
	}
	return s.issues, nil
}

func (o *Orchestrator) transition(key string, from, to State) {
	o.log.Debug("submission state", zap.String("project_key", key), zap.String("from", string(from)), zap.String("state", string(to)))
	if o.OnTransition != nil {
		o.OnTransition(key, from, to)
	}
}

func (o *Orchestrator) step(ctx context.Context, state State, s *submission) (State, error) {
	switch state {
	case StateSubmitted:
		return StateScanning, o.checkCredential(ctx)
	case StateScanning:
		return StateAwaitingEngine, o.scan(ctx, s)
	case StateAwaitingEngine:
		return StateEnriching, o.await(ctx, s.key)
	case StateEnriching:
		issues, err := o.retrieve(ctx, s.key)
		if err != nil {
			return StateFailed, err
		}
		s.issues = o.enrich(ctx, issues)
		return StateDone, nil
	default:
		return StateFailed, fmt.Errorf("unexpected state %s", state)
	}
}

func (o *Orchestrator) checkCredential(ctx context.Context) error {
	valid, err := o.engine.ValidateCredential(ctx)
	if err != nil {
		return &Failure{Reason: ReasonInvalidCredential, Details: err.Error(), Err: err}
	}
	if !valid {
		return &Failure{Reason: ReasonInvalidCredential, Details: "engine reported the credential as invalid"}
	}
	return nil
}

func (o *Orchestrator) scan(ctx context.Context, s *submission) error {
	res, err := o.runner.Run(ctx, scans.RunRequest{
		ProjectKey: s.key,
		Source:     s.source,
		Language:   s.language,
		EngineURL:  o.cfg.EngineURL,
		Token:      o.cfg.Token,
	})
	if err != nil {
		return &Failure{Reason: ReasonScanExecutionFailed, Details: err.Error(), Err: err}
	}
	if o.OnScan != nil {
		o.OnScan(ctx, s.key, res)
	}
	if !res.Succeeded() {
		details := res.Stderr
		if strings.TrimSpace(details) == "" {
			details = res.Stdout
		}
		return &Failure{
			Reason:  ReasonScanExecutionFailed,
			Details: tail(details, maxDetails),
			Err:     fmt.Errorf("scanner exited with code %d", res.ExitCode),
		}
	}
	return nil
}

// await polls the job queue until the latest task succeeded or the poll
// timeout elapses. Query errors count as "not finished yet".
func (o *Orchestrator) await(ctx context.Context, key string) error {
	pollCtx, cancel := context.WithTimeout(ctx, o.cfg.PollTimeout)
	defer cancel()
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	for {
		q, err := o.engine.ComponentTasks(pollCtx, key)
		switch {
		case err != nil:
			o.log.Debug("poll failed", zap.String("project_key", key), zap.Error(err))
		case q.Done():
			return nil
		}

		select {
		case <-pollCtx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			return &Failure{
				Reason:  ReasonAnalysisTimeout,
				Details: fmt.Sprintf("no successful task for %s within %s", key, o.cfg.PollTimeout),
				Err:     pollCtx.Err(),
			}
		case <-ticker.C:
		}
	}
}

// retrieve fetches all visible issues and keeps those of this project. The
// search is not scoped by the engine, so the component prefix is the only
// thing separating projects.
func (o *Orchestrator) retrieve(ctx context.Context, key string) ([]analyses.Issue, error) {
	all, err := o.engine.SearchIssues(ctx)
	if err != nil {
		return nil, &Failure{Reason: ReasonResultRetrievalFailed, Details: err.Error(), Err: err}
	}
	return FilterByProject(all, key), nil
}

// FilterByProject keeps issues whose component starts with "<key>:".
func FilterByProject(issues []analyses.Issue, key string) []analyses.Issue {
	prefix := key + ":"
	out := make([]analyses.Issue, 0, len(issues))
	for _, is := range issues {
		if strings.HasPrefix(is.Component, prefix) {
			out = append(out, is)
		}
	}
	return out
}

// enrich fetches each distinct rule once, concurrently, and attaches its
// description to every issue carrying it.
func (o *Orchestrator) enrich(ctx context.Context, issues []analyses.Issue) []analyses.Issue {
	var rules []string
	seen := map[string]bool{}
	for _, is := range issues {
		if !seen[is.Rule] {
			seen[is.Rule] = true
			rules = append(rules, is.Rule)
		}
	}

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		descs = make(map[string]string, len(rules))
	)
	for _, rule := range rules {
		wg.Add(1)
		go func(rule string) {
			defer wg.Done()
			html, err := o.engine.RuleDescription(ctx, rule)
			if err != nil || strings.TrimSpace(html) == "" {
				o.log.Debug("rule description unavailable", zap.String("rule", rule), zap.Error(err))
				html = FallbackSolutionHTML
			}
			mu.Lock()
			descs[rule] = html
			mu.Unlock()
		}(rule)
	}
	wg.Wait()

	for i := range issues {
		issues[i].SolutionHTML = descs[issues[i].Rule]
	}
	return issues
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
