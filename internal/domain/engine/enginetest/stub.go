// Package enginetest provides an in-memory engine.Engine for tests.
package enginetest

import (
	"context"
	"errors"
	"sync"

	"github.com/bryanwahyu/codescan/internal/domain/analyses"
	"github.com/bryanwahyu/codescan/internal/domain/engine"
)

// ErrUnknownRule is returned for rules missing from Stub.Rules.
var ErrUnknownRule = errors.New("unknown rule")

// Stub is a scriptable engine. Zero-value fields mean "succeed with nothing";
// use NewStub for a valid credential and an immediately finished task.
type Stub struct {
	mu sync.Mutex

	Valid       bool
	ValidateErr error
	CreateErr   error
	// Tasks is called with the 1-based poll number.
	Tasks     func(call int) (engine.TaskQueue, error)
	Issues    []analyses.Issue
	SearchErr error
	Rules     map[string]string
	Status    map[string]any
	Langs     []engine.Language
	Measure   map[string]any

	Created      []string
	Deleted      []string
	taskCalls    int
	ruleCalls    map[string]int
	searchCalls  int
	measureCalls int
}

func NewStub() *Stub {
	return &Stub{
		Valid: true,
		Tasks: func(int) (engine.TaskQueue, error) { return Finished(), nil },
		Rules: map[string]string{},
	}
}

// Finished is a queue whose current task succeeded.
func Finished() engine.TaskQueue {
	return engine.TaskQueue{Current: &engine.Task{ID: "task-1", Type: "REPORT", Status: engine.TaskStatusSuccess}}
}

// Pending is a queue with one task still waiting.
func Pending() engine.TaskQueue {
	return engine.TaskQueue{Queue: []engine.Task{{ID: "task-2", Status: "PENDING"}}}
}

var _ engine.Engine = (*Stub)(nil)

func (s *Stub) ValidateCredential(context.Context) (bool, error) {
	return s.Valid, s.ValidateErr
}

func (s *Stub) CreateProject(_ context.Context, key, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return s.CreateErr
	}
	s.Created = append(s.Created, key)
	return nil
}

func (s *Stub) DeleteProject(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deleted = append(s.Deleted, key)
	return nil
}

func (s *Stub) ComponentTasks(ctx context.Context, _ string) (engine.TaskQueue, error) {
	s.mu.Lock()
	s.taskCalls++
	n := s.taskCalls
	tasks := s.Tasks
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return engine.TaskQueue{}, err
	}
	if tasks == nil {
		return Finished(), nil
	}
	return tasks(n)
}

func (s *Stub) SearchIssues(context.Context) ([]analyses.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchCalls++
	if s.SearchErr != nil {
		return nil, s.SearchErr
	}
	return append([]analyses.Issue(nil), s.Issues...), nil
}

func (s *Stub) RuleDescription(_ context.Context, rule string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ruleCalls == nil {
		s.ruleCalls = map[string]int{}
	}
	s.ruleCalls[rule]++
	html, ok := s.Rules[rule]
	if !ok {
		return "", ErrUnknownRule
	}
	return html, nil
}

func (s *Stub) SystemStatus(context.Context) (map[string]any, error) {
	if s.Status == nil {
		return map[string]any{"status": "UP"}, nil
	}
	return s.Status, nil
}

func (s *Stub) Languages(context.Context) ([]engine.Language, error) {
	return s.Langs, nil
}

func (s *Stub) Measures(_ context.Context, key string, metricKeys []string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.measureCalls++
	if s.Measure != nil {
		return s.Measure, nil
	}
	return map[string]any{"component": map[string]any{"key": key, "measures": []any{}}}, nil
}

// TaskCalls reports how many times the job queue was polled.
func (s *Stub) TaskCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taskCalls
}

// SearchCalls reports how many issue searches ran.
func (s *Stub) SearchCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchCalls
}

// RuleCalls reports the total number of rule lookups.
func (s *Stub) RuleCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.ruleCalls {
		n += c
	}
	return n
}

// RuleCallsFor reports lookups of one rule.
func (s *Stub) RuleCallsFor(rule string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ruleCalls[rule]
}
