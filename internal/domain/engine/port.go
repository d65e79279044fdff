// Package engine describes the External Analysis Engine the service drives.
package engine

import (
	"context"

	"github.com/bryanwahyu/codescan/internal/domain/analyses"
)

// TaskStatusSuccess is the status the engine reports for a finished task.
const TaskStatusSuccess = "SUCCESS"

// Task is one entry of the engine's background job queue.
type Task struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

// TaskQueue is the job-queue view of a single component.
type TaskQueue struct {
	Queue   []Task `json:"queue"`
	Current *Task  `json:"current,omitempty"`
}

// Done reports whether the most recent task finished successfully: nothing is
// pending and the current task says SUCCESS.
func (q TaskQueue) Done() bool {
	if len(q.Queue) > 0 {
		return false
	}
	return q.Current != nil && q.Current.Status == TaskStatusSuccess
}

// Language is a language the engine can analyze.
type Language struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Engine port (interface untuk SonarQube atau sejenisnya)
type Engine interface {
	ValidateCredential(ctx context.Context) (bool, error)
	CreateProject(ctx context.Context, key, name string) error
	DeleteProject(ctx context.Context, key string) error
	ComponentTasks(ctx context.Context, key string) (TaskQueue, error)
	// SearchIssues is not scoped to a project; callers filter by component.
	SearchIssues(ctx context.Context) ([]analyses.Issue, error)
	RuleDescription(ctx context.Context, rule string) (string, error)
	SystemStatus(ctx context.Context) (map[string]any, error)
	Languages(ctx context.Context) ([]Language, error)
	Measures(ctx context.Context, key string, metricKeys []string) (map[string]any, error)
}
