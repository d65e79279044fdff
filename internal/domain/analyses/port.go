package analyses

import (
	"context"

	"github.com/bryanwahyu/codescan/internal/domain/projects"
)

// Repository port (interface untuk persistence)
type Repository interface {
	Save(ctx context.Context, r *Run) error
	// Latest returns the newest run of the project, or nil, nil when none exists.
	Latest(ctx context.Context, project projects.ProjectID) (*Run, error)
}
