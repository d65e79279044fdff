package projects

import (
	"context"

	"github.com/bryanwahyu/codescan/internal/domain/users"
)

// Repository port. Lookups return nil, nil when nothing matches.
type Repository interface {
	Create(ctx context.Context, p *Project) error
	// ListByOwner returns the owner's projects newest first.
	ListByOwner(ctx context.Context, owner users.UserID) ([]*Project, error)
	GetByKey(ctx context.Context, owner users.UserID, key string) (*Project, error)
	FindByName(ctx context.Context, owner users.UserID, name string) (*Project, error)
	// Delete removes the project and, through the store's cascade, its runs.
	// It reports whether a row was removed.
	Delete(ctx context.Context, owner users.UserID, key string) (bool, error)
}
