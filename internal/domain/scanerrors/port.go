package scanerrors

import (
	"context"
)

// Repository defines persistence for submission failures
type Repository interface {
	Save(ctx context.Context, e *ScanError) error
	ListByProject(ctx context.Context, projectID string, limit int) ([]*ScanError, error)
}
