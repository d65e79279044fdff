package projects

import (
	"time"

	"github.com/bryanwahyu/codescan/internal/domain/users"
)

// ProjectID identifier type
type ProjectID string

// Project is one analyzable unit owned by a user. Key is assigned once at
// creation and never reassigned.
type Project struct {
	ID        ProjectID    `json:"id"`
	OwnerID   users.UserID `json:"userId"`
	Key       string       `json:"projectKey"`
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"createdAt"`
}
