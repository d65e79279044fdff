package scanerrors

import "time"

// Phase marks where an orchestration stopped.
type Phase string

const (
	PhaseCredential Phase = "credential"
	PhaseScan       Phase = "scan"
	PhasePolling    Phase = "polling"
	PhaseRetrieval  Phase = "retrieval"
	PhasePersist    Phase = "persist"
)

// ScanError represents a persisted submission failure
type ScanError struct {
	ID         int64     `json:"id"`
	ProjectID  string    `json:"projectId"`
	ProjectKey string    `json:"projectKey"`
	Phase      Phase     `json:"phase"`
	Reason     string    `json:"reason"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
