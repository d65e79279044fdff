package ai

import "context"

// Client produces a free-text review for a prompt built from analysis issues.
type Client interface {
	Review(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
