package ai

import "errors"

// ErrQuotaExceeded means the provider rejected the review with HTTP 429.
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrNotConfigured means no provider key was configured.
var ErrNotConfigured = errors.New("ai review is not configured")
