package scans

import "context"

// Runner port (interface untuk eksekusi scanner). Run prepares the scratch
// directory, runs the scanner to completion and removes the directory. A
// non-zero exit is reported through RunResult, not as an error; the error is
// reserved for failures to prepare or spawn.
type Runner interface {
	Run(ctx context.Context, req RunRequest) (RunResult, error)
}

// ArtifactStore port (interface untuk penyimpanan log scanner)
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
