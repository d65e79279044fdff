package scans

// RunRequest untuk Runner
type RunRequest struct {
	ProjectKey string
	Source     string
	Language   string
	// EngineURL and Token are written into the manifest.
	EngineURL string
	Token     string
}

// RunResult hasil dari Runner
type RunResult struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	DurationMS int64
}

// Succeeded reports a zero exit status.
func (r RunResult) Succeeded() bool { return r.ExitCode == 0 }
