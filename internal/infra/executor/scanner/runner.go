package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	domain "github.com/bryanwahyu/codescan/internal/domain/scans"
)

// Config describes how the scanner process is launched.
type Config struct {
	Mode    domain.Mode
	Binary  string
	Image   string
	Network string
	// DockerHostURL overrides the engine URL inside the container.
	DockerHostURL string
	WorkDir       string
}

type commandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

type Runner struct {
	cfg     Config
	log     *zap.Logger
	command commandFunc
}

func NewRunner(cfg Config, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Mode == "" {
		cfg.Mode = domain.ModeBinary
	}
	return &Runner{cfg: cfg, log: log, command: exec.CommandContext}
}

var _ domain.Runner = (*Runner)(nil)

func (r *Runner) Run(ctx context.Context, req domain.RunRequest) (domain.RunResult, error) {
	start := time.Now()

	// scratch dir dinamai project key; submission paralel ke key yang sama tidak aman
	dir := filepath.Join(r.cfg.WorkDir, req.ProjectKey)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return domain.RunResult{}, fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			r.log.Warn("scratch cleanup failed", zap.String("dir", dir), zap.Error(err))
		}
	}()

	hostURL := req.EngineURL
	if r.cfg.Mode == domain.ModeDocker && r.cfg.DockerHostURL != "" {
		hostURL = r.cfg.DockerHostURL
	}
	if err := writeScratch(dir, req, hostURL); err != nil {
		return domain.RunResult{}, err
	}

	var cmd *exec.Cmd
	switch r.cfg.Mode {
	case domain.ModeBinary:
		cmd = r.command(ctx, r.cfg.Binary, "-Dsonar.projectBaseDir="+dir)
		cmd.Dir = dir
	case domain.ModeDocker:
		absDir, err := filepath.Abs(dir)
		if err != nil {
			return domain.RunResult{}, err
		}
		args := []string{"run", "--rm"}
		if r.cfg.Network != "" {
			args = append(args, "--network", r.cfg.Network)
		}
		args = append(args,
			"-v", absDir+":/usr/src",
			"-e", "SONAR_HOST_URL="+hostURL,
			"-e", "SONAR_TOKEN="+req.Token,
			r.cfg.Image,
		)
		cmd = r.command(ctx, "docker", args...)
	default:
		return domain.RunResult{}, fmt.Errorf("unsupported scanner mode: %s", r.cfg.Mode)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// jalankan scanner, blocking sampai proses selesai
	err := cmd.Run()
	res := domain.RunResult{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		// ambil exit code
		var ee *exec.ExitError
		if !errors.As(err, &ee) {
			return res, fmt.Errorf("spawn scanner: %w", err)
		}
		res.ExitCode = ee.ExitCode()
	}

	r.log.Debug("scanner finished",
		zap.String("project_key", req.ProjectKey),
		zap.Int("exit_code", res.ExitCode),
		zap.Int64("duration_ms", res.DurationMS),
	)
	return res, nil
}

func writeScratch(dir string, req domain.RunRequest, hostURL string) error {
	src := filepath.Join(dir, domain.SourceFileName(req.Language))
	if err := os.WriteFile(src, []byte(req.Source), 0o640); err != nil {
		return fmt.Errorf("write source: %w", err)
	}
	manifest := filepath.Join(dir, domain.ManifestFileName)
	if err := os.WriteFile(manifest, []byte(Manifest(req.ProjectKey, hostURL, req.Token)), 0o600); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Manifest renders sonar-project.properties for one submission.
func Manifest(projectKey, hostURL, token string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "sonar.projectKey=%s\n", projectKey)
	b.WriteString("sonar.sources=.\n")
	fmt.Fprintf(&b, "sonar.host.url=%s\n", hostURL)
	fmt.Fprintf(&b, "sonar.login=%s\n", token)
	b.WriteString("sonar.sourceEncoding=UTF-8\n")
	return b.String()
}
