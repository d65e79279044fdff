package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/codescan/internal/application"
	appai "github.com/bryanwahyu/codescan/internal/application/ai"
	"github.com/bryanwahyu/codescan/internal/application/analysis"
	appauth "github.com/bryanwahyu/codescan/internal/application/auth"
	appprojects "github.com/bryanwahyu/codescan/internal/application/projects"
	"github.com/bryanwahyu/codescan/internal/config"
	domai "github.com/bryanwahyu/codescan/internal/domain/ai"
	"github.com/bryanwahyu/codescan/internal/domain/analyses"
	"github.com/bryanwahyu/codescan/internal/domain/projects"
	"github.com/bryanwahyu/codescan/internal/domain/scanerrors"
	"github.com/bryanwahyu/codescan/internal/domain/scans"
	"github.com/bryanwahyu/codescan/internal/domain/users"
	aiopenai "github.com/bryanwahyu/codescan/internal/infra/ai/openai"
	"github.com/bryanwahyu/codescan/internal/infra/db/memory"
	mysqlp "github.com/bryanwahyu/codescan/internal/infra/db/mysql"
	pgp "github.com/bryanwahyu/codescan/internal/infra/db/postgres"
	"github.com/bryanwahyu/codescan/internal/infra/executor/scanner"
	"github.com/bryanwahyu/codescan/internal/infra/httpserver"
	"github.com/bryanwahyu/codescan/internal/infra/security"
	"github.com/bryanwahyu/codescan/internal/infra/sonarqube"
	minioStore "github.com/bryanwahyu/codescan/internal/infra/storage"
	"github.com/bryanwahyu/codescan/internal/logger"
	"github.com/bryanwahyu/codescan/internal/middleware"
)

type repositories struct {
	db         *sql.DB
	users      users.Repository
	projects   projects.Repository
	analyses   analyses.Repository
	scanErrors scanerrors.Repository
}

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	zl, err := logger.New(cfg.Server.LogLevel, cfg.Server.Development)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx := context.Background()

	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		return err
	}
	if repos.db != nil {
		defer repos.db.Close()
	}

	// engine client
	opts := []sonarqube.Option{sonarqube.WithPageSize(cfg.SonarQube.PageSize)}
	if cfg.SonarQube.User != "" {
		opts = append(opts, sonarqube.WithBasicAuth(cfg.SonarQube.User, cfg.SonarQube.Password))
	}
	eng := sonarqube.NewClient(cfg.SonarQube.URL, cfg.SonarQube.Token, opts...)

	runner := scanner.NewRunner(scanner.Config{
		Mode:          scans.Mode(cfg.Scanner.Mode),
		Binary:        cfg.Scanner.Binary,
		Image:         cfg.Scanner.Image,
		Network:       cfg.Scanner.Network,
		DockerHostURL: cfg.Scanner.DockerHostURL,
		WorkDir:       cfg.Scanner.WorkDir,
	}, zl.Named("scanner"))

	// init minio (opsional)
	var artifacts scans.ArtifactStore
	if cfg.MinioEnabled() {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			return fmt.Errorf("minio init: %w", err)
		}
		artifacts = store
	}

	var reviewer domai.Client
	if cfg.OpenAI.APIKey != "" {
		reviewer = aiopenai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	}

	clock := application.SystemClock{}
	metrics := middleware.NewMetrics()

	authSvc := &appauth.Service{
		Users:  repos.users,
		Hasher: security.NewBcryptHasher(cfg.Auth.BcryptCost),
		Tokens: security.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Clock:  clock,
		Log:    zl.Named("auth"),
	}
	projectSvc := &appprojects.Service{
		Repo:            repos.projects,
		Runs:            repos.analyses,
		ScanErrors:      repos.scanErrors,
		Engine:          eng,
		Clock:           clock,
		Log:             zl.Named("projects"),
		PublicEngineURL: cfg.SonarQube.PublicURL,
	}
	orch := analysis.NewOrchestrator(eng, runner, analysis.Config{
		EngineURL:    cfg.SonarQube.URL,
		Token:        cfg.SonarQube.Token,
		PollTimeout:  cfg.SonarQube.PollTimeout,
		PollInterval: cfg.SonarQube.PollInterval,
	}, zl.Named("orchestrator"))
	analysisSvc := &analysis.Service{
		Projects:     projectSvc,
		Orchestrator: orch,
		Artifacts:    artifacts,
		Metrics:      metrics,
		Clock:        clock,
		Log:          zl.Named("analysis"),
	}
	orch.OnScan = analysisSvc.ArchiveScan

	analyzeLimit, err := middleware.NewUserRateLimiter(cfg.Server.AnalyzeRate)
	if err != nil {
		return fmt.Errorf("server.analyzeRate: %w", err)
	}

	health := map[string]middleware.HealthChecker{
		"engine": &middleware.EngineHealthChecker{Engine: eng},
	}
	if repos.db != nil {
		health["database"] = &middleware.DatabaseHealthChecker{DB: repos.db}
	}

	handler := httpserver.NewRouter(httpserver.Deps{
		Auth:         authSvc,
		Projects:     projectSvc,
		Analysis:     analysisSvc,
		AI:           appai.NewService(projectSvc, reviewer, clock, zl.Named("ai")),
		Engine:       eng,
		Metrics:      metrics,
		Health:       health,
		AnalyzeLimit: analyzeLimit,
		CORSOrigins:  cfg.Server.CORSOrigins,
		Development:  cfg.Server.Development,
		Log:          zl.Named("http"),
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	// WriteTimeout harus lebih lama dari satu submission (scan + poll)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5*time.Minute + cfg.SonarQube.PollTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("server listening",
			zap.String("addr", addr),
			zap.String("db_driver", cfg.Database.Driver),
			zap.String("scanner_mode", cfg.Scanner.Mode),
			zap.Bool("minio", artifacts != nil),
			zap.Bool("ai_review", reviewer != nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	}
	zl.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(ctx2)
}

func openRepositories(ctx context.Context, cfg *config.Config) (*repositories, error) {
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		return &repositories{
			db:         db,
			users:      mysqlp.NewUserRepository(db),
			projects:   mysqlp.NewProjectRepository(db),
			analyses:   mysqlp.NewAnalysisRepository(db),
			scanErrors: mysqlp.NewScanErrorRepository(db),
		}, nil
	case "postgres":
		db, err := pgp.Connect(ctx, cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		return &repositories{
			db:         db,
			users:      pgp.NewUserRepository(db),
			projects:   pgp.NewProjectRepository(db),
			analyses:   pgp.NewAnalysisRepository(db),
			scanErrors: pgp.NewScanErrorRepository(db),
		}, nil
	default:
		st := memory.NewStore()
		return &repositories{
			users:      st.Users(),
			projects:   st.Projects(),
			analyses:   st.Analyses(),
			scanErrors: st.ScanErrors(),
		}, nil
	}
}
