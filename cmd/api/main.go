package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	appai "github.com/bryanwahyu/docanalyst/internal/application/ai"
	appjobs "github.com/bryanwahyu/docanalyst/internal/application/jobs"
	"github.com/bryanwahyu/docanalyst/internal/config"
	"github.com/bryanwahyu/docanalyst/internal/domain/ai"
	"github.com/bryanwahyu/docanalyst/internal/domain/jobs"
	"github.com/bryanwahyu/docanalyst/internal/infra/ai/local"
	"github.com/bryanwahyu/docanalyst/internal/infra/ai/openai"
	"github.com/bryanwahyu/docanalyst/internal/infra/db/memory"
	"github.com/bryanwahyu/docanalyst/internal/infra/extract"
	"github.com/bryanwahyu/docanalyst/internal/infra/httpserver"
	"github.com/bryanwahyu/docanalyst/internal/infra/storage"
	"github.com/bryanwahyu/docanalyst/internal/middleware"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	// a missing .env is fine, real environment variables still apply
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not read .env")
	}

	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}
	logger := newLogger(cfg)

	ctx := context.Background()

	artifacts, storageCheck, err := newArtifactStore(ctx, cfg)
	if err != nil {
		return err
	}

	backend := newBackend(cfg)
	logger.Info().
		Str("storage", cfg.Storage.Driver).
		Str("ai_provider", cfg.AIProvider()).
		Str("model", cfg.AI.Model).
		Msg("collaborators ready")

	svc, err := appjobs.NewService(appjobs.Dependencies{
		Registry:  memory.NewJobRegistry(),
		Artifacts: artifacts,
		Extractor: extract.New(logger),
		AI:        appai.NewService(backend),
		Logger:    logger,
	}, appjobs.Options{
		MaxContextChars:  cfg.Documents.MaxContextChars,
		ContextCacheSize: cfg.Documents.ContextCacheSize,
	})
	if err != nil {
		return err
	}

	handler := httpserver.NewRouter(svc, httpserver.Options{
		Logger:         logger,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		HealthCheckers: map[string]middleware.HealthChecker{"storage": storageCheck},
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-stop:
	}
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.Log.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

type checkedStore interface {
	jobs.ArtifactStore
	Check(ctx context.Context) error
}

func newArtifactStore(ctx context.Context, cfg *config.Config) (jobs.ArtifactStore, middleware.HealthChecker, error) {
	var store checkedStore
	switch cfg.Storage.Driver {
	case config.StorageMinio:
		m := cfg.Storage.Minio
		s, err := storage.NewMinio(ctx, m.Endpoint, m.Region, m.BucketName, m.AccessKey, m.SecretKey, m.Prefix, m.UseSSL)
		if err != nil {
			return nil, nil, fmt.Errorf("minio init: %w", err)
		}
		store = s
	default:
		store = storage.NewLocal(cfg.Storage.UploadDir)
	}
	return store, store, nil
}

func newBackend(cfg *config.Config) ai.Backend {
	if cfg.AIProvider() == config.ProviderOpenAI {
		return openai.NewClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.MaxTokens)
	}
	return local.NewClient()
}
