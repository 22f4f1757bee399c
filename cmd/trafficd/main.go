package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/adaeze-umeh/traffic-analyzer/internal/analysis"
	"github.com/adaeze-umeh/traffic-analyzer/internal/common"
	"github.com/adaeze-umeh/traffic-analyzer/internal/export"
	"github.com/adaeze-umeh/traffic-analyzer/internal/jobs"
	"github.com/adaeze-umeh/traffic-analyzer/internal/repository"
	"github.com/adaeze-umeh/traffic-analyzer/internal/server"
	"github.com/adaeze-umeh/traffic-analyzer/internal/upload"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	entc, pool, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer repository.Close(entc, pool, logger)

	if err := repository.HealthCheck(ctx, pool, 3*time.Second, logger); err != nil {
		logger.Error("database health check failed", "error", err)
		os.Exit(1)
	}
	logger.Info("database health OK")

	store, err := upload.NewStore(cfg.Upload.ArtifactDir, logger)
	if err != nil {
		logger.Error("preparing artifact dir", "error", err)
		os.Exit(1)
	}

	client, err := analysis.NewClient(analysis.Config{
		BaseURL: cfg.Analysis.BaseURL,
		Mode:    cfg.Analysis.Mode,
		Timeout: cfg.Analysis.Timeout,
	}, logger)
	if err != nil {
		logger.Error("building analysis client", "error", err)
		os.Exit(1)
	}

	jobRepo := repository.NewJobRepository(entc, logger)
	jobSvc := jobs.NewService(jobRepo, store, client, logger)
	exportSvc := export.NewService(jobRepo, logger)

	router := server.NewRouter(server.Deps{
		Jobs: server.NewJobsHandler(jobSvc, exportSvc, cfg.Upload.MaxUploadBytes, logger),
		Health: func(ctx context.Context) error {
			return repository.HealthCheck(ctx, pool, 1*time.Second, logger)
		},
		Logger: logger,
	})

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Info("http serving", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	logger.Info("stopped")
}
