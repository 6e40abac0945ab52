package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sqlchat/sqlchat/internal/api"
	"github.com/sqlchat/sqlchat/internal/api/uistatic"
	"github.com/sqlchat/sqlchat/internal/config"
	"github.com/sqlchat/sqlchat/internal/database"
	"github.com/sqlchat/sqlchat/internal/dsn"
	"github.com/sqlchat/sqlchat/internal/llm"
	"github.com/sqlchat/sqlchat/internal/nl2sql"
	"github.com/sqlchat/sqlchat/internal/observability"
	"github.com/sqlchat/sqlchat/internal/pipeline"
	s3store "github.com/sqlchat/sqlchat/internal/storage/s3"
	"github.com/sqlchat/sqlchat/internal/transcript"
)

func main() {
	cfg, err := config.LoadFromEnv("sqlchat-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	if err := cfg.RequireCredentials(); err != nil {
		logger.Error("missing credentials", slog.Any("error", err))
		os.Exit(1)
	}

	uri, err := cfg.Database.ConnectionURI()
	if err != nil {
		logger.Error("failed to build database connection uri", slog.Any("error", err))
		os.Exit(1)
	}
	db, err := database.Open(context.Background(), database.Config{
		Driver:          cfg.Database.Driver,
		DSN:             uri,
		Schema:          cfg.Database.Schema,
		IncludeTables:   cfg.Database.IncludeTables,
		SampleRows:      cfg.Database.SampleRows,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open database", slog.String("dsn", dsn.Redact(uri)), slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	model, err := llm.NewClient(llm.Config{
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize model client", slog.Any("error", err))
		os.Exit(1)
	}

	runner, err := pipeline.NewRunner(pipeline.Dependencies{
		Logger:  logger,
		Queries: nl2sql.NewQuerySynthesizer(model),
		Answers: nl2sql.NewAnswerSynthesizer(model),
		DB:      db,
		TopK:    cfg.Pipeline.TopK,
	})
	if err != nil {
		logger.Error("failed to build pipeline", slog.Any("error", err))
		os.Exit(1)
	}

	checks := []api.ReadinessCheck{db.HealthCheck}

	var transcripts transcript.Store
	switch cfg.Transcript.Backend {
	case config.TranscriptBackendRedis:
		redisStore, err := transcript.NewRedisStore(context.Background(), transcript.RedisConfig{
			Addr:      cfg.Transcript.RedisAddr,
			Password:  cfg.Transcript.RedisPassword,
			DB:        cfg.Transcript.RedisDB,
			KeyPrefix: cfg.Transcript.KeyPrefix,
			TTL:       cfg.Transcript.SessionTTL,
		})
		if err != nil {
			logger.Error("failed to connect transcript store", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = redisStore.Close() }()
		transcripts = redisStore
		checks = append(checks, redisStore.HealthCheck)
	default:
		transcripts = transcript.NewMemoryStore()
	}

	deps := api.Dependencies{
		Logger:            logger,
		Pipeline:          runner,
		Transcripts:       transcripts,
		Schema:            db,
		UI:                uistatic.Handler(),
		DependencyTimeout: time.Second,
	}
	if cfg.Archive.Enabled {
		objectStore, err := s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.Archive.Endpoint,
			Region:           cfg.Archive.Region,
			Bucket:           cfg.Archive.Bucket,
			AccessKeyID:      cfg.Archive.AccessKeyID,
			SecretAccessKey:  cfg.Archive.SecretAccessKey,
			UseSSL:           cfg.Archive.UseSSL,
			Prefix:           cfg.Archive.Prefix,
			AutoCreateBucket: cfg.Archive.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize archive store", slog.Any("error", err))
			os.Exit(1)
		}
		deps.Archiver = transcript.NewArchiver(objectStore)
		checks = append(checks, objectStore.HealthCheck)
	}
	deps.Readiness = api.CombineReadinessChecks(checks...)

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("dialect", db.Dialect()),
			slog.String("model", model.ModelName()),
			slog.String("transcript_backend", cfg.Transcript.Backend),
			slog.Bool("archive_enabled", cfg.Archive.Enabled),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
