package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Juicern/local-asr/internal/asr"
	"github.com/Juicern/local-asr/internal/config"
	"github.com/Juicern/local-asr/internal/httpapi"
	"github.com/Juicern/local-asr/internal/providers"
	"github.com/Juicern/local-asr/internal/repository"
	"github.com/Juicern/local-asr/internal/server"
	"github.com/Juicern/local-asr/internal/service"
	"github.com/Juicern/local-asr/internal/storage"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx := context.Background()

	db, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	var logs service.TranscriptionLogStore
	if db != nil {
		defer db.Close()
		if err := storage.RunMigrations(ctx, db, cfg.Database.Driver); err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
		logs = repository.NewTranscriptionLogRepository(db)
	} else {
		logs = repository.NewMemoryTranscriptionLogRepository()
	}

	registry := providers.NewRegistry()
	registry.Register("openai", providers.NewOpenAILoader(cfg.ASR.BaseURL, cfg.ASR.APIKey))
	registry.Register("command", providers.NewCommandLoader(cfg.ASR.Command, logger))
	registry.Register("null", providers.NewNullLoader())

	loader, ok := registry.Loader(cfg.ASR.Backend)
	if !ok {
		logger.Error("unknown asr backend", slog.String("backend", cfg.ASR.Backend), slog.Any("available", registry.Names()))
		os.Exit(1)
	}

	defaults := asr.Options{
		ChunkLengthS:     cfg.ASR.ChunkLengthS,
		StrideLengthS:    cfg.ASR.StrideLengthS,
		ReturnTimestamps: cfg.ASR.ReturnTimestamps,
		Language:         cfg.ASR.Language,
	}
	if err := defaults.Validate(); err != nil {
		logger.Error("invalid asr defaults", slog.Any("error", err))
		os.Exit(1)
	}

	models := asr.NewModelCache(loader, asr.ModelSpec{Model: cfg.ASR.Model, Threads: cfg.ASR.Threads}, cfg.ASR.MaxConcurrent, logger)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := models.Close(closeCtx); err != nil {
			logger.Warn("failed to release model", slog.Any("error", err))
		}
	}()

	transcriptionService := service.NewTranscriptionService(models, logs, cfg.Upload.Dir, cfg.ASR.RequestTimeout, logger)

	handler := httpapi.NewRouter(transcriptionService, models, httpapi.RouterConfig{
		Defaults:       defaults,
		MaxUploadBytes: cfg.Upload.MaxBytes,
	}, logger)
	srv := server.New(cfg, handler, logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("asr service starting",
		slog.String("backend", cfg.ASR.Backend),
		slog.String("model", cfg.ASR.Model),
		slog.String("database", cfg.Database.Driver),
	)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped with error", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}
