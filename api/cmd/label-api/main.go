package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nutri-label/api/internal/config"
	"nutri-label/api/internal/handle"
	"nutri-label/api/internal/httpserver"
	"nutri-label/api/internal/logging"
	"nutri-label/api/internal/ocr"
	"nutri-label/api/internal/ocr/gemini"
	"nutri-label/api/internal/ocr/openai"
	"nutri-label/api/internal/service"
	"nutri-label/api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	engines := &ocr.Engines{
		Gemini: gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.EngineAttempts),
	}
	if cfg.OpenAIAPIKey != "" {
		engines.OpenAI = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.EngineAttempts)
	}

	opts := handle.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		RequestTimeout: cfg.RequestTimeout,
	}

	var svc *service.Service
	if cfg.DatabaseURL != "" {
		db, err := store.Open(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("db connected", "dsn", store.SafeDSNSummary(cfg.DatabaseURL))

		repo := store.NewScanRepo(db)
		svc = service.New(engines, repo, cfg.CacheTTL)
		opts.Ping = repo.Ping
		go purgeLoop(repo, cfg.CacheTTL)
	} else {
		slog.Info("DATABASE_URL not set, result cache disabled")
		svc = service.New(engines, nil, 0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("label-api starting", "port", cfg.Port, "gemini_model", cfg.GeminiModel)
	if err := httpserver.Serve(ctx, ":"+cfg.Port, handle.New(svc, opts).Router()); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("shut down")
}

// purgeLoop раз в сутки чистит записи старше TTL кэша.
func purgeLoop(repo *store.ScanRepo, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	t := time.NewTicker(24 * time.Hour)
	defer t.Stop()
	for range t.C {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		n, err := repo.PurgeOlderThan(ctx, ttl)
		cancel()
		if err != nil {
			slog.Warn("purge failed", "error", err)
			continue
		}
		slog.Info("purged old scans", "rows", n)
	}
}
