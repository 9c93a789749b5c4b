package main

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"nutri-label/api/internal/config"
	"nutri-label/api/internal/handle"
	"nutri-label/api/internal/httpserver"
	"nutri-label/api/internal/logging"
	"nutri-label/api/internal/ocr"
	"nutri-label/api/internal/ocr/gemini"
	"nutri-label/api/internal/ocr/openai"
	"nutri-label/api/internal/service"
	"nutri-label/api/internal/store"
	"nutri-label/api/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)
	if cfg.TelegramBotToken == "" {
		slog.Error("missing required env TELEGRAM_BOT_TOKEN")
		os.Exit(1)
	}

	engines := &ocr.Engines{
		Gemini: gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.EngineAttempts),
	}
	if cfg.OpenAIAPIKey != "" {
		engines.OpenAI = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.EngineAttempts)
	}

	opts := handle.Options{RequestTimeout: cfg.RequestTimeout, MaxUploadBytes: cfg.MaxUploadBytes}
	svc := service.New(engines, nil, 0)
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
	}

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		slog.Error("telegram", "error", err)
		os.Exit(1)
	}
	bot.Debug = false

	r := &telegram.Router{
		Bot:        bot,
		Scanner:    svc,
		Engines:    engines,
		EngManager: ocr.NewManager(engines.Gemini),
		Timeout:    cfg.RequestTimeout,
	}

	// Используем DefaultServeMux: ListenForWebhook регистрирует обработчик именно там.
	h := handle.New(svc, opts)
	http.HandleFunc("/healthz", h.Healthz)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := "0.0.0.0:" + cfg.Port
	if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
		startWebhookMode(ctx, addr, bot, r, webhookURL)
	} else {
		startPollingMode(ctx, addr, bot, r)
	}
}

// ---------------- Modes -----------------

func startWebhookMode(ctx context.Context, addr string, bot *tgbotapi.BotAPI, r *telegram.Router, baseURL string) {
	// секретный путь вебхука
	path := "/webhook/" + shortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		slog.Error("webhook", "error", err)
		os.Exit(1)
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		slog.Error("webhook register", "error", err)
		os.Exit(1)
	}

	updates := bot.ListenForWebhook(path)
	go func() {
		for upd := range updates {
			go r.HandleUpdate(upd)
		}
		slog.Info("webhook updates channel closed")
	}()

	if err := httpserver.Serve(ctx, addr, nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func startPollingMode(ctx context.Context, addr string, bot *tgbotapi.BotAPI, r *telegram.Router) {
	// healthz нужен платформе и в режиме polling
	go func() {
		if err := httpserver.Serve(ctx, addr, nil); err != nil {
			slog.Error("health server", "error", err)
			os.Exit(1)
		}
	}()

	runPolling(ctx, bot, func(upd tgbotapi.Update) {
		go r.HandleUpdate(upd)
	})
}

// ---------------- Polling loop -----------------

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

const (
	minPollRetry = time.Second
	maxPollRetry = 15 * time.Second
)

// pollRetryDelay — пауза перед следующим getUpdates, в пределах [minPollRetry, maxPollRetry].
// 429 уважает "retry after N", таймаут сети — 2с.
func pollRetryDelay(err error) time.Duration {
	d := minPollRetry
	var ne net.Error
	switch {
	case err == nil:
		return 0
	case strings.Contains(strings.ToLower(err.Error()), "too many requests"):
		d = 3 * time.Second
		if m := reRetryAfter.FindStringSubmatch(err.Error()); m != nil {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				d = time.Duration(n) * time.Second
			}
		}
	case errors.As(err, &ne) && ne.Timeout():
		d = 2 * time.Second
	}
	return min(max(d, minPollRetry), maxPollRetry)
}

func runPolling(ctx context.Context, bot *tgbotapi.BotAPI, handle func(tgbotapi.Update)) {
	offset := 0
	for {
		select {
		case <-ctx.Done():
			slog.Info("polling: context cancelled")
			return
		default:
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30 // long polling, сек

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := pollRetryDelay(err)
			slog.Warn("polling error", "error", err, "retry_in", d)
			time.Sleep(d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 {
			time.Sleep(200 * time.Millisecond)
		}
	}
}

// ---------------- Helpers -----------------

// shortHash — путь вебхука, стабильный для токена и не раскрывающий его.
func shortHash(s string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf("%016x", h.Sum64())
}
