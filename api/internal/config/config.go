package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string

	// EngineAttempts — попыток на один вызов модели; 1 — без повторов.
	EngineAttempts int

	DatabaseURL string
	CacheTTL    time.Duration

	RequestTimeout time.Duration
	MaxUploadBytes int64

	TelegramBotToken string
	WebhookURL       string

	LogLevel string
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) (int, error) {
	v := getEnv(k, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", k, err)
	}
	return n, nil
}

func getDuration(k string, def time.Duration) (time.Duration, error) {
	v := getEnv(k, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", k, err)
	}
	return d, nil
}

// Load читает окружение (и .env, если он есть). Вызывается один раз при старте;
// результат дальше только читается.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg := &Config{
		Port: getEnv("PORT", "7860"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", getEnv("GENAI_API_KEY", "")),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("missing required env GEMINI_API_KEY")
	}

	var err error
	if cfg.EngineAttempts, err = getInt("ENGINE_ATTEMPTS", 1); err != nil {
		return nil, err
	}
	if cfg.EngineAttempts < 1 {
		return nil, fmt.Errorf("invalid ENGINE_ATTEMPTS: must be >= 1")
	}
	if cfg.CacheTTL, err = getDuration("CACHE_TTL", 720*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 180*time.Second); err != nil {
		return nil, err
	}
	mb, err := getInt("MAX_UPLOAD_MB", 20)
	if err != nil {
		return nil, err
	}
	if mb < 1 {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_MB: must be >= 1")
	}
	cfg.MaxUploadBytes = int64(mb) << 20

	return cfg, nil
}
