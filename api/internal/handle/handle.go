package handle

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"nutri-label/api/internal/logging"
	"nutri-label/api/internal/service"
)

type Scanner interface {
	Scan(ctx context.Context, req service.ScanRequest) (service.Scan, error)
}

type Options struct {
	MaxUploadBytes int64
	RequestTimeout time.Duration
	// Ping проверяет БД для /healthz; nil — БД не используется.
	Ping func(ctx context.Context) error
}

type Handle struct {
	svc  Scanner
	opts Options
}

func New(svc Scanner, opts Options) *Handle {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 180 * time.Second
	}
	return &Handle{svc: svc, opts: opts}
}

// Router собирает все маршруты сервиса.
func (h *Handle) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(logging.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/", h.Home)
	r.Get("/healthz", h.Healthz)
	r.Post("/ocr", h.OCR)
	r.Post("/v1/ocr", h.OCRJSON)
	return r
}

func (h *Handle) Home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "running",
		"endpoints": map[string]string{
			"/":       "Health check",
			"/ocr":    "POST - Extract nutrition data from image (returns per 1g values)",
			"/v1/ocr": "POST - Same as /ocr with a base64 JSON body; returns scan metadata",
		},
	})
}

func (h *Handle) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if h.opts.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.opts.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// writeJSON сериализует тело до WriteHeader; ошибка кодирования — 500.
func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		slog.Error("encode response failed", "error", err)
		code = http.StatusInternalServerError
		b = []byte(`{"detail":"encode response failed"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(append(b, '\n'))
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}
