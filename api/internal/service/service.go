package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"nutri-label/api/internal/label"
	"nutri-label/api/internal/ocr"
	"nutri-label/api/internal/store"
	"nutri-label/api/internal/util"
)

var (
	ErrEmptyImage    = errors.New("empty image")
	ErrUnknownEngine = ocr.ErrUnknownEngine
)

// Cache — хранилище готовых результатов; nil отключает кэш.
type Cache interface {
	FindByHash(ctx context.Context, imageHash, engine, model string, maxAge time.Duration) (*store.ScanRow, error)
	Upsert(ctx context.Context, row store.ScanRow) error
}

type Service struct {
	engs   *ocr.Engines
	cache  Cache
	maxAge time.Duration
}

func New(engs *ocr.Engines, cache Cache, maxAge time.Duration) *Service {
	return &Service{engs: engs, cache: cache, maxAge: maxAge}
}

type ScanRequest struct {
	Image  []byte
	MIME   string
	Engine string // "" | gemini | gpt
	Model  string // "" — модель движка по умолчанию
}

// Scan — результат распознавания этикетки.
type Scan struct {
	Nutrients        label.NormalizedMap `json:"nutrients"`
	Engine           string              `json:"engine"`
	Model            string              `json:"model"`
	ImageHash        string              `json:"image_hash"`
	Divisor          float64             `json:"divisor"`
	ServingSizeFound bool                `json:"serving_size_found"`
	ParseMode        label.ParseMode     `json:"parse_mode"`
	Cached           bool                `json:"cached"`
}

func (s *Service) Scan(ctx context.Context, req ScanRequest) (Scan, error) {
	if len(req.Image) == 0 {
		return Scan{}, ErrEmptyImage
	}
	eng, err := s.engs.GetEngine(req.Engine)
	if err != nil {
		return Scan{}, err
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = eng.GetModel()
	}
	hash := util.SHA256Hex(req.Image)
	log := slog.With("engine", eng.Name(), "model", model, "image_hash", hash)

	if out, ok := s.lookup(ctx, log, hash, eng.Name(), model); ok {
		return out, nil
	}

	raw, err := eng.Transcribe(ctx, req.Image, req.MIME, model)
	if err != nil {
		return Scan{}, fmt.Errorf("%s transcribe: %w", eng.Name(), err)
	}
	log.Debug("raw model response", "raw", raw)

	parsed := label.Parse(raw)
	div, found := label.Divisor(parsed.Fields)
	if !found {
		log.Warn("no valid serving-size found, defaulting to 1")
	}
	nutrients := label.Normalize(parsed.Fields)
	log.Debug("label parsed", "mode", parsed.Mode, "fields", len(parsed.Fields), "skipped", parsed.Skipped)

	out := Scan{
		Nutrients:        nutrients,
		Engine:           eng.Name(),
		Model:            model,
		ImageHash:        hash,
		Divisor:          div,
		ServingSizeFound: found,
		ParseMode:        parsed.Mode,
	}

	if s.cache != nil {
		row := store.ScanRow{
			ImageHash: hash,
			Engine:    out.Engine,
			Model:     out.Model,
			RawText:   raw,
			Fields:    parsed.Fields,
			Result:    nutrients,
			Divisor:   div,
			ParseMode: parsed.Mode,
		}
		if err := s.cache.Upsert(ctx, row); err != nil {
			log.Warn("cache upsert failed", "error", err)
		}
	}
	return out, nil
}

// lookup — попадание в кэш; любые ошибки кэша — промах.
func (s *Service) lookup(ctx context.Context, log *slog.Logger, hash, engine, model string) (Scan, bool) {
	if s.cache == nil {
		return Scan{}, false
	}
	row, err := s.cache.FindByHash(ctx, hash, engine, model, s.maxAge)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn("cache lookup failed", "error", err)
		}
		return Scan{}, false
	}
	_, found := label.Divisor(row.Fields)
	log.Debug("cache hit", "id", row.ID)
	return Scan{
		Nutrients:        row.Result,
		Engine:           row.Engine,
		Model:            row.Model,
		ImageHash:        row.ImageHash,
		Divisor:          row.Divisor,
		ServingSizeFound: found,
		ParseMode:        row.ParseMode,
		Cached:           true,
	}, true
}
