package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"nutri-label/api/internal/label"
)

var ErrNotFound = sql.ErrNoRows

type ScanRepo struct{ DB *sql.DB }

func NewScanRepo(db *sql.DB) *ScanRepo { return &ScanRepo{DB: db} }

// ScanRow — сохранённый результат распознавания одной этикетки.
type ScanRow struct {
	ID        int64
	CreatedAt time.Time
	ImageHash string
	Engine    string
	Model     string
	RawText   string
	Fields    label.FieldMap
	Result    label.NormalizedMap
	Divisor   float64
	ParseMode label.ParseMode
}

// FindByHash достаёт самую свежую запись по ключу (image_hash + engine + model).
// Если maxAge > 0 — проверяет "свежесть", иначе игнорирует возраст.
func (r *ScanRepo) FindByHash(ctx context.Context, imageHash, engine, model string, maxAge time.Duration) (*ScanRow, error) {
	const q = `
select id, created_at, image_hash, engine, model,
       raw_text, fields_json, result_json, divisor, parse_mode
from label_scans
where image_hash = $1 and engine = $2 and model = $3
order by created_at desc
limit 1`
	row := r.DB.QueryRowContext(ctx, q, imageHash, engine, model)

	var (
		out          ScanRow
		mode         string
		fieldsJS, js []byte
	)
	if err := row.Scan(&out.ID, &out.CreatedAt, &out.ImageHash, &out.Engine, &out.Model,
		&out.RawText, &fieldsJS, &js, &out.Divisor, &mode); err != nil {
		return nil, err
	}
	if maxAge > 0 && time.Since(out.CreatedAt) > maxAge {
		return nil, ErrNotFound
	}
	// поломанный JSON считаем промахом кэша
	if err := json.Unmarshal(js, &out.Result); err != nil {
		return nil, ErrNotFound
	}
	if err := json.Unmarshal(fieldsJS, &out.Fields); err != nil {
		return nil, ErrNotFound
	}
	out.ParseMode = label.ParseMode(mode)
	return &out, nil
}

// Upsert сохраняет результат; запись с тем же (image_hash, engine, model) перезаписывается.
func (r *ScanRepo) Upsert(ctx context.Context, row ScanRow) error {
	fieldsJS, err := json.Marshal(row.Fields)
	if err != nil {
		return err
	}
	js, err := json.Marshal(row.Result)
	if err != nil {
		return err
	}
	const q = `
insert into label_scans (
  image_hash, engine, model, raw_text, fields_json, result_json, divisor, parse_mode
) values ($1,$2,$3,$4,$5,$6,$7,$8)
on conflict (image_hash, engine, model) do update
set created_at = now(),
    raw_text = excluded.raw_text,
    fields_json = excluded.fields_json,
    result_json = excluded.result_json,
    divisor = excluded.divisor,
    parse_mode = excluded.parse_mode`
	_, err = r.DB.ExecContext(ctx, q,
		row.ImageHash, row.Engine, row.Model, row.RawText,
		fieldsJS, js, row.Divisor, string(row.ParseMode),
	)
	return err
}

// PurgeOlderThan удаляет старые записи, чтобы не раздувать БД.
func (r *ScanRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	cutoff := time.Now().Add(-olderThan)
	const q = `delete from label_scans where created_at < $1`
	res, err := r.DB.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}

func (r *ScanRepo) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}
