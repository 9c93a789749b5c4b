package ocr

import (
	"context"
	"time"
)

// Attempts — сколько раз звать модель. 1 — без повторов.
type Attempts int

// Do вызывает fn до n раз с линейной паузой между попытками.
func (n Attempts) Do(ctx context.Context, fn func() (string, error)) (string, error) {
	if n < 1 {
		n = 1
	}
	var lastErr error
	for attempt := 1; attempt <= int(n); attempt++ {
		txt, err := fn()
		if err == nil {
			return txt, nil
		}
		lastErr = err
		if attempt == int(n) {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
		}
	}
	return "", lastErr
}
