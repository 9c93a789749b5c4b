package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nutri-label/api/internal/label"
	"nutri-label/api/internal/ocr"
	"nutri-label/api/internal/util"
)

const defaultBaseURL = "https://api.openai.com/v1"

type Engine struct {
	APIKey   string
	Model    string
	BaseURL  string
	Attempts ocr.Attempts
	httpc    *http.Client
}

func New(key, model string, attempts int) *Engine {
	return &Engine{
		APIKey:   strings.TrimSpace(key),
		Model:    strings.TrimSpace(model),
		BaseURL:  defaultBaseURL,
		Attempts: ocr.Attempts(attempts),
		httpc:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *Engine) Name() string { return "gpt" }

func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Transcribe(ctx context.Context, img []byte, mime, model string) (string, error) {
	if e.APIKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY is empty")
	}
	if model = strings.TrimSpace(model); model == "" {
		model = e.Model
	}
	dataURL := util.ImageDataURL(util.PickMIME(mime, "", img), img)

	body := map[string]any{
		"model": model,
		"messages": []any{
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{"type": "text", "text": label.Prompt},
					map[string]any{"type": "image_url", "image_url": map[string]any{"url": dataURL, "detail": "high"}},
				},
			},
		},
		"temperature":     0,
		"response_format": map[string]any{"type": "json_object"},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	return e.Attempts.Do(ctx, func() (string, error) {
		return e.call(ctx, payload)
	})
}

func (e *Engine) call(ctx context.Context, payload []byte) (string, error) {
	url := strings.TrimRight(e.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openai transcribe %d: %s", resp.StatusCode, strings.TrimSpace(string(x)))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", err
	}
	if len(raw.Choices) == 0 || strings.TrimSpace(raw.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("openai transcribe: empty response")
	}
	return raw.Choices[0].Message.Content, nil
}
