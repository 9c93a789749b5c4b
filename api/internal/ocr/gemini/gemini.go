package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"nutri-label/api/internal/label"
	"nutri-label/api/internal/ocr"
	"nutri-label/api/internal/util"
)

type Engine struct {
	APIKey   string
	Model    string
	Attempts ocr.Attempts
}

func New(apiKey, model string, attempts int) *Engine {
	return &Engine{
		APIKey:   strings.TrimSpace(apiKey),
		Model:    strings.TrimSpace(model),
		Attempts: ocr.Attempts(attempts),
	}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

// Transcribe отправляет фото этикетки с фиксированным промптом и возвращает
// текст ответа как есть, без разбора. Пустой model — e.Model.
func (e *Engine) Transcribe(ctx context.Context, img []byte, mime, model string) (string, error) {
	if e.APIKey == "" {
		return "", errors.New("GEMINI_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return "", err
	}
	defer cl.Close()

	if model = strings.TrimSpace(model); model == "" {
		model = e.Model
	}
	m := cl.GenerativeModel(model)
	if m == nil {
		return "", fmt.Errorf("gemini: model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}

	parts := []genai.Part{
		genai.Text(label.Prompt),
		&genai.Blob{MIMEType: util.PickMIME(mime, "", img), Data: img},
	}

	return e.Attempts.Do(ctx, func() (string, error) {
		resp, err := m.GenerateContent(ctx, parts...)
		if err != nil {
			return "", err
		}
		txt := firstText(resp)
		if txt == "" {
			return "", fmt.Errorf("gemini transcribe: empty response")
		}
		return txt, nil
	})
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
