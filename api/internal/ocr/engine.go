package ocr

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Engine — внешний vision-движок: фото этикетки -> сырой текст ответа модели.
// Движок общий для всех запросов и после старта не меняется; модель
// передаётся в Transcribe, пустая строка — модель по умолчанию (GetModel).
type Engine interface {
	Name() string
	GetModel() string
	Transcribe(ctx context.Context, img []byte, mime, model string) (string, error)
}

var ErrUnknownEngine = errors.New("unknown llm_name; use 'gemini' or 'gpt'")

type Engines struct {
	Gemini Engine
	OpenAI Engine
}

// GetEngine выбирает движок по имени; пустое имя — Gemini.
func (e *Engines) GetEngine(llmName string) (Engine, error) {
	var eng Engine
	switch strings.ToLower(strings.TrimSpace(llmName)) {
	case "", "gemini":
		eng = e.Gemini
	case "gpt", "openai":
		eng = e.OpenAI
	default:
		return nil, ErrUnknownEngine
	}
	if eng == nil {
		return nil, ErrUnknownEngine
	}
	return eng, nil
}

// Choice — движок и модель, выбранные в чате. Пустая Model — модель движка.
type Choice struct {
	Engine Engine
	Model  string
}

// ModelName — модель, которой реально пойдёт запрос.
func (c Choice) ModelName() string {
	if c.Model != "" {
		return c.Model
	}
	if c.Engine == nil {
		return ""
	}
	return c.Engine.GetModel()
}

// Manager хранит выбор по чатам. Сами движки не трогает.
type Manager struct {
	def Choice
	m   sync.Map // chatID -> Choice
}

func NewManager(defaultEngine Engine) *Manager {
	return &Manager{def: Choice{Engine: defaultEngine}}
}

func (m *Manager) Get(chatID int64) Choice {
	if v, ok := m.m.Load(chatID); ok {
		return v.(Choice)
	}
	return m.def
}

func (m *Manager) Set(chatID int64, c Choice) {
	c.Model = strings.TrimSpace(c.Model)
	m.m.Store(chatID, c)
}
