package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutri-label/api/internal/label"
	"nutri-label/api/internal/ocr"
	"nutri-label/api/internal/service"
)

// helpers

type sentMsg struct {
	chatID int64
	text   string
}

type fakeBot struct {
	mu      sync.Mutex
	sent    []sentMsg
	fileURL string
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, fmt.Errorf("unexpected %T", c)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sentMsg{chatID: m.ChatID, text: m.Text})
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) GetFileDirectURL(fileID string) (string, error) {
	if b.fileURL == "" {
		return "", errors.New("file not found")
	}
	return b.fileURL + "/" + fileID, nil
}

func (b *fakeBot) texts(chatID int64) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, m := range b.sent {
		if m.chatID == chatID {
			out = append(out, m.text)
		}
	}
	return out
}

func (b *fakeBot) last(chatID int64) string {
	t := b.texts(chatID)
	if len(t) == 0 {
		return ""
	}
	return t[len(t)-1]
}

type stubEngine struct{ name, model string }

func (s stubEngine) Name() string     { return s.name }
func (s stubEngine) GetModel() string { return s.model }
func (s stubEngine) Transcribe(context.Context, []byte, string, string) (string, error) {
	return "{}", nil
}

type fakeScanner struct {
	mu   sync.Mutex
	out  service.Scan
	err  error
	reqs []service.ScanRequest
}

func (f *fakeScanner) Scan(_ context.Context, req service.ScanRequest) (service.Scan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.out, f.err
}

func newRouter(bot *fakeBot, sc *fakeScanner) (*Router, *ocr.Engines) {
	engs := &ocr.Engines{
		Gemini: stubEngine{name: "gemini", model: "gemini-1.5-flash"},
		OpenAI: stubEngine{name: "gpt", model: "gpt-4o-mini"},
	}
	return &Router{
		Bot:        bot,
		Scanner:    sc,
		Engines:    engs,
		EngManager: ocr.NewManager(engs.Gemini),
	}, engs
}

func command(chatID int64, text, cmd string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: chatID},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd) + 1}},
	}}
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func TestHandleUpdate_NilMessage(t *testing.T) {
	t.Parallel()
	bot := &fakeBot{}
	r, _ := newRouter(bot, &fakeScanner{})

	r.HandleUpdate(tgbotapi.Update{})

	assert.Empty(t, bot.sent)
}

func TestHandleUpdate_Commands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		cmd  string
		want string
	}{
		{name: "start", text: "/start", cmd: "start", want: usage},
		{name: "help", text: "/help", cmd: "help", want: usage},
		{name: "health", text: "/health", cmd: "health", want: "✅ OK"},
		{name: "unknown", text: "/nope", cmd: "nope", want: "Неизвестная команда"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			bot := &fakeBot{}
			r, _ := newRouter(bot, &fakeScanner{})

			r.HandleUpdate(command(10, tc.text, tc.cmd))

			assert.Equal(t, []string{tc.want}, bot.texts(10))
		})
	}
}

func TestEngineCommand_ScopedToChat(t *testing.T) {
	t.Parallel()
	bot := &fakeBot{}
	r, engs := newRouter(bot, &fakeScanner{})

	r.HandleUpdate(command(1, "/engine gpt gpt-4o", "engine"))
	assert.Equal(t, "✅ Движок: gpt (gpt-4o).", bot.last(1))

	r.HandleUpdate(command(2, "/engine", "engine"))
	assert.Contains(t, bot.last(2), "Текущий движок: gemini (gemini-1.5-flash)")

	r.HandleUpdate(command(1, "/engine", "engine"))
	assert.Contains(t, bot.last(1), "Текущий движок: gpt (gpt-4o)")

	// общие движки не меняются
	assert.Equal(t, "gpt-4o-mini", engs.OpenAI.GetModel())
	assert.Equal(t, "gemini-1.5-flash", engs.Gemini.GetModel())
}

func TestEngineCommand_DefaultModel(t *testing.T) {
	t.Parallel()
	bot := &fakeBot{}
	r, _ := newRouter(bot, &fakeScanner{})

	r.HandleUpdate(command(3, "/engine GPT", "engine"))

	assert.Equal(t, "✅ Движок: gpt (gpt-4o-mini).", bot.last(3))
	assert.Equal(t, "gpt", r.EngManager.Get(3).Engine.Name())
	assert.Empty(t, r.EngManager.Get(3).Model)
}

func TestEngineCommand_Unknown(t *testing.T) {
	t.Parallel()
	bot := &fakeBot{}
	r, _ := newRouter(bot, &fakeScanner{})

	r.HandleUpdate(command(4, "/engine yandex", "engine"))

	assert.Contains(t, bot.last(4), "Неизвестный или не настроенный движок")
	assert.Equal(t, "gemini", r.EngManager.Get(4).Engine.Name())
}

func TestEngineCommand_Concurrent(t *testing.T) {
	t.Parallel()
	bot := &fakeBot{}
	r, engs := newRouter(bot, &fakeScanner{})

	var wg sync.WaitGroup
	for i := int64(1); i <= 50; i++ {
		wg.Add(2)
		go func(id int64) {
			defer wg.Done()
			r.HandleUpdate(command(id, fmt.Sprintf("/engine gemini model-%d", id), "engine"))
		}(i)
		go func() {
			defer wg.Done()
			_ = engs.Gemini.GetModel()
			_ = r.EngManager.Get(999).ModelName()
		}()
	}
	wg.Wait()

	for i := int64(1); i <= 50; i++ {
		assert.Equal(t, fmt.Sprintf("model-%d", i), r.EngManager.Get(i).ModelName())
	}
	assert.Equal(t, "gemini-1.5-flash", r.EngManager.Get(999).ModelName())
	assert.Equal(t, "gemini-1.5-flash", engs.Gemini.GetModel())
}

// ---------------------------------------------------------------------------
// Photos
// ---------------------------------------------------------------------------

func TestHandleUpdate_PhotoUsesChatChoice(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/big" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	bot := &fakeBot{fileURL: srv.URL}
	sc := &fakeScanner{out: service.Scan{
		Nutrients:        label.NormalizedMap{"fat_1g": 0.2},
		Divisor:          40,
		ServingSizeFound: true,
	}}
	r, _ := newRouter(bot, sc)
	r.HandleUpdate(command(5, "/engine gpt gpt-4o", "engine"))

	r.HandleUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:  &tgbotapi.Chat{ID: 5},
		Photo: []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "big"}},
	}})

	require.Len(t, sc.reqs, 1)
	assert.Equal(t, []byte("jpeg-bytes"), sc.reqs[0].Image)
	assert.Equal(t, "gpt", sc.reqs[0].Engine)
	assert.Equal(t, "gpt-4o", sc.reqs[0].Model)

	texts := bot.texts(5)
	require.Len(t, texts, 3)
	assert.Equal(t, "Принял фото, обрабатываю…", texts[1])
	assert.Equal(t, FormatScan(sc.out), texts[2])
}

func TestHandleUpdate_ImageDocumentDefaultChoice(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	bot := &fakeBot{fileURL: srv.URL}
	sc := &fakeScanner{}
	r, _ := newRouter(bot, sc)

	r.HandleUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 6},
		Document: &tgbotapi.Document{FileID: "doc", MimeType: "image/png"},
	}})

	require.Len(t, sc.reqs, 1)
	assert.Equal(t, "gemini", sc.reqs[0].Engine)
	assert.Empty(t, sc.reqs[0].Model)
	assert.Equal(t, "image/png", sc.reqs[0].MIME)
}

func TestHandleUpdate_NonImageDocumentIgnored(t *testing.T) {
	t.Parallel()
	bot := &fakeBot{}
	sc := &fakeScanner{}
	r, _ := newRouter(bot, sc)

	r.HandleUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 7},
		Document: &tgbotapi.Document{FileID: "doc", MimeType: "application/pdf"},
	}})

	assert.Empty(t, sc.reqs)
	assert.Empty(t, bot.texts(7))
}

func TestHandleUpdate_ScanErrorReported(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	bot := &fakeBot{fileURL: srv.URL}
	r, _ := newRouter(bot, &fakeScanner{err: errors.New("gemini transcribe: quota")})

	r.HandleUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:  &tgbotapi.Chat{ID: 8},
		Photo: []tgbotapi.PhotoSize{{FileID: "p"}},
	}})

	assert.Equal(t, "Ошибка распознавания: gemini transcribe: quota", bot.last(8))
}

func TestHandleUpdate_FileLookupError(t *testing.T) {
	t.Parallel()
	bot := &fakeBot{}
	sc := &fakeScanner{}
	r, _ := newRouter(bot, sc)

	r.HandleUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:  &tgbotapi.Chat{ID: 9},
		Photo: []tgbotapi.PhotoSize{{FileID: "p"}},
	}})

	assert.Empty(t, sc.reqs)
	assert.Equal(t, "Ошибка распознавания: file not found", bot.last(9))
}
