package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"nutri-label/api/internal/ocr"
	"nutri-label/api/internal/service"
)

type Scanner interface {
	Scan(ctx context.Context, req service.ScanRequest) (service.Scan, error)
}

// BotAPI — часть *tgbotapi.BotAPI, которой пользуется роутер.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Router обрабатывает апдейты; вызывается конкурентно, по горутине на апдейт.
type Router struct {
	Bot        BotAPI
	Scanner    Scanner
	Engines    *ocr.Engines
	EngManager *ocr.Manager
	Timeout    time.Duration
}

const usage = "Пришли фото таблицы пищевой ценности — верну значения на 1 г.\nКоманды: /health, /engine"

func (r *Router) HandleUpdate(upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	if msg.IsCommand() {
		r.HandleCommand(msg)
		return
	}
	if len(msg.Photo) > 0 {
		r.acceptPhoto(*msg)
		return
	}
	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/") {
		r.acceptDocument(*msg)
	}
}

func (r *Router) HandleCommand(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		r.send(cid, usage)
	case "health":
		r.send(cid, "✅ OK")
	case "engine":
		r.handleEngineCommand(cid, msg.CommandArguments())
	default:
		r.send(cid, "Неизвестная команда")
	}
}

// handleEngineCommand переключает движок и модель только для этого чата.
// Форматы:
//
//	/engine
//	/engine gemini [model]
//	/engine gpt [model]
func (r *Router) handleEngineCommand(chatID int64, args string) {
	name, modelArg := parseEngineArgs(args)
	if name == "" {
		cur := r.EngManager.Get(chatID)
		r.send(chatID, "Текущий движок: "+cur.Engine.Name()+" ("+cur.ModelName()+")"+
			"\nИспользование: /engine {gemini|gpt} [model]")
		return
	}

	eng, err := r.Engines.GetEngine(name)
	if err != nil {
		r.send(chatID, "Неизвестный или не настроенный движок. Доступны: gemini | gpt")
		return
	}
	choice := ocr.Choice{Engine: eng, Model: modelArg}
	r.EngManager.Set(chatID, choice)
	r.send(chatID, "✅ Движок: "+eng.Name()+" ("+choice.ModelName()+").")
}

func parseEngineArgs(args string) (name, model string) {
	f := strings.Fields(args)
	if len(f) == 0 {
		return "", ""
	}
	name = strings.ToLower(f[0])
	if len(f) > 1 {
		model = f[1]
	}
	return name, model
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := r.Bot.Send(msg); err != nil {
		slog.Warn("telegram send failed", "chat_id", chatID, "error", err)
	}
}

func (r *Router) sendHTML(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := r.Bot.Send(msg); err != nil {
		slog.Warn("telegram send failed", "chat_id", chatID, "error", err)
	}
}

func (r *Router) SendError(chatID int64, err error) {
	r.send(chatID, fmt.Sprintf("Ошибка распознавания: %v", err))
}

func (r *Router) ctx() (context.Context, context.CancelFunc) {
	t := r.Timeout
	if t <= 0 {
		t = 180 * time.Second
	}
	return context.WithTimeout(context.Background(), t)
}
