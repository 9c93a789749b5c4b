package telegram

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"nutri-label/api/internal/service"
)

var httpc = &http.Client{Timeout: 60 * time.Second}

func (r *Router) acceptPhoto(msg tgbotapi.Message) {
	// последний размер — самый большой
	ph := msg.Photo[len(msg.Photo)-1]
	r.scanFile(msg.Chat.ID, ph.FileID, "")
}

func (r *Router) acceptDocument(msg tgbotapi.Message) {
	r.scanFile(msg.Chat.ID, msg.Document.FileID, msg.Document.MimeType)
}

func (r *Router) scanFile(cid int64, fileID, mime string) {
	r.send(cid, "Принял фото, обрабатываю…")

	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		r.SendError(cid, err)
		return
	}
	img, err := download(url)
	if err != nil {
		r.SendError(cid, err)
		return
	}

	ctx, cancel := r.ctx()
	defer cancel()

	choice := r.EngManager.Get(cid)
	out, err := r.Scanner.Scan(ctx, service.ScanRequest{
		Image:  img,
		MIME:   mime,
		Engine: choice.Engine.Name(),
		Model:  choice.Model,
	})
	if err != nil {
		slog.Error("telegram scan failed", "chat_id", cid, "error", err)
		r.SendError(cid, err)
		return
	}
	r.sendHTML(cid, FormatScan(out))
}

func download(url string) ([]byte, error) {
	resp, err := httpc.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}
