package handle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"nutri-label/api/internal/service"
	"nutri-label/api/internal/util"
)

// OCR принимает multipart-поле "file" и отдаёт плоскую карту "<key>_1g" -> значение.
func (h *Handle) OCR(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "file is required: "+err.Error())
		return
	}
	defer file.Close()

	img, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "read file: "+err.Error())
		return
	}
	slog.Info("received file", "filename", hdr.Filename, "size", len(img))

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.RequestTimeout)
	defer cancel()

	out, err := h.svc.Scan(ctx, service.ScanRequest{
		Image: img,
		MIME:  hdr.Header.Get("Content-Type"),
	})
	if err != nil {
		slog.Error("ocr failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out.Nutrients)
}

type ocrRequest struct {
	LLMName  string `json:"llm_name"`
	ImageB64 string `json:"image_b64"`
	MIME     string `json:"mime,omitempty"`
}

// OCRJSON — то же, что OCR, но картинка в base64 (или data:URI), а в ответе метаданные.
func (h *Handle) OCRJSON(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	var req ocrRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "bad json: "+err.Error())
		return
	}
	img, hintMIME, err := util.DecodeImageB64(req.ImageB64)
	if err != nil || len(img) == 0 {
		writeDetail(w, http.StatusBadRequest, "bad image_b64")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.RequestTimeout)
	defer cancel()

	out, err := h.svc.Scan(ctx, service.ScanRequest{
		Image:  img,
		MIME:   util.PickMIME(req.MIME, hintMIME, img),
		Engine: req.LLMName,
	})
	switch {
	case errors.Is(err, service.ErrUnknownEngine), errors.Is(err, service.ErrEmptyImage):
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("ocr failed", "llm_name", req.LLMName, "error", err)
		writeDetail(w, http.StatusBadGateway, "ocr error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}
