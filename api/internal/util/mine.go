package util

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// ImageDataURL кодирует картинку в data:URI для vision API.
func ImageDataURL(mime string, img []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img)
}

var b64Encodings = []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding}

// DecodeImageB64 принимает голый base64 или data:<mime>;base64,<payload>.
// mime непустой только для data:URI.
func DecodeImageB64(s string) (img []byte, mime string, err error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		if meta, payload, ok := strings.Cut(rest, ","); ok {
			mime, _, _ = strings.Cut(meta, ";")
			s = payload
		}
	}
	for _, enc := range b64Encodings {
		if img, err = enc.DecodeString(s); err == nil {
			return img, mime, nil
		}
	}
	return nil, "", fmt.Errorf("decode base64: %w", err)
}

// PickMIME берём явный MIME, затем из data:URI, иначе детектим по байтам.
func PickMIME(explicit, hint string, data []byte) string {
	if exp := strings.TrimSpace(explicit); exp != "" && exp != "application/octet-stream" {
		return exp
	}
	if h := strings.TrimSpace(hint); h != "" {
		return h
	}
	if len(data) > 0 {
		if m := http.DetectContentType(data); strings.HasPrefix(m, "image/") {
			return m
		}
	}
	return "image/jpeg"
}

// SHA256Hex — ключ кэша для изображения.
func SHA256Hex(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
