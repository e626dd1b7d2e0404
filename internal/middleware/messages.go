package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys double as the English text.
const (
	MsgMissingAuthorization = "missing authorization"
	MsgInvalidAuthorization = "invalid authorization"
	MsgInvalidToken         = "invalid token"
	MsgRateLimited          = "too many requests, try again later"
	MsgInvalidPayload       = "invalid payload"
	MsgModelRequired        = "model_id is required"
	MsgInvalidID            = "invalid generation id"
	MsgGenerationNotFound   = "generation not found"
	MsgModelNotFound        = "model not found"
	MsgInvalidModel         = "model is not available"
	MsgInsufficientBalance  = "insufficient token balance"
	MsgProviderFailure      = "failed to generate"
	MsgInternal             = "internal server error"
)

var supportedLocales = []language.Tag{language.English, language.Indonesian}

func init() {
	id := map[string]string{
		MsgMissingAuthorization: "otorisasi tidak ditemukan",
		MsgInvalidAuthorization: "format otorisasi tidak valid",
		MsgInvalidToken:         "token tidak valid",
		MsgRateLimited:          "terlalu banyak permintaan, coba lagi nanti",
		MsgInvalidPayload:       "payload tidak valid",
		MsgModelRequired:        "model_id wajib diisi",
		MsgInvalidID:            "id generasi tidak valid",
		MsgGenerationNotFound:   "generasi tidak ditemukan",
		MsgModelNotFound:        "model tidak ditemukan",
		MsgInvalidModel:         "model tidak tersedia",
		MsgInsufficientBalance:  "saldo token tidak mencukupi",
		MsgProviderFailure:      "gagal membuat hasil",
		MsgInternal:             "terjadi kesalahan pada server",
	}
	for key, text := range id {
		_ = message.SetString(language.English, key, key)
		_ = message.SetString(language.Indonesian, key, text)
	}
}

// Printer renders messages in the request locale.
func Printer(ctx context.Context) *message.Printer {
	tag := language.English
	if LocaleFromContext(ctx) == "id" {
		tag = language.Indonesian
	}
	return message.NewPrinter(tag)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes {"error": {code, message}} with the message localized.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, key string) {
	WriteErrorMessage(w, status, code, Printer(r.Context()).Sprintf(key))
}

// WriteErrorMessage writes an error body with msg as is.
func WriteErrorMessage(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Code: code, Message: msg}})
}
