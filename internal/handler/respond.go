package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/templui/accounts/internal/apperr"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// writeError maps a classified error onto its status and client message.
// invalidTokenDetail is the message used for invalid-token failures, which
// differ per endpoint.
func writeError(w http.ResponseWriter, r *http.Request, err error, invalidTokenDetail string) {
	kind := apperr.KindOf(err)
	msg := apperr.Message(err)

	var detail string
	switch kind {
	case apperr.KindValidation:
		detail = msg
		slog.Debug("request rejected", "path", r.URL.Path, "error", err)
	case apperr.KindConfiguration:
		detail = "Server configuration error: " + msg
		slog.Error("server misconfigured", "path", r.URL.Path, "error", err)
	case apperr.KindProviderCommunication:
		detail = "Google API request failed: " + msg
		slog.Warn("google request failed", "path", r.URL.Path, "error", err)
	case apperr.KindInvalidToken:
		detail = invalidTokenDetail
		slog.Debug("invalid token", "path", r.URL.Path, "error", err)
	default:
		detail = "unexpected error"
		slog.Error("unexpected error", "path", r.URL.Path, "error", err)
	}

	writeDetail(w, kind.HTTPStatus(), detail)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}
