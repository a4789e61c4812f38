package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/comigor/jarvis-chat/internal/logger"
)

// errorBody is the inner object of the uniform error envelope.
type errorBody struct {
	Message string `json:"message"`
	Code    any    `json:"code,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, body errorBody) {
	respondJSON(w, status, errorEnvelope{Error: body})
}

func respondRaw(w http.ResponseWriter, status int, contentType string, body []byte) {
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logger.L.Warn("failed to write response", "error", err)
	}
}
