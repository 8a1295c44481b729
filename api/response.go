package api

import (
	"encoding/json"
	"net/http"

	"github.com/coursechat/coursechat/internal/log"
)

// writeJSON writes data as a JSON response. Encoding failures after
// WriteHeader cannot reach the client, so they are only logged.
func writeJSON(w http.ResponseWriter, logger log.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

// ErrorResponse is the JSON shape of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, logger log.Logger, status int, errStr, message string) {
	writeJSON(w, logger, status, ErrorResponse{Error: errStr, Message: message})
}
