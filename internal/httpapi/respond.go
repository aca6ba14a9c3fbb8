// Package httpapi implements the logical external interfaces from §6:
// generate, save, clear and promote over a chi router, following the
// JSON-over-chi shape the pack's wisbric-nightowl roster service uses
// (internal/httpserver + pkg/roster), adapted to this repository's
// zerolog-based logging instead of slog.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/dutyroster/scheduler/internal/logging"
)

var respondLog = logging.GetLogger("httpapi")

// Respond writes data as a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		respondLog.Error().Err(err).Msg("encoding response")
	}
}

// ErrorResponse is the standard JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// RespondError writes a JSON error response.
func RespondError(w http.ResponseWriter, status int, code string, message string) {
	Respond(w, status, ErrorResponse{Error: code, Message: message})
}
