// Package api exposes diagnostics endpoints for the access layer: query log
// statistics and exports, and schema cache control.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// respondWithJSON writes a JSON response with the given status code and data.
func respondWithJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// respondWithError writes a JSON error response with the given status code
// and message.
func respondWithError(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, errorResponse{Error: message})
}
