package handlers

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the JSON body of every error response. The request id is
// returned in the X-Request-ID header only.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes a standardised JSON error response.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// WriteErrorKind is WriteError with a machine-readable error kind.
func WriteErrorKind(w http.ResponseWriter, status int, msg, kind string) {
	WriteJSON(w, status, ErrorResponse{Error: msg, Kind: kind})
}

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
