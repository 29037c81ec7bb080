package httputil

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the wire shape of every error response: a stable
// machine-readable kind plus a human message. Backend error text never
// reaches the client.
type ErrorBody struct {
	Kind    string `json:"error"`
	Message string `json:"message"`
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes a structured error response.
func WriteError(w http.ResponseWriter, status int, kind, message string) {
	WriteJSON(w, status, ErrorBody{Kind: kind, Message: message})
}
