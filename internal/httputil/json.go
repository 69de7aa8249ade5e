package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/corvohq/simple-identity/pkg/domain"
)

// ErrorResponse is the failure envelope for every endpoint.
type ErrorResponse struct {
	Message string `json:"message"`
}

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes the failure envelope with the given status.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Message: message})
}

// EngineError maps an identity-engine error to its status and message.
// Untyped errors surface as a generic 500.
func EngineError(w http.ResponseWriter, err error) {
	var e *domain.Error
	if errors.As(err, &e) {
		Error(w, e.StatusCode(), e.Message)
		return
	}
	Error(w, http.StatusInternalServerError, "internal error")
}
