package pipeline

import (
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/frenchline/adminapi/internal/schema"
)

type envelope struct {
	Error string `json:"error"`
}

type validationEnvelope struct {
	Error   string             `json:"error"`
	Details schema.FieldErrors `json:"details"`
}

// StatusError lets a handler pick the response status for an expected
// failure (404, 405, 409, ...). The message goes to the client verbatim, so
// it must not carry internals.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// Error builds a StatusError.
func Error(status int, format string, args ...any) *StatusError {
	return &StatusError{Status: status, Message: fmt.Sprintf(format, args...)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// encode failures past this point cannot change the status line
	_ = json.NewEncoder(w).Encode(v)
}
