package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/csanfilippo/sgpkit/internal/interpreter"
)

// ErrorBody is the JSON shape of every error response.
// Domain and Code are set only for propagation errors.
type ErrorBody struct {
	Error  string            `json:"error"`
	Domain string            `json:"domain,omitempty"`
	Code   *interpreter.Code `json:"code,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes err as an ErrorBody. Propagation errors carry their
// domain and code.
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteJSON(w, status, NewErrorBody(err))
}

// NewErrorBody builds the response body for err.
func NewErrorBody(err error) ErrorBody {
	body := ErrorBody{Error: err.Error()}
	var e *interpreter.Error
	if errors.As(err, &e) {
		code := e.Code
		body.Domain = e.Domain
		body.Code = &code
	}
	return body
}

// StatusFor maps a propagation error to an HTTP status: malformed element
// sets and SGP4 failures are 422. Generic errors are 400 when the caller's
// arguments or a cancelled request caused them, 500 otherwise.
func StatusFor(err error) int {
	switch interpreter.CodeOf(err) {
	case interpreter.TLEError, interpreter.SatelliteError:
		return http.StatusUnprocessableEntity
	}
	if errors.Is(err, interpreter.ErrInvalidArgument) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
