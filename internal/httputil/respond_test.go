package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/csanfilippo/sgpkit/internal/interpreter"
)

func TestWriteErrorPlain(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusNotFound, errors.New("satellite not in catalog"))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != "satellite not in catalog" {
		t.Errorf("error = %v", body["error"])
	}
	if _, ok := body["domain"]; ok {
		t.Error("plain errors must not carry a domain")
	}
	if _, ok := body["code"]; ok {
		t.Error("plain errors must not carry a code")
	}
}

func TestWriteErrorDomain(t *testing.T) {
	err := &interpreter.Error{Domain: interpreter.Domain, Code: interpreter.TLEError, Err: errors.New("bad line")}

	w := httptest.NewRecorder()
	WriteError(w, StatusFor(err), err)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["domain"] != interpreter.Domain {
		t.Errorf("domain = %v", body["domain"])
	}
	if body["code"] != "TLE_ERROR" {
		t.Errorf("code = %v, want TLE_ERROR", body["code"])
	}
}

func TestStatusFor(t *testing.T) {
	domain := func(code interpreter.Code, err error) error {
		return &interpreter.Error{Domain: interpreter.Domain, Code: code, Err: err}
	}
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"tle", domain(interpreter.TLEError, nil), http.StatusUnprocessableEntity},
		{"satellite", domain(interpreter.SatelliteError, nil), http.StatusUnprocessableEntity},
		{"invalid argument", domain(interpreter.GenericError, fmt.Errorf("%w: time is required", interpreter.ErrInvalidArgument)), http.StatusBadRequest},
		{"cancelled", domain(interpreter.GenericError, context.Canceled), http.StatusBadRequest},
		{"deadline", domain(interpreter.GenericError, context.DeadlineExceeded), http.StatusBadRequest},
		{"internal generic", domain(interpreter.GenericError, errors.New("propagator is required")), http.StatusInternalServerError},
		{"unclassified", interpreter.Classify(errors.New("disk on fire")), http.StatusInternalServerError},
		{"foreign", errors.New("x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%s) = %d, want %d", tt.name, got, tt.want)
		}
	}
}
