package tle

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Encoder writes element sets to an output stream in the 3-line text format.
type Encoder struct {
	w       io.Writer
	written bool
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes t as newline-separated lines. The title line is omitted when empty.
// Consecutive sets are separated by a single newline.
func (e *Encoder) Encode(t TLE) error {
	lines := make([]string, 0, 3)
	if t.Title != "" {
		lines = append(lines, t.Title)
	}
	lines = append(lines, t.Line1, t.Line2)

	out := strings.Join(lines, "\n")
	if !isASCII([]byte(out)) {
		return ErrNotASCII
	}
	if e.written {
		out = "\n" + out
	}

	if _, err := io.WriteString(e.w, out); err != nil {
		return fmt.Errorf("writing TLE: %w", err)
	}
	e.written = true
	return nil
}

// Marshal encodes a single element set.
func Marshal(t TLE) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf).Encode(t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
