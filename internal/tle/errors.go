package tle

import (
	"errors"
	"fmt"
)

var (
	// ErrEmpty is returned when there is nothing to parse.
	ErrEmpty = errors.New("tle: empty input")

	// ErrNotASCII is returned when the input contains non-ASCII bytes.
	ErrNotASCII = errors.New("tle: input is not ASCII")

	// ErrEmptyLines is returned when a data line is empty.
	ErrEmptyLines = errors.New("tle: data lines cannot be empty")

	// ErrLineLength is returned when a data line is not 69 characters long.
	ErrLineLength = errors.New("tle: data lines must be 69 characters long")
)

// LineCountError reports a buffer with the wrong number of non-blank lines.
type LineCountError struct {
	Count int
}

func (e *LineCountError) Error() string {
	return fmt.Sprintf("tle: wrong line count %d", e.Count)
}

// DecodeError wraps a failure from Decoder with the line the offending set starts on.
type DecodeError struct {
	Line int
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("tle: decoding set at line %d: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// FieldError reports a fixed-column field that could not be parsed.
type FieldError struct {
	Line  int
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("tle: line %d field %s %q: %v", e.Line, e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
