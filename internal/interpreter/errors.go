package interpreter

import (
	"errors"
	"fmt"

	"github.com/csanfilippo/sgpkit/internal/propagation"
	"github.com/csanfilippo/sgpkit/internal/tle"
)

// Domain identifies errors produced by this package.
const Domain = "it.calogerosanfilippo.SPGKitError"

// Code classifies a failure by the input or stage that caused it.
type Code int

const (
	// TLEError means the element set is malformed.
	TLEError Code = 0
	// SatelliteError means the SGP4 model could not initialize or propagate the satellite.
	SatelliteError Code = 1
	// GenericError covers everything else: bad arguments, cancellation, internal failures.
	GenericError Code = 2
)

func (c Code) String() string {
	switch c {
	case TLEError:
		return "TLE_ERROR"
	case SatelliteError:
		return "SATELLITE_ERROR"
	default:
		return "GENERIC_ERROR"
	}
}

// MarshalText encodes the code as its name.
func (c Code) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Error is the only error type returned by Interpreter methods.
type Error struct {
	Domain string
	Code   Code
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Domain, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Domain, e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same domain and code, so the sentinels
// below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Err != nil {
		return false
	}
	return t.Domain == e.Domain && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrTLE       = &Error{Domain: Domain, Code: TLEError}
	ErrSatellite = &Error{Domain: Domain, Code: SatelliteError}
	ErrGeneric   = &Error{Domain: Domain, Code: GenericError}
)

// ErrInvalidArgument marks GenericError failures caused by the caller's
// arguments (missing time, invalid observer) rather than by the service.
var ErrInvalidArgument = errors.New("invalid argument")

func invalidArgument(err error) *Error {
	return newError(GenericError, fmt.Errorf("%w: %w", ErrInvalidArgument, err))
}

func newError(code Code, err error) *Error {
	return &Error{Domain: Domain, Code: code, Err: err}
}

// CodeOf returns the code carried by err, or GenericError for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return GenericError
}

// Classify maps a lower-level failure to its domain error. *Error values
// pass through unchanged.
func Classify(err error) *Error {
	var (
		e  *Error
		lc *tle.LineCountError
	)
	switch {
	case errors.As(err, &e):
		return e
	case errors.As(err, &lc),
		errors.Is(err, propagation.ErrInvalidTLE),
		errors.Is(err, tle.ErrEmpty),
		errors.Is(err, tle.ErrNotASCII),
		errors.Is(err, tle.ErrEmptyLines),
		errors.Is(err, tle.ErrLineLength):
		return newError(TLEError, err)
	case errors.Is(err, propagation.ErrInit),
		errors.Is(err, propagation.ErrPropagate):
		return newError(SatelliteError, err)
	}
	return newError(GenericError, err)
}
