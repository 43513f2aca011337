package tle

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Decoder reads titled element sets from an input stream.
type Decoder struct {
	scanner *bufio.Scanner
	line    int // physical lines consumed
	seen    int // non-blank lines consumed
	pending []string
	start   int
	err     error
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Split(scanAnyNewline)
	return &Decoder{scanner: s}
}

// More reports whether another element set may be available.
func (d *Decoder) More() bool {
	if d.err != nil {
		return false
	}
	if len(d.pending) > 0 {
		return true
	}
	next, ok := d.nextLine()
	if !ok {
		return false
	}
	d.pending = append(d.pending, next)
	return true
}

// Decode returns the next element set, or io.EOF once the input is exhausted.
// Failures are reported as *DecodeError.
func (d *Decoder) Decode() (TLE, error) {
	if d.err != nil {
		return TLE{}, d.err
	}

	for len(d.pending) < 3 {
		next, ok := d.nextLine()
		if !ok {
			break
		}
		d.pending = append(d.pending, next)
	}

	if err := d.scanner.Err(); err != nil {
		d.err = fmt.Errorf("reading TLE data: %w", err)
		return TLE{}, d.err
	}
	if d.err != nil {
		return TLE{}, d.err
	}

	switch {
	case len(d.pending) == 0:
		return TLE{}, io.EOF
	case len(d.pending) < 3:
		d.err = &DecodeError{Line: d.start, Err: &LineCountError{Count: d.seen}}
		return TLE{}, d.err
	}

	title, line1, line2 := d.pending[0], d.pending[1], d.pending[2]
	start := d.start
	d.pending = d.pending[:0]

	if len(line1) != LineLength || len(line2) != LineLength {
		d.err = &DecodeError{Line: start, Err: ErrLineLength}
		return TLE{}, d.err
	}
	return TLE{Title: title, Line1: line1, Line2: line2}, nil
}

// DecodeAll decodes every remaining element set.
// An input without any set is reported as a LineCountError of zero.
func (d *Decoder) DecodeAll() ([]TLE, error) {
	var sets []TLE
	for {
		t, err := d.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		sets = append(sets, t)
	}
	if len(sets) == 0 {
		return nil, &DecodeError{Line: d.line, Err: &LineCountError{Count: 0}}
	}
	return sets, nil
}

// nextLine returns the next non-blank, trimmed line.
func (d *Decoder) nextLine() (string, bool) {
	for d.scanner.Scan() {
		d.line++
		raw := d.scanner.Bytes()
		if !isASCII(raw) {
			d.err = &DecodeError{Line: d.line, Err: ErrNotASCII}
			return "", false
		}
		l := strings.TrimSpace(string(raw))
		if l == "" {
			continue
		}
		if len(d.pending) == 0 {
			d.start = d.line
		}
		d.seen++
		return l, true
	}
	return "", false
}

// scanAnyNewline is bufio.ScanLines extended to treat a lone '\r' as a line break.
func scanAnyNewline(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' {
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
				return i + 1, data[:i], nil
			}
			if !atEOF {
				// Need one more byte to tell "\r" from "\r\n".
				return 0, nil, nil
			}
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
