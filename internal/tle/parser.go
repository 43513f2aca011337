package tle

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Parse parses a buffer holding exactly one titled element set (three lines).
// Lines are separated by '\n'; surrounding whitespace and blank lines are ignored.
func Parse(data []byte) (TLE, error) {
	if len(data) == 0 {
		return TLE{}, ErrEmpty
	}
	if !isASCII(data) {
		return TLE{}, ErrNotASCII
	}

	lines := nonBlankLines(strings.Split(string(data), "\n"))
	if len(lines) != 3 {
		return TLE{}, &LineCountError{Count: len(lines)}
	}
	if len(lines[1]) != LineLength || len(lines[2]) != LineLength {
		return TLE{}, ErrLineLength
	}

	return TLE{Title: lines[0], Line1: lines[1], Line2: lines[2]}, nil
}

// ParseCollection parses one or more titled element sets.
// Any newline convention is accepted; the number of non-blank lines must be a multiple of three.
func ParseCollection(data []byte) ([]TLE, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	return NewDecoder(bytes.NewReader(data)).DecodeAll()
}

// ParseCatalog reads 3-line NORAD catalog text from r and returns parsed entries.
// Unlike ParseCollection it is lenient: malformed entries are skipped with a warning log.
func ParseCatalog(r io.Reader, logger *slog.Logger) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var entries []Entry
	for i := 0; i+2 < len(lines); {
		name := strings.TrimSpace(lines[i])
		line1 := lines[i+1]
		line2 := lines[i+2]

		// Resync one line at a time until a plausible triplet lines up.
		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			i++
			continue
		}

		set := TLE{Title: name, Line1: line1, Line2: line2}
		if err := set.Validate(); err != nil {
			logger.Warn("skipping TLE entry with invalid line length", "name", name, "error", err)
			i += 3
			continue
		}

		el, err := ParseElements(set)
		if err != nil {
			logger.Warn("skipping TLE entry with invalid fields", "name", name, "error", err)
			i += 3
			continue
		}

		entries = append(entries, Entry{
			NORADID: el.NORADID,
			Name:    name,
			Epoch:   el.Epoch,
			Line1:   line1,
			Line2:   line2,
		})
		i += 3
	}

	return entries, nil
}

func nonBlankLines(raw []string) []string {
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b > 0x7f {
			return false
		}
	}
	return true
}
