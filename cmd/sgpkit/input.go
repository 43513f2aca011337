package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/csanfilippo/sgpkit/internal/interpreter"
	"github.com/csanfilippo/sgpkit/internal/tle"
)

// readSets decodes every element set in path ("-" for stdin).
func readSets(cmd *cobra.Command, path string) ([]tle.TLE, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	sets, err := tle.NewDecoder(r).DecodeAll()
	if err != nil {
		return nil, interpreter.Classify(err)
	}
	return sets, nil
}

// selectSet returns the set with the given NORAD ID, or the only set when
// noradID is zero.
func selectSet(sets []tle.TLE, noradID int) (tle.TLE, error) {
	if noradID == 0 {
		if len(sets) != 1 {
			return tle.TLE{}, fmt.Errorf("input holds %d element sets; choose one with --norad", len(sets))
		}
		return sets[0], nil
	}
	for _, s := range sets {
		el, err := tle.ParseElements(s)
		if err == nil && el.NORADID == noradID {
			return s, nil
		}
	}
	return tle.TLE{}, fmt.Errorf("no element set for NORAD ID %d", noradID)
}

// parseTimeFlag parses an RFC 3339 --time value; empty means now.
func parseTimeFlag(v string) (time.Time, error) {
	if v == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC 3339", v)
	}
	return t.UTC(), nil
}
