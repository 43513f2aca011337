package tle

import (
	"strings"
	"time"
)

// LineLength is the fixed width of both TLE data lines.
const LineLength = 69

// TLE is a validated two-line element set with an optional title line.
type TLE struct {
	Title string `json:"title" yaml:"title"`
	Line1 string `json:"line1" yaml:"line1"`
	Line2 string `json:"line2" yaml:"line2"`
}

// New creates a TLE from its constituent lines.
// Both data lines must be non-empty and exactly 69 characters long. The title may be empty.
func New(title, line1, line2 string) (TLE, error) {
	t := TLE{Title: title, Line1: line1, Line2: line2}
	if err := t.Validate(); err != nil {
		return TLE{}, err
	}
	return t, nil
}

// Validate checks the structural rules New enforces. It is useful for TLE
// values built as struct literals or decoded from JSON.
func (t TLE) Validate() error {
	if t.Line1 == "" || t.Line2 == "" {
		return ErrEmptyLines
	}
	if len(t.Line1) != LineLength || len(t.Line2) != LineLength {
		return ErrLineLength
	}
	return nil
}

// Name returns the trimmed title.
func (t TLE) Name() string {
	return strings.TrimSpace(t.Title)
}

// Entry represents a single satellite's element set inside a catalog.
type Entry struct {
	NORADID int       `json:"norad_id"`
	Name    string    `json:"name"`
	Epoch   time.Time `json:"epoch"`
	Line1   string    `json:"line1"`
	Line2   string    `json:"line2"`
}

// TLE returns the entry's element set.
func (e Entry) TLE() TLE {
	return TLE{Title: e.Name, Line1: e.Line1, Line2: e.Line2}
}

// EpochRange represents the minimum and maximum epoch times in a dataset.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// Dataset represents a complete catalog of element sets from a source.
type Dataset struct {
	Source     string
	FetchedAt  time.Time
	EpochRange EpochRange
	Satellites []Entry
}

// NewDataset builds a Dataset and computes its epoch range.
func NewDataset(source string, fetchedAt time.Time, entries []Entry) *Dataset {
	ds := &Dataset{
		Source:     source,
		FetchedAt:  fetchedAt,
		Satellites: entries,
	}
	if len(entries) == 0 {
		return ds
	}

	minEpoch := entries[0].Epoch
	maxEpoch := entries[0].Epoch
	for _, e := range entries[1:] {
		if e.Epoch.Before(minEpoch) {
			minEpoch = e.Epoch
		}
		if e.Epoch.After(maxEpoch) {
			maxEpoch = e.Epoch
		}
	}
	ds.EpochRange = EpochRange{Min: minEpoch, Max: maxEpoch}
	return ds
}
