package tle

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var iss2013 = TLE{
	Line1: "1 25544U 98067A   13165.59097222  .00004759  00000-0  88814-4 0    47",
	Line2: "2 25544  51.6478 121.2152 0011003  68.5125 263.9959 15.50783143834295",
}

func TestParseElements(t *testing.T) {
	el, err := ParseElements(iss2013)
	require.NoError(t, err)

	assert.Equal(t, 25544, el.NORADID)
	assert.Equal(t, byte('U'), el.Classification)
	assert.Equal(t, "98067A", el.IntlDesignator)
	assert.Equal(t, 2013, el.EpochYear)
	assert.InDelta(t, 165.59097222, el.EpochDay, 1e-9)
	assert.InDelta(t, 4.759e-5, el.MeanMotionDot, 1e-12)
	assert.Zero(t, el.MeanMotionDDot)
	assert.InDelta(t, 8.8814e-5, el.BStar, 1e-12)
	assert.Equal(t, 4, el.ElementSetNumber)
	assert.InDelta(t, 51.6478, el.Inclination, 1e-9)
	assert.InDelta(t, 121.2152, el.RAAN, 1e-9)
	assert.InDelta(t, 0.0011003, el.Eccentricity, 1e-12)
	assert.InDelta(t, 68.5125, el.ArgPerigee, 1e-9)
	assert.InDelta(t, 263.9959, el.MeanAnomaly, 1e-9)
	assert.InDelta(t, 15.50783143, el.MeanMotion, 1e-9)
	assert.Equal(t, 83429, el.RevolutionNumber)

	// Day 165 of 2013 is June 14; .59097222 d is 14:10:59.9998.
	wantEpoch := time.Date(2013, 6, 14, 14, 10, 59, 999808000, time.UTC)
	assert.WithinDuration(t, wantEpoch, el.Epoch, time.Millisecond)
}

func TestParseElementsCenturyPivot(t *testing.T) {
	el, err := ParseElements(issZarya)
	require.NoError(t, err)
	assert.Equal(t, 1980, el.EpochYear)
	assert.Equal(t, 1980, el.Epoch.Year())
	assert.Equal(t, time.January, el.Epoch.Month())
	assert.Equal(t, 3, el.Epoch.Day())
}

func TestParseElementsNegativeExponents(t *testing.T) {
	set := TLE{
		Line1: "1 00005U 58002B   00179.78495062  .00000023  00000-0  28098-4 0  4753",
		Line2: "2 00005  34.2682 348.7242 1859667 331.7664  19.3264 10.82419157413667",
	}
	el, err := ParseElements(set)
	require.NoError(t, err)
	assert.InDelta(t, 2.8098e-5, el.BStar, 1e-12)
	assert.InDelta(t, 0.1859667, el.Eccentricity, 1e-12)
	assert.Equal(t, 2000, el.EpochYear)
}

func TestParseElementsErrors(t *testing.T) {
	replace := func(s string, at int, with string) string {
		return s[:at] + with + s[at+len(with):]
	}

	tests := []struct {
		name  string
		set   TLE
		field string
	}{
		{
			name:  "wrong first line number",
			set:   TLE{Line1: replace(iss2013.Line1, 0, "3"), Line2: iss2013.Line2},
			field: "line_number",
		},
		{
			name:  "wrong second line number",
			set:   TLE{Line1: iss2013.Line1, Line2: replace(iss2013.Line2, 0, "1")},
			field: "line_number",
		},
		{
			name:  "junk satellite number",
			set:   TLE{Line1: replace(iss2013.Line1, 2, "2X544"), Line2: iss2013.Line2},
			field: "satellite_number",
		},
		{
			name:  "junk epoch",
			set:   TLE{Line1: replace(iss2013.Line1, 20, "165.5909abcd"), Line2: iss2013.Line2},
			field: "epoch_day",
		},
		{
			name:  "epoch day zero",
			set:   TLE{Line1: replace(iss2013.Line1, 20, "000.00000000"), Line2: iss2013.Line2},
			field: "epoch_day",
		},
		{
			name:  "day 366 of a common year",
			set:   TLE{Line1: replace(iss2013.Line1, 18, "23366.50000000"), Line2: iss2013.Line2},
			field: "epoch_day",
		},
		{
			name:  "junk bstar",
			set:   TLE{Line1: replace(iss2013.Line1, 53, "8x814-4"), Line2: iss2013.Line2},
			field: "bstar",
		},
		{
			name:  "junk inclination",
			set:   TLE{Line1: iss2013.Line1, Line2: replace(iss2013.Line2, 8, " 51.64?8")},
			field: "inclination",
		},
		{
			name:  "junk mean motion",
			set:   TLE{Line1: iss2013.Line1, Line2: replace(iss2013.Line2, 52, "15.5O783143")},
			field: "mean_motion",
		},
		{
			name:  "mismatched satellite numbers",
			set:   TLE{Line1: iss2013.Line1, Line2: replace(iss2013.Line2, 2, "25545")},
			field: "satellite_number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseElements(tt.set)
			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
		})
	}
}

func TestParseElementsStructural(t *testing.T) {
	_, err := ParseElements(TLE{Line1: iss2013.Line1})
	require.ErrorIs(t, err, ErrEmptyLines)

	_, err = ParseElements(TLE{Line1: iss2013.Line1[:60], Line2: iss2013.Line2})
	require.ErrorIs(t, err, ErrLineLength)
}

func TestEpochTime(t *testing.T) {
	got, err := epochTime(2024, 1.5)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), got)

	// Leap year: day 366 is December 31.
	got, err = epochTime(2024, 366.0)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), got)

	_, err = epochTime(2024, math.NaN())
	assert.Error(t, err)

	_, err = epochTime(2023, 366.0)
	assert.Error(t, err)
	_, err = epochTime(2024, 367.0)
	assert.Error(t, err)

	got, err = epochTime(2023, 365.999)
	require.NoError(t, err)
	assert.Equal(t, 2023, got.Year())
}

func TestParseElementsLeapDay(t *testing.T) {
	set := TLE{
		Line1: iss2013.Line1[:18] + "24366.50000000" + iss2013.Line1[32:],
		Line2: iss2013.Line2,
	}
	el, err := ParseElements(set)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 31, 12, 0, 0, 0, time.UTC), el.Epoch)
}
