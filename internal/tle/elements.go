package tle

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Elements holds the fixed-column fields of an element set.
// Angles are in degrees and mean motion in revolutions per day, as written in the TLE.
type Elements struct {
	NORADID          int
	Classification   byte
	IntlDesignator   string
	EpochYear        int     // four-digit year
	EpochDay         float64 // 1-based fractional day of year
	Epoch            time.Time
	MeanMotionDot    float64 // rev/day², already halved in the TLE
	MeanMotionDDot   float64 // rev/day³, already divided by six in the TLE
	BStar            float64 // 1/earth radii
	ElementSetNumber int
	Inclination      float64
	RAAN             float64
	Eccentricity     float64
	ArgPerigee       float64
	MeanAnomaly      float64
	MeanMotion       float64
	RevolutionNumber int
}

var errLinePrefix = errors.New("unexpected line number")

// ParseElements extracts the orbital elements from t.
// Numeric fields are read exactly the way the SGP4 engine reads them, so a
// set that passes here will not make the engine abort on malformed input.
func ParseElements(t TLE) (Elements, error) {
	if err := t.Validate(); err != nil {
		return Elements{}, err
	}
	l1, l2 := t.Line1, t.Line2

	if l1[0] != '1' {
		return Elements{}, &FieldError{Line: 1, Field: "line_number", Value: l1[:1], Err: errLinePrefix}
	}
	if l2[0] != '2' {
		return Elements{}, &FieldError{Line: 2, Field: "line_number", Value: l2[:1], Err: errLinePrefix}
	}

	var (
		el  Elements
		err error
	)

	p := fieldParser{}
	el.NORADID = p.integer(1, "satellite_number", strings.TrimSpace(l1[2:7]))
	el.Classification = l1[7]
	el.IntlDesignator = strings.TrimSpace(l1[9:17])
	yy := p.integer(1, "epoch_year", l1[18:20])
	el.EpochDay = p.decimal(1, "epoch_day", l1[20:32])
	el.MeanMotionDot = p.decimal(1, "mean_motion_dot", squeeze(l1[33:43]))
	el.MeanMotionDDot = p.decimal(1, "mean_motion_ddot", squeeze(l1[44:45]+"."+l1[45:50]+"e"+l1[50:52]))
	el.BStar = p.decimal(1, "bstar", squeeze(l1[53:54]+"."+l1[54:59]+"e"+l1[59:61]))
	el.ElementSetNumber = p.optionalInt(1, "element_set_number", strings.TrimSpace(l1[64:68]))

	sat2 := p.integer(2, "satellite_number", strings.TrimSpace(l2[2:7]))
	el.Inclination = p.decimal(2, "inclination", squeeze(l2[8:16]))
	el.RAAN = p.decimal(2, "raan", squeeze(l2[17:25]))
	el.Eccentricity = p.decimal(2, "eccentricity", "."+l2[26:33])
	el.ArgPerigee = p.decimal(2, "arg_perigee", squeeze(l2[34:42]))
	el.MeanAnomaly = p.decimal(2, "mean_anomaly", squeeze(l2[43:51]))
	el.MeanMotion = p.decimal(2, "mean_motion", squeeze(l2[52:63]))
	el.RevolutionNumber = p.optionalInt(2, "revolution_number", strings.TrimSpace(l2[63:68]))

	if p.err != nil {
		return Elements{}, p.err
	}
	if sat2 != el.NORADID {
		return Elements{}, &FieldError{Line: 2, Field: "satellite_number", Value: l2[2:7],
			Err: fmt.Errorf("does not match line 1 (%d)", el.NORADID)}
	}

	// Two-digit years: 57-99 → 1900s, 00-56 → 2000s.
	if yy >= 57 {
		el.EpochYear = 1900 + yy
	} else {
		el.EpochYear = 2000 + yy
	}
	el.Epoch, err = epochTime(el.EpochYear, el.EpochDay)
	if err != nil {
		return Elements{}, &FieldError{Line: 1, Field: "epoch_day", Value: l1[20:32], Err: err}
	}

	return el, nil
}

func epochTime(year int, dayOfYear float64) (time.Time, error) {
	// Same leap rule as the engine's month table; exact for 1957-2056.
	daysInYear := 365
	if year%4 == 0 {
		daysInYear = 366
	}
	if !(dayOfYear >= 1 && dayOfYear < float64(daysInYear+1)) {
		return time.Time{}, fmt.Errorf("day of year %.8f out of range for %d", dayOfYear, year)
	}
	// dayOfYear is 1-based: day 1 = Jan 1.
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))), nil
}

// squeeze drops up to two blanks, mirroring the engine's own field cleanup.
func squeeze(s string) string {
	return strings.Replace(s, " ", "", 2)
}

// fieldParser records the first parse failure so fields can be read in sequence.
type fieldParser struct {
	err error
}

func (p *fieldParser) integer(line int, field, s string) int {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 0)
	if err != nil {
		p.err = &FieldError{Line: line, Field: field, Value: s, Err: err}
		return 0
	}
	return int(v)
}

func (p *fieldParser) optionalInt(line int, field, s string) int {
	if s == "" {
		return 0
	}
	return p.integer(line, field, s)
}

func (p *fieldParser) decimal(line int, field, s string) float64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.err = &FieldError{Line: line, Field: field, Value: s, Err: err}
		return 0
	}
	return v
}
