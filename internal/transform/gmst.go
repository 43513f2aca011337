package transform

import (
	"math"
	"time"
)

const (
	// jdUnixEpoch is the Julian Date of 1970-01-01T00:00:00Z.
	jdUnixEpoch = 2440587.5

	// j2000 is the Julian Date of the J2000.0 epoch (January 1, 2000, 12:00:00 TT).
	j2000 = 2451545.0

	secondsPerDay = 86400.0
)

// OmegaEarth is Earth's rotation rate in rad/s (IAU value).
const OmegaEarth = 7.292115146706979e-5

// JulianDate converts t to a Julian Date, keeping sub-second precision.
func JulianDate(t time.Time) float64 {
	sec := t.Unix()
	nsec := t.Nanosecond()
	return jdUnixEpoch + (float64(sec)+float64(nsec)/1e9)/secondsPerDay
}

// GMST returns Greenwich Mean Sidereal Time in radians for a UTC instant, using
// the IAU-82 model (Vallado, "Fundamentals of Astrodynamics", Eq 3-47):
//
//	θ_GMST = 67310.54841 + (876600h + 8640184.812866)*T + 0.093104*T² - 6.2e-6*T³
//
// where T is Julian centuries of UT1 from J2000.0 and θ is in seconds of time.
// UT1 is approximated by UTC.
func GMST(t time.Time) float64 {
	return GMSTFromJD(JulianDate(t))
}

// GMSTFromJD is GMST for a UT1 Julian Date.
func GMSTFromJD(jd float64) float64 {
	tUT1 := (jd - j2000) / 36525.0

	// 876600h = 3155760000 s.
	sec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	sec = math.Mod(sec, secondsPerDay)
	if sec < 0 {
		sec += secondsPerDay
	}
	return sec / secondsPerDay * 2 * math.Pi
}
