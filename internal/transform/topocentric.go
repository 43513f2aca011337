package transform

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Ellipsoid is a reference ellipsoid. A is the semi-major axis in km, F the flattening.
type Ellipsoid struct {
	Name string
	A    float64
	F    float64
}

var (
	// WGS84 is the World Geodetic System 1984 ellipsoid.
	WGS84 = Ellipsoid{Name: "WGS84", A: 6378.137, F: 1 / 298.257223563}

	// WGS72 is the World Geodetic System 1972 ellipsoid, the one SGP4's constants derive from.
	WGS72 = Ellipsoid{Name: "WGS72", A: 6378.135, F: 1 / 298.26}
)

// e2 is the first eccentricity squared.
func (e Ellipsoid) e2() float64 {
	return e.F * (2 - e.F)
}

// Geodetic is a position on or above the ellipsoid.
type Geodetic struct {
	LatDeg float64 // -90..90
	LonDeg float64 // -180..180
	AltKm  float64 // height above the ellipsoid
}

// ToECEF converts a geodetic position to ECEF.
func (e Ellipsoid) ToECEF(g Geodetic) r3.Vec {
	lat := g.LatDeg * math.Pi / 180
	lon := g.LonDeg * math.Pi / 180
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	e2 := e.e2()
	n := e.A / math.Sqrt(1-e2*sinLat*sinLat) // prime vertical radius of curvature

	return r3.Vec{
		X: (n + g.AltKm) * cosLat * cosLon,
		Y: (n + g.AltKm) * cosLat * sinLon,
		Z: (n*(1-e2) + g.AltKm) * sinLat,
	}
}

// FromECEF converts an ECEF position to geodetic coordinates by Bowring
// iteration; orbital altitudes converge in two or three steps.
func (e Ellipsoid) FromECEF(p r3.Vec) Geodetic {
	e2 := e.e2()
	lon := math.Atan2(p.Y, p.X)
	rxy := math.Hypot(p.X, p.Y)

	lat := math.Atan2(p.Z, rxy*(1-e2))
	var n float64
	for i := 0; i < 6; i++ {
		sinLat := math.Sin(lat)
		n = e.A / math.Sqrt(1-e2*sinLat*sinLat)
		lat = math.Atan2(p.Z+e2*n*sinLat, rxy)
	}

	sinLat, cosLat := math.Sincos(lat)
	n = e.A / math.Sqrt(1-e2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = rxy/cosLat - n
	} else {
		alt = math.Abs(p.Z)/math.Abs(sinLat) - n*(1-e2)
	}

	return Geodetic{
		LatDeg: lat * 180 / math.Pi,
		LonDeg: lon * 180 / math.Pi,
		AltKm:  alt,
	}
}

// Observer is a fixed ground site. Its ECEF position is computed once so it
// can be reused across many look-angle evaluations.
type Observer struct {
	Geodetic
	ECEF r3.Vec

	sinLat, cosLat float64
	sinLon, cosLon float64
}

// NewObserver creates an Observer at the given geodetic position on ellipsoid e.
func NewObserver(e Ellipsoid, g Geodetic) Observer {
	o := Observer{Geodetic: g, ECEF: e.ToECEF(g)}
	o.sinLat, o.cosLat = math.Sincos(g.LatDeg * math.Pi / 180)
	o.sinLon, o.cosLon = math.Sincos(g.LonDeg * math.Pi / 180)
	return o
}

// LookAngles holds the topocentric direction from an observer to a satellite.
type LookAngles struct {
	AzimuthDeg   float64 // 0 = North, clockwise, [0, 360)
	ElevationDeg float64 // 0 = horizon, 90 = zenith
	RangeKm      float64
	RangeRateKmS float64 // negative while approaching
}

// Look computes look angles from o to a satellite whose ECEF state is sat.
//
// The range vector is rotated into the SEZ (South-East-Zenith) frame
// (Vallado Section 4.4). Range rate is the projection of the satellite's
// Earth-fixed velocity on the line of sight; the observer is at rest in ECEF.
func (o Observer) Look(sat State) LookAngles {
	rho := r3.Sub(sat.Position, o.ECEF)

	south := o.sinLat*o.cosLon*rho.X + o.sinLat*o.sinLon*rho.Y - o.cosLat*rho.Z
	east := -o.sinLon*rho.X + o.cosLon*rho.Y
	zenith := o.cosLat*o.cosLon*rho.X + o.cosLat*o.sinLon*rho.Y + o.sinLat*rho.Z

	rng := r3.Norm(rho)
	el := math.Asin(zenith / rng)

	// North is -South in SEZ.
	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}
	azDeg := az * 180 / math.Pi
	if azDeg >= 360 {
		azDeg = 0
	}

	return LookAngles{
		AzimuthDeg:   azDeg,
		ElevationDeg: el * 180 / math.Pi,
		RangeKm:      rng,
		RangeRateKmS: r3.Dot(rho, sat.Velocity) / rng,
	}
}
