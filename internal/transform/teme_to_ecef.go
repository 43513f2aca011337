// Package transform converts SGP4 output between reference frames.
//
// SGP4 produces state vectors in TEME (True Equator Mean Equinox). They are
// rotated into ECEF (Earth-Centered Earth-Fixed) with a GMST-only rotation
// (TEME → PEF ≈ ECEF), ignoring polar motion and the equation of the
// equinoxes. The error is tens of metres, well below SGP4's own accuracy.
//
// All distances are kilometres and all velocities kilometres per second.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3-4.
package transform

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// State is a position/velocity pair in a single frame.
type State struct {
	Position r3.Vec // km
	Velocity r3.Vec // km/s
}

// Radius bounds accepted for an Earth-orbiting object, in km.
const (
	MinRadiusKm = 6200.0
	MaxRadiusKm = 50000.0
)

var earthSpin = r3.Vec{Z: OmegaEarth}

// TEMEToECEF rotates a TEME state into ECEF at the UTC instant t.
func TEMEToECEF(teme State, t time.Time) State {
	return TEMEToECEFWithGMST(teme, GMST(t))
}

// TEMEToECEFWithGMST rotates a TEME state into ECEF using a precomputed GMST angle (radians).
//
//	r_ECEF = R3(θ) r_TEME
//	v_ECEF = R3(θ) v_TEME − ω × r_ECEF
func TEMEToECEFWithGMST(teme State, gmst float64) State {
	pos := rotZ(teme.Position, gmst)
	vel := r3.Sub(rotZ(teme.Velocity, gmst), r3.Cross(earthSpin, pos))
	return State{Position: pos, Velocity: vel}
}

// rotZ applies R3(θ), a frame rotation about the Z axis.
func rotZ(v r3.Vec, theta float64) r3.Vec {
	sin, cos := math.Sincos(theta)
	return r3.Vec{
		X: v.X*cos + v.Y*sin,
		Y: -v.X*sin + v.Y*cos,
		Z: v.Z,
	}
}

// ValidPosition reports whether pos is finite and within the plausible
// geocentric radius of an Earth-orbiting satellite.
func ValidPosition(pos r3.Vec) bool {
	for _, c := range [3]float64{pos.X, pos.Y, pos.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	mag := r3.Norm(pos)
	return mag >= MinRadiusKm && mag <= MaxRadiusKm
}

// Finite reports whether every component of v is a finite number.
func Finite(v r3.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsNaN(v.Z) &&
		!math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0) && !math.IsInf(v.Z, 0)
}
