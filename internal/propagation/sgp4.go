package propagation

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/csanfilippo/sgpkit/internal/tle"
	"github.com/csanfilippo/sgpkit/internal/transform"
)

// SGP4 engine: github.com/joshuaferrara/go-satellite
//
// Engine quirks this wrapper compensates for:
//   - TLEToSat calls log.Fatal on unparsable numeric fields, so every set is
//     run through tle.ParseElements first (same columns, same cleanup).
//   - Propagate takes the Satellite by value, so runtime error codes are lost;
//     failures are detected from NaN/Inf output and implausible radii.
//   - The TLE epoch is truncated to whole seconds and Propagate only accepts
//     whole seconds. The dropped epoch fraction is subtracted from the target
//     time and the state is interpolated between the bracketing seconds.

var (
	// ErrInvalidTLE wraps structural and field errors in the element set.
	ErrInvalidTLE = errors.New("invalid element set")

	// ErrInit is returned when the SGP4 model rejects the element set.
	ErrInit = errors.New("sgp4 initialization failed")

	// ErrPropagate is returned when propagation produces unusable output,
	// typically after decay or for a diverging deep-space solution.
	ErrPropagate = errors.New("sgp4 propagation failed")
)

// Gravity selects the geopotential constants used by SGP4.
type Gravity int

const (
	WGS72 Gravity = iota
	WGS84
)

// ParseGravity maps "wgs72" or "wgs84" (case-insensitive) to a Gravity.
func ParseGravity(s string) (Gravity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "wgs72":
		return WGS72, nil
	case "wgs84":
		return WGS84, nil
	}
	return WGS72, fmt.Errorf("unknown gravity model %q (want wgs72 or wgs84)", s)
}

func (g Gravity) String() string {
	if g == WGS84 {
		return "wgs84"
	}
	return "wgs72"
}

// Ellipsoid returns the reference ellipsoid matching the gravity model.
func (g Gravity) Ellipsoid() transform.Ellipsoid {
	if g == WGS84 {
		return transform.WGS84
	}
	return transform.WGS72
}

func (g Gravity) engine() satellite.Gravity {
	if g == WGS84 {
		return satellite.GravityWGS84
	}
	return satellite.GravityWGS72
}

// SGP4Propagator wraps an initialized SGP4 model for a single element set.
// It is immutable after construction and safe for concurrent use.
type SGP4Propagator struct {
	sat      satellite.Satellite
	elements tle.Elements
	// epochOffset is the fractional epoch second the engine discards.
	epochOffset time.Duration
}

// NewSGP4Propagator validates t and initializes the SGP4 model.
// Errors wrap ErrInvalidTLE or ErrInit.
func NewSGP4Propagator(t tle.TLE, g Gravity) (*SGP4Propagator, error) {
	el, err := tle.ParseElements(t)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTLE, err)
	}

	sat := satellite.TLEToSat(t.Line1, t.Line2, g.engine())
	if sat.Error != 0 {
		return nil, fmt.Errorf("%w for NORAD %d: code=%d %s", ErrInit, el.NORADID, sat.Error, sat.ErrorStr)
	}

	return &SGP4Propagator{
		sat:         sat,
		elements:    el,
		epochOffset: truncatedEpochFraction(el.EpochDay),
	}, nil
}

// truncatedEpochFraction repeats the engine's day-of-year split and returns
// the fraction of a second it drops from the epoch.
func truncatedEpochFraction(epochDay float64) time.Duration {
	dayOfYear := math.Floor(epochDay)
	temp := (epochDay - dayOfYear) * 24.0
	hr := math.Floor(temp)
	temp = (temp - hr) * 60.0
	min := math.Floor(temp)
	sec := (temp - min) * 60.0
	return time.Duration((sec - math.Trunc(sec)) * float64(time.Second))
}

// NORADID returns the catalog number of the element set.
func (p *SGP4Propagator) NORADID() int {
	return p.elements.NORADID
}

// Epoch returns the element set epoch.
func (p *SGP4Propagator) Epoch() time.Time {
	return p.elements.Epoch
}

// PropagateAt returns the TEME state (km, km/s) at t with sub-second resolution.
// Errors wrap ErrPropagate.
func (p *SGP4Propagator) PropagateAt(t time.Time) (transform.State, error) {
	engineTime := t.UTC().Add(-p.epochOffset)
	base := engineTime.Truncate(time.Second)
	frac := engineTime.Sub(base).Seconds()

	s0, err := p.sample(base)
	if err != nil {
		return transform.State{}, err
	}
	if frac == 0 {
		return s0, nil
	}

	s1, err := p.sample(base.Add(time.Second))
	if err != nil {
		return transform.State{}, err
	}
	return hermite(s0, s1, frac), nil
}

// sample propagates to a whole-second engine time.
func (p *SGP4Propagator) sample(t time.Time) (transform.State, error) {
	pos, vel := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	s := transform.State{
		Position: r3.Vec{X: pos.X, Y: pos.Y, Z: pos.Z},
		Velocity: r3.Vec{X: vel.X, Y: vel.Y, Z: vel.Z},
	}
	if !transform.Finite(s.Position) || !transform.Finite(s.Velocity) {
		return transform.State{}, fmt.Errorf("%w for NORAD %d: output is NaN/Inf", ErrPropagate, p.elements.NORADID)
	}
	if !transform.ValidPosition(s.Position) {
		return transform.State{}, fmt.Errorf("%w for NORAD %d: unreasonable position magnitude %.1f km",
			ErrPropagate, p.elements.NORADID, r3.Norm(s.Position))
	}
	return s, nil
}

// hermite interpolates between states one second apart at fraction u in [0, 1).
// Position uses the cubic Hermite basis; velocity is its time derivative.
func hermite(s0, s1 transform.State, u float64) transform.State {
	u2, u3 := u*u, u*u*u

	h00 := 2*u3 - 3*u2 + 1
	h10 := u3 - 2*u2 + u
	h01 := -2*u3 + 3*u2
	h11 := u3 - u2

	pos := r3.Add(
		r3.Add(r3.Scale(h00, s0.Position), r3.Scale(h10, s0.Velocity)),
		r3.Add(r3.Scale(h01, s1.Position), r3.Scale(h11, s1.Velocity)),
	)

	d00 := 6*u2 - 6*u
	d10 := 3*u2 - 4*u + 1
	d01 := -6*u2 + 6*u
	d11 := 3*u2 - 2*u

	vel := r3.Add(
		r3.Add(r3.Scale(d00, s0.Position), r3.Scale(d10, s0.Velocity)),
		r3.Add(r3.Scale(d01, s1.Position), r3.Scale(d11, s1.Velocity)),
	)

	return transform.State{Position: pos, Velocity: vel}
}
