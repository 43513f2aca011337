package passes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/csanfilippo/sgpkit/internal/metrics"
	"github.com/csanfilippo/sgpkit/internal/propagation"
	"github.com/csanfilippo/sgpkit/internal/transform"
)

// GroundTrackPoint is a sub-satellite position at a specific time during a pass.
type GroundTrackPoint struct {
	Time      time.Time `json:"time" yaml:"time"`
	Latitude  float64   `json:"latitude" yaml:"latitude"`
	Longitude float64   `json:"longitude" yaml:"longitude"`
	Altitude  float64   `json:"altitude" yaml:"altitude"`   // km
	Elevation float64   `json:"elevation" yaml:"elevation"` // degrees above observer's horizon (0-90)
}

// PassEvent describes a single satellite pass over an observer location.
type PassEvent struct {
	StartTime        time.Time          `json:"start_time" yaml:"start_time"`
	MaxElevationTime time.Time          `json:"max_elevation_time" yaml:"max_elevation_time"`
	EndTime          time.Time          `json:"end_time" yaml:"end_time"`
	DurationSeconds  float64            `json:"duration_seconds" yaml:"duration_seconds"`
	MaxElevation     float64            `json:"max_elevation" yaml:"max_elevation"`
	AzimuthAtMax     float64            `json:"azimuth_at_max" yaml:"azimuth_at_max"`
	StartAzimuth     float64            `json:"start_azimuth" yaml:"start_azimuth"`
	EndAzimuth       float64            `json:"end_azimuth" yaml:"end_azimuth"`
	GroundTrack      []GroundTrackPoint `json:"ground_track" yaml:"ground_track"`
}

// Request holds the parameters for a pass prediction.
type Request struct {
	Propagator   *propagation.SGP4Propagator
	Ellipsoid    transform.Ellipsoid
	Observer     transform.Observer
	Start        time.Time
	HorizonHours float64
	MinElevation float64 // degrees
	MaxPasses    int
}

const (
	coarseStepSec      = 30 // seconds between coarse scan steps
	fineStepSec        = 1  // seconds between fine scan steps
	groundTrackStepSec = 10 // seconds between ground track samples
	minPassDur         = 10 * time.Second

	// MaxHorizonHours caps the prediction window.
	MaxHorizonHours = 168
)

// ErrNoPropagator is returned when a Request has no propagator.
var ErrNoPropagator = errors.New("passes: request has no propagator")

// Predict finds the passes of one satellite over the observer, in time order.
// When ctx is cancelled the passes found so far are returned with ctx.Err().
func Predict(ctx context.Context, req Request) ([]PassEvent, error) {
	if req.Propagator == nil {
		return nil, ErrNoPropagator
	}
	if req.HorizonHours <= 0 || req.HorizonHours > MaxHorizonHours {
		return nil, fmt.Errorf("passes: horizon %.1f h outside (0, %d]", req.HorizonHours, MaxHorizonHours)
	}
	if req.MaxPasses <= 0 {
		return nil, fmt.Errorf("passes: max passes must be positive, got %d", req.MaxPasses)
	}
	if req.Ellipsoid.A == 0 {
		req.Ellipsoid = transform.WGS72
	}
	metrics.IncPassPredictions()

	end := req.Start.Add(time.Duration(req.HorizonHours * float64(time.Hour)))
	var passes []PassEvent

	// Coarse scan: step through the time range looking for elevation > 0.
	t := req.Start
	for t.Before(end) && len(passes) < req.MaxPasses {
		if err := ctx.Err(); err != nil {
			return passes, err
		}

		el, _, _, err := elevationAt(req.Propagator, req.Observer, t)
		if err != nil {
			t = t.Add(coarseStepSec * time.Second)
			continue
		}

		if el > 0 {
			pass, windowEnd := refinePass(ctx, req, t, end)
			if pass != nil && pass.EndTime.Sub(pass.StartTime) >= minPassDur {
				passes = append(passes, *pass)
			}
			t = windowEnd.Add(coarseStepSec * time.Second)
		} else {
			t = t.Add(coarseStepSec * time.Second)
		}
	}

	return passes, ctx.Err()
}

// refinePass does a fine-grained scan around a coarse-detected above-horizon region.
// It backs up to find the actual rise, then scans forward to find set.
// Returns the pass event and the time the window ends.
func refinePass(ctx context.Context, req Request, coarseHit, windowEnd time.Time) (*PassEvent, time.Time) {
	searchStart := coarseHit.Add(-coarseStepSec * time.Second)
	if searchStart.Before(req.Start) {
		searchStart = req.Start
	}

	var (
		riseTime    time.Time
		setTime     time.Time
		riseAz      float64
		setAz       float64
		maxEl       float64
		maxElTime   time.Time
		maxElAz     float64
		wasAbove    bool
		foundRise   bool
		groundTrack []GroundTrackPoint
	)

	t := searchStart
	for t.Before(windowEnd) {
		if ctx.Err() != nil {
			break
		}

		el, la, ecef, err := elevationAt(req.Propagator, req.Observer, t)
		if err != nil {
			t = t.Add(fineStepSec * time.Second)
			continue
		}

		above := el >= req.MinElevation

		if above && !wasAbove && !foundRise {
			riseTime = t
			riseAz = la.AzimuthDeg
			foundRise = true
			maxEl = el
			maxElTime = t
			maxElAz = la.AzimuthDeg
		}

		if above && foundRise {
			if el > maxEl {
				maxEl = el
				maxElTime = t
				maxElAz = la.AzimuthDeg
			}
			if int(t.Sub(riseTime).Seconds())%groundTrackStepSec == 0 {
				geo := req.Ellipsoid.FromECEF(ecef.Position)
				groundTrack = append(groundTrack, GroundTrackPoint{
					Time:      t,
					Latitude:  geo.LatDeg,
					Longitude: geo.LonDeg,
					Altitude:  geo.AltKm,
					Elevation: el,
				})
			}
		}

		if !above && wasAbove && foundRise {
			setTime = t
			setAz = la.AzimuthDeg
			break
		}

		wasAbove = above
		t = t.Add(fineStepSec * time.Second)
	}

	// Still above at windowEnd: close the pass there.
	if foundRise && setTime.IsZero() && wasAbove {
		setTime = t
		if el, la, _, err := elevationAt(req.Propagator, req.Observer, t); err == nil {
			setAz = la.AzimuthDeg
			if el > maxEl {
				maxEl = el
				maxElTime = t
				maxElAz = la.AzimuthDeg
			}
		}
	}

	if !foundRise || setTime.IsZero() {
		return nil, t
	}

	return &PassEvent{
		StartTime:        riseTime,
		MaxElevationTime: maxElTime,
		EndTime:          setTime,
		DurationSeconds:  setTime.Sub(riseTime).Seconds(),
		MaxElevation:     maxEl,
		AzimuthAtMax:     maxElAz,
		StartAzimuth:     riseAz,
		EndAzimuth:       setAz,
		GroundTrack:      groundTrack,
	}, setTime
}

// elevationAt computes the look angles and the satellite's ECEF state at t.
func elevationAt(prop *propagation.SGP4Propagator, obs transform.Observer, t time.Time) (float64, transform.LookAngles, transform.State, error) {
	teme, err := prop.PropagateAt(t)
	if err != nil {
		return 0, transform.LookAngles{}, transform.State{}, err
	}
	ecef := transform.TEMEToECEF(teme, t)
	la := obs.Look(ecef)
	return la.ElevationDeg, la, ecef, nil
}
