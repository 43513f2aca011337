// Package interpreter turns a TLE and an instant into satellite state.
//
// Every call returns either a result or an *Error, never both. The error
// carries Domain and one of three codes: TLEError when the element set is
// malformed, SatelliteError when SGP4 rejects or cannot propagate it, and
// GenericError for everything else.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/csanfilippo/sgpkit/internal/metrics"
	"github.com/csanfilippo/sgpkit/internal/propagation"
	"github.com/csanfilippo/sgpkit/internal/tle"
	"github.com/csanfilippo/sgpkit/internal/transform"
)

const tracerName = "github.com/csanfilippo/sgpkit/internal/interpreter"

// Vector is a cartesian triple in km or km/s.
type Vector struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

func vector(v r3.Vec) Vector {
	return Vector{X: v.X, Y: v.Y, Z: v.Z}
}

// SatelliteData is the satellite's state at Time.
type SatelliteData struct {
	Time      time.Time `json:"time" yaml:"time"`
	Latitude  float64   `json:"latitude" yaml:"latitude"`   // geodetic, degrees
	Longitude float64   `json:"longitude" yaml:"longitude"` // degrees, -180..180
	Speed     float64   `json:"speed" yaml:"speed"`         // km/h, inertial
	Altitude  float64   `json:"altitude" yaml:"altitude"`   // km above the ellipsoid

	PositionTEME Vector `json:"position_teme" yaml:"position_teme"`
	VelocityTEME Vector `json:"velocity_teme" yaml:"velocity_teme"`
	PositionECEF Vector `json:"position_ecef" yaml:"position_ecef"`
	VelocityECEF Vector `json:"velocity_ecef" yaml:"velocity_ecef"`
}

// Observer is a ground site. Altitude is in kilometres above the ellipsoid.
type Observer struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
	Altitude  float64 `json:"altitude" yaml:"altitude"`
}

// Validate rejects coordinates outside the geodetic range.
func (o Observer) Validate() error {
	switch {
	case math.IsNaN(o.Latitude) || o.Latitude < -90 || o.Latitude > 90:
		return fmt.Errorf("observer latitude %v outside [-90, 90]", o.Latitude)
	case math.IsNaN(o.Longitude) || o.Longitude < -180 || o.Longitude > 180:
		return fmt.Errorf("observer longitude %v outside [-180, 180]", o.Longitude)
	case math.IsNaN(o.Altitude) || math.IsInf(o.Altitude, 0):
		return fmt.Errorf("observer altitude %v is not finite", o.Altitude)
	}
	return nil
}

// LookAngles is the direction and distance from an observer to the satellite.
type LookAngles struct {
	Time      time.Time `json:"time" yaml:"time"`
	Azimuth   float64   `json:"azimuth" yaml:"azimuth"`       // degrees, 0 = north, clockwise
	Elevation float64   `json:"elevation" yaml:"elevation"`   // degrees above the horizon
	Range     float64   `json:"range" yaml:"range"`           // km
	RangeRate float64   `json:"range_rate" yaml:"range_rate"` // km/s, negative while approaching
}

// Interpreter runs SGP4 propagations. It holds no per-call state and is safe
// for concurrent use.
type Interpreter struct {
	gravity propagation.Gravity
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithGravity selects the gravity model. The default is WGS72.
func WithGravity(g propagation.Gravity) Option {
	return func(i *Interpreter) { i.gravity = g }
}

// WithLogger sets the logger used for failed propagations.
func WithLogger(l *slog.Logger) Option {
	return func(i *Interpreter) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(i *Interpreter) {
		if t != nil {
			i.tracer = t
		}
	}
}

// New creates an Interpreter.
func New(opts ...Option) *Interpreter {
	i := &Interpreter{
		gravity: propagation.WGS72,
		logger:  slog.New(slog.NewJSONHandler(io.Discard, nil)),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Gravity returns the configured gravity model.
func (i *Interpreter) Gravity() propagation.Gravity {
	return i.gravity
}

// SatelliteData propagates t to at and returns the satellite's geodetic state.
func (i *Interpreter) SatelliteData(ctx context.Context, t tle.TLE, at time.Time) (SatelliteData, error) {
	ctx, span := i.start(ctx, "SatelliteData", t)
	defer span.End()

	start := time.Now()
	prop, err := i.prepare(ctx, t, at)
	if err != nil {
		return SatelliteData{}, i.fail(span, start, t, err)
	}

	data, err := i.satelliteData(prop, at)
	if err != nil {
		return SatelliteData{}, i.fail(span, start, t, err)
	}
	metrics.RecordPropagation(time.Since(start), "ok")
	return data, nil
}

// SatelliteDataFrom is SatelliteData for an already initialized propagator.
func (i *Interpreter) SatelliteDataFrom(ctx context.Context, prop *propagation.SGP4Propagator, at time.Time) (SatelliteData, error) {
	ctx, span := i.tracer.Start(ctx, "interpreter.SatelliteData")
	defer span.End()

	start := time.Now()
	if err := checkCall(ctx, prop, at); err != nil {
		return SatelliteData{}, i.failProp(span, start, prop, err)
	}
	span.SetAttributes(attribute.Int("norad_id", prop.NORADID()))

	data, err := i.satelliteData(prop, at)
	if err != nil {
		return SatelliteData{}, i.failProp(span, start, prop, err)
	}
	metrics.RecordPropagation(time.Since(start), "ok")
	return data, nil
}

// LookAngles propagates t to at and returns the look angles from obs.
func (i *Interpreter) LookAngles(ctx context.Context, t tle.TLE, at time.Time, obs Observer) (LookAngles, error) {
	ctx, span := i.start(ctx, "LookAngles", t)
	defer span.End()

	start := time.Now()
	// A malformed element set is reported before a bad observer.
	if err := t.Validate(); err != nil {
		return LookAngles{}, i.fail(span, start, t, newError(TLEError, err))
	}
	if err := obs.Validate(); err != nil {
		return LookAngles{}, i.fail(span, start, t, invalidArgument(err))
	}
	prop, err := i.prepare(ctx, t, at)
	if err != nil {
		return LookAngles{}, i.fail(span, start, t, err)
	}

	la, err := i.lookAngles(prop, at, obs)
	if err != nil {
		return LookAngles{}, i.fail(span, start, t, err)
	}
	metrics.RecordPropagation(time.Since(start), "ok")
	return la, nil
}

// LookAnglesFrom is LookAngles for an already initialized propagator.
func (i *Interpreter) LookAnglesFrom(ctx context.Context, prop *propagation.SGP4Propagator, at time.Time, obs Observer) (LookAngles, error) {
	ctx, span := i.tracer.Start(ctx, "interpreter.LookAngles")
	defer span.End()

	start := time.Now()
	if err := checkCall(ctx, prop, at); err != nil {
		return LookAngles{}, i.failProp(span, start, prop, err)
	}
	if err := obs.Validate(); err != nil {
		return LookAngles{}, i.failProp(span, start, prop, invalidArgument(err))
	}
	span.SetAttributes(attribute.Int("norad_id", prop.NORADID()))

	la, err := i.lookAngles(prop, at, obs)
	if err != nil {
		return LookAngles{}, i.failProp(span, start, prop, err)
	}
	metrics.RecordPropagation(time.Since(start), "ok")
	return la, nil
}

func (i *Interpreter) start(ctx context.Context, op string, t tle.TLE) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	attrs := []attribute.KeyValue{attribute.String("gravity", i.gravity.String())}
	if name := t.Name(); name != "" {
		attrs = append(attrs, attribute.String("satellite", name))
	}
	return i.tracer.Start(ctx, "interpreter."+op, trace.WithAttributes(attrs...))
}

// prepare checks the call arguments and initializes SGP4 for t.
func (i *Interpreter) prepare(ctx context.Context, t tle.TLE, at time.Time) (*propagation.SGP4Propagator, error) {
	if err := t.Validate(); err != nil {
		return nil, newError(TLEError, err)
	}
	if at.IsZero() {
		return nil, invalidArgument(errors.New("time is required"))
	}
	if err := ctx.Err(); err != nil {
		return nil, newError(GenericError, err)
	}
	prop, err := propagation.NewSGP4Propagator(t, i.gravity)
	if err != nil {
		return nil, Classify(err)
	}
	return prop, nil
}

func checkCall(ctx context.Context, prop *propagation.SGP4Propagator, at time.Time) error {
	if prop == nil {
		return newError(GenericError, errors.New("propagator is required"))
	}
	if at.IsZero() {
		return invalidArgument(errors.New("time is required"))
	}
	if ctx == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return newError(GenericError, err)
	}
	return nil
}

func (i *Interpreter) ecef(prop *propagation.SGP4Propagator, at time.Time) (teme, ecef transform.State, err error) {
	teme, err = prop.PropagateAt(at)
	if err != nil {
		return transform.State{}, transform.State{}, Classify(err)
	}
	return teme, transform.TEMEToECEF(teme, at), nil
}

func (i *Interpreter) satelliteData(prop *propagation.SGP4Propagator, at time.Time) (SatelliteData, error) {
	teme, ecef, err := i.ecef(prop, at)
	if err != nil {
		return SatelliteData{}, err
	}

	geo := i.gravity.Ellipsoid().FromECEF(ecef.Position)
	return SatelliteData{
		Time:         at.UTC(),
		Latitude:     geo.LatDeg,
		Longitude:    geo.LonDeg,
		Speed:        r3.Norm(teme.Velocity) * 3600,
		Altitude:     geo.AltKm,
		PositionTEME: vector(teme.Position),
		VelocityTEME: vector(teme.Velocity),
		PositionECEF: vector(ecef.Position),
		VelocityECEF: vector(ecef.Velocity),
	}, nil
}

func (i *Interpreter) lookAngles(prop *propagation.SGP4Propagator, at time.Time, obs Observer) (LookAngles, error) {
	_, ecef, err := i.ecef(prop, at)
	if err != nil {
		return LookAngles{}, err
	}

	site := transform.NewObserver(i.gravity.Ellipsoid(), transform.Geodetic{
		LatDeg: obs.Latitude,
		LonDeg: obs.Longitude,
		AltKm:  obs.Altitude,
	})
	la := site.Look(ecef)
	return LookAngles{
		Time:      at.UTC(),
		Azimuth:   la.AzimuthDeg,
		Elevation: la.ElevationDeg,
		Range:     la.RangeKm,
		RangeRate: la.RangeRateKmS,
	}, nil
}

// fail records a failed call and returns its domain error.
func (i *Interpreter) fail(span trace.Span, start time.Time, t tle.TLE, err error) *Error {
	e := Classify(err)
	i.record(span, start, e, slog.String("satellite", t.Name()))
	return e
}

func (i *Interpreter) failProp(span trace.Span, start time.Time, prop *propagation.SGP4Propagator, err error) *Error {
	e := Classify(err)
	attr := slog.Int("norad_id", 0)
	if prop != nil {
		attr = slog.Int("norad_id", prop.NORADID())
	}
	i.record(span, start, e, attr)
	return e
}

func (i *Interpreter) record(span trace.Span, start time.Time, e *Error, attr slog.Attr) {
	metrics.RecordPropagation(time.Since(start), resultLabel(e.Code))
	span.RecordError(e)
	span.SetStatus(codes.Error, e.Code.String())
	i.logger.Debug("propagation failed",
		attr,
		"code", e.Code.String(),
		"error", e.Err,
	)
}

func resultLabel(c Code) string {
	switch c {
	case TLEError:
		return "tle_error"
	case SatelliteError:
		return "satellite_error"
	default:
		return "generic_error"
	}
}
