package passes

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/csanfilippo/sgpkit/internal/propagation"
	"github.com/csanfilippo/sgpkit/internal/tle"
	"github.com/csanfilippo/sgpkit/internal/transform"
)

// Real ISS TLE (epoch Feb 2025, valid for testing pass geometry).
var issTLE = tle.TLE{
	Title: "ISS (ZARYA)",
	Line1: "1 25544U 98067A   25045.18032407  .00016717  00000+0  30099-3 0  9993",
	Line2: "2 25544  51.6412 193.5765 0003457 126.2851 233.8519 15.49874301495058",
}

// NYC observer.
var nycObserver = transform.NewObserver(transform.WGS72, transform.Geodetic{LatDeg: 40.7128, LonDeg: -74.006, AltKm: 0.01})

func issPropagator(tb testing.TB) *propagation.SGP4Propagator {
	tb.Helper()
	prop, err := propagation.NewSGP4Propagator(issTLE, propagation.WGS72)
	if err != nil {
		tb.Fatalf("sgp4 init: %v", err)
	}
	return prop
}

func TestPredictISS(t *testing.T) {
	req := Request{
		Propagator:   issPropagator(t),
		Ellipsoid:    transform.WGS72,
		Observer:     nycObserver,
		Start:        time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC),
		HorizonHours: 24,
		MinElevation: 0,
		MaxPasses:    10,
	}

	passes, err := Predict(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// ISS in LEO should have multiple passes over 24h from NYC.
	if len(passes) == 0 {
		t.Fatal("expected at least 1 ISS pass over NYC in 24h")
	}

	for i, p := range passes {
		// Validate pass structure.
		if p.DurationSeconds < 10 {
			t.Errorf("pass %d: duration %.1fs too short", i, p.DurationSeconds)
		}
		if p.MaxElevation <= 0 {
			t.Errorf("pass %d: max elevation %.2f should be positive", i, p.MaxElevation)
		}
		if p.MaxElevation > 90 {
			t.Errorf("pass %d: max elevation %.2f exceeds 90 degrees", i, p.MaxElevation)
		}
		if p.AzimuthAtMax < 0 || p.AzimuthAtMax >= 360 {
			t.Errorf("pass %d: azimuth at max %.2f out of range", i, p.AzimuthAtMax)
		}
		if p.StartAzimuth < 0 || p.StartAzimuth >= 360 {
			t.Errorf("pass %d: start azimuth %.2f out of range", i, p.StartAzimuth)
		}
		if p.EndAzimuth < 0 || p.EndAzimuth >= 360 {
			t.Errorf("pass %d: end azimuth %.2f out of range", i, p.EndAzimuth)
		}
		if !p.StartTime.Before(p.MaxElevationTime) || !p.MaxElevationTime.Before(p.EndTime) {
			t.Errorf("pass %d: time ordering violated: start=%v max=%v end=%v", i, p.StartTime, p.MaxElevationTime, p.EndTime)
		}

		// Validate ground track.
		if len(p.GroundTrack) == 0 {
			t.Errorf("pass %d: expected ground track points, got none", i)
		}
		for j, gt := range p.GroundTrack {
			if gt.Latitude < -90 || gt.Latitude > 90 {
				t.Errorf("pass %d gt %d: latitude %.2f out of range", i, j, gt.Latitude)
			}
			if gt.Longitude < -180 || gt.Longitude > 180 {
				t.Errorf("pass %d gt %d: longitude %.2f out of range", i, j, gt.Longitude)
			}
			if gt.Altitude < 100 || gt.Altitude > 1000 {
				t.Errorf("pass %d gt %d: altitude %.1f km out of LEO range", i, j, gt.Altitude)
			}
			if gt.Elevation < 0 || gt.Elevation > 90 {
				t.Errorf("pass %d gt %d: elevation %.2f out of range (0-90)", i, j, gt.Elevation)
			}
		}

		t.Logf("pass %d: start=%v maxEl=%.1f° az=%.1f° dur=%.0fs groundTrack=%d pts",
			i, p.StartTime.Format(time.RFC3339), p.MaxElevation, p.AzimuthAtMax, p.DurationSeconds, len(p.GroundTrack))
	}
}

func TestPredictMinElevationFilter(t *testing.T) {
	// Predict with min_elevation=0 and min_elevation=45; the latter should find fewer passes.
	prop := issPropagator(t)
	base := Request{
		Propagator:   prop,
		Observer:     nycObserver,
		Start:        time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC),
		HorizonHours: 48,
		MaxPasses:    20,
	}
	high := base
	high.MinElevation = 45

	low, err := Predict(context.Background(), base)
	if err != nil {
		t.Fatalf("min_elevation=0: %v", err)
	}
	filtered, err := Predict(context.Background(), high)
	if err != nil {
		t.Fatalf("min_elevation=45: %v", err)
	}

	if len(low) == 0 {
		t.Fatal("expected passes with min_elevation=0")
	}
	if len(filtered) >= len(low) {
		t.Errorf("min_elevation=45 passes (%d) should be fewer than min_elevation=0 passes (%d)", len(filtered), len(low))
	}
	for i, p := range filtered {
		if p.MaxElevation < 45 {
			t.Errorf("filtered pass %d: max elevation %.2f below 45", i, p.MaxElevation)
		}
	}
}

func TestPredictMaxPasses(t *testing.T) {
	req := Request{
		Propagator:   issPropagator(t),
		Observer:     nycObserver,
		Start:        time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC),
		HorizonHours: 48,
		MaxPasses:    2,
	}

	passes, err := Predict(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(passes) != 2 {
		t.Fatalf("expected exactly 2 passes, got %d", len(passes))
	}
	if !passes[0].EndTime.Before(passes[1].StartTime) {
		t.Errorf("passes overlap or are out of order: %v then %v", passes[0].EndTime, passes[1].StartTime)
	}
}

func TestPredictCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	req := Request{
		Propagator:   issPropagator(t),
		Observer:     nycObserver,
		Start:        time.Now().UTC(),
		HorizonHours: 24,
		MaxPasses:    10,
	}

	passes, err := Predict(ctx, req)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(passes) != 0 {
		t.Errorf("expected no passes after immediate cancel, got %d", len(passes))
	}
}

func TestPredictInvalidRequest(t *testing.T) {
	prop := issPropagator(t)
	start := time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		req  Request
	}{
		{"no propagator", Request{Observer: nycObserver, Start: start, HorizonHours: 24, MaxPasses: 1}},
		{"zero horizon", Request{Propagator: prop, Observer: nycObserver, Start: start, MaxPasses: 1}},
		{"horizon too long", Request{Propagator: prop, Observer: nycObserver, Start: start, HorizonHours: MaxHorizonHours + 1, MaxPasses: 1}},
		{"zero max passes", Request{Propagator: prop, Observer: nycObserver, Start: start, HorizonHours: 24}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Predict(context.Background(), tt.req); err == nil {
				t.Error("expected an error")
			}
		})
	}

	if _, err := Predict(context.Background(), tests[0].req); !errors.Is(err, ErrNoPropagator) {
		t.Errorf("expected ErrNoPropagator, got %v", err)
	}
}

// Parrish, FL observer.
var parrishFLObserver = transform.NewObserver(transform.WGS72, transform.Geodetic{LatDeg: 27.5867, LonDeg: -82.4251})

// haversineKm computes the great-circle distance (km) between two geodetic points.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371.0
	φ1 := lat1 * math.Pi / 180
	φ2 := lat2 * math.Pi / 180
	Δφ := (lat2 - lat1) * math.Pi / 180
	Δλ := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(Δφ/2)*math.Sin(Δφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

// maxGroundDistKm returns the maximum great-circle distance (km) between observer and
// sub-satellite point, given observed elevation (degrees) and satellite altitude (km).
// Uses the geometry: ρ = acos(R·cos(ε)/(R+h)) − ε.
func maxGroundDistKm(elevDeg, h float64) float64 {
	const R = 6371.0
	elevRad := elevDeg * math.Pi / 180
	arg := R * math.Cos(elevRad) / (R + h)
	if arg > 1 {
		arg = 1
	}
	rho := math.Acos(arg) - elevRad
	if rho < 0 {
		rho = 0
	}
	return R * rho
}

// TestGroundTrackPhysicalConsistency verifies that each ground-track point's
// geodetic lat/lon is physically consistent with its reported elevation angle.
// A satellite at elevation ε and altitude h can be at most ρ = acos(R·cos(ε)/(R+h))−ε
// radians (great-circle) from the observer, about 2200 km at the horizon for ISS.
func TestGroundTrackPhysicalConsistency(t *testing.T) {
	const obsLatDeg = 27.5867
	const obsLonDeg = -82.4251

	req := Request{
		Propagator:   issPropagator(t),
		Observer:     parrishFLObserver,
		Start:        time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC),
		HorizonHours: 24,
		MinElevation: 0,
		MaxPasses:    20,
	}

	passes, err := Predict(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(passes) == 0 {
		t.Fatal("no passes found over Parrish FL in 24h; check TLE epoch vs start time")
	}

	t.Logf("observer: %.4f°N, %.4f°W", obsLatDeg, -obsLonDeg)
	t.Logf("found %d passes", len(passes))

	for pi, p := range passes {
		t.Logf("pass %d: maxEl=%.1f° dur=%.0fs groundTrack=%d pts",
			pi, p.MaxElevation, p.DurationSeconds, len(p.GroundTrack))

		for gi, gt := range p.GroundTrack {
			dist := haversineKm(obsLatDeg, obsLonDeg, gt.Latitude, gt.Longitude)
			maxPossible := maxGroundDistKm(gt.Elevation, gt.Altitude)

			t.Logf("  gt[%d] t=%s el=%.1f° lat=%.4f lon=%.4f alt=%.0fkm dist=%.0fkm maxPossible=%.0fkm",
				gi, gt.Time.Format("15:04:05"),
				gt.Elevation, gt.Latitude, gt.Longitude, gt.Altitude,
				dist, maxPossible)

			// A ground-track point at elevation el and altitude h cannot be more than
			// maxGroundDistKm(el, h) from the observer. Allow 50% slack for rounding.
			if maxPossible > 0 && dist > maxPossible*1.5 {
				t.Errorf("pass %d gt[%d]: dist %.0fkm exceeds max physical %.0fkm (el=%.1f° alt=%.0fkm)",
					pi, gi, dist, maxPossible, gt.Elevation, gt.Altitude)
			}
		}
	}
}

func BenchmarkPredict24h(b *testing.B) {
	req := Request{
		Propagator:   issPropagator(b),
		Observer:     nycObserver,
		Start:        time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC),
		HorizonHours: 24,
		MinElevation: 10,
		MaxPasses:    10,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Predict(context.Background(), req); err != nil {
			b.Fatal(err)
		}
	}
}
