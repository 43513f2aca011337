package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/csanfilippo/sgpkit/internal/interpreter"
	"github.com/csanfilippo/sgpkit/internal/tle"
)

type propagateOptions struct {
	at      string
	format  string
	noradID int

	// look only
	lat, lon, alt float64
}

// cliError is the structured form of a failed propagation.
type cliError struct {
	Message string `json:"error" yaml:"error"`
	Domain  string `json:"domain" yaml:"domain"`
	Code    string `json:"code" yaml:"code"`
}

type propagateResult struct {
	Name      string                     `json:"name" yaml:"name"`
	NORADID   int                        `json:"norad_id,omitempty" yaml:"norad_id,omitempty"`
	Satellite *interpreter.SatelliteData `json:"satellite,omitempty" yaml:"satellite,omitempty"`
	Look      *interpreter.LookAngles    `json:"look,omitempty" yaml:"look,omitempty"`
	Error     *cliError                  `json:"error,omitempty" yaml:"error,omitempty"`
}

func newPropagateCmd(g *globalOptions) *cobra.Command {
	opts := &propagateOptions{}
	cmd := &cobra.Command{
		Use:   "propagate <tle-file|->",
		Short: "Compute satellite state for every element set in a file",
		Long: `Propagates each 3-line element set in the input to --time (default now)
and prints geodetic position, speed and state vectors.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPropagate(cmd, g, opts, args[0], nil)
		},
	}
	addPropagateFlags(cmd, opts)
	return cmd
}

func newLookCmd(g *globalOptions) *cobra.Command {
	opts := &propagateOptions{}
	cmd := &cobra.Command{
		Use:   "look <tle-file|->",
		Short: "Compute look angles from a ground observer",
		Long: `Computes azimuth, elevation, range and range rate from an observer
at --lat/--lon (degrees) and --alt (kilometres above the ellipsoid).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			obs := interpreter.Observer{Latitude: opts.lat, Longitude: opts.lon, Altitude: opts.alt}
			return runPropagate(cmd, g, opts, args[0], &obs)
		},
	}
	addPropagateFlags(cmd, opts)
	cmd.Flags().Float64Var(&opts.lat, "lat", 0, "observer geodetic latitude in degrees")
	cmd.Flags().Float64Var(&opts.lon, "lon", 0, "observer longitude in degrees")
	cmd.Flags().Float64Var(&opts.alt, "alt", 0, "observer altitude in km")
	cmd.MarkFlagRequired("lat")
	cmd.MarkFlagRequired("lon")
	return cmd
}

func addPropagateFlags(cmd *cobra.Command, opts *propagateOptions) {
	cmd.Flags().StringVarP(&opts.at, "time", "t", "", "RFC 3339 instant (default now)")
	cmd.Flags().StringVarP(&opts.format, "format", "o", formatText, "output format: text, json or yaml")
	cmd.Flags().IntVar(&opts.noradID, "norad", 0, "only propagate this NORAD ID")
}

func runPropagate(cmd *cobra.Command, g *globalOptions, opts *propagateOptions, path string, obs *interpreter.Observer) error {
	if err := validFormat(opts.format); err != nil {
		return err
	}
	at, err := parseTimeFlag(opts.at)
	if err != nil {
		return err
	}
	interp, _, err := g.cliInterpreter(cmd)
	if err != nil {
		return err
	}

	sets, err := readSets(cmd, path)
	if err != nil {
		return err
	}
	if opts.noradID != 0 {
		set, err := selectSet(sets, opts.noradID)
		if err != nil {
			return err
		}
		sets = []tle.TLE{set}
	}

	ctx := cmd.Context()
	results := make([]propagateResult, 0, len(sets))
	var failed int
	for _, set := range sets {
		res := propagateResult{Name: set.Name()}
		if el, err := tle.ParseElements(set); err == nil {
			res.NORADID = el.NORADID
		}

		data, err := interp.SatelliteData(ctx, set, at)
		if err == nil && obs != nil {
			var la interpreter.LookAngles
			la, err = interp.LookAngles(ctx, set, at, *obs)
			res.Look = &la
		}
		if err != nil {
			failed++
			res.Look = nil
			res.Error = newCLIError(err)
		} else {
			res.Satellite = &data
		}
		results = append(results, res)
	}

	out := cmd.OutOrStdout()
	if opts.format == formatText {
		err = writePropagateText(out, results)
	} else {
		err = writeStructured(out, opts.format, results)
	}
	if err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d propagations failed", failed, len(results))
	}
	return nil
}

func newCLIError(err error) *cliError {
	e := interpreter.Classify(err)
	return &cliError{Message: e.Error(), Domain: e.Domain, Code: e.Code.String()}
}

func writePropagateText(w io.Writer, results []propagateResult) error {
	t := &table{w: w}
	for i, r := range results {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		t.add("name", "%s", r.Name)
		t.add("norad_id", "%d", r.NORADID)
		if r.Error != nil {
			t.add("error", "%s", r.Error.Message)
			t.add("code", "%s", r.Error.Code)
			if err := t.flush(); err != nil {
				return err
			}
			continue
		}

		s := r.Satellite
		t.add("time", "%s", s.Time.Format(time.RFC3339Nano))
		t.add("latitude", "%.6f deg", s.Latitude)
		t.add("longitude", "%.6f deg", s.Longitude)
		t.add("altitude", "%.3f km", s.Altitude)
		t.add("speed", "%.3f km/h", s.Speed)
		t.add("position_teme", "%.3f %.3f %.3f km", s.PositionTEME.X, s.PositionTEME.Y, s.PositionTEME.Z)
		t.add("velocity_teme", "%.6f %.6f %.6f km/s", s.VelocityTEME.X, s.VelocityTEME.Y, s.VelocityTEME.Z)
		if la := r.Look; la != nil {
			t.add("azimuth", "%.4f deg", la.Azimuth)
			t.add("elevation", "%.4f deg", la.Elevation)
			t.add("range", "%.3f km", la.Range)
			t.add("range_rate", "%.6f km/s", la.RangeRate)
		}
		if err := t.flush(); err != nil {
			return err
		}
	}
	return nil
}
