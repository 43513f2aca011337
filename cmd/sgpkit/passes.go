package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/csanfilippo/sgpkit/internal/interpreter"
	"github.com/csanfilippo/sgpkit/internal/passes"
	"github.com/csanfilippo/sgpkit/internal/propagation"
	"github.com/csanfilippo/sgpkit/internal/transform"
)

type passesOptions struct {
	start        string
	format       string
	noradID      int
	lat, lon     float64
	alt          float64
	hours        float64
	minElevation float64
	maxPasses    int
}

type passesResult struct {
	Name     string               `json:"name" yaml:"name"`
	NORADID  int                  `json:"norad_id" yaml:"norad_id"`
	Observer interpreter.Observer `json:"observer" yaml:"observer"`
	Passes   []passes.PassEvent   `json:"passes" yaml:"passes"`
}

func newPassesCmd(g *globalOptions) *cobra.Command {
	opts := &passesOptions{}
	cmd := &cobra.Command{
		Use:   "passes <tle-file|->",
		Short: "Predict passes of one satellite over an observer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPasses(cmd, g, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.start, "start", "", "RFC 3339 start of the window (default now)")
	cmd.Flags().StringVarP(&opts.format, "format", "o", formatText, "output format: text, json or yaml")
	cmd.Flags().IntVar(&opts.noradID, "norad", 0, "NORAD ID to predict when the file holds several sets")
	cmd.Flags().Float64Var(&opts.lat, "lat", 0, "observer geodetic latitude in degrees")
	cmd.Flags().Float64Var(&opts.lon, "lon", 0, "observer longitude in degrees")
	cmd.Flags().Float64Var(&opts.alt, "alt", 0, "observer altitude in km")
	cmd.Flags().Float64Var(&opts.hours, "hours", 24, "prediction window in hours")
	cmd.Flags().Float64Var(&opts.minElevation, "min-elevation", 10, "minimum elevation in degrees")
	cmd.Flags().IntVar(&opts.maxPasses, "max-passes", 10, "maximum passes to report")
	cmd.MarkFlagRequired("lat")
	cmd.MarkFlagRequired("lon")
	return cmd
}

func runPasses(cmd *cobra.Command, g *globalOptions, opts *passesOptions, path string) error {
	if err := validFormat(opts.format); err != nil {
		return err
	}
	start, err := parseTimeFlag(opts.start)
	if err != nil {
		return err
	}
	obs := interpreter.Observer{Latitude: opts.lat, Longitude: opts.lon, Altitude: opts.alt}
	if err := obs.Validate(); err != nil {
		return err
	}
	_, cfg, err := g.cliInterpreter(cmd)
	if err != nil {
		return err
	}

	sets, err := readSets(cmd, path)
	if err != nil {
		return err
	}
	set, err := selectSet(sets, opts.noradID)
	if err != nil {
		return err
	}
	prop, err := propagation.NewSGP4Propagator(set, cfg.Gravity())
	if err != nil {
		return interpreter.Classify(err)
	}

	ellipsoid := cfg.Gravity().Ellipsoid()
	events, err := passes.Predict(cmd.Context(), passes.Request{
		Propagator: prop,
		Ellipsoid:  ellipsoid,
		Observer: transform.NewObserver(ellipsoid, transform.Geodetic{
			LatDeg: obs.Latitude,
			LonDeg: obs.Longitude,
			AltKm:  obs.Altitude,
		}),
		Start:        start,
		HorizonHours: opts.hours,
		MinElevation: opts.minElevation,
		MaxPasses:    opts.maxPasses,
	})
	if err != nil {
		return err
	}
	if events == nil {
		events = []passes.PassEvent{}
	}

	res := passesResult{Name: set.Name(), NORADID: prop.NORADID(), Observer: obs, Passes: events}
	if opts.format != formatText {
		return writeStructured(cmd.OutOrStdout(), opts.format, res)
	}
	return writePassesText(cmd.OutOrStdout(), res)
}

func writePassesText(w io.Writer, res passesResult) error {
	if _, err := fmt.Fprintf(w, "%s (%d): %d passes\n", res.Name, res.NORADID, len(res.Passes)); err != nil {
		return err
	}
	for i, p := range res.Passes {
		_, err := fmt.Fprintf(w, "%2d  rise %s az %5.1f  max %s el %4.1f az %5.1f  set %s az %5.1f  %4.0fs\n",
			i+1,
			p.StartTime.Format(time.RFC3339), p.StartAzimuth,
			p.MaxElevationTime.Format(time.RFC3339), p.MaxElevation, p.AzimuthAtMax,
			p.EndTime.Format(time.RFC3339), p.EndAzimuth,
			p.DurationSeconds,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
