package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/csanfilippo/sgpkit/internal/interpreter"
	"github.com/csanfilippo/sgpkit/internal/tle"
)

// decodedSet is an element set with its fields extracted.
type decodedSet struct {
	Title            string    `json:"title" yaml:"title"`
	Line1            string    `json:"line1" yaml:"line1"`
	Line2            string    `json:"line2" yaml:"line2"`
	NORADID          int       `json:"norad_id" yaml:"norad_id"`
	Classification   string    `json:"classification" yaml:"classification"`
	IntlDesignator   string    `json:"intl_designator" yaml:"intl_designator"`
	Epoch            time.Time `json:"epoch" yaml:"epoch"`
	MeanMotionDot    float64   `json:"mean_motion_dot" yaml:"mean_motion_dot"`
	MeanMotionDDot   float64   `json:"mean_motion_ddot" yaml:"mean_motion_ddot"`
	BStar            float64   `json:"bstar" yaml:"bstar"`
	ElementSetNumber int       `json:"element_set_number" yaml:"element_set_number"`
	Inclination      float64   `json:"inclination" yaml:"inclination"`
	RAAN             float64   `json:"raan" yaml:"raan"`
	Eccentricity     float64   `json:"eccentricity" yaml:"eccentricity"`
	ArgPerigee       float64   `json:"arg_perigee" yaml:"arg_perigee"`
	MeanAnomaly      float64   `json:"mean_anomaly" yaml:"mean_anomaly"`
	MeanMotion       float64   `json:"mean_motion" yaml:"mean_motion"`
	RevolutionNumber int       `json:"revolution_number" yaml:"revolution_number"`
}

func newDecodeCmd(_ *globalOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "decode <tle-file|->",
		Short: "Validate element sets and re-emit them as text, JSON or YAML",
		Long: `Reads 3-line element sets, checks their structure and numeric fields, and
writes them back out. Text output is the normalized 3-line form.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validFormat(format); err != nil {
				return err
			}
			sets, err := readSets(cmd, args[0])
			if err != nil {
				return err
			}

			decoded := make([]decodedSet, 0, len(sets))
			for i, s := range sets {
				el, err := tle.ParseElements(s)
				if err != nil {
					return fmt.Errorf("element set %d (%s): %w", i+1, s.Name(), interpreter.Classify(err))
				}
				decoded = append(decoded, newDecodedSet(s, el))
			}

			if format != formatText {
				return writeStructured(cmd.OutOrStdout(), format, decoded)
			}
			enc := tle.NewEncoder(cmd.OutOrStdout())
			for _, s := range sets {
				if err := enc.Encode(s); err != nil {
					return err
				}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", formatText, "output format: text, json or yaml")
	return cmd
}

func newDecodedSet(s tle.TLE, el tle.Elements) decodedSet {
	return decodedSet{
		Title:            s.Name(),
		Line1:            s.Line1,
		Line2:            s.Line2,
		NORADID:          el.NORADID,
		Classification:   string(el.Classification),
		IntlDesignator:   el.IntlDesignator,
		Epoch:            el.Epoch,
		MeanMotionDot:    el.MeanMotionDot,
		MeanMotionDDot:   el.MeanMotionDDot,
		BStar:            el.BStar,
		ElementSetNumber: el.ElementSetNumber,
		Inclination:      el.Inclination,
		RAAN:             el.RAAN,
		Eccentricity:     el.Eccentricity,
		ArgPerigee:       el.ArgPerigee,
		MeanAnomaly:      el.MeanAnomaly,
		MeanMotion:       el.MeanMotion,
		RevolutionNumber: el.RevolutionNumber,
	}
}
