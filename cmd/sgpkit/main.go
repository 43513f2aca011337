// Command sgpkit propagates two-line element sets with SGP4, either one-shot
// from the command line or as an HTTP service over a fetched catalog.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/csanfilippo/sgpkit/internal/config"
	"github.com/csanfilippo/sgpkit/internal/interpreter"
	"github.com/csanfilippo/sgpkit/internal/propagation"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	gravity    string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "sgpkit",
		Short: "SGP4 propagation of two-line element sets",
		Long: `sgpkit computes satellite position, velocity and look angles from
two-line element sets using the SGP4/SDP4 model. Failures are reported with
a domain and one of the codes TLE_ERROR, SATELLITE_ERROR or GENERIC_ERROR.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file path (YAML)")
	root.PersistentFlags().StringVar(&opts.gravity, "gravity", "", "gravity model: wgs72 or wgs84 (overrides config)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	root.AddCommand(
		newServeCmd(opts),
		newPropagateCmd(opts),
		newLookCmd(opts),
		newPassesCmd(opts),
		newDecodeCmd(opts),
	)
	return root
}

// load reads the configuration and applies the persistent flag overrides.
// Configuration warnings go to stderr.
func (o *globalOptions) load(stderr io.Writer) (config.Config, error) {
	bootstrap := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg, err := config.Load(o.configPath, bootstrap)
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	if o.gravity != "" {
		if _, err := propagation.ParseGravity(o.gravity); err != nil {
			return cfg, err
		}
		cfg.Propagation.Gravity = o.gravity
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
		if err := cfg.Validate(); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// cliInterpreter builds the interpreter for the one-shot commands, logging to
// stderr so stdout stays machine-readable.
func (o *globalOptions) cliInterpreter(cmd *cobra.Command) (*interpreter.Interpreter, config.Config, error) {
	cfg, err := o.load(cmd.ErrOrStderr())
	if err != nil {
		return nil, cfg, err
	}
	logger := cfg.Log.NewLogger(cmd.ErrOrStderr())
	return interpreter.New(
		interpreter.WithGravity(cfg.Gravity()),
		interpreter.WithLogger(logger),
	), cfg, nil
}
