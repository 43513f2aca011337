package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/csanfilippo/sgpkit/internal/api"
	"github.com/csanfilippo/sgpkit/internal/config"
	"github.com/csanfilippo/sgpkit/internal/interpreter"
	"github.com/csanfilippo/sgpkit/internal/observability"
	"github.com/csanfilippo/sgpkit/internal/propagation"
	"github.com/csanfilippo/sgpkit/internal/stream"
	"github.com/csanfilippo/sgpkit/internal/tle"
)

func newServeCmd(g *globalOptions) *cobra.Command {
	var listenAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API over a periodically fetched TLE catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.HTTP.Addr = listenAddr
			}
			return runServe(cfg)
		},
	}
	cmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "override listen address")
	return cmd
}

func runServe(cfg config.Config) error {
	logger := cfg.Log.NewLogger(os.Stdout)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, logger)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	if cfg.Auth.Enabled {
		logger.Info("auth enabled")
	}
	logger.Info("TLE config",
		"fetch_enabled", cfg.TLE.EnableFetch,
		"source_url", cfg.TLE.SourceURL,
		"extra_urls", cfg.TLE.ExtraSourceURLs,
		"cache_dir", cfg.TLE.CacheDir,
		"refresh_interval_seconds", cfg.TLE.RefreshInterval.Seconds(),
		"archive_path", cfg.TLE.ArchivePath,
	)
	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.Stream.MaxConcurrentPerIP,
		"max_total", cfg.Stream.MaxTotal,
		"keepalive_interval_seconds", cfg.Stream.KeepaliveInterval.Seconds(),
	)

	store := tle.NewStore()
	tleCache := tle.NewCache(cfg.TLE.CacheDir, cfg.TLE.MaxFiles)

	var archive *tle.Archive
	if cfg.TLE.ArchivePath != "" {
		archive, err = tle.OpenArchive(cfg.TLE.ArchivePath)
		if err != nil {
			return err
		}
		defer archive.Close()
	}

	loader := tle.NewLoader(
		tle.NewFetcher(cfg.TLE.SourceURL, logger, cfg.TLE.ExtraSourceURLs...),
		store, tleCache, archive, logger,
	)

	// Attempt to load cached TLE data on startup.
	if _, err := loader.LoadFromCache(); err != nil {
		logger.Info("no usable TLE cache, starting without TLE data", "error", err)
	}

	interp := interpreter.New(
		interpreter.WithGravity(cfg.Gravity()),
		interpreter.WithLogger(logger),
	)
	registry := propagation.NewRegistry(store, cfg.Gravity(), logger,
		propagation.WithWorkers(cfg.Propagation.Workers),
	)

	streamHandler := stream.NewHandler(interp, registry, store, stream.Config{
		MaxConcurrentPerIP: cfg.Stream.MaxConcurrentPerIP,
		MaxTotal:           cfg.Stream.MaxTotal,
		KeepaliveInterval:  cfg.Stream.KeepaliveInterval,
		TrustProxy:         cfg.HTTP.TrustProxy,
	}, logger)

	var fetchLoader *tle.Loader
	if cfg.TLE.EnableFetch {
		fetchLoader = loader
		go loader.Run(ctx, cfg.TLE.RefreshInterval, 10*time.Second)
	}

	srv := api.NewServer(api.Config{
		Addr:         cfg.HTTP.Addr,
		Auth:         cfg.Auth,
		TrustProxy:   cfg.HTTP.TrustProxy,
		FetchEnabled: cfg.TLE.EnableFetch,
	}, api.Deps{
		Interpreter: interp,
		Store:       store,
		Registry:    registry,
		Loader:      fetchLoader,
		Archive:     archive,
		Stream:      streamHandler,
	}, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"addr", cfg.HTTP.Addr,
			"auth_enabled", cfg.Auth.Enabled,
			"gravity", cfg.Gravity().String(),
			"tracing_enabled", cfg.Tracing.Enabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}
