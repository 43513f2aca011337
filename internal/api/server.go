package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/csanfilippo/sgpkit/internal/auth"
	"github.com/csanfilippo/sgpkit/internal/health"
	"github.com/csanfilippo/sgpkit/internal/interpreter"
	"github.com/csanfilippo/sgpkit/internal/metrics"
	"github.com/csanfilippo/sgpkit/internal/propagation"
	"github.com/csanfilippo/sgpkit/internal/stream"
	"github.com/csanfilippo/sgpkit/internal/tle"
)

// Config holds the HTTP-level settings.
type Config struct {
	Addr         string
	Auth         auth.Config
	TrustProxy   bool
	FetchEnabled bool
}

// Deps are the components the handlers serve from. Loader and Archive may be
// nil when catalog fetching or archiving is disabled.
type Deps struct {
	Interpreter *interpreter.Interpreter
	Store       *tle.Store
	Registry    *propagation.Registry
	Loader      *tle.Loader
	Archive     *tle.Archive
	Stream      *stream.Handler
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, deps Deps, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           NewHandler(cfg, deps, logger),
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			// Pass prediction over a week can take a few seconds; streams
			// clear this deadline themselves.
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed handler with the full middleware chain.
func NewHandler(cfg Config, deps Deps, logger *slog.Logger) http.Handler {
	h := &handlers{
		interp:       deps.Interpreter,
		store:        deps.Store,
		registry:     deps.Registry,
		loader:       deps.Loader,
		archive:      deps.Archive,
		fetchEnabled: cfg.FetchEnabled,
		logger:       logger,
		now:          time.Now,
	}

	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(h.ready))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /api/v1/propagate", h.propagate)
	mux.HandleFunc("POST /api/v1/look", h.look)

	mux.HandleFunc("GET /api/v1/satellites/{norad_id}", h.satellite)
	mux.HandleFunc("GET /api/v1/satellites/{norad_id}/look", h.satelliteLook)
	mux.HandleFunc("GET /api/v1/satellites/{norad_id}/passes", h.satellitePasses)
	mux.HandleFunc("GET /api/v1/satellites/{norad_id}/history", h.satelliteHistory)
	if deps.Stream != nil {
		mux.HandleFunc("GET /api/v1/satellites/{norad_id}/track", deps.Stream.HandleTrack)
	}

	mux.HandleFunc("GET /api/v1/tle/metadata", h.tleMetadata)
	mux.HandleFunc("POST /api/v1/tle/fetch", h.tleFetch)

	// Build middleware chain: metrics -> request id -> logging -> auth -> tracing -> mux.
	var handler http.Handler = mux
	handler = tracingMiddleware(handler)
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = requestIDMiddleware(handler)
	handler = metrics.Middleware(handler)
	return handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}
