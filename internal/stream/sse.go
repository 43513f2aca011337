// Package stream implements Server-Sent Events (SSE) tracking of a single
// catalog satellite. Clients connect via
// GET /api/v1/satellites/{norad_id}/track and receive the satellite's state
// every step seconds, with look angles when an observer is given.
//
// SSE message format:
//
//	event: state
//	data: {"t":"2026-02-06T04:00:00Z","satellite":{...},"look":{...}}
//
// First event is always metadata:
//
//	event: metadata
//	data: {"norad_id":25544,"name":"ISS (ZARYA)","tle_epoch":"...","dataset_epoch":"...","tle_age_seconds":1800}
//
// A propagation failure sends one "error" event carrying the domain error and
// closes the stream. Keep-alive comments (:\n\n) are sent every
// KeepaliveInterval when no state has been sent.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/csanfilippo/sgpkit/internal/httputil"
	"github.com/csanfilippo/sgpkit/internal/interpreter"
	"github.com/csanfilippo/sgpkit/internal/metrics"
	"github.com/csanfilippo/sgpkit/internal/propagation"
	"github.com/csanfilippo/sgpkit/internal/tle"
)

// Config holds streaming limits.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	MaxTotal           int           // Max concurrent streams overall (default: 1000).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	TrustProxy         bool          // Use X-Forwarded-For / X-Real-IP for the per-IP limit.
}

// DefaultConfig returns the default streaming limits.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentPerIP: 10,
		MaxTotal:           DefaultMaxTotal,
		KeepaliveInterval:  30 * time.Second,
	}
}

// Handler manages SSE tracking connections.
type Handler struct {
	interp   *interpreter.Interpreter
	registry *propagation.Registry
	store    *tle.Store
	config   Config
	limiter  *streamLimiter
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler creates a new streaming handler.
func NewHandler(interp *interpreter.Interpreter, registry *propagation.Registry, store *tle.Store, config Config, logger *slog.Logger) *Handler {
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		interp:   interp,
		registry: registry,
		store:    store,
		config:   config,
		limiter:  newStreamLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:   logger,
		now:      time.Now,
	}
}

// HandleTrack serves the SSE state stream for one satellite.
// GET /api/v1/satellites/{norad_id}/track?step=1&lat=&lon=&alt=
func (h *Handler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	noradID, err := strconv.Atoi(r.PathValue("norad_id"))
	if err != nil || noradID <= 0 {
		httputil.WriteError(w, http.StatusBadRequest, errors.New("invalid norad_id"))
		return
	}

	q := r.URL.Query()
	step, err := httputil.ParseInt(q, "step", 1, 1, 60)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}
	obs, withLook, err := httputil.ParseObserver(q)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}

	entry, prop, err := h.registry.Lookup(noradID)
	switch {
	case errors.Is(err, propagation.ErrNoCatalog):
		httputil.WriteError(w, http.StatusServiceUnavailable, err)
		return
	case errors.Is(err, propagation.ErrUnknownSatellite):
		httputil.WriteError(w, http.StatusNotFound, fmt.Errorf("%w: %d", err, noradID))
		return
	case err != nil:
		domainErr := interpreter.Classify(err)
		httputil.WriteError(w, httputil.StatusFor(domainErr), domainErr)
		return
	}

	// Rate limiting: enforce concurrent stream limit per IP.
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		httputil.WriteError(w, http.StatusTooManyRequests, errors.New("too many concurrent streams"))
		return
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"norad_id", noradID,
		"step", step,
		"look", withLook,
	)

	defer func() {
		h.limiter.release(ip)
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"norad_id", noradID,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, errors.New("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's default WriteTimeout for this connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      rc,
		ip:      ip,
		logger:  h.logger,
	}

	// Jittered retry interval (3-7s) spreads reconnects after a restart.
	if err := c.sendRetry(time.Duration(3000+rand.IntN(4000)) * time.Millisecond); err != nil {
		metrics.IncStreamErrors("send_error")
		return
	}

	if err := c.send("metadata", h.metadata(entry, prop, step)); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}

	ctx := r.Context()
	ticker := time.NewTicker(time.Duration(step) * time.Second)
	defer ticker.Stop()

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	tick := h.now()
	for {
		// Pick up a refreshed element set for the same satellite.
		if _, p, err := h.registry.Lookup(noradID); err == nil && p != prop {
			prop = p
		}

		msg, perr := h.state(ctx, prop, tick, obs, withLook)
		if perr != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.IncStreamErrors("propagation")
			h.logger.Warn("stream propagation failed", "norad_id", noradID, "error", perr)
			if err := c.send("error", httputil.NewErrorBody(perr)); err != nil {
				metrics.IncStreamErrors("send_error")
			}
			return
		}
		if err := c.send("state", msg); err != nil {
			metrics.IncStreamErrors("send_error")
			h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
			return
		}
		keepaliveTicker.Reset(h.config.KeepaliveInterval)

	wait:
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tick = h.now()
				break wait
			case <-keepaliveTicker.C:
				if err := c.sendKeepalive(); err != nil {
					metrics.IncStreamErrors("send_error")
					h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
					return
				}
			}
		}
	}
}

func (h *Handler) metadata(entry tle.Entry, prop *propagation.SGP4Propagator, step int) metadataMessage {
	meta := metadataMessage{
		NORADID:     entry.NORADID,
		Name:        entry.Name,
		TLEEpoch:    prop.Epoch().UTC().Format(time.RFC3339),
		Gravity:     h.interp.Gravity().String(),
		StepSeconds: step,
	}
	if ds := h.store.Get(); ds != nil {
		meta.DatasetEpoch = ds.FetchedAt.UTC().Format(time.RFC3339)
		meta.TLEAge = int(time.Since(ds.FetchedAt).Seconds())
	}
	return meta
}

func (h *Handler) state(ctx context.Context, prop *propagation.SGP4Propagator, t time.Time, obs interpreter.Observer, withLook bool) (stateMessage, error) {
	t = t.UTC()
	data, err := h.interp.SatelliteDataFrom(ctx, prop, t)
	if err != nil {
		return stateMessage{}, err
	}
	msg := stateMessage{T: t.Format(time.RFC3339Nano), Satellite: data}
	if withLook {
		la, err := h.interp.LookAnglesFrom(ctx, prop, t, obs)
		if err != nil {
			return stateMessage{}, err
		}
		msg.Look = &la
	}
	return msg, nil
}

// SSE message payload types.

type metadataMessage struct {
	NORADID      int    `json:"norad_id"`
	Name         string `json:"name"`
	TLEEpoch     string `json:"tle_epoch"`
	DatasetEpoch string `json:"dataset_epoch,omitempty"`
	TLEAge       int    `json:"tle_age_seconds"`
	Gravity      string `json:"gravity"`
	StepSeconds  int    `json:"step_seconds"`
}

type stateMessage struct {
	T         string                    `json:"t"`
	Satellite interpreter.SatelliteData `json:"satellite"`
	Look      *interpreter.LookAngles   `json:"look,omitempty"`
}
