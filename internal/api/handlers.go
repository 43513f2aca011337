package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/csanfilippo/sgpkit/internal/httputil"
	"github.com/csanfilippo/sgpkit/internal/interpreter"
	"github.com/csanfilippo/sgpkit/internal/passes"
	"github.com/csanfilippo/sgpkit/internal/propagation"
	"github.com/csanfilippo/sgpkit/internal/tle"
	"github.com/csanfilippo/sgpkit/internal/transform"
)

const (
	maxBodyBytes = 64 << 10

	defaultPassHours    = 24
	defaultMinElevation = 10
	defaultMaxPasses    = 10
	maxPassesLimit      = 50

	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

var (
	errNoArchive       = errors.New("element set archive is disabled")
	errFetchDisabled   = errors.New("catalog fetching is disabled")
	errObserverMissing = errors.New("lat and lon are required")
)

type handlers struct {
	interp       *interpreter.Interpreter
	store        *tle.Store
	registry     *propagation.Registry
	loader       *tle.Loader
	archive      *tle.Archive
	fetchEnabled bool
	logger       *slog.Logger
	now          func() time.Time
}

// ready reports whether catalog-backed routes can serve. With fetching
// disabled only ad-hoc propagation is offered, which needs no catalog.
func (h *handlers) ready() bool {
	return !h.fetchEnabled || h.store.Get() != nil
}

// propagateRequest carries an element set either as raw text in TLE or as
// separate lines. A missing time means now.
type propagateRequest struct {
	TLE      string                `json:"tle"`
	Title    string                `json:"title"`
	Line1    string                `json:"line1"`
	Line2    string                `json:"line2"`
	Time     *time.Time            `json:"time"`
	Observer *interpreter.Observer `json:"observer"`
}

func (h *handlers) decodePropagate(w http.ResponseWriter, r *http.Request) (propagateRequest, tle.TLE, time.Time, bool) {
	var req propagateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return req, tle.TLE{}, time.Time{}, false
	}

	var set tle.TLE
	if req.TLE != "" {
		parsed, err := tle.Parse([]byte(req.TLE))
		if err != nil {
			domainErr := interpreter.Classify(err)
			httputil.WriteError(w, httputil.StatusFor(domainErr), domainErr)
			return req, tle.TLE{}, time.Time{}, false
		}
		set = parsed
	} else {
		// Structural checks happen in the interpreter.
		set = tle.TLE{Title: req.Title, Line1: req.Line1, Line2: req.Line2}
	}

	at := h.now().UTC()
	if req.Time != nil {
		at = *req.Time
	}
	return req, set, at, true
}

// propagate handles POST /api/v1/propagate.
func (h *handlers) propagate(w http.ResponseWriter, r *http.Request) {
	_, set, at, ok := h.decodePropagate(w, r)
	if !ok {
		return
	}
	data, err := h.interp.SatelliteData(r.Context(), set, at)
	if err != nil {
		httputil.WriteError(w, httputil.StatusFor(err), err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, data)
}

type lookResponse struct {
	Satellite interpreter.SatelliteData `json:"satellite"`
	Look      interpreter.LookAngles    `json:"look"`
}

// look handles POST /api/v1/look.
func (h *handlers) look(w http.ResponseWriter, r *http.Request) {
	req, set, at, ok := h.decodePropagate(w, r)
	if !ok {
		return
	}
	if req.Observer == nil {
		httputil.WriteError(w, http.StatusBadRequest, errors.New("observer is required"))
		return
	}

	la, err := h.interp.LookAngles(r.Context(), set, at, *req.Observer)
	if err != nil {
		httputil.WriteError(w, httputil.StatusFor(err), err)
		return
	}
	data, err := h.interp.SatelliteData(r.Context(), set, at)
	if err != nil {
		httputil.WriteError(w, httputil.StatusFor(err), err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lookResponse{Satellite: data, Look: la})
}

// lookup resolves the {norad_id} path value to a catalog entry and its
// propagator, writing the error response itself when it fails.
func (h *handlers) lookup(w http.ResponseWriter, r *http.Request) (tle.Entry, *propagation.SGP4Propagator, bool) {
	noradID, err := strconv.Atoi(r.PathValue("norad_id"))
	if err != nil || noradID <= 0 {
		httputil.WriteError(w, http.StatusBadRequest, errors.New("invalid norad_id"))
		return tle.Entry{}, nil, false
	}

	entry, prop, err := h.registry.Lookup(noradID)
	switch {
	case errors.Is(err, propagation.ErrNoCatalog):
		httputil.WriteError(w, http.StatusServiceUnavailable, err)
		return tle.Entry{}, nil, false
	case errors.Is(err, propagation.ErrUnknownSatellite):
		httputil.WriteError(w, http.StatusNotFound, fmt.Errorf("%w: %d", err, noradID))
		return tle.Entry{}, nil, false
	case err != nil:
		domainErr := interpreter.Classify(err)
		httputil.WriteError(w, httputil.StatusFor(domainErr), domainErr)
		return tle.Entry{}, nil, false
	}
	return entry, prop, true
}

type satelliteResponse struct {
	NORADID   int                       `json:"norad_id"`
	Name      string                    `json:"name"`
	TLEEpoch  time.Time                 `json:"tle_epoch"`
	Satellite interpreter.SatelliteData `json:"satellite"`
	Look      *interpreter.LookAngles   `json:"look,omitempty"`
}

// satellite handles GET /api/v1/satellites/{norad_id}?time=.
func (h *handlers) satellite(w http.ResponseWriter, r *http.Request) {
	at, err := httputil.ParseTime(r.URL.Query(), "time", h.now().UTC())
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}
	entry, prop, ok := h.lookup(w, r)
	if !ok {
		return
	}

	data, err := h.interp.SatelliteDataFrom(r.Context(), prop, at)
	if err != nil {
		httputil.WriteError(w, httputil.StatusFor(err), err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, satelliteResponse{
		NORADID:   entry.NORADID,
		Name:      entry.Name,
		TLEEpoch:  entry.Epoch,
		Satellite: data,
	})
}

// satelliteLook handles GET /api/v1/satellites/{norad_id}/look?lat=&lon=&alt=&time=.
func (h *handlers) satelliteLook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	at, err := httputil.ParseTime(q, "time", h.now().UTC())
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}
	obs, hasObs, err := httputil.ParseObserver(q)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if !hasObs {
		httputil.WriteError(w, http.StatusBadRequest, errObserverMissing)
		return
	}
	entry, prop, ok := h.lookup(w, r)
	if !ok {
		return
	}

	data, err := h.interp.SatelliteDataFrom(r.Context(), prop, at)
	if err != nil {
		httputil.WriteError(w, httputil.StatusFor(err), err)
		return
	}
	la, err := h.interp.LookAnglesFrom(r.Context(), prop, at, obs)
	if err != nil {
		httputil.WriteError(w, httputil.StatusFor(err), err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, satelliteResponse{
		NORADID:   entry.NORADID,
		Name:      entry.Name,
		TLEEpoch:  entry.Epoch,
		Satellite: data,
		Look:      &la,
	})
}

type passesResponse struct {
	NORADID  int                  `json:"norad_id"`
	Name     string               `json:"name"`
	Observer interpreter.Observer `json:"observer"`
	Start    time.Time            `json:"start"`
	Hours    float64              `json:"hours"`
	Passes   []passes.PassEvent   `json:"passes"`
}

// satellitePasses handles
// GET /api/v1/satellites/{norad_id}/passes?lat=&lon=&alt=&hours=&min_elevation=&max_passes=&start=.
func (h *handlers) satellitePasses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	obs, hasObs, err := httputil.ParseObserver(q)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if !hasObs {
		httputil.WriteError(w, http.StatusBadRequest, errObserverMissing)
		return
	}
	start, err := httputil.ParseTime(q, "start", h.now().UTC())
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}
	hours, err := httputil.ParseFloat(q, "hours", defaultPassHours, 1, passes.MaxHorizonHours)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}
	minEl, err := httputil.ParseFloat(q, "min_elevation", defaultMinElevation, 0, 90)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}
	maxPasses, err := httputil.ParseInt(q, "max_passes", defaultMaxPasses, 1, maxPassesLimit)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}
	entry, prop, ok := h.lookup(w, r)
	if !ok {
		return
	}

	ellipsoid := h.interp.Gravity().Ellipsoid()
	result, err := passes.Predict(r.Context(), passes.Request{
		Propagator: prop,
		Ellipsoid:  ellipsoid,
		Observer: transform.NewObserver(ellipsoid, transform.Geodetic{
			LatDeg: obs.Latitude,
			LonDeg: obs.Longitude,
			AltKm:  obs.Altitude,
		}),
		Start:        start,
		HorizonHours: hours,
		MinElevation: minEl,
		MaxPasses:    maxPasses,
	})
	if err != nil {
		h.logger.Warn("pass prediction failed", "norad_id", entry.NORADID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, err)
		return
	}
	if result == nil {
		result = []passes.PassEvent{}
	}

	httputil.WriteJSON(w, http.StatusOK, passesResponse{
		NORADID:  entry.NORADID,
		Name:     entry.Name,
		Observer: obs,
		Start:    start,
		Hours:    hours,
		Passes:   result,
	})
}

type historyResponse struct {
	NORADID int               `json:"norad_id"`
	Sets    []tle.ArchivedSet `json:"sets"`
}

// satelliteHistory handles GET /api/v1/satellites/{norad_id}/history?limit=.
// Unlike the other satellite routes it reads the archive only, so satellites
// that have left the current catalog still answer.
func (h *handlers) satelliteHistory(w http.ResponseWriter, r *http.Request) {
	noradID, err := strconv.Atoi(r.PathValue("norad_id"))
	if err != nil || noradID <= 0 {
		httputil.WriteError(w, http.StatusBadRequest, errors.New("invalid norad_id"))
		return
	}
	limit, err := httputil.ParseInt(r.URL.Query(), "limit", defaultHistoryLimit, 1, maxHistoryLimit)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if h.archive == nil {
		httputil.WriteError(w, http.StatusNotImplemented, errNoArchive)
		return
	}

	sets, err := h.archive.History(r.Context(), noradID, limit)
	if err != nil {
		h.logger.Error("archive history query failed", "norad_id", noradID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, errors.New("archive query failed"))
		return
	}
	if len(sets) == 0 {
		httputil.WriteError(w, http.StatusNotFound, fmt.Errorf("no archived element sets for %d", noradID))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, historyResponse{NORADID: noradID, Sets: sets})
}

type tleMetadata struct {
	Loaded       bool       `json:"loaded"`
	FetchEnabled bool       `json:"fetch_enabled"`
	Gravity      string     `json:"gravity"`
	Source       string     `json:"source,omitempty"`
	FetchedAt    *time.Time `json:"fetched_at,omitempty"`
	AgeSeconds   float64    `json:"age_seconds,omitempty"`
	Count        int        `json:"count"`
	EpochMin     *time.Time `json:"epoch_min,omitempty"`
	EpochMax     *time.Time `json:"epoch_max,omitempty"`
}

func (h *handlers) metadata() tleMetadata {
	meta := tleMetadata{
		FetchEnabled: h.fetchEnabled,
		Gravity:      h.interp.Gravity().String(),
	}
	ds := h.store.Get()
	if ds == nil {
		return meta
	}
	fetchedAt := ds.FetchedAt.UTC()
	epochMin, epochMax := ds.EpochRange.Min.UTC(), ds.EpochRange.Max.UTC()
	meta.Loaded = true
	meta.Source = ds.Source
	meta.FetchedAt = &fetchedAt
	meta.AgeSeconds = h.now().Sub(ds.FetchedAt).Seconds()
	meta.Count = len(ds.Satellites)
	meta.EpochMin = &epochMin
	meta.EpochMax = &epochMax
	return meta
}

// tleMetadata handles GET /api/v1/tle/metadata.
func (h *handlers) tleMetadata(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.metadata())
}

// tleFetch handles POST /api/v1/tle/fetch, refreshing the catalog now.
func (h *handlers) tleFetch(w http.ResponseWriter, r *http.Request) {
	if !h.fetchEnabled || h.loader == nil {
		httputil.WriteError(w, http.StatusForbidden, errFetchDisabled)
		return
	}
	if _, err := h.loader.Refresh(r.Context()); err != nil {
		h.logger.Warn("manual TLE refresh failed", "request_id", RequestID(r.Context()), "error", err)
		httputil.WriteError(w, http.StatusBadGateway, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.metadata())
}
