package propagation

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/csanfilippo/sgpkit/internal/metrics"
	"github.com/csanfilippo/sgpkit/internal/tle"
)

var (
	// ErrNoCatalog is returned when no catalog has been loaded yet.
	ErrNoCatalog = errors.New("no TLE catalog loaded")

	// ErrUnknownSatellite is returned for a NORAD ID absent from the catalog.
	ErrUnknownSatellite = errors.New("satellite not in catalog")
)

// registered is one catalog entry with its propagator or the reason it has none.
type registered struct {
	entry tle.Entry
	prop  *SGP4Propagator
	err   error
}

// registrySnapshot holds initialized propagators for one dataset.
// Immutable after construction; safe for concurrent reads.
type registrySnapshot struct {
	byID    map[int]registered
	dataset *tle.Dataset
}

// Registry hands out initialized SGP4 propagators for the satellites of the
// current catalog. Propagators are built once per dataset.
type Registry struct {
	store   *tle.Store
	gravity Gravity
	pool    *WorkerPool
	logger  *slog.Logger
	snap    atomic.Pointer[registrySnapshot]
	mu      sync.Mutex // serializes rebuilds
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithWorkers sets how many goroutines initialize propagators on a rebuild.
// The default is runtime.NumCPU().
func WithWorkers(n int) RegistryOption {
	return func(r *Registry) { r.pool = NewWorkerPool(n, r.gravity) }
}

// NewRegistry creates a Registry over store.
func NewRegistry(store *tle.Store, gravity Gravity, logger *slog.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:   store,
		gravity: gravity,
		pool:    NewWorkerPool(0, gravity),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Gravity returns the gravity model propagators are built with.
func (r *Registry) Gravity() Gravity {
	return r.gravity
}

// Lookup returns the catalog entry for noradID and its propagator.
// When the entry exists but could not be initialized, the entry is returned
// with the initialization error (wrapping ErrInvalidTLE or ErrInit).
func (r *Registry) Lookup(noradID int) (tle.Entry, *SGP4Propagator, error) {
	ds := r.store.Get()
	if ds == nil {
		return tle.Entry{}, nil, ErrNoCatalog
	}

	reg, ok := r.snapshot(ds).byID[noradID]
	if !ok {
		return tle.Entry{}, nil, ErrUnknownSatellite
	}
	return reg.entry, reg.prop, reg.err
}

// snapshot returns the propagators for ds, rebuilding them when the dataset
// has changed (double-checked locking).
func (r *Registry) snapshot(ds *tle.Dataset) *registrySnapshot {
	if s := r.snap.Load(); s != nil && s.dataset == ds {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s := r.snap.Load(); s != nil && s.dataset == ds {
		return s
	}

	start := time.Now()

	// Newest epoch wins for duplicate NORAD IDs, matching tle.Store.
	latest := make(map[int]tle.Entry, len(ds.Satellites))
	for _, e := range ds.Satellites {
		if prev, ok := latest[e.NORADID]; ok && !e.Epoch.After(prev.Epoch) {
			continue
		}
		latest[e.NORADID] = e
	}
	unique := make([]tle.Entry, 0, len(latest))
	for _, e := range latest {
		unique = append(unique, e)
	}

	byID := make(map[int]registered, len(unique))
	var ready, failed int
	for _, reg := range r.pool.InitBatch(unique) {
		byID[reg.entry.NORADID] = reg
		if reg.err != nil {
			failed++
			r.logger.Warn("sgp4 init failed", "norad_id", reg.entry.NORADID, "error", reg.err)
		} else {
			ready++
		}
	}

	metrics.SetRegistryPropagators(ready)
	r.logger.Info("sgp4 propagator registry rebuilt",
		"ready", ready,
		"failed", failed,
		"gravity", r.gravity.String(),
		"workers", r.pool.Workers(),
		"dataset_fetched_at", ds.FetchedAt.UTC().Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	s := &registrySnapshot{byID: byID, dataset: ds}
	r.snap.Store(s)
	return s
}
