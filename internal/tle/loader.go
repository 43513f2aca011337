package tle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/csanfilippo/sgpkit/internal/metrics"
)

// ErrNoEntries is returned when a catalog parses to zero usable element sets.
var ErrNoEntries = errors.New("tle: catalog contains no valid entries")

// Loader keeps a Store populated from a remote catalog.
// The disk cache and the archive are optional.
type Loader struct {
	fetcher *Fetcher
	store   *Store
	cache   *Cache
	archive *Archive
	logger  *slog.Logger
	now     func() time.Time

	lastAttempt time.Time // only touched by the Run goroutine
}

// retryDelay is the minimum gap between failed refresh attempts in Run.
const retryDelay = time.Minute

// NewLoader wires a Loader. cache and archive may be nil.
func NewLoader(fetcher *Fetcher, store *Store, cache *Cache, archive *Archive, logger *slog.Logger) *Loader {
	return &Loader{
		fetcher: fetcher,
		store:   store,
		cache:   cache,
		archive: archive,
		logger:  logger,
		now:     time.Now,
	}
}

// LoadFromCache populates the store from the newest disk snapshot.
func (l *Loader) LoadFromCache() (*Dataset, error) {
	if l.cache == nil {
		return nil, ErrNoSnapshot
	}
	data, ts, err := l.cache.LoadLatest()
	if err != nil {
		return nil, err
	}

	entries, err := ParseCatalog(bytes.NewReader(data), l.logger)
	if err != nil {
		return nil, fmt.Errorf("parsing cached catalog: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}

	ds := NewDataset("cache", ts, entries)
	l.store.Set(ds)
	metrics.SetCatalogCount(len(entries))
	l.logger.Info("loaded TLE data from cache",
		"count", len(entries),
		"cached_at", ts.Format(time.RFC3339),
	)
	return ds, nil
}

// Refresh fetches, parses and publishes a new catalog.
// Concurrent refreshes are serialized through the store's fetch lock.
func (l *Loader) Refresh(ctx context.Context) (*Dataset, error) {
	l.store.Lock()
	defer l.store.Unlock()

	start := l.now()
	data, err := l.fetcher.Fetch(ctx)
	if err != nil {
		metrics.IncCatalogFetch("error")
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}

	entries, err := ParseCatalog(bytes.NewReader(data), l.logger)
	if err != nil {
		metrics.IncCatalogFetch("error")
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if len(entries) == 0 {
		metrics.IncCatalogFetch("empty")
		return nil, ErrNoEntries
	}

	fetchedAt := l.now().UTC()
	ds := NewDataset(l.fetcher.SourceURL(), fetchedAt, entries)
	l.store.Set(ds)
	metrics.IncCatalogFetch("success")
	metrics.SetCatalogCount(len(entries))
	metrics.SetCatalogAge(0)

	if l.cache != nil {
		if err := l.cache.Write(data, fetchedAt); err != nil {
			l.logger.Warn("failed to write TLE cache", "dir", l.cache.Dir(), "error", err)
		}
	}

	var archived int
	if l.archive != nil {
		archived, err = l.archive.Record(ctx, entries, fetchedAt)
		if err != nil {
			l.logger.Warn("failed to archive element sets", "error", err)
		}
		metrics.AddArchiveInserts(archived)
	}

	l.logger.Info("TLE catalog refreshed",
		"source", ds.Source,
		"count", len(entries),
		"archived", archived,
		"epoch_min", ds.EpochRange.Min.Format(time.RFC3339),
		"epoch_max", ds.EpochRange.Max.Format(time.RFC3339),
		"duration_ms", l.now().Sub(start).Milliseconds(),
	)
	return ds, nil
}

// Run refreshes the catalog whenever it is older than interval, checking every
// ageTick, until ctx is done. The age gauge is kept current on each tick.
func (l *Loader) Run(ctx context.Context, interval, ageTick time.Duration) {
	if ageTick <= 0 {
		ageTick = 10 * time.Second
	}
	l.refreshIfStale(ctx, interval)

	ticker := time.NewTicker(ageTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if age := l.store.AgeSeconds(); age >= 0 {
				metrics.SetCatalogAge(age)
			}
			l.refreshIfStale(ctx, interval)
		}
	}
}

func (l *Loader) refreshIfStale(ctx context.Context, interval time.Duration) {
	age := l.store.AgeSeconds()
	if age >= 0 && age < interval.Seconds() {
		return
	}
	if !l.lastAttempt.IsZero() && l.now().Sub(l.lastAttempt) < retryDelay {
		return
	}
	l.lastAttempt = l.now()
	if _, err := l.Refresh(ctx); err != nil && ctx.Err() == nil {
		l.logger.Warn("TLE refresh failed", "error", err)
	}
}
