package tle

import (
	"sync"
	"sync/atomic"
	"time"
)

// Store provides thread-safe access to the current catalog.
type Store struct {
	dataset atomic.Pointer[Dataset]
	index   atomic.Pointer[map[int]Entry]
	mu      sync.Mutex // serializes fetch operations
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current dataset, or nil if none has been loaded.
func (s *Store) Get() *Dataset {
	return s.dataset.Load()
}

// Set atomically replaces the current dataset.
// When a NORAD ID appears more than once the entry with the newest epoch wins.
func (s *Store) Set(ds *Dataset) {
	idx := make(map[int]Entry, len(ds.Satellites))
	for _, e := range ds.Satellites {
		if prev, ok := idx[e.NORADID]; ok && !e.Epoch.After(prev.Epoch) {
			continue
		}
		idx[e.NORADID] = e
	}
	s.index.Store(&idx)
	s.dataset.Store(ds)
}

// Lookup returns the catalog entry for a NORAD ID.
func (s *Store) Lookup(noradID int) (Entry, bool) {
	idx := s.index.Load()
	if idx == nil {
		return Entry{}, false
	}
	e, ok := (*idx)[noradID]
	return e, ok
}

// AgeSeconds returns the age of the current dataset in seconds.
// Returns -1 if no dataset is loaded.
func (s *Store) AgeSeconds() float64 {
	ds := s.dataset.Load()
	if ds == nil {
		return -1
	}
	return time.Since(ds.FetchedAt).Seconds()
}

// Lock acquires the fetch mutex for serializing fetch operations.
func (s *Store) Lock() {
	s.mu.Lock()
}

// Unlock releases the fetch mutex.
func (s *Store) Unlock() {
	s.mu.Unlock()
}
