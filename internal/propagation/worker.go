package propagation

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/csanfilippo/sgpkit/internal/tle"
)

// initJob is a unit of work for the worker pool.
type initJob struct {
	index int
	entry tle.Entry
}

// WorkerPool initializes SGP4 propagators on a fixed number of goroutines.
// Catalogs hold tens of thousands of element sets; initialization is the
// expensive part of a registry rebuild.
type WorkerPool struct {
	workers int
	gravity Gravity
	newProp func(tle.TLE, Gravity) (*SGP4Propagator, error)
}

// NewWorkerPool creates a worker pool with the given number of workers.
// A non-positive count selects runtime.NumCPU().
func NewWorkerPool(workers int, gravity Gravity) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &WorkerPool{workers: workers, gravity: gravity, newProp: NewSGP4Propagator}
}

// Workers returns the pool size.
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

// InitBatch builds a propagator for every entry. The result is index-aligned
// with entries; failed entries carry their initialization error.
func (wp *WorkerPool) InitBatch(entries []tle.Entry) []registered {
	out := make([]registered, len(entries))
	if len(entries) == 0 {
		return out
	}

	workers := min(wp.workers, len(entries))
	jobs := make(chan initJob, workers*2)

	// Start workers. Each writes only its own indices, so out needs no lock.
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				out[job.index] = wp.init(job.entry)
			}
		}()
	}

	for i, e := range entries {
		jobs <- initJob{index: i, entry: e}
	}
	close(jobs)
	wg.Wait()

	return out
}

// init builds one propagator. A panic inside the engine becomes an ErrInit
// error so a single bad entry cannot take down the process.
func (wp *WorkerPool) init(entry tle.Entry) (r registered) {
	r.entry = entry
	defer func() {
		if v := recover(); v != nil {
			r.prop = nil
			r.err = fmt.Errorf("%w for NORAD %d: engine panic: %v", ErrInit, entry.NORADID, v)
		}
	}()
	r.prop, r.err = wp.newProp(entry.TLE(), wp.gravity)
	return r
}
