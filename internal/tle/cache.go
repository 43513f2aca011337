package tle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ErrNoSnapshot is returned by Cache.LoadLatest when the directory holds no catalog snapshot.
var ErrNoSnapshot = errors.New("tle: no cached catalog snapshot")

const (
	snapshotPrefix = "tle_"
	snapshotSuffix = ".txt"
)

// Cache keeps timestamped copies of fetched catalog text on disk.
// Files are named tle_<unix seconds>.txt; at most maxFiles are retained.
type Cache struct {
	dir      string
	maxFiles int
}

// NewCache creates a Cache rooted at dir. A non-positive maxFiles defaults to 5.
func NewCache(dir string, maxFiles int) *Cache {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &Cache{dir: dir, maxFiles: maxFiles}
}

// Dir returns the snapshot directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Write stores data as the snapshot for ts and prunes the oldest snapshots.
func (c *Cache) Write(data []byte, ts time.Time) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	path := filepath.Join(c.dir, snapshotName(ts))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("committing cache file: %w", err)
	}

	return c.prune()
}

// LoadLatest returns the newest snapshot and the time it was taken.
func (c *Cache) LoadLatest() ([]byte, time.Time, error) {
	snaps, err := c.snapshots()
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(snaps) == 0 {
		return nil, time.Time{}, ErrNoSnapshot
	}

	latest := snaps[len(snaps)-1]
	data, err := os.ReadFile(filepath.Join(c.dir, latest.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading cache file: %w", err)
	}
	return data, latest.ts, nil
}

type snapshot struct {
	name string
	ts   time.Time
}

func snapshotName(ts time.Time) string {
	return snapshotPrefix + strconv.FormatInt(ts.Unix(), 10) + snapshotSuffix
}

// snapshots lists the cache directory, oldest first. Unrelated files are ignored.
func (c *Cache) snapshots() ([]snapshot, error) {
	dirEntries, err := os.ReadDir(c.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	var snaps []snapshot
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotSuffix) {
			continue
		}
		unix, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), snapshotSuffix), 10, 64)
		if err != nil {
			continue
		}
		snaps = append(snaps, snapshot{name: name, ts: time.Unix(unix, 0).UTC()})
	}

	slices.SortFunc(snaps, func(a, b snapshot) int {
		return a.ts.Compare(b.ts)
	})
	return snaps, nil
}

func (c *Cache) prune() error {
	snaps, err := c.snapshots()
	if err != nil {
		return err
	}
	if len(snaps) <= c.maxFiles {
		return nil
	}

	for _, s := range snaps[:len(snaps)-c.maxFiles] {
		if err := os.Remove(filepath.Join(c.dir, s.name)); err != nil {
			return fmt.Errorf("pruning cache file %s: %w", s.name, err)
		}
	}
	return nil
}
