package tle

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Archive records every distinct element set seen, keyed by NORAD ID and epoch.
// It is backed by a SQLite database in WAL mode.
type Archive struct {
	db   *sql.DB
	path string
}

// ArchivedSet is one historical element set.
type ArchivedSet struct {
	Entry
	FirstSeen time.Time `json:"first_seen"`
}

// OpenArchive opens (creating if needed) the archive database at path.
func OpenArchive(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening archive database: %w", err)
	}

	a := &Archive{db: db, path: path}
	if err := a.initDB(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing archive database: %w", err)
	}
	return a, nil
}

func (a *Archive) initDB() error {
	_, err := a.db.Exec(`
		CREATE TABLE IF NOT EXISTS element_sets (
			norad_id INTEGER NOT NULL,
			epoch INTEGER NOT NULL,
			name TEXT NOT NULL,
			line1 TEXT NOT NULL,
			line2 TEXT NOT NULL,
			first_seen INTEGER NOT NULL,
			PRIMARY KEY (norad_id, epoch)
		)
	`)
	return err
}

// Path returns the database file path.
func (a *Archive) Path() string {
	return a.path
}

// Record stores entries not already archived and returns how many were new.
func (a *Archive) Record(ctx context.Context, entries []Entry, seenAt time.Time) (int, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning archive transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO element_sets (norad_id, epoch, name, line1, line2, first_seen)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing archive insert: %w", err)
	}
	defer stmt.Close()

	var inserted int
	for _, e := range entries {
		res, err := stmt.ExecContext(ctx, e.NORADID, e.Epoch.UnixNano(), e.Name, e.Line1, e.Line2, seenAt.Unix())
		if err != nil {
			return 0, fmt.Errorf("archiving NORAD %d: %w", e.NORADID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing archive transaction: %w", err)
	}
	return inserted, nil
}

// History returns up to limit archived sets for noradID, newest epoch first.
// A non-positive limit returns every set.
func (a *Archive) History(ctx context.Context, noradID, limit int) ([]ArchivedSet, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT norad_id, epoch, name, line1, line2, first_seen
		FROM element_sets
		WHERE norad_id = ?
		ORDER BY epoch DESC
		LIMIT ?
	`, noradID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying archive: %w", err)
	}
	defer rows.Close()

	var sets []ArchivedSet
	for rows.Next() {
		var (
			s         ArchivedSet
			epoch     int64
			firstSeen int64
		)
		if err := rows.Scan(&s.NORADID, &epoch, &s.Name, &s.Line1, &s.Line2, &firstSeen); err != nil {
			return nil, fmt.Errorf("scanning archive row: %w", err)
		}
		s.Epoch = time.Unix(0, epoch).UTC()
		s.FirstSeen = time.Unix(firstSeen, 0).UTC()
		sets = append(sets, s)
	}
	return sets, rows.Err()
}

// Count returns the number of archived element sets.
func (a *Archive) Count(ctx context.Context) (int, error) {
	var n int
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM element_sets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting archive rows: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}
