// Package catalog provides a SQLite-backed record of ingestion outcomes per
// image, used to skip unchanged files on incremental rebuilds and to report
// status. The catalog is bookkeeping around the embedding store, never the
// source of vectors.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Status values for a catalog entry.
const (
	StatusIndexed = "indexed"
	StatusFailed  = "failed"
	StatusStale   = "stale"
)

// Entry is the recorded ingestion outcome of one image file.
type Entry struct {
	Path        string
	Filename    string
	Status      string
	Error       string
	SizeBytes   int64
	ModTimeUnix int64
	IngestedAt  time.Time
}

// Catalog records per-image ingestion outcomes in SQLite.
type Catalog struct {
	db *sql.DB
}

// Open opens or creates the catalog database at dbPath and initializes the
// schema. Parent directories are created if they do not exist.
func Open(dbPath string) (*Catalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create catalog directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS images (
		path TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		size_bytes INTEGER NOT NULL,
		mod_time_unix INTEGER NOT NULL,
		ingested_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_images_status ON images(status);
	`
	_, err := db.Exec(schema)
	return err
}

// Record upserts the ingestion outcome for entry.Path.
func (c *Catalog) Record(ctx context.Context, entry *Entry) error {
	entry.IngestedAt = time.Now()
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO images (path, filename, status, error, size_bytes, mod_time_unix, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   filename = excluded.filename,
		   status = excluded.status,
		   error = excluded.error,
		   size_bytes = excluded.size_bytes,
		   mod_time_unix = excluded.mod_time_unix,
		   ingested_at = excluded.ingested_at`,
		entry.Path, entry.Filename, entry.Status, entry.Error,
		entry.SizeBytes, entry.ModTimeUnix, entry.IngestedAt,
	)
	return err
}

// Get returns the entry for path, or (nil, nil) if the path is unknown.
func (c *Catalog) Get(ctx context.Context, path string) (*Entry, error) {
	var e Entry
	err := c.db.QueryRowContext(ctx,
		`SELECT path, filename, status, error, size_bytes, mod_time_unix, ingested_at
		 FROM images WHERE path = ?`, path,
	).Scan(&e.Path, &e.Filename, &e.Status, &e.Error, &e.SizeBytes, &e.ModTimeUnix, &e.IngestedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// IsUnchanged reports whether path has an indexed entry matching the given
// size and modification time, meaning ingestion can skip it.
func (c *Catalog) IsUnchanged(ctx context.Context, path string, sizeBytes, modTimeUnix int64) (bool, error) {
	e, err := c.Get(ctx, path)
	if err != nil {
		return false, err
	}
	if e == nil || e.Status != StatusIndexed {
		return false, nil
	}
	return e.SizeBytes == sizeBytes && e.ModTimeUnix == modTimeUnix, nil
}

// MarkStale sets the entry's status to stale (e.g. the file was removed from
// the library). Stale entries are reconciled at the next full rebuild.
func (c *Catalog) MarkStale(ctx context.Context, path string) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE images SET status = ? WHERE path = ?`, StatusStale, path)
	return err
}

// CountByStatus returns entry counts keyed by status.
func (c *Catalog) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM images GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// Reset removes all entries. Used before a full rebuild.
func (c *Catalog) Reset(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM images`)
	return err
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}
