// Package store implements the durable key-value layer backing every
// resumable crawler component. Data lives in a single SQLite database file
// partitioned into named buckets; components keep their live working sets in
// memory and mirror every committed mutation here.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Canonical bucket names. The crawl command and the report command must agree
// on these for the report to read what the crawl wrote.
const (
	BucketFrontier  = "frontier"
	BucketRobots    = "robots"
	BucketSimhash   = "simhash"
	BucketSkips     = "skips"
	BucketTokens    = "tokens"
	BucketMaxRecord = "max"
	BucketRuns      = "runs"
)

// Store wraps the SQLite database holding all crawl state.
//
// Design decision: one database file per crawl rather than one file per
// component. A single file keeps resume/restart handling in one place and
// lets the report command open everything with one handle.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Options configures Store behavior.
type Options struct {
	// Reset drops all persisted state after opening, used when the operator
	// requests a fresh crawl instead of a resume.
	Reset bool

	// EnableWAL enables Write-Ahead Logging. Recommended: the crawler has
	// many readers but SQLite serializes writers anyway.
	EnableWAL bool
}

// DefaultOptions returns the options used by a normal resumable crawl.
func DefaultOptions() Options {
	return Options{EnableWAL: true}
}

// Open opens or creates the crawl database under dir. A persistence failure
// here is fatal to the caller: the crawler cannot run without durable
// frontier state.
func Open(dir string, opts Options) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	dbPath := filepath.Join(dir, "crawl.db")

	db, err := sql.Open("sqlite", dbPath+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	// SQLite supports a single writer; funnel everything through one
	// connection so writes from concurrent workers queue instead of failing
	// with SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	if opts.Reset {
		if _, err := db.ExecContext(context.Background(), "DELETE FROM kv"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("reset store: %w", err)
		}
	}

	return s, nil
}

// Close releases the database handle. Callers must invoke it on every exit
// path; durable state is flushed explicitly, not by finalizers.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// Path returns the location of the database file.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		bucket TEXT NOT NULL,
		key    TEXT NOT NULL,
		value  TEXT NOT NULL,
		PRIMARY KEY (bucket, key)
	);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// Bucket returns a named partition of the store. Buckets are cheap handles;
// they share the underlying connection.
func (s *Store) Bucket(name string) *Bucket {
	return &Bucket{store: s, name: name}
}

// Sync forces a WAL checkpoint so all committed mutations reach the main
// database file. Individual Put/Delete calls are already transactional per
// key; Sync exists so components can bound the window a crash may replay.
func (s *Store) Sync(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)"); err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	return nil
}

// Bucket provides get/set/iterate/delete over one partition.
type Bucket struct {
	store *Store
	name  string
}

// Put inserts or overwrites the value for key.
func (b *Bucket) Put(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO kv (bucket, key, value) VALUES (?, ?, ?)
	ON CONFLICT(bucket, key) DO UPDATE SET value = excluded.value
	`
	if _, err := b.store.db.ExecContext(ctx, query, b.name, key, value); err != nil {
		return fmt.Errorf("put %s/%s: %w", b.name, key, err)
	}
	return nil
}

// Get returns the value for key and whether it exists.
func (b *Bucket) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := b.store.db.QueryRowContext(ctx,
		"SELECT value FROM kv WHERE bucket = ? AND key = ?", b.name, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s/%s: %w", b.name, key, err)
	}
	return value, true, nil
}

// Has reports whether key exists in the bucket.
func (b *Bucket) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := b.Get(ctx, key)
	return ok, err
}

// Delete removes key from the bucket. Deleting an absent key is a no-op.
func (b *Bucket) Delete(ctx context.Context, key string) error {
	if _, err := b.store.db.ExecContext(ctx,
		"DELETE FROM kv WHERE bucket = ? AND key = ?", b.name, key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", b.name, key, err)
	}
	return nil
}

// ForEach invokes fn for every key/value pair in the bucket. Iteration order
// is unspecified. A non-nil error from fn stops iteration and is returned.
func (b *Bucket) ForEach(ctx context.Context, fn func(key, value string) error) error {
	rows, err := b.store.db.QueryContext(ctx,
		"SELECT key, value FROM kv WHERE bucket = ?", b.name)
	if err != nil {
		return fmt.Errorf("iterate %s: %w", b.name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("scan %s: %w", b.name, err)
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Len returns the number of entries in the bucket.
func (b *Bucket) Len(ctx context.Context) (int, error) {
	var n int
	err := b.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM kv WHERE bucket = ?", b.name).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", b.name, err)
	}
	return n, nil
}
