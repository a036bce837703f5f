// Package sqlitestore persists state snapshots in a SQLite database through
// the pure-Go modernc.org/sqlite driver. Snapshots are stored as JSON.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/goliatone/go-tracking/pkg/state"
	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS snapshots (
	ref         TEXT PRIMARY KEY,
	payload     BLOB NOT NULL,
	snapshot_id TEXT NOT NULL DEFAULT '',
	etag        TEXT NOT NULL DEFAULT '',
	extra       TEXT NOT NULL DEFAULT '',
	updated_at  INTEGER NOT NULL DEFAULT 0
)`

// Store is a state.Store backed by one SQLite table.
type Store[T any] struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema exists.
func Open[T any](path string) (*Store[T], error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlitestore: path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}
	store, err := New[T](db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an existing handle and ensures the schema exists.
func New[T any](db *sql.DB) (*Store[T], error) {
	if db == nil {
		return nil, fmt.Errorf("sqlitestore: db is required")
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("sqlitestore: ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("sqlitestore: migrate: %w", err)
	}
	return &Store[T]{db: db}, nil
}

// Close closes the underlying handle.
func (s *Store[T]) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load implements state.Store.
func (s *Store[T]) Load(ctx context.Context, ref state.Ref) (T, state.Meta, bool, error) {
	var zero T
	key, err := ref.Identifier()
	if err != nil {
		return zero, state.Meta{}, false, err
	}

	var (
		payload []byte
		extra   string
		updated int64
		meta    state.Meta
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT payload, snapshot_id, etag, extra, updated_at FROM snapshots WHERE ref = ?`, key)
	if err := row.Scan(&payload, &meta.SnapshotID, &meta.ETag, &extra, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, state.Meta{}, false, nil
		}
		return zero, state.Meta{}, false, fmt.Errorf("sqlitestore: load %s: %w", key, err)
	}

	var snapshot T
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return zero, state.Meta{}, false, fmt.Errorf("sqlitestore: decode %s: %w", key, err)
	}
	if extra != "" {
		if err := json.Unmarshal([]byte(extra), &meta.Extra); err != nil {
			return zero, state.Meta{}, false, fmt.Errorf("sqlitestore: decode meta %s: %w", key, err)
		}
	}
	if updated > 0 {
		meta.UpdatedAt = time.UnixMilli(updated).UTC()
	}
	return snapshot, meta, true, nil
}

// Save implements state.Store, replacing any snapshot stored under ref.
func (s *Store[T]) Save(ctx context.Context, ref state.Ref, snapshot T, meta state.Meta) (state.Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return state.Meta{}, err
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return state.Meta{}, fmt.Errorf("sqlitestore: encode %s: %w", key, err)
	}
	extra := ""
	if len(meta.Extra) > 0 {
		raw, err := json.Marshal(meta.Extra)
		if err != nil {
			return state.Meta{}, fmt.Errorf("sqlitestore: encode meta %s: %w", key, err)
		}
		extra = string(raw)
	}
	var updated int64
	if !meta.UpdatedAt.IsZero() {
		meta.UpdatedAt = meta.UpdatedAt.UTC().Truncate(time.Millisecond)
		updated = meta.UpdatedAt.UnixMilli()
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO snapshots (ref, payload, snapshot_id, etag, extra, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(ref) DO UPDATE SET
	payload = excluded.payload,
	snapshot_id = excluded.snapshot_id,
	etag = excluded.etag,
	extra = excluded.extra,
	updated_at = excluded.updated_at`,
		key, payload, meta.SnapshotID, meta.ETag, extra, updated)
	if err != nil {
		return state.Meta{}, fmt.Errorf("sqlitestore: save %s: %w", key, err)
	}
	return meta, nil
}

// Delete removes the snapshot stored under ref.
func (s *Store[T]) Delete(ctx context.Context, ref state.Ref) error {
	key, err := ref.Identifier()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE ref = ?`, key); err != nil {
		return fmt.Errorf("sqlitestore: delete %s: %w", key, err)
	}
	return nil
}
