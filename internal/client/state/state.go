// Package state persists the sync engine's local knowledge of the last
// committed manifest and a best-effort merge-base content cache, in a
// client-local sqlite database. Adapted from the reference
// architecture's sqlite bootstrap (internal/db), reused verbatim for
// connection setup and pragmas, with a schema of our own.
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vaultsync/vaultsync/internal/db"
	"github.com/vaultsync/vaultsync/internal/vaultmodel"
)

const schema = `
CREATE TABLE IF NOT EXISTS sync_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	base_manifest TEXT NOT NULL,
	last_etag TEXT,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS merge_base_cache (
	path TEXT PRIMARY KEY,
	hash TEXT NOT NULL,
	content BLOB NOT NULL,
	cached_at TIMESTAMP NOT NULL
);
`

// mergeCacheLimit bounds merge_base_cache to its most recently used
// entries; it is a best-effort accelerator for three-way merge, never a
// protocol guarantee (an evicted entry just means the merge falls back
// to conflict markers instead of a clean patch).
const mergeCacheLimit = 500

// Store persists sync engine state across process restarts.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// ensures its schema exists. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	conn, err := db.NewSqliteDB(db.WithPath(path))
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate state db: %w", err)
	}
	return &Store{db: conn}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadBase returns the last-committed base manifest and its ETag. If no
// state has ever been persisted, returns an empty manifest and an empty
// ETag.
func (s *Store) LoadBase(ctx context.Context) (*vaultmodel.SyncManifest, string, error) {
	var row struct {
		BaseManifest string `db:"base_manifest"`
		LastETag     string `db:"last_etag"`
	}

	err := s.db.GetContext(ctx, &row, `SELECT base_manifest, last_etag FROM sync_state WHERE id = 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return vaultmodel.NewManifest(), "", nil
		}
		return nil, "", fmt.Errorf("load base manifest: %w", err)
	}

	manifest := vaultmodel.NewManifest()
	if err := json.Unmarshal([]byte(row.BaseManifest), manifest); err != nil {
		return nil, "", fmt.Errorf("decode base manifest: %w", err)
	}

	return manifest, row.LastETag, nil
}

// SaveBase persists the new base manifest and ETag as a single atomic
// upsert of the singleton row.
func (s *Store) SaveBase(ctx context.Context, manifest *vaultmodel.SyncManifest, etag string) error {
	body, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encode base manifest: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sync_state (id, base_manifest, last_etag, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			base_manifest = excluded.base_manifest,
			last_etag = excluded.last_etag,
			updated_at = excluded.updated_at
	`, string(body), etag, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save base manifest: %w", err)
	}

	return nil
}

// PutMergeBase caches path's content at the hash it had when last
// observed in the base manifest, for use as the "base" side of a future
// three-way merge.
func (s *Store) PutMergeBase(ctx context.Context, path, hash string, content []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO merge_base_cache (path, hash, content, cached_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			hash = excluded.hash,
			content = excluded.content,
			cached_at = excluded.cached_at
	`, path, hash, content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("cache merge base: %w", err)
	}

	return s.evictOldMergeBaseEntries(ctx)
}

// GetMergeBase returns the cached base content for path if it matches
// expectedHash, or ok=false if there is no usable cache entry.
func (s *Store) GetMergeBase(ctx context.Context, path, expectedHash string) (content []byte, ok bool, err error) {
	var row struct {
		Hash    string `db:"hash"`
		Content []byte `db:"content"`
	}

	err = s.db.GetContext(ctx, &row, `SELECT hash, content FROM merge_base_cache WHERE path = ?`, path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load merge base: %w", err)
	}

	if row.Hash != expectedHash {
		return nil, false, nil
	}

	return row.Content, true, nil
}

func (s *Store) evictOldMergeBaseEntries(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM merge_base_cache
		WHERE path NOT IN (
			SELECT path FROM merge_base_cache ORDER BY cached_at DESC LIMIT ?
		)
	`, mergeCacheLimit)
	if err != nil {
		return fmt.Errorf("evict merge base cache: %w", err)
	}
	return nil
}
