// Package blob persists generated binaries in a local sqlite database and
// hands out session-scoped ephemeral handles over them.
package blob

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"storyreel/internal/domain"
)

// StorageError wraps any failure of the underlying sqlite storage. The store
// never retries internally; retry policy belongs to the caller.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("blob: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

const schema = `
CREATE TABLE IF NOT EXISTS blobs (
	id         TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL
);`

// Store is a persistent keyed map from string id to binary payload, scoped
// to the local device.
type Store struct {
	conn   *sql.DB
	refs   *Registry
	logger zerolog.Logger
}

// Open creates or opens the blob database at dbPath. A single connection in
// WAL mode keeps concurrent writers from tripping over sqlite locking.
func Open(dbPath string, refs *Registry, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, &StorageError{Op: "ensure directory", Err: err}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, &StorageError{Op: "open database", Err: err}
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, &StorageError{Op: "ping database", Err: err}
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, &StorageError{Op: pragma, Err: err}
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, &StorageError{Op: "create schema", Err: err}
	}

	return &Store{conn: conn, refs: refs, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// Put upserts a payload under id and records a creation timestamp.
func (s *Store) Put(ctx context.Context, id string, data []byte) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO blobs (id, data, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, created_at = excluded.created_at`,
		id, data, time.Now().UTC())
	if err != nil {
		return &StorageError{Op: "put " + id, Err: err}
	}
	s.logger.Debug().Str("id", id).Int("bytes", len(data)).Msg("blob: stored")
	return nil
}

// Get returns the payload stored under id, or domain.ErrNotFound. A missing
// key is an expected outcome, not a storage failure.
func (s *Store) Get(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.conn.QueryRowContext(ctx, `SELECT data FROM blobs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, &StorageError{Op: "get " + id, Err: err}
	}
	return data, nil
}

// Delete removes id. Deleting a key that does not exist is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM blobs WHERE id = ?`, id); err != nil {
		return &StorageError{Op: "delete " + id, Err: err}
	}
	return nil
}

// Clear removes all entries. Used by full-reset flows.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM blobs`); err != nil {
		return &StorageError{Op: "clear", Err: err}
	}
	return nil
}

// ResolveEphemeral wraps the payload stored under id into a fresh ephemeral
// handle. The caller owns the handle and must release it when it is no
// longer needed. Returns domain.ErrNotFound when id is absent.
func (s *Store) ResolveEphemeral(ctx context.Context, id string) (*Handle, error) {
	data, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.refs.Wrap(data), nil
}

// VideoKey and ThumbnailKey derive the store ids used for a shot's media.
func VideoKey(shotIndex int) string { return fmt.Sprintf("video_%d", shotIndex) }

func ThumbnailKey(shotIndex int) string { return fmt.Sprintf("thumbnail_%d", shotIndex) }
