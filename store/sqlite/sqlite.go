// Package sqlite provides a durable core.EntityStore backed by SQLite via
// the pure-Go modernc.org/sqlite driver. Records are stored as schema-less
// JSON documents keyed by (collection, id); equality filters are applied
// after decode since payload shapes are caller-defined.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/convogate/core"
)

const schema = `CREATE TABLE IF NOT EXISTS entities (
	collection   TEXT NOT NULL,
	id           TEXT NOT NULL,
	storage_type TEXT NOT NULL DEFAULT 'document',
	data         TEXT NOT NULL,
	updated_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (collection, id)
)`

// Store is a SQLite-backed entity store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dsn and prepares the schema.
// Use ":memory:" for an ephemeral database.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create entities table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Upsert inserts or replaces the document at (collection, id).
func (s *Store) Upsert(ctx context.Context, req core.UpsertRequest) error {
	data, err := json.Marshal(req.Data)
	if err != nil {
		return fmt.Errorf("encode record %s/%s: %w", req.Collection, req.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO entities (collection, id, storage_type, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			storage_type = excluded.storage_type,
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP`,
		req.Collection, req.ID, req.StorageType, string(data))
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", req.Collection, req.ID, err)
	}
	return nil
}

// Delete removes the document at (collection, id). Deleting an absent
// document is a no-op.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE collection = ? AND id = ?`, collection, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Query returns all documents in collection matching the top-level equality
// filter. A collection with no documents reports core.ErrStorageNotFound,
// mirroring a 404 from a remote document store; callers normalize that to an
// empty result.
func (s *Store) Query(ctx context.Context, collection string, filter map[string]any, storageType string) ([]core.EntityRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM entities WHERE collection = ?`, collection)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var out []core.EntityRecord
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		var rec core.EntityRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode record in %s: %w", collection, err)
		}
		if recordMatches(rec, filter) {
			out = append(out, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	if len(out) == 0 {
		var n int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities WHERE collection = ?`, collection).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", collection, err)
		}
		if n == 0 {
			return nil, core.ErrStorageNotFound
		}
	}
	return out, nil
}

func recordMatches(rec core.EntityRecord, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := rec[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
