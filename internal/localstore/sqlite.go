package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// schema runs on open to ensure the table exists.
const schema = `
CREATE TABLE IF NOT EXISTS entries (
    owner_id TEXT NOT NULL,
    key      TEXT NOT NULL,
    value    TEXT NOT NULL,
    PRIMARY KEY (owner_id, key)
);
`

// Sqlite implements Store on a local SQLite file.
type Sqlite struct {
	db *sql.DB
}

var _ Store = (*Sqlite)(nil)

// OpenSqlite opens (creating if needed) the store at the given path.
func OpenSqlite(path string) (*Sqlite, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply storage schema: %w", err)
	}
	return &Sqlite{db: db}, nil
}

// Close closes the underlying database.
func (s *Sqlite) Close() error { return s.db.Close() }

func (s *Sqlite) Get(ctx context.Context, owner, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM entries WHERE owner_id = ? AND key = ?`, owner, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoEntry
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *Sqlite) Set(ctx context.Context, owner, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (owner_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT (owner_id, key) DO UPDATE SET value = excluded.value
	`, owner, key, value)
	return err
}

func (s *Sqlite) Delete(ctx context.Context, owner, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM entries WHERE owner_id = ? AND key = ?`, owner, key)
	return err
}
