// Package sqlite provides a SQLite-backed session store using the
// github.com/mattn/go-sqlite3 driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/weave/pkg/kvstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	data       BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions (updated_at);
`

// Driver implements kvstore.Driver backed by a SQLite database.
type Driver struct {
	db *sql.DB
}

// NewDriver creates a new SQLite-backed session store.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(dbPath string) (*Driver, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{db: db}, nil
}

// Put upserts a record by id. CreatedAt is preserved on conflict.
func (s *Driver) Put(ctx context.Context, rec kvstore.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			data = excluded.data,
			updated_at = excluded.updated_at
	`, rec.ID, rec.Name, rec.Data, rec.CreatedAt.UTC(), rec.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upserting session %s: %w", rec.ID, err)
	}
	return nil
}

// Get retrieves a record by its id.
func (s *Driver) Get(ctx context.Context, id string) (kvstore.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, data, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id)

	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return kvstore.Record{}, kvstore.NotFoundError{ID: id}
	}
	if err != nil {
		return kvstore.Record{}, fmt.Errorf("getting session %s: %w", id, err)
	}
	return rec, nil
}

// List returns all records, most recently updated first.
func (s *Driver) List(ctx context.Context) ([]kvstore.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, data, created_at, updated_at
		FROM sessions ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var records []kvstore.Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session rows: %w", err)
	}
	return records, nil
}

// Delete removes a record by id.
func (s *Driver) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	if affected == 0 {
		return kvstore.NotFoundError{ID: id}
	}
	return nil
}

// Close closes the underlying database.
func (s *Driver) Close() error {
	return s.db.Close()
}

func scanRecord(scan func(dest ...any) error) (kvstore.Record, error) {
	var (
		rec       kvstore.Record
		createdAt time.Time
		updatedAt time.Time
	)
	if err := scan(&rec.ID, &rec.Name, &rec.Data, &createdAt, &updatedAt); err != nil {
		return kvstore.Record{}, err
	}
	rec.CreatedAt = createdAt
	rec.UpdatedAt = updatedAt
	return rec, nil
}
