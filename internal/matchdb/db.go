// Package matchdb persists analysis runs in SQLite: per-frame track
// observations, bounce events, shots and coverage for the reporting layer.
package matchdb

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite handle used by all stores.
type DB struct {
	*sql.DB
}

// Open opens (or creates) the database at path and applies all pending
// migrations.
func Open(path string) (*DB, error) {
	handle, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := handle.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		handle.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	db := &DB{handle}
	if err := db.MigrateUp(); err != nil {
		handle.Close()
		return nil, err
	}
	return db, nil
}
