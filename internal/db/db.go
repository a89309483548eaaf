// Package db provides the SQLite connection and schema for dimmerd.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
}

// Open opens the database and initializes the schema
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db}, nil
}

// initSchema creates all required tables
func initSchema(db *sql.DB) error {
	// Audit log - append-only record of reasoned brightness/CCT changes
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			axis TEXT NOT NULL,
			reason TEXT NOT NULL,
			value REAL NOT NULL,
			transition INTEGER NOT NULL DEFAULT 0,
			transition_ms INTEGER NOT NULL DEFAULT 0,
			task_id TEXT,
			timestamp INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_audit_axis_ts ON audit_log(axis, timestamp);
		CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_log(timestamp);
	`)
	if err != nil {
		return fmt.Errorf("failed to create audit_log table: %w", err)
	}

	// Documents - generic JSON documents keyed by (kind, id), used for settings
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			kind TEXT NOT NULL,
			id TEXT NOT NULL,
			payload TEXT NOT NULL,
			version INTEGER DEFAULT 1,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (kind, id)
		);
		CREATE INDEX IF NOT EXISTS idx_documents_kind ON documents(kind);
	`)
	if err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
