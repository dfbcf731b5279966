// Package persistence provides SQLite-backed storage for preferences and
// cross-session progress. Each logical record is a JSON blob under a fixed
// key; saves overwrite the whole record.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound means no record has been written under the key yet.
	ErrNotFound = errors.New("record not found")
	// ErrCorrupt means a record exists but cannot be decoded.
	ErrCorrupt = errors.New("record corrupt")
)

// DB wraps a SQLite connection for record storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path and applies migrations.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Single writer; every save is a synchronous whole-record overwrite.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// GetRecord retrieves the raw value stored under key.
func (db *DB) GetRecord(ctx context.Context, key string) (string, error) {
	var value string
	err := db.conn.GetContext(ctx, &value, "SELECT value FROM records WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get record %s: %w", key, err)
	}
	return value, nil
}

// PutRecord stores value under key, replacing any previous value.
func (db *DB) PutRecord(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO records (key, value, updated_at) VALUES (?, ?, ?)",
		key, value, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put record %s: %w", key, err)
	}
	return nil
}

// DeleteRecord removes key. Deleting a missing key is not an error.
func (db *DB) DeleteRecord(ctx context.Context, key string) error {
	if _, err := db.conn.ExecContext(ctx, "DELETE FROM records WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete record %s: %w", key, err)
	}
	return nil
}
