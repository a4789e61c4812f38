package session

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

const stateKey = "session"

// SQLiteBackend keeps the serialized state in a single row of an SQLite
// database. The upsert is atomic, so a failed write leaves the previous row
// untouched.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the state
// table exists. Use ":memory:" for an ephemeral database.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(10000)"
	if path == ":memory:" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS app_state (
        key TEXT PRIMARY KEY,
        value BLOB NOT NULL,
        updated_at DATETIME NOT NULL
    );`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Read() ([]byte, error) {
	var data []byte
	err := b.db.QueryRow(`SELECT value FROM app_state WHERE key = ?;`, stateKey).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state row: %w", err)
	}
	return data, nil
}

func (b *SQLiteBackend) Write(data []byte) error {
	_, err := b.db.Exec(`INSERT INTO app_state (key, value, updated_at) VALUES (?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;`,
		stateKey, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert state row: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
