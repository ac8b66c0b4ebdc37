// Package storage implements the durable bundle stores for both protocol
// sides on SQLite: the client's private key bundle and the server's
// registry of client public bundles. The two logical schemas share the
// typed key table layout but live in separate database files.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrNoClient           = errors.New("no client in storage")
	ErrClientNotFound     = errors.New("client not found")
	ErrClientExists       = errors.New("client already exists")
	ErrIncompatibleSchema = errors.New("incompatible schema version")
	ErrBadKeyRow          = errors.New("malformed key row")
)

const (
	clientSchemaVersion = 1
	serverSchemaVersion = 1
)

// openDatabase opens (creating if needed) the SQLite file for one store.
// A single connection is kept so that multi-statement transactions are
// serialized; callers on multiple goroutines share it safely.
func openDatabase(rootPath, applicationName string) (*sql.DB, error) {
	dbPath := filepath.Join(rootPath, fmt.Sprintf("db_%s.sqlite", applicationName))

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// initSchema creates the schema on a fresh database or validates the
// recorded version on an existing one.
func initSchema(db *sql.DB, schema string, expectedVersion int) error {
	var tableName string
	hasTables := true
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' LIMIT 1").Scan(&tableName)
	if errors.Is(err, sql.ErrNoRows) {
		hasTables = false
	} else if err != nil {
		return err
	}

	if !hasTables {
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", expectedVersion)); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
		return nil
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version != expectedVersion {
		return fmt.Errorf("%w: found %d, expected %d", ErrIncompatibleSchema, version, expectedVersion)
	}
	return nil
}
