package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const currentSchemaVersion = 1

func OpenDB(dbPath string) (*sql.DB, error) {
	parentDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		return nil, fmt.Errorf("creating parent directories: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if err := migrateSchema(db, dbPath); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func schemaVersion(db *sql.DB) (int, error) {
	var tableName string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("checking schema_version table: %w", err)
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

func migrateSchema(db *sql.DB, dbPath string) error {
	currentVersion, err := schemaVersion(db)
	if err != nil {
		return err
	}

	if currentVersion > currentSchemaVersion {
		return fmt.Errorf(
			"database schema version %d is newer than this fleetwatch version supports (max: %d); upgrade fleetwatch or delete %s to start fresh",
			currentVersion, currentSchemaVersion, dbPath,
		)
	}

	if currentVersion == 0 {
		if err := migrateV0ToV1(db); err != nil {
			return fmt.Errorf("applying migrations: migration v0→v1: %w", err)
		}
	}

	return nil
}

var v1Statements = []struct {
	name string
	sql  string
}{
	{"schema_version table", `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)`},
	{"schema version row", "INSERT INTO schema_version (version) VALUES (1)"},
	// ts is the wire timestamp as received; ts_ms is its parsed value, or
	// the receive time when ts does not parse, and drives ordering and
	// retention.
	{"events table", `
		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			device TEXT NOT NULL,
			kind TEXT NOT NULL,
			ts TEXT NOT NULL,
			ts_ms INTEGER NOT NULL,
			message TEXT,
			payload TEXT,
			received_at TEXT NOT NULL
		)`},
	{"devices table", `
		CREATE TABLE IF NOT EXISTS devices (
			device TEXT PRIMARY KEY,
			first_seen_ms INTEGER NOT NULL,
			last_seen_ms INTEGER NOT NULL,
			event_count INTEGER NOT NULL DEFAULT 0
		)`},
	{"daily_counts table", `
		CREATE TABLE IF NOT EXISTS daily_counts (
			date TEXT NOT NULL,
			device TEXT NOT NULL,
			kind TEXT NOT NULL,
			count INTEGER NOT NULL,
			PRIMARY KEY (date, device, kind)
		)`},
	{"idx_events_device", "CREATE INDEX IF NOT EXISTS idx_events_device ON events(device, ts_ms)"},
	{"idx_events_ts", "CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts_ms)"},
	{"idx_daily_date", "CREATE INDEX IF NOT EXISTS idx_daily_date ON daily_counts(date)"},
}

func migrateV0ToV1(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range v1Statements {
		if _, err := tx.Exec(stmt.sql); err != nil {
			return fmt.Errorf("creating %s: %w", stmt.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
