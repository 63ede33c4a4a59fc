package storage

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the version written by InitDB.
const SchemaVersion = 1

// Pragmas are appended to the SQLite DSN when opening the preference database.
const Pragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

// DSN builds the modernc.org/sqlite data source name for path.
// ":memory:" is passed through untouched.
func DSN(path string) string {
	if path == ":memory:" {
		return path
	}
	return "file:" + path + "?" + Pragmas
}

// InitDB initializes the database schema.
// PRE: db is a valid database connection
// POST: preference and schema_version tables exist; schema_version holds SchemaVersion
func InitDB(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS preference (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if count == 0 {
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", SchemaVersion); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
	}
	return nil
}

// CurrentVersion returns the schema version recorded in db.
// PRE: InitDB has run
// POST: Returns the stored version or an error
func CurrentVersion(db *sql.DB) (int, error) {
	var v int
	err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	return v, err
}
