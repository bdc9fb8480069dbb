// Package store keeps a local sqlite journal of download runs: what was
// scheduled, what landed on disk and which segments failed.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type Journal struct {
	db *sql.DB
}

func Open(dbPath string) (*Journal, error) {
	dbDir := filepath.Dir(dbPath)

	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Ping makes sure the file is actually accessible and the DSN is valid
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	j := &Journal{db: db}

	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not migrate journal: %w", err)
	}

	return j, nil
}

// migrate creates the schema in place. Two tables don't warrant a migration
// framework.
func (j *Journal) migrate() error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			playlist    TEXT NOT NULL,
			base_url    TEXT NOT NULL,
			dest        TEXT NOT NULL,
			status      TEXT NOT NULL,
			scheduled   INTEGER NOT NULL DEFAULT 0,
			written     INTEGER NOT NULL DEFAULT 0,
			skipped     INTEGER NOT NULL DEFAULT 0,
			failed      INTEGER NOT NULL DEFAULT 0,
			error       TEXT NOT NULL DEFAULT '',
			started_at  TIMESTAMP NOT NULL,
			finished_at TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS run_failures (
			run_id  TEXT NOT NULL REFERENCES runs(id),
			segment TEXT NOT NULL,
			error   TEXT NOT NULL DEFAULT ''
		);
	`)
	return err
}

func (j *Journal) Close() error {
	return j.db.Close()
}
