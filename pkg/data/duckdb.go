// Package data persists sync observability state: a history of sync
// cycles and the manifest hash recorded for each downloaded file.
package data

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/mebx/contentsync/pkg/content"
)

// InitDuckDB opens (creating if needed) the DuckDB database at path.
func InitDuckDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Repository wraps the database with the queries the syncer needs.
type Repository struct {
	db *sql.DB
}

// NewRepository creates the schema if needed and returns a Repository.
func NewRepository(db *sql.DB) (*Repository, error) {
	schema := []string{
		`CREATE SEQUENCE IF NOT EXISTS sync_cycle_id START 1`,
		`CREATE TABLE IF NOT EXISTS sync_cycles (
			id BIGINT PRIMARY KEY DEFAULT nextval('sync_cycle_id'),
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			"trigger" VARCHAR NOT NULL,
			fetched INTEGER NOT NULL,
			skipped_exists INTEGER NOT NULL,
			skipped_deleted INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			error VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS file_hashes (
			category VARCHAR NOT NULL,
			name VARCHAR NOT NULL,
			hash VARCHAR NOT NULL,
			downloaded_at TIMESTAMP NOT NULL,
			PRIMARY KEY (category, name)
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	return &Repository{db: db}, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// RecordCycle appends one finished sync pass to the history.
func (r *Repository) RecordCycle(c *CycleRecord) error {
	var errMsg sql.NullString
	if c.Error != "" {
		errMsg = sql.NullString{String: c.Error, Valid: true}
	}
	_, err := r.db.Exec(
		`INSERT INTO sync_cycles
			(started_at, finished_at, "trigger", fetched, skipped_exists, skipped_deleted, failed, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.StartedAt, c.FinishedAt, c.Trigger,
		c.Fetched, c.SkippedExists, c.SkippedDeleted, c.Failed, errMsg,
	)
	if err != nil {
		return fmt.Errorf("recording sync cycle: %w", err)
	}
	return nil
}

// LastCycle returns the most recent sync pass, or nil when none exists.
func (r *Repository) LastCycle() (*CycleRecord, error) {
	return r.scanCycle(r.db.QueryRow(
		`SELECT started_at, finished_at, "trigger", fetched, skipped_exists, skipped_deleted, failed, error
		 FROM sync_cycles ORDER BY id DESC LIMIT 1`))
}

// LastSuccessfulCycle returns the most recent pass that finished
// without a catalog-level error.
func (r *Repository) LastSuccessfulCycle() (*CycleRecord, error) {
	return r.scanCycle(r.db.QueryRow(
		`SELECT started_at, finished_at, "trigger", fetched, skipped_exists, skipped_deleted, failed, error
		 FROM sync_cycles WHERE error IS NULL ORDER BY id DESC LIMIT 1`))
}

func (r *Repository) scanCycle(row *sql.Row) (*CycleRecord, error) {
	var c CycleRecord
	var errMsg sql.NullString
	err := row.Scan(&c.StartedAt, &c.FinishedAt, &c.Trigger,
		&c.Fetched, &c.SkippedExists, &c.SkippedDeleted, &c.Failed, &errMsg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading sync history: %w", err)
	}
	c.Error = errMsg.String
	return &c, nil
}

// RecordHash stores the manifest hash observed when a file was
// downloaded, replacing any previous entry.
func (r *Repository) RecordHash(cat content.Category, name, hash string) error {
	_, err := r.db.Exec(
		`INSERT OR REPLACE INTO file_hashes (category, name, hash, downloaded_at)
		 VALUES (?, ?, ?, now())`,
		string(cat), name, hash,
	)
	if err != nil {
		return fmt.Errorf("recording file hash: %w", err)
	}
	return nil
}

// GetHash returns the recorded manifest hash for a file, if any.
func (r *Repository) GetHash(cat content.Category, name string) (string, bool, error) {
	row := r.db.QueryRow(
		`SELECT hash FROM file_hashes WHERE category = ? AND name = ?`,
		string(cat), name,
	)
	var hash string
	err := row.Scan(&hash)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading file hash: %w", err)
	}
	return hash, true, nil
}
