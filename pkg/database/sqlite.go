package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/noah-isme/fieldsync/pkg/config"
)

// NewSQLite opens the embedded local store that backs the outbox and the
// entity cache. WAL mode keeps writers from blocking the sync worker's reads.
func NewSQLite(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on",
		cfg.Path,
		cfg.BusyTimeout.Milliseconds(),
	)

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	// SQLite allows a single writer; a larger pool only produces SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate creates the local tables. Statements are idempotent so repeated
// startups are safe.
func Migrate(db *sqlx.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS surveys (
			id TEXT PRIMARY KEY,
			definition TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS locations_of_interest (
			id TEXT PRIMARY KEY,
			survey_id TEXT NOT NULL,
			job_id TEXT NOT NULL,
			document TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS submissions (
			id TEXT PRIMARY KEY,
			survey_id TEXT NOT NULL,
			location_of_interest_id TEXT NOT NULL,
			job_id TEXT NOT NULL,
			document TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_loi ON submissions (location_of_interest_id)`,
		`CREATE TABLE IF NOT EXISTS submission_mutations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			survey_id TEXT NOT NULL,
			location_of_interest_id TEXT NOT NULL,
			job_id TEXT NOT NULL,
			submission_id TEXT NOT NULL,
			type TEXT NOT NULL,
			sync_status TEXT NOT NULL DEFAULT 'PENDING',
			response_deltas TEXT,
			retry_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			user_id TEXT,
			client_timestamp INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_submission_mutations_loi ON submission_mutations (location_of_interest_id)`,
		`CREATE INDEX IF NOT EXISTS idx_submission_mutations_submission ON submission_mutations (submission_id)`,
		`CREATE INDEX IF NOT EXISTS idx_submission_mutations_status ON submission_mutations (sync_status)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate local store: %w", err)
		}
	}
	return nil
}
