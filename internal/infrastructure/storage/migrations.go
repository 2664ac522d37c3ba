package storage

import (
	"database/sql"
	"fmt"
)

// Migration represents a database schema migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "workflow_runs_and_phase_log",
		Up:      migration001RunsAndPhaseLog,
	},
	{
		Version: 2,
		Name:    "event_coverage",
		Up:      migration002EventCoverage,
	},
	{
		Version: 3,
		Name:    "arbitrated_matches_and_reports",
		Up:      migration003MatchesAndReports,
	},
}

// runMigrations executes all pending migrations
func (s *Storage) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec(
			`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`,
			migration.Version, migration.Name,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func (s *Storage) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	return err
}

func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func migration001RunsAndPhaseLog(tx *sql.Tx) error {
	if _, err := tx.Exec(`
	CREATE TABLE workflow_runs (
		run_id TEXT PRIMARY KEY,
		current_phase TEXT NOT NULL,
		overall_status TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		phase_history_json TEXT NOT NULL DEFAULT '[]',
		events_total INTEGER NOT NULL DEFAULT 0,
		events_ready INTEGER NOT NULL DEFAULT 0,
		expenses_total INTEGER NOT NULL DEFAULT 0,
		matches_high INTEGER NOT NULL DEFAULT 0,
		matches_medium INTEGER NOT NULL DEFAULT 0,
		matches_low INTEGER NOT NULL DEFAULT 0,
		reports_written INTEGER NOT NULL DEFAULT 0
	)`); err != nil {
		return err
	}

	_, err := tx.Exec(`
	CREATE TABLE phase_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		phase TEXT NOT NULL,
		status TEXT NOT NULL,
		attempt INTEGER NOT NULL DEFAULT 1,
		message TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`CREATE INDEX idx_phase_log_run ON phase_log(run_id)`)
	return err
}

func migration002EventCoverage(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE TABLE event_coverage (
		run_id TEXT NOT NULL,
		event_id TEXT NOT NULL,
		has_ledger_a INTEGER NOT NULL,
		has_ledger_b INTEGER NOT NULL,
		ledger_a_count INTEGER NOT NULL DEFAULT 0,
		ledger_b_count INTEGER NOT NULL DEFAULT 0,
		ledger_a_total REAL NOT NULL DEFAULT 0,
		ledger_b_total REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, event_id)
	)`)
	return err
}

func migration003MatchesAndReports(tx *sql.Tx) error {
	if _, err := tx.Exec(`
	CREATE TABLE arbitrated_matches (
		run_id TEXT NOT NULL,
		event_id TEXT NOT NULL,
		expense_id TEXT NOT NULL,
		ledger_a_json TEXT,
		ledger_b_json TEXT,
		overall_confidence REAL NOT NULL,
		classification TEXT NOT NULL,
		notes_json TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (run_id, expense_id)
	)`); err != nil {
		return err
	}

	_, err := tx.Exec(`
	CREATE TABLE event_reports (
		run_id TEXT NOT NULL,
		event_id TEXT NOT NULL,
		report_json TEXT NOT NULL,
		PRIMARY KEY (run_id, event_id)
	)`)
	return err
}
