package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain"
)

// Storage provides SQLite database access for reconciliation state.
// It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}

	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveRun inserts or replaces a workflow run snapshot
func (s *Storage) SaveRun(run *WorkflowRun) error {
	history, err := run.historyJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal phase history: %w", err)
	}

	query := `
	INSERT OR REPLACE INTO workflow_runs
	(run_id, current_phase, overall_status, started_at, completed_at,
	 phase_history_json, events_total, events_ready, expenses_total,
	 matches_high, matches_medium, matches_low, reports_written)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		run.RunID,
		run.CurrentPhase,
		run.OverallStatus,
		run.StartedAt,
		run.CompletedAt,
		history,
		run.EventsTotal,
		run.EventsReady,
		run.ExpensesTotal,
		run.MatchesHigh,
		run.MatchesMedium,
		run.MatchesLow,
		run.ReportsWritten,
	)
	return err
}

// GetRun retrieves a run by ID. Returns nil, nil when the run does not exist.
func (s *Storage) GetRun(runID string) (*WorkflowRun, error) {
	query := `
	SELECT run_id, current_phase, overall_status, started_at, completed_at,
	       phase_history_json, events_total, events_ready, expenses_total,
	       matches_high, matches_medium, matches_low, reports_written
	FROM workflow_runs WHERE run_id = ?
	`

	run, err := scanRun(s.db.QueryRow(query, runID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// ListRuns returns the most recent runs, optionally filtered by status.
func (s *Storage) ListRuns(status string, limit int) ([]*WorkflowRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
	SELECT run_id, current_phase, overall_status, started_at, completed_at,
	       phase_history_json, events_total, events_ready, expenses_total,
	       matches_high, matches_medium, matches_low, reports_written
	FROM workflow_runs
	`
	args := []any{}
	if status != "" {
		query += ` WHERE overall_status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []*WorkflowRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*WorkflowRun, error) {
	run := &WorkflowRun{}
	var history string
	err := row.Scan(
		&run.RunID,
		&run.CurrentPhase,
		&run.OverallStatus,
		&run.StartedAt,
		&run.CompletedAt,
		&history,
		&run.EventsTotal,
		&run.EventsReady,
		&run.ExpensesTotal,
		&run.MatchesHigh,
		&run.MatchesMedium,
		&run.MatchesLow,
		&run.ReportsWritten,
	)
	if err != nil {
		return nil, err
	}
	if history != "" {
		if err := json.Unmarshal([]byte(history), &run.PhaseHistory); err != nil {
			return nil, fmt.Errorf("failed to unmarshal phase history for run %s: %w", run.RunID, err)
		}
	}
	return run, nil
}

// AppendPhaseLog appends one audit log entry. Entries without a timestamp
// are stamped at insert time.
func (s *Storage) AppendPhaseLog(entry *PhaseLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	query := `
	INSERT INTO phase_log (run_id, phase, status, attempt, message, error, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.Exec(query,
		entry.RunID,
		entry.Phase,
		entry.Status,
		entry.Attempt,
		entry.Message,
		entry.Error,
		entry.CreatedAt,
	)
	if err != nil {
		return err
	}
	entry.ID, _ = result.LastInsertId()
	return nil
}

// ListPhaseLog returns all log entries for a run in append order
func (s *Storage) ListPhaseLog(runID string) ([]PhaseLogEntry, error) {
	query := `
	SELECT id, run_id, phase, status, attempt, message, error, created_at
	FROM phase_log WHERE run_id = ? ORDER BY id ASC
	`
	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []PhaseLogEntry
	for rows.Next() {
		var e PhaseLogEntry
		if err := rows.Scan(&e.ID, &e.RunID, &e.Phase, &e.Status, &e.Attempt, &e.Message, &e.Error, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ReplaceEventCoverage replaces all coverage rows for a run
func (s *Storage) ReplaceEventCoverage(runID string, coverage []domain.EventCoverage) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM event_coverage WHERE run_id = ?`, runID); err != nil {
		_ = tx.Rollback()
		return err
	}

	query := `
	INSERT INTO event_coverage
	(run_id, event_id, has_ledger_a, has_ledger_b,
	 ledger_a_count, ledger_b_count, ledger_a_total, ledger_b_total)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, cov := range coverage {
		if _, err := tx.Exec(query,
			runID,
			cov.EventID,
			cov.HasLedgerA,
			cov.HasLedgerB,
			cov.LedgerACount,
			cov.LedgerBCount,
			cov.LedgerATotal,
			cov.LedgerBTotal,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// ListEventCoverage returns coverage rows for a run, ordered by event ID
func (s *Storage) ListEventCoverage(runID string) ([]domain.EventCoverage, error) {
	query := `
	SELECT event_id, has_ledger_a, has_ledger_b,
	       ledger_a_count, ledger_b_count, ledger_a_total, ledger_b_total
	FROM event_coverage WHERE run_id = ? ORDER BY event_id ASC
	`
	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var coverage []domain.EventCoverage
	for rows.Next() {
		var cov domain.EventCoverage
		if err := rows.Scan(
			&cov.EventID,
			&cov.HasLedgerA,
			&cov.HasLedgerB,
			&cov.LedgerACount,
			&cov.LedgerBCount,
			&cov.LedgerATotal,
			&cov.LedgerBTotal,
		); err != nil {
			return nil, err
		}
		coverage = append(coverage, cov)
	}
	return coverage, rows.Err()
}

// ReplaceMatches replaces the arbitrated match set for (run, event)
func (s *Storage) ReplaceMatches(runID, eventID string, matches []domain.ArbitratedMatch) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(
		`DELETE FROM arbitrated_matches WHERE run_id = ? AND event_id = ?`,
		runID, eventID,
	); err != nil {
		_ = tx.Rollback()
		return err
	}

	query := `
	INSERT INTO arbitrated_matches
	(run_id, event_id, expense_id, ledger_a_json, ledger_b_json,
	 overall_confidence, classification, notes_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, m := range matches {
		ledgerA, err := marshalCandidate(m.LedgerAMatch)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		ledgerB, err := marshalCandidate(m.LedgerBMatch)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		notes, err := json.Marshal(m.ConsistencyNotes)
		if err != nil {
			_ = tx.Rollback()
			return err
		}

		if _, err := tx.Exec(query,
			runID,
			m.EventID,
			m.ExpenseID,
			ledgerA,
			ledgerB,
			m.OverallConfidence,
			string(m.Classification),
			string(notes),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// ListMatches returns arbitrated matches for a run, optionally filtered by event
func (s *Storage) ListMatches(runID, eventID string) ([]domain.ArbitratedMatch, error) {
	query := `
	SELECT event_id, expense_id, ledger_a_json, ledger_b_json,
	       overall_confidence, classification, notes_json
	FROM arbitrated_matches WHERE run_id = ?
	`
	args := []any{runID}
	if eventID != "" {
		query += ` AND event_id = ?`
		args = append(args, eventID)
	}
	query += ` ORDER BY event_id ASC, expense_id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var matches []domain.ArbitratedMatch
	for rows.Next() {
		var m domain.ArbitratedMatch
		var ledgerA, ledgerB sql.NullString
		var classification, notes string
		if err := rows.Scan(
			&m.EventID,
			&m.ExpenseID,
			&ledgerA,
			&ledgerB,
			&m.OverallConfidence,
			&classification,
			&notes,
		); err != nil {
			return nil, err
		}
		m.Classification = domain.Classification(classification)
		if m.LedgerAMatch, err = unmarshalCandidate(ledgerA); err != nil {
			return nil, err
		}
		if m.LedgerBMatch, err = unmarshalCandidate(ledgerB); err != nil {
			return nil, err
		}
		if notes != "" {
			if err := json.Unmarshal([]byte(notes), &m.ConsistencyNotes); err != nil {
				return nil, err
			}
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// SaveReport inserts or replaces the report for (run, event)
func (s *Storage) SaveReport(runID string, report *domain.EventReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO event_reports (run_id, event_id, report_json) VALUES (?, ?, ?)`,
		runID, report.EventID, string(data),
	)
	return err
}

// ListReports returns all reports for a run, ordered by event ID
func (s *Storage) ListReports(runID string) ([]*domain.EventReport, error) {
	rows, err := s.db.Query(
		`SELECT report_json FROM event_reports WHERE run_id = ? ORDER BY event_id ASC`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var reports []*domain.EventReport
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var report domain.EventReport
		if err := json.Unmarshal([]byte(data), &report); err != nil {
			return nil, err
		}
		reports = append(reports, &report)
	}
	return reports, rows.Err()
}

func marshalCandidate(c *domain.CandidateMatch) (any, error) {
	if c == nil {
		return nil, nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func unmarshalCandidate(s sql.NullString) (*domain.CandidateMatch, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var c domain.CandidateMatch
	if err := json.Unmarshal([]byte(s.String), &c); err != nil {
		return nil, err
	}
	return &c, nil
}
