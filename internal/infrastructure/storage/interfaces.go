package storage

import "github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain"

// Repository defines the complete storage interface for reconciliation
// state. The engine never assumes a specific storage technology; this
// interface allows swapping implementations (SQLite here, anything else
// later) and makes testing with the in-memory repository straightforward.
type Repository interface {
	RunRepository
	PhaseLogRepository
	CoverageRepository
	MatchRepository
	ReportRepository
	Close() error
}

// RunRepository persists workflow run snapshots.
type RunRepository interface {
	// SaveRun inserts or replaces a run snapshot
	SaveRun(run *WorkflowRun) error

	// GetRun retrieves a run by ID, nil if not found
	GetRun(runID string) (*WorkflowRun, error)

	// ListRuns returns the most recent runs, optionally filtered by
	// overall status (empty = all)
	ListRuns(status string, limit int) ([]*WorkflowRun, error)
}

// PhaseLogRepository is the append-only audit trail of phase executions.
// Entries are written before a run's current phase advances, so the log is
// never behind actual progress after a crash.
type PhaseLogRepository interface {
	// AppendPhaseLog appends one entry; existing entries are never updated
	AppendPhaseLog(entry *PhaseLogEntry) error

	// ListPhaseLog returns all entries for a run in append order
	ListPhaseLog(runID string) ([]PhaseLogEntry, error)
}

// CoverageRepository persists per-run event coverage. Coverage is derived
// data, replaced wholesale on each grouping pass.
type CoverageRepository interface {
	// ReplaceEventCoverage replaces all coverage rows for a run
	ReplaceEventCoverage(runID string, coverage []domain.EventCoverage) error

	// ListEventCoverage returns coverage rows for a run, ordered by event ID
	ListEventCoverage(runID string) ([]domain.EventCoverage, error)
}

// MatchRepository persists arbitrated matches. A re-run supersedes the
// previous match set for the run rather than mutating individual rows.
type MatchRepository interface {
	// ReplaceMatches replaces the arbitrated match set for (run, event)
	ReplaceMatches(runID, eventID string, matches []domain.ArbitratedMatch) error

	// ListMatches returns all arbitrated matches for a run, optionally
	// filtered by event ID (empty = all)
	ListMatches(runID, eventID string) ([]domain.ArbitratedMatch, error)
}

// ReportRepository persists per-event expense reports.
type ReportRepository interface {
	// SaveReport inserts or replaces the report for (run, event)
	SaveReport(runID string, report *domain.EventReport) error

	// ListReports returns all reports for a run, ordered by event ID
	ListReports(runID string) ([]*domain.EventReport, error)
}
