package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps and slices, making tests fast and isolated.
// It is safe for concurrent use so orchestrator tests can exercise
// parallel phases against it.
type MockRepository struct {
	mu       sync.Mutex
	runs     map[string]*WorkflowRun
	phaseLog []PhaseLogEntry
	coverage map[string][]domain.EventCoverage
	matches  map[string][]domain.ArbitratedMatch // keyed by run_id
	reports  map[string][]*domain.EventReport
	nextID   int64

	// Hooks for test assertions
	SaveRunCalled        bool
	LastSavedRun         *WorkflowRun
	AppendPhaseLogCalled bool

	// Error injection for testing error paths
	SaveRunErr        error
	AppendPhaseLogErr error
	ReplaceMatchesErr error
	SaveReportErr     error
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		runs:     make(map[string]*WorkflowRun),
		coverage: make(map[string][]domain.EventCoverage),
		matches:  make(map[string][]domain.ArbitratedMatch),
		reports:  make(map[string][]*domain.EventReport),
		nextID:   1,
	}
}

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// SaveRun stores a deep copy of the run snapshot
func (m *MockRepository) SaveRun(run *WorkflowRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveRunCalled = true
	m.LastSavedRun = run
	if m.SaveRunErr != nil {
		return m.SaveRunErr
	}

	copied := *run
	copied.PhaseHistory = append([]PhaseExecution(nil), run.PhaseHistory...)
	m.runs[run.RunID] = &copied
	return nil
}

// GetRun retrieves a run by ID, nil if not found
func (m *MockRepository) GetRun(runID string) (*WorkflowRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return nil, nil
	}
	copied := *run
	copied.PhaseHistory = append([]PhaseExecution(nil), run.PhaseHistory...)
	return &copied, nil
}

// ListRuns returns runs, newest first, optionally filtered by status
func (m *MockRepository) ListRuns(status string, limit int) ([]*WorkflowRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}

	var runs []*WorkflowRun
	for _, run := range m.runs {
		if status != "" && run.OverallStatus != status {
			continue
		}
		copied := *run
		runs = append(runs, &copied)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// AppendPhaseLog appends one entry to the in-memory log
func (m *MockRepository) AppendPhaseLog(entry *PhaseLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AppendPhaseLogCalled = true
	if m.AppendPhaseLogErr != nil {
		return m.AppendPhaseLogErr
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.ID = m.nextID
	m.nextID++
	m.phaseLog = append(m.phaseLog, *entry)
	return nil
}

// ListPhaseLog returns entries for a run in append order
func (m *MockRepository) ListPhaseLog(runID string) ([]PhaseLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []PhaseLogEntry
	for _, e := range m.phaseLog {
		if e.RunID == runID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// ReplaceEventCoverage replaces coverage rows for a run
func (m *MockRepository) ReplaceEventCoverage(runID string, coverage []domain.EventCoverage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.coverage[runID] = append([]domain.EventCoverage(nil), coverage...)
	return nil
}

// ListEventCoverage returns coverage rows for a run, ordered by event ID
func (m *MockRepository) ListEventCoverage(runID string) ([]domain.EventCoverage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	coverage := append([]domain.EventCoverage(nil), m.coverage[runID]...)
	sort.Slice(coverage, func(i, j int) bool { return coverage[i].EventID < coverage[j].EventID })
	return coverage, nil
}

// ReplaceMatches replaces the match set for (run, event)
func (m *MockRepository) ReplaceMatches(runID, eventID string, matches []domain.ArbitratedMatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ReplaceMatchesErr != nil {
		return m.ReplaceMatchesErr
	}

	kept := make([]domain.ArbitratedMatch, 0, len(m.matches[runID])+len(matches))
	for _, existing := range m.matches[runID] {
		if existing.EventID != eventID {
			kept = append(kept, existing)
		}
	}
	kept = append(kept, matches...)
	m.matches[runID] = kept
	return nil
}

// ListMatches returns matches for a run, optionally filtered by event
func (m *MockRepository) ListMatches(runID, eventID string) ([]domain.ArbitratedMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matches []domain.ArbitratedMatch
	for _, match := range m.matches[runID] {
		if eventID != "" && match.EventID != eventID {
			continue
		}
		matches = append(matches, match)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].EventID != matches[j].EventID {
			return matches[i].EventID < matches[j].EventID
		}
		return matches[i].ExpenseID < matches[j].ExpenseID
	})
	return matches, nil
}

// SaveReport inserts or replaces the report for (run, event)
func (m *MockRepository) SaveReport(runID string, report *domain.EventReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveReportErr != nil {
		return m.SaveReportErr
	}

	kept := make([]*domain.EventReport, 0, len(m.reports[runID])+1)
	for _, existing := range m.reports[runID] {
		if existing.EventID != report.EventID {
			kept = append(kept, existing)
		}
	}
	copied := *report
	m.reports[runID] = append(kept, &copied)
	return nil
}

// ListReports returns reports for a run, ordered by event ID
func (m *MockRepository) ListReports(runID string) ([]*domain.EventReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reports := append([]*domain.EventReport(nil), m.reports[runID]...)
	sort.Slice(reports, func(i, j int) bool { return reports[i].EventID < reports[j].EventID })
	return reports, nil
}
