package storage

import (
	"encoding/json"
	"time"
)

// Workflow run statuses. Pending transitions to Running, Running to one of
// the terminal statuses; Cancelled is reachable from Running only.
const (
	RunStatusPending         = "pending"
	RunStatusRunning         = "running"
	RunStatusCompleted       = "completed"
	RunStatusPartiallyFailed = "partially_failed"
	RunStatusFailed          = "failed"
	RunStatusCancelled       = "cancelled"
)

// Phase execution statuses recorded in a run's phase history.
const (
	PhaseStatusRunning   = "running"
	PhaseStatusCompleted = "completed"
	PhaseStatusSkipped   = "skipped"
	PhaseStatusFailed    = "failed"
)

// PhaseExecution is one attempt at one phase within a run. The run's
// history is append-only: a retry appends a new execution, it never
// overwrites the failed one.
type PhaseExecution struct {
	Phase     string     `json:"phase"`
	Status    string     `json:"status"`
	Attempt   int        `json:"attempt"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// WorkflowRun is the durable snapshot of one reconciliation run. It is
// owned by the orchestrator and mutated only through phase transitions.
type WorkflowRun struct {
	RunID         string           `json:"run_id"`
	CurrentPhase  string           `json:"current_phase"`
	OverallStatus string           `json:"overall_status"`
	StartedAt     time.Time        `json:"started_at"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	PhaseHistory  []PhaseExecution `json:"phase_history"`

	// Aggregate counters filled in as phases complete
	EventsTotal    int `json:"events_total"`
	EventsReady    int `json:"events_ready"`
	ExpensesTotal  int `json:"expenses_total"`
	MatchesHigh    int `json:"matches_high"`
	MatchesMedium  int `json:"matches_medium"`
	MatchesLow     int `json:"matches_low"`
	ReportsWritten int `json:"reports_written"`
}

// Terminal reports whether the run can no longer progress.
func (r *WorkflowRun) Terminal() bool {
	switch r.OverallStatus {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled, RunStatusPartiallyFailed:
		return true
	}
	return false
}

// historyJSON serializes the phase history for column storage.
func (r *WorkflowRun) historyJSON() (string, error) {
	data, err := json.Marshal(r.PhaseHistory)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// PhaseLogEntry is one row of the append-only phase audit log.
type PhaseLogEntry struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Phase     string    `json:"phase"`
	Status    string    `json:"status"`
	Attempt   int       `json:"attempt"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
