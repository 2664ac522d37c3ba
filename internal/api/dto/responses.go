package dto

import (
	"time"

	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/infrastructure/storage"
)

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a health response for the current time.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// PhaseExecutionResponse is one phase attempt within a run.
type PhaseExecutionResponse struct {
	Phase     string     `json:"phase"`
	Status    string     `json:"status"`
	Attempt   int        `json:"attempt"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// RunResponse represents a reconciliation run in API responses.
type RunResponse struct {
	RunID          string                   `json:"run_id"`
	CurrentPhase   string                   `json:"current_phase"`
	OverallStatus  string                   `json:"overall_status"`
	StartedAt      time.Time                `json:"started_at"`
	CompletedAt    *time.Time               `json:"completed_at,omitempty"`
	EventsTotal    int                      `json:"events_total"`
	EventsReady    int                      `json:"events_ready"`
	ExpensesTotal  int                      `json:"expenses_total"`
	MatchesHigh    int                      `json:"matches_high"`
	MatchesMedium  int                      `json:"matches_medium"`
	MatchesLow     int                      `json:"matches_low"`
	ReportsWritten int                      `json:"reports_written"`
	PhaseHistory   []PhaseExecutionResponse `json:"phase_history,omitempty"`
}

// ToRunResponse converts a stored run snapshot to an API response.
// Phase history is included only when withHistory is set; the list endpoint
// stays light.
func ToRunResponse(run *storage.WorkflowRun, withHistory bool) RunResponse {
	resp := RunResponse{
		RunID:          run.RunID,
		CurrentPhase:   run.CurrentPhase,
		OverallStatus:  run.OverallStatus,
		StartedAt:      run.StartedAt,
		CompletedAt:    run.CompletedAt,
		EventsTotal:    run.EventsTotal,
		EventsReady:    run.EventsReady,
		ExpensesTotal:  run.ExpensesTotal,
		MatchesHigh:    run.MatchesHigh,
		MatchesMedium:  run.MatchesMedium,
		MatchesLow:     run.MatchesLow,
		ReportsWritten: run.ReportsWritten,
	}
	if withHistory {
		resp.PhaseHistory = make([]PhaseExecutionResponse, 0, len(run.PhaseHistory))
		for _, exec := range run.PhaseHistory {
			resp.PhaseHistory = append(resp.PhaseHistory, PhaseExecutionResponse{
				Phase:     exec.Phase,
				Status:    exec.Status,
				Attempt:   exec.Attempt,
				StartedAt: exec.StartedAt,
				EndedAt:   exec.EndedAt,
				Error:     exec.Error,
			})
		}
	}
	return resp
}

// RunListResponse is returned when listing runs.
type RunListResponse struct {
	Runs  []RunResponse `json:"runs"`
	Count int           `json:"count"`
}

// StartRunResponse is returned after launching a run.
type StartRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// MatchListResponse is returned when listing arbitrated matches.
type MatchListResponse struct {
	RunID   string                   `json:"run_id"`
	EventID string                   `json:"event_id,omitempty"`
	Matches []domain.ArbitratedMatch `json:"matches"`
	Count   int                      `json:"count"`
}

// CoverageListResponse is returned when listing event coverage.
type CoverageListResponse struct {
	RunID    string                 `json:"run_id"`
	Coverage []domain.EventCoverage `json:"coverage"`
	Count    int                    `json:"count"`
}

// ReportListResponse is returned when listing event reports.
type ReportListResponse struct {
	RunID   string                `json:"run_id"`
	Reports []*domain.EventReport `json:"reports"`
	Count   int                   `json:"count"`
}

// PhaseLogResponse is returned when listing the phase audit log.
type PhaseLogResponse struct {
	RunID   string                  `json:"run_id"`
	Entries []storage.PhaseLogEntry `json:"entries"`
	Count   int                     `json:"count"`
}
