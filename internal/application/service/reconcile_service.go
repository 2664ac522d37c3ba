// Package service manages reconciliation runs for external callers. It
// launches runs in the background, tracks cancellation handles, and fronts
// the repository for everything the API needs to read.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/application/workflow"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/errs"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/infrastructure/storage"
)

// DefaultRunTimeout bounds a background run so a hung collaborator cannot
// hold its working state forever.
const DefaultRunTimeout = 30 * time.Minute

// RunRequest holds parameters for starting a reconciliation run.
type RunRequest struct {
	Participants []domain.Participant `json:"participants,omitempty"`
	SplitMethod  string               `json:"split_method,omitempty"`
}

// ReconcileService starts, cancels, and inspects reconciliation runs.
type ReconcileService struct {
	orchestrator *workflow.Orchestrator
	repo         storage.Repository
	logger       *slog.Logger
	runTimeout   time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewReconcileService creates the run-management service.
func NewReconcileService(orchestrator *workflow.Orchestrator, repo storage.Repository, logger *slog.Logger) *ReconcileService {
	return &ReconcileService{
		orchestrator: orchestrator,
		repo:         repo,
		logger:       logger,
		runTimeout:   DefaultRunTimeout,
		cancels:      make(map[string]context.CancelFunc),
	}
}

// StartRun launches a reconciliation run in the background and returns its
// ID immediately. The request context is deliberately not the parent: runs
// must outlive the HTTP request that started them. Use CancelRun to stop a
// running run.
func (s *ReconcileService) StartRun(_ context.Context, req RunRequest) (string, error) {
	runID := uuid.NewString()
	runCtx, cancel := context.WithTimeout(context.Background(), s.runTimeout)

	s.mu.Lock()
	s.cancels[runID] = cancel
	s.mu.Unlock()

	opts := workflow.Options{
		RunID:        runID,
		Participants: req.Participants,
		SplitMethod:  req.SplitMethod,
	}

	go func() {
		defer func() {
			cancel()
			s.mu.Lock()
			delete(s.cancels, runID)
			s.mu.Unlock()
		}()

		if _, err := s.orchestrator.Run(runCtx, opts); err != nil {
			s.logger.Error("Reconciliation run failed", "run_id", runID, "error", err)
		}
	}()

	s.logger.Info("Reconciliation run launched", "run_id", runID, "participants", len(req.Participants))
	return runID, nil
}

// CancelRun cancels a running run. Cancellation is cooperative; the run
// stops at the next phase boundary.
func (s *ReconcileService) CancelRun(runID string) error {
	s.mu.Lock()
	cancel, ok := s.cancels[runID]
	s.mu.Unlock()

	if !ok {
		return errs.Input("run %s is not running", runID)
	}
	cancel()
	s.logger.Info("Reconciliation run cancellation requested", "run_id", runID)
	return nil
}

// RetryPhase re-executes one phase of an existing run.
func (s *ReconcileService) RetryPhase(ctx context.Context, runID, phase string) (*storage.WorkflowRun, error) {
	return s.orchestrator.RetryPhase(ctx, runID, phase)
}

// GetRun returns the persisted snapshot of one run, nil if unknown.
func (s *ReconcileService) GetRun(runID string) (*storage.WorkflowRun, error) {
	return s.repo.GetRun(runID)
}

// ListRuns returns recent runs, optionally filtered by overall status.
func (s *ReconcileService) ListRuns(status string, limit int) ([]*storage.WorkflowRun, error) {
	return s.repo.ListRuns(status, limit)
}

// ListPhaseLog returns the audit trail for one run.
func (s *ReconcileService) ListPhaseLog(runID string) ([]storage.PhaseLogEntry, error) {
	return s.repo.ListPhaseLog(runID)
}

// ListEventCoverage returns event coverage for one run.
func (s *ReconcileService) ListEventCoverage(runID string) ([]domain.EventCoverage, error) {
	return s.repo.ListEventCoverage(runID)
}

// ListMatches returns arbitrated matches for one run, optionally scoped to
// a single event.
func (s *ReconcileService) ListMatches(runID, eventID string) ([]domain.ArbitratedMatch, error) {
	return s.repo.ListMatches(runID, eventID)
}

// ListReports returns event reports for one run.
func (s *ReconcileService) ListReports(runID string) ([]*domain.EventReport, error) {
	return s.repo.ListReports(runID)
}
