// Package notify delivers run outcomes. Delivery channels are pluggable;
// the log notifier here writes the summary to the structured log, which is
// enough for CLI runs and for wiring tests.
package notify

import (
	"context"
	"log/slog"

	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/infrastructure/storage"
)

// LogNotifier writes run summaries to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier backed by the given logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs one line per event report plus a run summary line.
func (n *LogNotifier) Notify(ctx context.Context, run *storage.WorkflowRun, reports []*domain.EventReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, report := range reports {
		n.logger.Info("Event reconciled",
			"run_id", run.RunID,
			"event_id", report.EventID,
			"expenses", report.ExpenseCount,
			"matched", report.MatchedCount,
			"total_amount", report.TotalAmount,
			"shares", len(report.Shares),
		)
	}

	n.logger.Info("Reconciliation summary",
		"run_id", run.RunID,
		"status", run.OverallStatus,
		"events_total", run.EventsTotal,
		"events_ready", run.EventsReady,
		"expenses_total", run.ExpensesTotal,
		"matches_high", run.MatchesHigh,
		"matches_medium", run.MatchesMedium,
		"matches_low", run.MatchesLow,
		"reports", run.ReportsWritten,
	)
	return nil
}
