package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/adapters/documents"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/adapters/ledger"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/adapters/notify"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/application/workflow"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain/matcher"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain/splitter"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/infrastructure/config"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/infrastructure/logging"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/infrastructure/storage"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/reasoning"
)

func main() {
	var (
		configFile   = flag.String("config", "", "Configuration file path")
		ledgerAPath  = flag.String("ledger-a", "", "Ledger A CSV export (required)")
		ledgerBPath  = flag.String("ledger-b", "", "Ledger B CSV export (required)")
		expensesPath = flag.String("expenses", "", "Extracted expenses JSON fixture (required)")
		participants = flag.String("participants", "", "Comma-separated participant names for splitting")
		splitMethod  = flag.String("split", splitter.MethodEqual, "Split method: equal or weighted")
		verbose      = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if *ledgerAPath == "" || *ledgerBPath == "" || *expensesPath == "" {
		fmt.Fprintln(os.Stderr, "usage: reconcile -ledger-a a.csv -ledger-b b.csv -expenses expenses.json [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := config.LoadOrEnvWithPath(*configFile)
	if *verbose {
		cfg.Observability.Logging.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "reconcile")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	source := ledger.NewCSVSource(*ledgerAPath, *ledgerBPath)

	docs, err := documents.NewFixtureProcessor(*expensesPath)
	if err != nil {
		logger.Error("Failed to load expense fixture", "error", err)
		os.Exit(1)
	}

	var scorer matcher.Scorer
	if cfg.Reasoning.Enabled && cfg.Reasoning.BaseURL != "" {
		scorer = reasoning.NewClient(cfg.Reasoning, logger)
		logger.Info("Reasoning service enabled", "base_url", cfg.Reasoning.BaseURL)
	}

	orchestrator := workflow.NewOrchestrator(
		cfg,
		store,
		source,
		docs,
		notify.NewLogNotifier(logger),
		scorer,
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := workflow.Options{
		Participants: parseParticipants(*participants),
		SplitMethod:  *splitMethod,
	}

	run, err := orchestrator.Run(ctx, opts)
	if err != nil {
		logger.Error("Reconciliation failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("\nRun %s: %s\n", run.RunID, run.OverallStatus)
	fmt.Printf("  events:   %d total, %d ready\n", run.EventsTotal, run.EventsReady)
	fmt.Printf("  expenses: %d\n", run.ExpensesTotal)
	fmt.Printf("  matches:  %d high, %d medium, %d low\n", run.MatchesHigh, run.MatchesMedium, run.MatchesLow)
	fmt.Printf("  reports:  %d\n", run.ReportsWritten)

	if run.OverallStatus != storage.RunStatusCompleted {
		os.Exit(1)
	}
}

// parseParticipants turns "Alice,Bob" into equal-weight participants. The
// name doubles as the ID; the CLI has no participant registry.
func parseParticipants(list string) []domain.Participant {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	var participants []domain.Participant
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		participants = append(participants, domain.Participant{ID: name, Name: name, Weight: 1})
	}
	return participants
}
