package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/adapters/documents"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/adapters/ledger"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/adapters/notify"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/api"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/application/service"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/application/workflow"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain/matcher"
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
	)
	flag.Parse()

	cfg := config.LoadOrEnvWithPath(*configFile)
	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "api")

	if *ledgerAPath == "" || *ledgerBPath == "" || *expensesPath == "" {
		logger.Error("ledger-a, ledger-b, and expenses are required")
		os.Exit(2)
	}

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	docs, err := documents.NewFixtureProcessor(*expensesPath)
	if err != nil {
		logger.Error("Failed to load expense fixture", "error", err)
		os.Exit(1)
	}

	var scorer matcher.Scorer
	if cfg.Reasoning.Enabled && cfg.Reasoning.BaseURL != "" {
		scorer = reasoning.NewClient(cfg.Reasoning, logger)
	}

	orchestrator := workflow.NewOrchestrator(
		cfg,
		store,
		ledger.NewCSVSource(*ledgerAPath, *ledgerBPath),
		docs,
		notify.NewLogNotifier(logger),
		scorer,
		logger,
	)
	svc := service.NewReconcileService(orchestrator, store, logger)

	serverConfig := api.DefaultConfig()
	if cfg.API.Port != 0 {
		serverConfig.Port = cfg.API.Port
	}
	if len(cfg.API.AllowedOrigins) > 0 {
		serverConfig.AllowedOrigins = cfg.API.AllowedOrigins
	}

	server := api.NewServer(serverConfig, svc, logger)

	// Graceful shutdown on SIGINT/SIGTERM
	done := make(chan struct{})
	go func() {
		defer close(done)
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown error", slog.String("error", err.Error()))
		}
	}()

	if err := server.Start(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	<-done
}
