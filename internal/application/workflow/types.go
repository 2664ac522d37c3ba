// Package workflow drives a reconciliation run through its ordered phases
// and owns all mutation of run state. Phases talk to collaborators behind
// small interfaces so the engine never depends on where transactions,
// expenses, or notifications actually come from.
package workflow

import (
	"context"
	"log/slog"
	"sync"

	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain/grouper"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain/matcher"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/infrastructure/config"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/infrastructure/storage"
)

// Phase names, in execution order.
const (
	PhaseIngest           = "ingest"
	PhaseGroupEvents      = "group_events"
	PhaseProcessDocuments = "process_documents"
	PhaseMatchExpenses    = "match_expenses"
	PhaseSplitExpenses    = "split_expenses"
	PhaseGenerateReports  = "generate_reports"
	PhaseNotify           = "notify"
)

// phaseOrder is the canonical execution order. Phases never reorder; a
// retry re-executes one phase in place.
var phaseOrder = []string{
	PhaseIngest,
	PhaseGroupEvents,
	PhaseProcessDocuments,
	PhaseMatchExpenses,
	PhaseSplitExpenses,
	PhaseGenerateReports,
	PhaseNotify,
}

// hardPhases cannot fail without failing the whole run; nothing downstream
// is meaningful without their output.
var hardPhases = map[string]bool{
	PhaseIngest:      true,
	PhaseGroupEvents: true,
}

// LedgerSource supplies normalized transactions for both ledgers.
type LedgerSource interface {
	FetchTransactions(ctx context.Context) (ledgerA, ledgerB []domain.Transaction, err error)
}

// DocumentProcessor supplies extracted expenses for one event.
type DocumentProcessor interface {
	ExtractExpenses(ctx context.Context, eventID string) ([]domain.ExtractedExpense, error)
}

// Notifier delivers the run outcome once reports exist.
type Notifier interface {
	Notify(ctx context.Context, run *storage.WorkflowRun, reports []*domain.EventReport) error
}

// Options holds per-run settings.
type Options struct {
	// RunID pre-assigns the run identifier so callers that launch runs in
	// the background can hand it out immediately. Empty generates one.
	RunID string

	// Participants to split matched expenses among. Empty skips the
	// splitting phase.
	Participants []domain.Participant

	// SplitMethod is splitter.MethodEqual or splitter.MethodWeighted.
	// Empty defaults to equal.
	SplitMethod string
}

// Orchestrator executes reconciliation runs. Independent runs may execute
// in parallel; each run's state has a single writer.
type Orchestrator struct {
	config   *config.Config
	repo     storage.Repository
	source   LedgerSource
	docs     DocumentProcessor
	notifier Notifier
	matcher  *matcher.Matcher
	logger   *slog.Logger

	mu   sync.Mutex
	runs map[string]*runState
}

// runState is the in-memory working set for one run. Derived results
// (coverage, matches, reports) are persisted as phases complete; the raw
// inputs live here so a phase retry can re-execute without re-ingesting.
type runState struct {
	mu   sync.Mutex
	run  *storage.WorkflowRun
	opts Options

	ledgerA  []domain.Transaction
	ledgerB  []domain.Transaction
	groups   *grouper.Groups
	expenses map[string][]domain.ExtractedExpense
	matches  map[string][]domain.ArbitratedMatch
	shares   map[string][]domain.ParticipantShare
	reports  []*domain.EventReport
}

// NewOrchestrator creates a workflow orchestrator. The notifier may be nil,
// in which case the notify phase is skipped.
func NewOrchestrator(
	cfg *config.Config,
	repo storage.Repository,
	source LedgerSource,
	docs DocumentProcessor,
	notifier Notifier,
	scorer matcher.Scorer,
	logger *slog.Logger,
) *Orchestrator {
	matcherConfig := matcher.Config{
		AmountTolerance: cfg.Matching.AmountTolerance,
		DateTolerance:   cfg.Matching.DateTolerance,
		FuzzyThreshold:  cfg.Matching.FuzzyThreshold,
		MinScore:        cfg.Matching.MinScore,
		Weights: matcher.Weights{
			Amount:   cfg.Matching.Weights.Amount,
			Date:     cfg.Matching.Weights.Date,
			Vendor:   cfg.Matching.Weights.Vendor,
			Currency: cfg.Matching.Weights.Currency,
		},
	}

	return &Orchestrator{
		config:   cfg,
		repo:     repo,
		source:   source,
		docs:     docs,
		notifier: notifier,
		matcher:  matcher.New(matcherConfig, scorer, logger),
		logger:   logger,
		runs:     make(map[string]*runState),
	}
}
