package workflow

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain/splitter"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/errs"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/infrastructure/config"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/infrastructure/storage"
)

type stubSource struct {
	ledgerA []domain.Transaction
	ledgerB []domain.Transaction
	err     error
}

func (s *stubSource) FetchTransactions(ctx context.Context) ([]domain.Transaction, []domain.Transaction, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.ledgerA, s.ledgerB, nil
}

type stubDocs struct {
	byEvent  map[string][]domain.ExtractedExpense
	failures int // first N calls fail
	calls    int
}

func (s *stubDocs) ExtractExpenses(ctx context.Context, eventID string) ([]domain.ExtractedExpense, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, errors.New("document service unavailable")
	}
	return s.byEvent[eventID], nil
}

type stubNotifier struct {
	called  bool
	reports int
	err     error
}

func (s *stubNotifier) Notify(ctx context.Context, run *storage.WorkflowRun, reports []*domain.EventReport) error {
	s.called = true
	s.reports = len(reports)
	return s.err
}

func testConfig() *config.Config {
	return &config.Config{Matching: config.DefaultMatching()}
}

func date(day int) time.Time {
	return time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC)
}

// fixtures: EVT100 present in both ledgers with a clean pairing, EVT200
// only in ledger A.
func testLedgers() ([]domain.Transaction, []domain.Transaction) {
	ledgerA := []domain.Transaction{
		{ID: "txa-1", EventID: "EVT100", Amount: 285.50, Currency: "USD", Date: date(10), Vendor: "Marriott Hotels", SourceSystem: domain.LedgerA},
		{ID: "txa-2", EventID: "EVT200", Amount: 99.00, Currency: "USD", Date: date(20), Vendor: "Delta", SourceSystem: domain.LedgerA},
	}
	ledgerB := []domain.Transaction{
		{ID: "txb-1", EventID: "EVT100", Amount: 285.50, Currency: "USD", Date: date(11), Vendor: "Marriott Hotels", SourceSystem: domain.LedgerB},
	}
	return ledgerA, ledgerB
}

func testDocs() *stubDocs {
	return &stubDocs{byEvent: map[string][]domain.ExtractedExpense{
		"EVT100": {
			{ID: "exp-1", EventID: "EVT100", Amount: 285.50, Currency: "USD", Date: date(10), Vendor: "Marriott Hotels", ExtractionConfidence: 0.95},
		},
	}}
}

func newTestOrchestrator(repo storage.Repository, source LedgerSource, docs DocumentProcessor, notifier Notifier) *Orchestrator {
	return NewOrchestrator(testConfig(), repo, source, docs, notifier, nil, slog.Default())
}

func TestRun_CompletesAllPhases(t *testing.T) {
	// Arrange
	repo := storage.NewMockRepository()
	ledgerA, ledgerB := testLedgers()
	notifier := &stubNotifier{}
	o := newTestOrchestrator(repo, &stubSource{ledgerA: ledgerA, ledgerB: ledgerB}, testDocs(), notifier)
	opts := Options{
		Participants: []domain.Participant{{ID: "p1", Name: "Alice"}, {ID: "p2", Name: "Bob"}},
		SplitMethod:  splitter.MethodEqual,
	}

	// Act
	run, err := o.Run(context.Background(), opts)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, storage.RunStatusCompleted, run.OverallStatus)
	assert.NotNil(t, run.CompletedAt)
	assert.Equal(t, 2, run.EventsTotal)
	assert.Equal(t, 1, run.EventsReady)
	assert.Equal(t, 1, run.ExpensesTotal)
	assert.Equal(t, 1, run.MatchesHigh)
	assert.Equal(t, 0, run.MatchesMedium+run.MatchesLow)
	assert.Equal(t, 1, run.ReportsWritten)

	// every phase ran exactly once
	require.Len(t, run.PhaseHistory, len(phaseOrder))
	for i, exec := range run.PhaseHistory {
		assert.Equal(t, phaseOrder[i], exec.Phase)
		assert.Equal(t, 1, exec.Attempt)
		assert.Contains(t, []string{storage.PhaseStatusCompleted, storage.PhaseStatusSkipped}, exec.Status)
	}

	// persisted state
	coverage, err := repo.ListEventCoverage(run.RunID)
	require.NoError(t, err)
	require.Len(t, coverage, 2)
	assert.True(t, coverage[0].Ready())
	assert.False(t, coverage[1].Ready())

	matches, err := repo.ListMatches(run.RunID, "EVT100")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, domain.ClassificationHigh, matches[0].Classification)
	require.NotNil(t, matches[0].LedgerAMatch)
	require.NotNil(t, matches[0].LedgerBMatch)

	reports, err := repo.ListReports(run.RunID)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 285.50, reports[0].TotalAmount)
	require.Len(t, reports[0].Shares, 2)
	assert.Equal(t, 142.75, reports[0].Shares[0].Amount)

	assert.True(t, notifier.called)
	assert.Equal(t, 1, notifier.reports)
}

// statusRecordingRepo captures the overall status of every persisted run
// snapshot, in order.
type statusRecordingRepo struct {
	*storage.MockRepository
	statuses []string
}

func (r *statusRecordingRepo) SaveRun(run *storage.WorkflowRun) error {
	r.statuses = append(r.statuses, run.OverallStatus)
	return r.MockRepository.SaveRun(run)
}

func TestRun_PersistsPendingSnapshotFirst(t *testing.T) {
	repo := &statusRecordingRepo{MockRepository: storage.NewMockRepository()}
	ledgerA, ledgerB := testLedgers()
	o := newTestOrchestrator(repo, &stubSource{ledgerA: ledgerA, ledgerB: ledgerB}, testDocs(), nil)

	run, err := o.Run(context.Background(), Options{})
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(repo.statuses), 2)
	assert.Equal(t, storage.RunStatusPending, repo.statuses[0])
	assert.Equal(t, storage.RunStatusRunning, repo.statuses[1])
	assert.Equal(t, storage.RunStatusCompleted, run.OverallStatus)
}

func TestRun_PhaseLogWrittenBeforeAdvance(t *testing.T) {
	repo := storage.NewMockRepository()
	ledgerA, ledgerB := testLedgers()
	o := newTestOrchestrator(repo, &stubSource{ledgerA: ledgerA, ledgerB: ledgerB}, testDocs(), nil)

	run, err := o.Run(context.Background(), Options{})
	require.NoError(t, err)

	entries, err := repo.ListPhaseLog(run.RunID)
	require.NoError(t, err)
	require.Len(t, entries, len(phaseOrder))
	for i, entry := range entries {
		assert.Equal(t, phaseOrder[i], entry.Phase)
		assert.Equal(t, run.RunID, entry.RunID)
		assert.False(t, entry.CreatedAt.IsZero())
	}
}

func TestRun_IngestFailureFailsRun(t *testing.T) {
	repo := storage.NewMockRepository()
	o := newTestOrchestrator(repo, &stubSource{err: errs.Input("ledger export missing")}, testDocs(), nil)

	run, err := o.Run(context.Background(), Options{})

	require.Error(t, err)
	var phaseErr *errs.PhaseError
	require.ErrorAs(t, err, &phaseErr)
	assert.Equal(t, PhaseIngest, phaseErr.Phase)
	assert.Equal(t, errs.KindInput, phaseErr.Kind)
	assert.Equal(t, run.RunID, phaseErr.RunID)

	assert.Equal(t, storage.RunStatusFailed, run.OverallStatus)
	assert.Equal(t, PhaseIngest, run.CurrentPhase)
	require.Len(t, run.PhaseHistory, 1)
	assert.Equal(t, storage.PhaseStatusFailed, run.PhaseHistory[0].Status)
	assert.NotEmpty(t, run.PhaseHistory[0].Error)
}

func TestRun_DocumentFailureIsPartial(t *testing.T) {
	repo := storage.NewMockRepository()
	ledgerA, ledgerB := testLedgers()
	docs := testDocs()
	docs.failures = 10 // every call fails
	o := newTestOrchestrator(repo, &stubSource{ledgerA: ledgerA, ledgerB: ledgerB}, docs, nil)

	run, err := o.Run(context.Background(), Options{})

	// soft phase failure does not error the run call
	require.NoError(t, err)
	assert.Equal(t, storage.RunStatusPartiallyFailed, run.OverallStatus)

	byPhase := make(map[string]string)
	for _, exec := range run.PhaseHistory {
		byPhase[exec.Phase] = exec.Status
	}
	assert.Equal(t, storage.PhaseStatusFailed, byPhase[PhaseProcessDocuments])
	assert.Equal(t, storage.PhaseStatusSkipped, byPhase[PhaseMatchExpenses])
	assert.Equal(t, storage.PhaseStatusSkipped, byPhase[PhaseGenerateReports])
}

func TestRun_EmptyLedgersSkipDownstream(t *testing.T) {
	repo := storage.NewMockRepository()
	o := newTestOrchestrator(repo, &stubSource{}, testDocs(), nil)

	run, err := o.Run(context.Background(), Options{})

	require.NoError(t, err)
	assert.Equal(t, storage.RunStatusCompleted, run.OverallStatus)
	byPhase := make(map[string]string)
	for _, exec := range run.PhaseHistory {
		byPhase[exec.Phase] = exec.Status
	}
	assert.Equal(t, storage.PhaseStatusCompleted, byPhase[PhaseIngest])
	assert.Equal(t, storage.PhaseStatusSkipped, byPhase[PhaseGroupEvents])
	assert.Equal(t, storage.PhaseStatusSkipped, byPhase[PhaseMatchExpenses])
	assert.Equal(t, storage.PhaseStatusSkipped, byPhase[PhaseNotify])
}

func TestRun_CancelledContext(t *testing.T) {
	repo := storage.NewMockRepository()
	ledgerA, ledgerB := testLedgers()
	o := newTestOrchestrator(repo, &stubSource{ledgerA: ledgerA, ledgerB: ledgerB}, testDocs(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := o.Run(ctx, Options{})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, storage.RunStatusCancelled, run.OverallStatus)
	assert.Empty(t, run.PhaseHistory)
}

func TestRun_PhaseLogPersistenceFailureIsFatal(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.AppendPhaseLogErr = errors.New("disk full")
	ledgerA, ledgerB := testLedgers()
	o := newTestOrchestrator(repo, &stubSource{ledgerA: ledgerA, ledgerB: ledgerB}, testDocs(), nil)

	run, err := o.Run(context.Background(), Options{})

	require.Error(t, err)
	assert.Equal(t, storage.RunStatusFailed, run.OverallStatus)
}

func TestRetryPhase_AppendsHistoryAndRecovers(t *testing.T) {
	// Arrange: document extraction fails once, then succeeds.
	repo := storage.NewMockRepository()
	ledgerA, ledgerB := testLedgers()
	docs := testDocs()
	docs.failures = 1
	o := newTestOrchestrator(repo, &stubSource{ledgerA: ledgerA, ledgerB: ledgerB}, docs, nil)

	run, err := o.Run(context.Background(), Options{})
	require.NoError(t, err)
	require.Equal(t, storage.RunStatusPartiallyFailed, run.OverallStatus)
	historyBefore := len(run.PhaseHistory)

	// Act
	run, err = o.RetryPhase(context.Background(), run.RunID, PhaseProcessDocuments)

	// Assert
	require.NoError(t, err)
	assert.Len(t, run.PhaseHistory, historyBefore+1)

	last := run.PhaseHistory[len(run.PhaseHistory)-1]
	assert.Equal(t, PhaseProcessDocuments, last.Phase)
	assert.Equal(t, 2, last.Attempt)
	assert.Equal(t, storage.PhaseStatusCompleted, last.Status)

	// the original failed attempt is still in history
	assert.Equal(t, storage.PhaseStatusFailed, run.PhaseHistory[2].Status)

	// the run recovers once no phase's latest attempt is failed
	assert.Equal(t, storage.RunStatusCompleted, run.OverallStatus)
}

func TestRetryPhase_UnknownPhase(t *testing.T) {
	o := newTestOrchestrator(storage.NewMockRepository(), &stubSource{}, testDocs(), nil)

	_, err := o.RetryPhase(context.Background(), "some-run", "teleport")

	require.Error(t, err)
	assert.Equal(t, errs.KindInput, errs.KindOf(err))
}

func TestRetryPhase_UnknownRun(t *testing.T) {
	o := newTestOrchestrator(storage.NewMockRepository(), &stubSource{}, testDocs(), nil)

	_, err := o.RetryPhase(context.Background(), "missing-run", PhaseMatchExpenses)

	require.Error(t, err)
	assert.Equal(t, errs.KindInput, errs.KindOf(err))
}

func TestRun_WeightedSplit(t *testing.T) {
	repo := storage.NewMockRepository()
	ledgerA, ledgerB := testLedgers()
	o := newTestOrchestrator(repo, &stubSource{ledgerA: ledgerA, ledgerB: ledgerB}, testDocs(), nil)
	opts := Options{
		Participants: []domain.Participant{
			{ID: "p1", Name: "Alice", Weight: 3},
			{ID: "p2", Name: "Bob", Weight: 1},
		},
		SplitMethod: splitter.MethodWeighted,
	}

	run, err := o.Run(context.Background(), opts)
	require.NoError(t, err)

	reports, err := repo.ListReports(run.RunID)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Len(t, reports[0].Shares, 2)
	// 285.50 split 3:1, residue cent handling keeps the sum exact
	assert.InDelta(t, 285.50, reports[0].Shares[0].Amount+reports[0].Shares[1].Amount, 0.001)
	assert.Greater(t, reports[0].Shares[0].Amount, reports[0].Shares[1].Amount)
}
