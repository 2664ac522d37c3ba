package workflow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain/arbitrator"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain/grouper"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain/splitter"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/errs"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/infrastructure/storage"
)

// phaseOutcome is what one phase execution produced.
type phaseOutcome struct {
	skipped bool
	message string
	err     error
}

// Run executes a full reconciliation run. It returns the run snapshot in
// all cases; the error is non-nil only when a hard phase failed or the
// context was cancelled. Soft phase failures leave the run partially
// failed with the detail in its phase history.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*storage.WorkflowRun, error) {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	state := &runState{
		run: &storage.WorkflowRun{
			RunID:         runID,
			CurrentPhase:  PhaseIngest,
			OverallStatus: storage.RunStatusPending,
			StartedAt:     time.Now().UTC(),
		},
		opts:     opts,
		expenses: make(map[string][]domain.ExtractedExpense),
		matches:  make(map[string][]domain.ArbitratedMatch),
		shares:   make(map[string][]domain.ParticipantShare),
	}

	o.mu.Lock()
	o.runs[state.run.RunID] = state
	o.mu.Unlock()

	state.mu.Lock()
	defer state.mu.Unlock()

	// The pending snapshot is durable before any phase work begins.
	if err := o.repo.SaveRun(state.run); err != nil {
		return nil, errs.NewPhaseError(state.run.RunID, PhaseIngest, err)
	}

	state.run.OverallStatus = storage.RunStatusRunning
	if err := o.repo.SaveRun(state.run); err != nil {
		return nil, errs.NewPhaseError(state.run.RunID, PhaseIngest, err)
	}

	o.logger.Info("Starting reconciliation run", "run_id", state.run.RunID)

	softFailure := false
	for i, phase := range phaseOrder {
		// Cancellation is cooperative: checked between phases, never
		// mid-phase except through the context itself.
		if ctx.Err() != nil {
			o.cancelRun(state)
			return state.run, ctx.Err()
		}

		outcome := o.executePhase(ctx, state, phase)
		if outcome.err != nil {
			if hardPhases[phase] {
				o.finishRun(state, storage.RunStatusFailed)
				return state.run, errs.NewPhaseError(state.run.RunID, phase, outcome.err)
			}
			softFailure = true
		}

		// Outcome is already persisted; only now may the current phase
		// advance.
		if i+1 < len(phaseOrder) {
			state.run.CurrentPhase = phaseOrder[i+1]
			if err := o.repo.SaveRun(state.run); err != nil {
				o.finishRun(state, storage.RunStatusFailed)
				return state.run, errs.NewPhaseError(state.run.RunID, phase, err)
			}
		}
	}

	status := storage.RunStatusCompleted
	if softFailure {
		status = storage.RunStatusPartiallyFailed
	}
	o.finishRun(state, status)

	o.logger.Info("Reconciliation run finished",
		"run_id", state.run.RunID,
		"status", state.run.OverallStatus,
		"events_total", state.run.EventsTotal,
		"events_ready", state.run.EventsReady,
		"matches_high", state.run.MatchesHigh,
		"matches_medium", state.run.MatchesMedium,
		"matches_low", state.run.MatchesLow,
	)
	return state.run, nil
}

// RetryPhase re-executes one phase of an existing run from its stored
// intermediate state, appending a fresh history entry. The run's overall
// status is recomputed from the latest outcome of every phase.
func (o *Orchestrator) RetryPhase(ctx context.Context, runID, phase string) (*storage.WorkflowRun, error) {
	if !validPhase(phase) {
		return nil, errs.Input("unknown phase %q", phase)
	}

	o.mu.Lock()
	state, ok := o.runs[runID]
	o.mu.Unlock()
	if !ok {
		return nil, errs.Input("run %s not found or its working state is gone", runID)
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if state.run.OverallStatus == storage.RunStatusCancelled {
		return nil, errs.Input("run %s is cancelled", runID)
	}

	o.logger.Info("Retrying phase", "run_id", runID, "phase", phase)

	outcome := o.executePhase(ctx, state, phase)
	if outcome.err != nil && hardPhases[phase] {
		o.finishRun(state, storage.RunStatusFailed)
		return state.run, errs.NewPhaseError(runID, phase, outcome.err)
	}

	o.finishRun(state, o.statusFromHistory(state))
	if outcome.err != nil {
		return state.run, errs.NewPhaseError(runID, phase, outcome.err)
	}
	return state.run, nil
}

// GetRun returns the persisted snapshot of a run.
func (o *Orchestrator) GetRun(runID string) (*storage.WorkflowRun, error) {
	return o.repo.GetRun(runID)
}

// executePhase runs one phase, appends its history entry, and persists the
// outcome. Callers advance CurrentPhase only after this returns.
func (o *Orchestrator) executePhase(ctx context.Context, state *runState, phase string) phaseOutcome {
	run := state.run
	attempt := nextAttempt(run.PhaseHistory, phase)
	started := time.Now().UTC()

	run.PhaseHistory = append(run.PhaseHistory, storage.PhaseExecution{
		Phase:     phase,
		Status:    storage.PhaseStatusRunning,
		Attempt:   attempt,
		StartedAt: started,
	})
	execution := &run.PhaseHistory[len(run.PhaseHistory)-1]

	outcome := o.runPhase(ctx, state, phase)

	ended := time.Now().UTC()
	execution.EndedAt = &ended
	switch {
	case outcome.err != nil:
		execution.Status = storage.PhaseStatusFailed
		execution.Error = outcome.err.Error()
		o.logger.Error("Phase failed", "run_id", run.RunID, "phase", phase, "attempt", attempt, "error", outcome.err)
	case outcome.skipped:
		execution.Status = storage.PhaseStatusSkipped
		o.logger.Info("Phase skipped", "run_id", run.RunID, "phase", phase, "reason", outcome.message)
	default:
		execution.Status = storage.PhaseStatusCompleted
		o.logger.Info("Phase completed", "run_id", run.RunID, "phase", phase, "attempt", attempt, "detail", outcome.message)
	}

	entry := &storage.PhaseLogEntry{
		RunID:     run.RunID,
		Phase:     phase,
		Status:    execution.Status,
		Attempt:   attempt,
		Message:   outcome.message,
		Error:     execution.Error,
		CreatedAt: ended,
	}
	if err := o.repo.AppendPhaseLog(entry); err != nil && outcome.err == nil {
		execution.Status = storage.PhaseStatusFailed
		execution.Error = err.Error()
		outcome = phaseOutcome{err: errs.Wrap(errs.KindPhase, "persist phase log", err)}
	}
	if err := o.repo.SaveRun(run); err != nil && outcome.err == nil {
		outcome = phaseOutcome{err: errs.Wrap(errs.KindPhase, "persist run snapshot", err)}
	}
	return outcome
}

func (o *Orchestrator) runPhase(ctx context.Context, state *runState, phase string) phaseOutcome {
	switch phase {
	case PhaseIngest:
		return o.runIngest(ctx, state)
	case PhaseGroupEvents:
		return o.runGroupEvents(state)
	case PhaseProcessDocuments:
		return o.runProcessDocuments(ctx, state)
	case PhaseMatchExpenses:
		return o.runMatchExpenses(ctx, state)
	case PhaseSplitExpenses:
		return o.runSplitExpenses(state)
	case PhaseGenerateReports:
		return o.runGenerateReports(state)
	case PhaseNotify:
		return o.runNotify(ctx, state)
	}
	return phaseOutcome{err: errs.Input("unknown phase %q", phase)}
}

func (o *Orchestrator) runIngest(ctx context.Context, state *runState) phaseOutcome {
	ledgerA, ledgerB, err := o.source.FetchTransactions(ctx)
	if err != nil {
		return phaseOutcome{err: err}
	}
	state.ledgerA = ledgerA
	state.ledgerB = ledgerB
	return phaseOutcome{message: fmt.Sprintf("ingested %d ledger A and %d ledger B transactions", len(ledgerA), len(ledgerB))}
}

func (o *Orchestrator) runGroupEvents(state *runState) phaseOutcome {
	if len(state.ledgerA) == 0 && len(state.ledgerB) == 0 {
		return phaseOutcome{skipped: true, message: "no transactions ingested"}
	}

	state.groups = grouper.Group(state.ledgerA, state.ledgerB)

	coverage := make([]domain.EventCoverage, 0, len(state.groups.Coverage))
	for _, cov := range state.groups.Coverage {
		coverage = append(coverage, cov)
	}
	sort.Slice(coverage, func(i, j int) bool { return coverage[i].EventID < coverage[j].EventID })

	if err := o.repo.ReplaceEventCoverage(state.run.RunID, coverage); err != nil {
		return phaseOutcome{err: errs.Wrap(errs.KindPhase, "persist event coverage", err)}
	}

	ready := state.groups.ReadyEventIDs()
	state.run.EventsTotal = len(coverage)
	state.run.EventsReady = len(ready)
	return phaseOutcome{message: fmt.Sprintf("%d events, %d ready for matching", len(coverage), len(ready))}
}

func (o *Orchestrator) runProcessDocuments(ctx context.Context, state *runState) phaseOutcome {
	if state.groups == nil || len(state.groups.ReadyEventIDs()) == 0 {
		return phaseOutcome{skipped: true, message: "no events present in both ledgers"}
	}

	total := 0
	for _, eventID := range state.groups.ReadyEventIDs() {
		expenses, err := o.docs.ExtractExpenses(ctx, eventID)
		if err != nil {
			return phaseOutcome{err: errs.Service(fmt.Sprintf("extract expenses for event %s", eventID), err)}
		}
		if len(expenses) > 0 {
			state.expenses[eventID] = expenses
			total += len(expenses)
		}
	}

	state.run.ExpensesTotal = total
	if total == 0 {
		return phaseOutcome{skipped: true, message: "document service returned no expenses"}
	}
	return phaseOutcome{message: fmt.Sprintf("extracted %d expenses across %d events", total, len(state.expenses))}
}

func (o *Orchestrator) runMatchExpenses(ctx context.Context, state *runState) phaseOutcome {
	if len(state.expenses) == 0 {
		return phaseOutcome{skipped: true, message: "no expenses to match"}
	}

	arbConfig := arbitrator.Config{
		AmountTolerance: o.config.Matching.AmountTolerance,
		DateTolerance:   o.config.Matching.DateTolerance,
	}

	limit := o.config.Matching.MaxConcurrency
	if limit <= 0 {
		limit = 1
	}

	type arbitrated struct {
		eventID string
		match   domain.ArbitratedMatch
	}
	results := make(chan arbitrated)

	collected := make(map[string][]domain.ArbitratedMatch)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range results {
			collected[r.eventID] = append(collected[r.eventID], r.match)
		}
	}()

	scorers, scorerCtx := errgroup.WithContext(ctx)
	scorers.SetLimit(limit)
	for eventID, expenses := range state.expenses {
		ledgerA := state.groups.LedgerA[eventID]
		ledgerB := state.groups.LedgerB[eventID]
		arb := arbitrator.New(arbConfig, ledgerA, ledgerB)

		for _, expense := range expenses {
			eventID, expense := eventID, expense
			scorers.Go(func() error {
				if err := scorerCtx.Err(); err != nil {
					return err
				}
				candidatesA := o.matcher.Score(scorerCtx, expense, ledgerA, domain.LedgerA)
				candidatesB := o.matcher.Score(scorerCtx, expense, ledgerB, domain.LedgerB)
				match := arb.Arbitrate(expense, candidatesA, candidatesB)
				// Matches are stored under the grouping key, not the raw
				// event string from the document service.
				match.EventID = eventID
				results <- arbitrated{eventID: eventID, match: match}
				return nil
			})
		}
	}

	err := scorers.Wait()
	close(results)
	<-done
	if err != nil {
		return phaseOutcome{err: errs.Wrap(errs.KindPhase, "match expenses", err)}
	}

	var high, medium, low int
	for eventID, matches := range collected {
		sort.Slice(matches, func(i, j int) bool { return matches[i].ExpenseID < matches[j].ExpenseID })
		if err := o.repo.ReplaceMatches(state.run.RunID, eventID, matches); err != nil {
			return phaseOutcome{err: errs.Wrap(errs.KindPhase, "persist arbitrated matches", err)}
		}
		state.matches[eventID] = matches
		for _, m := range matches {
			switch m.Classification {
			case domain.ClassificationHigh:
				high++
			case domain.ClassificationMedium:
				medium++
			default:
				low++
			}
		}
	}

	state.run.MatchesHigh = high
	state.run.MatchesMedium = medium
	state.run.MatchesLow = low
	return phaseOutcome{message: fmt.Sprintf("arbitrated %d expenses: %d high, %d medium, %d low", high+medium+low, high, medium, low)}
}

func (o *Orchestrator) runSplitExpenses(state *runState) phaseOutcome {
	if len(state.opts.Participants) == 0 {
		return phaseOutcome{skipped: true, message: "no participants configured"}
	}
	if len(state.matches) == 0 {
		return phaseOutcome{skipped: true, message: "no matched expenses to split"}
	}

	events := 0
	for eventID, matches := range state.matches {
		total := matchedTotal(state.expenses[eventID], matches)
		if total == 0 {
			continue
		}

		var shares []domain.ParticipantShare
		var err error
		if state.opts.SplitMethod == splitter.MethodWeighted {
			shares, err = splitter.SplitWeighted(total, state.opts.Participants)
		} else {
			shares, err = splitter.SplitEqual(total, state.opts.Participants)
		}
		if err != nil {
			return phaseOutcome{err: errs.Wrap(errs.KindInput, fmt.Sprintf("split expenses for event %s", eventID), err)}
		}
		state.shares[eventID] = shares
		events++
	}

	if events == 0 {
		return phaseOutcome{skipped: true, message: "no events with matched totals"}
	}
	return phaseOutcome{message: fmt.Sprintf("split %d events among %d participants", events, len(state.opts.Participants))}
}

func (o *Orchestrator) runGenerateReports(state *runState) phaseOutcome {
	if len(state.expenses) == 0 {
		return phaseOutcome{skipped: true, message: "no expenses processed"}
	}

	eventIDs := make([]string, 0, len(state.expenses))
	for eventID := range state.expenses {
		eventIDs = append(eventIDs, eventID)
	}
	sort.Strings(eventIDs)

	state.reports = state.reports[:0]
	for _, eventID := range eventIDs {
		expenses := state.expenses[eventID]
		matches := state.matches[eventID]

		report := &domain.EventReport{
			EventID:          eventID,
			ExpenseCount:     len(expenses),
			TotalAmount:      matchedTotal(expenses, matches),
			ByClassification: make(map[domain.Classification]int),
			Shares:           state.shares[eventID],
			GeneratedAt:      time.Now().UTC(),
		}
		for _, m := range matches {
			report.ByClassification[m.Classification]++
			if m.LedgerAMatch != nil || m.LedgerBMatch != nil {
				report.MatchedCount++
			}
		}

		if err := o.repo.SaveReport(state.run.RunID, report); err != nil {
			return phaseOutcome{err: errs.Wrap(errs.KindPhase, "persist event report", err)}
		}
		state.reports = append(state.reports, report)
	}

	state.run.ReportsWritten = len(state.reports)
	return phaseOutcome{message: fmt.Sprintf("wrote %d event reports", len(state.reports))}
}

func (o *Orchestrator) runNotify(ctx context.Context, state *runState) phaseOutcome {
	if o.notifier == nil {
		return phaseOutcome{skipped: true, message: "no notifier configured"}
	}
	if len(state.reports) == 0 {
		return phaseOutcome{skipped: true, message: "no reports to deliver"}
	}
	if err := o.notifier.Notify(ctx, state.run, state.reports); err != nil {
		return phaseOutcome{err: errs.Service("deliver run notification", err)}
	}
	return phaseOutcome{message: fmt.Sprintf("delivered %d reports", len(state.reports))}
}

// cancelRun marks the run cancelled. Already-persisted phase outcomes stay.
func (o *Orchestrator) cancelRun(state *runState) {
	o.logger.Warn("Run cancelled", "run_id", state.run.RunID, "phase", state.run.CurrentPhase)
	o.finishRun(state, storage.RunStatusCancelled)
}

func (o *Orchestrator) finishRun(state *runState, status string) {
	now := time.Now().UTC()
	state.run.OverallStatus = status
	state.run.CompletedAt = &now
	if err := o.repo.SaveRun(state.run); err != nil {
		o.logger.Error("Failed to persist final run state", "run_id", state.run.RunID, "error", err)
	}
}

// statusFromHistory derives the overall status from the latest execution of
// each phase. Used after a retry, where a previously failed phase may now
// have a successful attempt.
func (o *Orchestrator) statusFromHistory(state *runState) string {
	latest := make(map[string]string)
	for _, exec := range state.run.PhaseHistory {
		latest[exec.Phase] = exec.Status
	}
	for _, phase := range phaseOrder {
		if latest[phase] == storage.PhaseStatusFailed {
			if hardPhases[phase] {
				return storage.RunStatusFailed
			}
			return storage.RunStatusPartiallyFailed
		}
	}
	return storage.RunStatusCompleted
}

// matchedTotal sums the amounts of expenses that matched in at least one
// ledger.
func matchedTotal(expenses []domain.ExtractedExpense, matches []domain.ArbitratedMatch) float64 {
	amounts := make(map[string]float64, len(expenses))
	for _, e := range expenses {
		amounts[e.ID] = e.Amount
	}
	total := 0.0
	for _, m := range matches {
		if m.LedgerAMatch != nil || m.LedgerBMatch != nil {
			total += amounts[m.ExpenseID]
		}
	}
	return total
}

func nextAttempt(history []storage.PhaseExecution, phase string) int {
	attempt := 1
	for _, exec := range history {
		if exec.Phase == phase {
			attempt++
		}
	}
	return attempt
}

func validPhase(phase string) bool {
	for _, p := range phaseOrder {
		if p == phase {
			return true
		}
	}
	return false
}
