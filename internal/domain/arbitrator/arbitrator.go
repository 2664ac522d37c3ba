// Package arbitrator reconciles the two per-ledger candidate sets for one
// expense into a single arbitrated match.
//
// The arbitrator takes the top candidate from each ledger, averages their
// scores into an overall confidence, and checks that the two ledgers agree
// on what was actually charged. Material disagreement between the ledgers
// caps confidence below the high band no matter how strong the individual
// matches are: the engine must never report high confidence on an expense
// the two systems disagree about.
package arbitrator

import (
	"fmt"
	"math"

	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain"
)

// Config holds the cross-ledger consistency tolerances.
type Config struct {
	AmountTolerance float64 // fraction, same scale as matching tolerance
	DateTolerance   int     // days
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		AmountTolerance: 0.01,
		DateTolerance:   3,
	}
}

// Arbitrator produces the unified cross-ledger match for one expense.
type Arbitrator struct {
	config Config

	// transactions by ID, per ledger, for the consistency check
	ledgerA map[string]domain.Transaction
	ledgerB map[string]domain.Transaction
}

// New creates an arbitrator over one event's transactions. The transaction
// sets are needed to compare what each ledger matched, not just the scores.
func New(config Config, ledgerA, ledgerB []domain.Transaction) *Arbitrator {
	a := &Arbitrator{
		config:  config,
		ledgerA: make(map[string]domain.Transaction, len(ledgerA)),
		ledgerB: make(map[string]domain.Transaction, len(ledgerB)),
	}
	for _, tx := range ledgerA {
		a.ledgerA[tx.ID] = tx
	}
	for _, tx := range ledgerB {
		a.ledgerB[tx.ID] = tx
	}
	return a
}

// Arbitrate unifies the two per-ledger candidate lists (ordered by
// descending score) into one ArbitratedMatch for the expense.
func (a *Arbitrator) Arbitrate(expense domain.ExtractedExpense, ledgerACandidates, ledgerBCandidates []domain.CandidateMatch) domain.ArbitratedMatch {
	match := domain.ArbitratedMatch{
		ExpenseID: expense.ID,
		EventID:   expense.EventID,
	}

	if len(ledgerACandidates) > 0 {
		top := ledgerACandidates[0]
		match.LedgerAMatch = &top
	}
	if len(ledgerBCandidates) > 0 {
		top := ledgerBCandidates[0]
		match.LedgerBMatch = &top
	}

	switch {
	case match.LedgerAMatch != nil && match.LedgerBMatch != nil:
		match.OverallConfidence = (match.LedgerAMatch.WeightedScore + match.LedgerBMatch.WeightedScore) / 2
		match.ConsistencyNotes = a.checkConsistency(match.LedgerAMatch, match.LedgerBMatch)
	case match.LedgerAMatch != nil:
		match.OverallConfidence = match.LedgerAMatch.WeightedScore
		match.ConsistencyNotes = append(match.ConsistencyNotes, "no candidate in ledger B")
	case match.LedgerBMatch != nil:
		match.OverallConfidence = match.LedgerBMatch.WeightedScore
		match.ConsistencyNotes = append(match.ConsistencyNotes, "no candidate in ledger A")
	default:
		match.OverallConfidence = 0
		match.ConsistencyNotes = append(match.ConsistencyNotes, "no candidate in either ledger")
	}

	// Disagreeing ledgers cap confidence just below the high band. This is
	// a correctness requirement, not a tuning knob.
	if len(match.ConsistencyNotes) > 0 && match.LedgerAMatch != nil && match.LedgerBMatch != nil {
		limit := domain.HighConfidenceThreshold - 0.01
		if match.OverallConfidence > limit {
			match.OverallConfidence = limit
		}
	}

	match.Classification = domain.Classify(match.OverallConfidence)
	return match
}

// checkConsistency compares the transactions the two ledgers matched.
// Notes are returned only on material disagreement.
func (a *Arbitrator) checkConsistency(matchA, matchB *domain.CandidateMatch) []string {
	txA, okA := a.ledgerA[matchA.TransactionID]
	txB, okB := a.ledgerB[matchB.TransactionID]
	if !okA || !okB {
		return []string{"matched transaction missing from working set"}
	}

	var notes []string

	base := math.Max(math.Max(math.Abs(txA.Amount), math.Abs(txB.Amount)), 1e-9)
	if math.Abs(txA.Amount-txB.Amount)/base > a.config.AmountTolerance {
		notes = append(notes, fmt.Sprintf(
			"ledger amounts disagree: ledger A %.2f vs ledger B %.2f",
			txA.Amount, txB.Amount,
		))
	}

	if !txA.Date.IsZero() && !txB.Date.IsZero() {
		diffDays := math.Abs(txA.Date.Sub(txB.Date).Hours() / 24)
		if diffDays > float64(a.config.DateTolerance) {
			notes = append(notes, fmt.Sprintf(
				"ledger dates disagree by %.0f days: ledger A %s vs ledger B %s",
				diffDays, txA.Date.Format("2006-01-02"), txB.Date.Format("2006-01-02"),
			))
		}
	}

	return notes
}
