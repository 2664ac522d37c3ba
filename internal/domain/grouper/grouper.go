// Package grouper partitions ledger transactions into event-keyed groups
// and reports which ledgers cover each event.
//
// An event only qualifies for matching when it has transactions in both
// ledgers. Events present in a single ledger are reported with coverage
// flags so the caller can log the gap, but they never reach the matcher.
package grouper

import (
	"sort"
	"strings"

	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain"
)

// Groups is the result of one grouping pass. Transactions are retained
// per event so the matching phase can fetch them without re-scanning the
// full ledgers.
type Groups struct {
	Coverage map[string]domain.EventCoverage
	LedgerA  map[string][]domain.Transaction
	LedgerB  map[string][]domain.Transaction
}

// Group partitions both ledgers by normalized event ID. The result is
// deterministic regardless of input row order.
func Group(ledgerA, ledgerB []domain.Transaction) *Groups {
	g := &Groups{
		Coverage: make(map[string]domain.EventCoverage),
		LedgerA:  make(map[string][]domain.Transaction),
		LedgerB:  make(map[string][]domain.Transaction),
	}

	for _, tx := range ledgerA {
		eventID := NormalizeEventID(tx.EventID)
		if eventID == "" {
			continue
		}
		g.LedgerA[eventID] = append(g.LedgerA[eventID], tx)
		cov := g.Coverage[eventID]
		cov.EventID = eventID
		cov.HasLedgerA = true
		cov.LedgerACount++
		cov.LedgerATotal += tx.Amount
		g.Coverage[eventID] = cov
	}

	for _, tx := range ledgerB {
		eventID := NormalizeEventID(tx.EventID)
		if eventID == "" {
			continue
		}
		g.LedgerB[eventID] = append(g.LedgerB[eventID], tx)
		cov := g.Coverage[eventID]
		cov.EventID = eventID
		cov.HasLedgerB = true
		cov.LedgerBCount++
		cov.LedgerBTotal += tx.Amount
		g.Coverage[eventID] = cov
	}

	// Row order within an event must not depend on input order
	for _, txs := range g.LedgerA {
		sortByID(txs)
	}
	for _, txs := range g.LedgerB {
		sortByID(txs)
	}

	return g
}

// ReadyEventIDs returns the sorted IDs of events covered by both ledgers.
func (g *Groups) ReadyEventIDs() []string {
	ids := make([]string, 0, len(g.Coverage))
	for id, cov := range g.Coverage {
		if cov.Ready() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// GapEventIDs returns the sorted IDs of events present in only one ledger.
func (g *Groups) GapEventIDs() []string {
	ids := make([]string, 0)
	for id, cov := range g.Coverage {
		if !cov.Ready() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// NormalizeEventID folds case and whitespace so formatting differences
// between the two ledgers ("evt100", " EVT100 ") group together.
func NormalizeEventID(id string) string {
	return strings.ToUpper(strings.Join(strings.Fields(id), " "))
}

func sortByID(txs []domain.Transaction) {
	sort.Slice(txs, func(i, j int) bool { return txs[i].ID < txs[j].ID })
}
