// Package documents provides expense-extraction sources. Extraction itself
// happens in an external document service; this package adapts its output
// for the engine. The fixture source replays a saved extraction result for
// CLI runs and tests.
package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain/grouper"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/errs"
)

// FixtureProcessor serves extracted expenses from a JSON file keyed by
// nothing in particular: the file is a flat array, and the processor indexes
// it by event on load.
type FixtureProcessor struct {
	byEvent map[string][]domain.ExtractedExpense
	all     []domain.ExtractedExpense
}

// NewFixtureProcessor loads a JSON array of extracted expenses from path.
func NewFixtureProcessor(path string) (*FixtureProcessor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindInput, fmt.Sprintf("open expense fixture %s", path), err)
	}

	var expenses []domain.ExtractedExpense
	if err := json.Unmarshal(data, &expenses); err != nil {
		return nil, errs.Wrap(errs.KindInput, fmt.Sprintf("parse expense fixture %s", path), err)
	}

	return NewStaticProcessor(expenses)
}

// NewStaticProcessor wraps an in-memory expense set. Useful for tests and
// for callers that already hold extraction output.
func NewStaticProcessor(expenses []domain.ExtractedExpense) (*FixtureProcessor, error) {
	byEvent := make(map[string][]domain.ExtractedExpense)
	for i, e := range expenses {
		if strings.TrimSpace(e.ID) == "" {
			return nil, errs.Input("expense at index %d has no id", i)
		}
		key := grouper.NormalizeEventID(e.EventID)
		byEvent[key] = append(byEvent[key], e)
	}
	return &FixtureProcessor{byEvent: byEvent, all: expenses}, nil
}

// ExtractExpenses returns the expenses recorded for one event. Unknown
// events yield an empty slice, not an error; absence of expenses is a
// normal reconciliation outcome.
func (p *FixtureProcessor) ExtractExpenses(ctx context.Context, eventID string) ([]domain.ExtractedExpense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	expenses := p.byEvent[grouper.NormalizeEventID(eventID)]
	out := make([]domain.ExtractedExpense, len(expenses))
	copy(out, expenses)
	return out, nil
}

// All returns every expense in the fixture.
func (p *FixtureProcessor) All() []domain.ExtractedExpense {
	out := make([]domain.ExtractedExpense, len(p.all))
	copy(out, p.all)
	return out
}
