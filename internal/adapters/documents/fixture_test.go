package documents

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/errs"
)

func testExpenses() []domain.ExtractedExpense {
	return []domain.ExtractedExpense{
		{ID: "exp-1", EventID: "EVT100", Amount: 285.50, Currency: "USD",
			Date: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), Vendor: "Marriott Downtown"},
		{ID: "exp-2", EventID: "evt100", Amount: 45.20, Currency: "USD",
			Date: time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), Vendor: "Starbucks"},
		{ID: "exp-3", EventID: "EVT200", Amount: 120.00, Currency: "USD",
			Date: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), Vendor: "Delta"},
	}
}

func TestExtractExpenses_GroupsByNormalizedEventID(t *testing.T) {
	// Arrange
	processor, err := NewStaticProcessor(testExpenses())
	require.NoError(t, err)

	// Act: "evt100" in the fixture folds into the same event as "EVT100".
	expenses, err := processor.ExtractExpenses(context.Background(), "EVT100")

	// Assert
	require.NoError(t, err)
	require.Len(t, expenses, 2)
	assert.Equal(t, "exp-1", expenses[0].ID)
	assert.Equal(t, "exp-2", expenses[1].ID)
}

func TestExtractExpenses_UnknownEventIsEmpty(t *testing.T) {
	processor, err := NewStaticProcessor(testExpenses())
	require.NoError(t, err)

	expenses, err := processor.ExtractExpenses(context.Background(), "EVT999")

	require.NoError(t, err)
	assert.Empty(t, expenses)
}

func TestNewStaticProcessor_MissingIDRejected(t *testing.T) {
	_, err := NewStaticProcessor([]domain.ExtractedExpense{{EventID: "EVT1", Amount: 10}})

	require.Error(t, err)
	assert.Equal(t, errs.KindInput, errs.KindOf(err))
}

func TestNewFixtureProcessor_FromFile(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "expenses.json")
	fixture := `[{"id":"exp-1","event_id":"EVT100","amount":285.5,"currency":"USD","date":"2026-03-10T00:00:00Z","vendor":"Marriott Downtown","extraction_confidence":0.93}]`
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o644))

	// Act
	processor, err := NewFixtureProcessor(path)

	// Assert
	require.NoError(t, err)
	expenses, err := processor.ExtractExpenses(context.Background(), "EVT100")
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, 285.5, expenses[0].Amount)
	assert.Equal(t, 0.93, expenses[0].ExtractionConfidence)
}

func TestNewFixtureProcessor_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expenses.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFixtureProcessor(path)

	require.Error(t, err)
	assert.Equal(t, errs.KindInput, errs.KindOf(err))
}
