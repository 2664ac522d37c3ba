package matcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain"
)

func makeExpense(id string, amount float64, date time.Time, vendor string) domain.ExtractedExpense {
	return domain.ExtractedExpense{
		ID:       id,
		EventID:  "EVT100",
		Amount:   amount,
		Currency: "USD",
		Date:     date,
		Vendor:   vendor,
	}
}

func makeTransaction(id string, amount float64, date time.Time, vendor string) domain.Transaction {
	return domain.Transaction{
		ID:           id,
		EventID:      "EVT100",
		Amount:       amount,
		Currency:     "USD",
		Date:         date,
		Vendor:       vendor,
		SourceSystem: domain.LedgerA,
	}
}

// failingScorer always errors, forcing the deterministic fallback.
type failingScorer struct {
	calls int
}

func (f *failingScorer) ScorePair(context.Context, domain.ExtractedExpense, domain.Transaction, domain.SourceSystem) (PairScore, error) {
	f.calls++
	return PairScore{}, errors.New("service unavailable")
}

// fixedScorer returns a constant score for every pair.
type fixedScorer struct {
	score     float64
	rationale string
}

func (f *fixedScorer) ScorePair(context.Context, domain.ExtractedExpense, domain.Transaction, domain.SourceSystem) (PairScore, error) {
	return PairScore{Weighted: f.score, Rationale: f.rationale}, nil
}

func TestMatcher_IdenticalPairScoresOne(t *testing.T) {
	m := New(DefaultConfig(), nil, nil)
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	expense := makeExpense("exp-1", 285.50, date, "Marriott Hotels")
	tx := makeTransaction("tx-1", 285.50, date, "Marriott Hotels")

	candidates := m.Score(context.Background(), expense, []domain.Transaction{tx}, domain.LedgerA)

	require.Len(t, candidates, 1)
	assert.InDelta(t, 1.0, candidates[0].WeightedScore, 0.0001)
	assert.Equal(t, 1.0, candidates[0].Scores.Amount)
	assert.Equal(t, 1.0, candidates[0].Scores.Date)
	assert.Equal(t, 1.0, candidates[0].Scores.Vendor)
	assert.Equal(t, 1.0, candidates[0].Scores.Currency)
}

func TestMatcher_OrdersByDescendingScore(t *testing.T) {
	m := New(DefaultConfig(), nil, nil)
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	expense := makeExpense("exp-1", 285.50, date, "Marriott Hotels")

	transactions := []domain.Transaction{
		makeTransaction("tx-far", 285.50, date.AddDate(0, 0, 2), "Marriott Hotels"),
		makeTransaction("tx-exact", 285.50, date, "Marriott Hotels"),
	}

	candidates := m.Score(context.Background(), expense, transactions, domain.LedgerA)

	require.Len(t, candidates, 2)
	assert.Equal(t, "tx-exact", candidates[0].TransactionID)
	assert.Equal(t, "tx-far", candidates[1].TransactionID)
	assert.Greater(t, candidates[0].WeightedScore, candidates[1].WeightedScore)
}

func TestMatcher_DropsCandidatesBelowMinScore(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinScore = 0.5
	m := New(cfg, nil, nil)
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	expense := makeExpense("exp-1", 285.50, date, "Marriott Hotels")

	// Wrong amount, far date, unrelated vendor: only currency matches
	transactions := []domain.Transaction{
		makeTransaction("tx-bad", 950.00, date.AddDate(0, 0, 30), "Delta Airlines"),
	}

	candidates := m.Score(context.Background(), expense, transactions, domain.LedgerA)

	assert.Empty(t, candidates)
}

func TestMatcher_FuzzyThresholdGatesVendorCriterion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinScore = 0
	m := New(cfg, nil, nil)
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	expense := makeExpense("exp-1", 285.50, date, "Marriott Hotels")

	// Exact amount, date, and currency; unrelated vendor
	unrelated := makeTransaction("tx-1", 285.50, date, "Delta Airlines")
	candidates := m.Score(context.Background(), expense, []domain.Transaction{unrelated}, domain.LedgerA)

	require.Len(t, candidates, 1)
	assert.Equal(t, 0.0, candidates[0].Scores.Vendor)
	assert.InDelta(t, 0.8, candidates[0].WeightedScore, 0.0001)

	// Raising the threshold above a genuine abbreviation's similarity
	// zeroes that vendor contribution too
	cfg.FuzzyThreshold = 0.99
	m = New(cfg, nil, nil)
	abbreviated := makeTransaction("tx-2", 285.50, date, "Marriott International")
	candidates = m.Score(context.Background(), expense, []domain.Transaction{abbreviated}, domain.LedgerA)

	require.Len(t, candidates, 1)
	assert.Equal(t, 0.0, candidates[0].Scores.Vendor)
}

func TestMatcher_WeightsAreInjectedNotHardcoded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights = Weights{Amount: 1.0} // amount only
	m := New(cfg, nil, nil)
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	expense := makeExpense("exp-1", 100.00, date, "Marriott Hotels")

	// Exact amount, everything else wildly off
	tx := makeTransaction("tx-1", 100.00, date.AddDate(0, 0, 60), "Delta Airlines")
	tx.Currency = "EUR"

	candidates := m.Score(context.Background(), expense, []domain.Transaction{tx}, domain.LedgerA)

	require.Len(t, candidates, 1)
	assert.InDelta(t, 1.0, candidates[0].WeightedScore, 0.0001)
}

func TestMatcher_FallsBackWhenServiceFails(t *testing.T) {
	scorer := &failingScorer{}
	m := New(DefaultConfig(), scorer, nil)
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	expense := makeExpense("exp-1", 285.50, date, "Marriott Hotels")
	tx := makeTransaction("tx-1", 285.50, date, "Marriott Hotels")

	candidates := m.Score(context.Background(), expense, []domain.Transaction{tx}, domain.LedgerA)

	require.Len(t, candidates, 1)
	assert.Equal(t, 1, scorer.calls)
	// Fallback is recorded in the rationale, and the deterministic score applies
	assert.Contains(t, candidates[0].Rationale, "fallback after service error")
	assert.InDelta(t, 1.0, candidates[0].WeightedScore, 0.0001)
}

func TestMatcher_UsesServiceScoreWhenAvailable(t *testing.T) {
	m := New(DefaultConfig(), &fixedScorer{score: 0.77, rationale: "service: strong vendor match"}, nil)
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	expense := makeExpense("exp-1", 285.50, date, "Marriott Hotels")
	tx := makeTransaction("tx-1", 10.00, date.AddDate(0, 0, 30), "Unrelated")

	candidates := m.Score(context.Background(), expense, []domain.Transaction{tx}, domain.LedgerA)

	require.Len(t, candidates, 1)
	assert.Equal(t, 0.77, candidates[0].WeightedScore)
	assert.Equal(t, "service: strong vendor match", candidates[0].Rationale)
}

func TestMatcher_NoExclusivityAcrossExpenses(t *testing.T) {
	m := New(DefaultConfig(), nil, nil)
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	tx := makeTransaction("tx-1", 285.50, date, "Marriott Hotels")

	first := m.Score(context.Background(), makeExpense("exp-1", 285.50, date, "Marriott Hotels"), []domain.Transaction{tx}, domain.LedgerA)
	second := m.Score(context.Background(), makeExpense("exp-2", 285.50, date, "Marriott Hotels"), []domain.Transaction{tx}, domain.LedgerA)

	// The same transaction is a candidate for both expenses; exclusivity is
	// not resolved at this layer
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, "tx-1", first[0].TransactionID)
	assert.Equal(t, "tx-1", second[0].TransactionID)
}

func TestMatcher_EmptyTransactions(t *testing.T) {
	m := New(DefaultConfig(), nil, nil)
	expense := makeExpense("exp-1", 285.50, time.Now(), "Marriott Hotels")

	candidates := m.Score(context.Background(), expense, nil, domain.LedgerA)

	assert.Empty(t, candidates)
}
