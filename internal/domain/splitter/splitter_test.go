package splitter

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain"
)

func sumShares(t *testing.T, shares []domain.ParticipantShare) decimal.Decimal {
	t.Helper()
	sum := decimal.Zero
	for _, s := range shares {
		sum = sum.Add(decimal.NewFromFloat(s.Amount))
	}
	return sum
}

func TestSplitEqual_EvenDivision(t *testing.T) {
	participants := []domain.Participant{
		{ID: "p1", Name: "Alice"},
		{ID: "p2", Name: "Bob"},
	}

	shares, err := SplitEqual(285.50, participants)
	require.NoError(t, err)

	require.Len(t, shares, 2)
	assert.Equal(t, 142.75, shares[0].Amount)
	assert.Equal(t, 142.75, shares[1].Amount)
}

func TestSplitEqual_RemainderCentsGoToFirstParticipants(t *testing.T) {
	participants := []domain.Participant{
		{ID: "p1", Name: "Alice"},
		{ID: "p2", Name: "Bob"},
		{ID: "p3", Name: "Carol"},
	}

	shares, err := SplitEqual(100.00, participants)
	require.NoError(t, err)

	// 100.00 / 3 = 33.33 with one cent left over
	assert.Equal(t, 33.34, shares[0].Amount)
	assert.Equal(t, 33.33, shares[1].Amount)
	assert.Equal(t, 33.33, shares[2].Amount)
	assert.True(t, sumShares(t, shares).Equal(decimal.NewFromFloat(100.00)))
}

func TestSplitEqual_DeterministicRegardlessOfInputOrder(t *testing.T) {
	forward := []domain.Participant{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}}
	backward := []domain.Participant{{ID: "p3"}, {ID: "p2"}, {ID: "p1"}}

	a, err := SplitEqual(200.00, forward)
	require.NoError(t, err)
	b, err := SplitEqual(200.00, backward)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestSplitEqual_NoParticipants(t *testing.T) {
	_, err := SplitEqual(100.00, nil)
	assert.ErrorIs(t, err, ErrNoParticipants)
}

func TestSplitWeighted_Proportional(t *testing.T) {
	participants := []domain.Participant{
		{ID: "p1", Name: "Alice", Weight: 3},
		{ID: "p2", Name: "Bob", Weight: 1},
	}

	shares, err := SplitWeighted(100.00, participants)
	require.NoError(t, err)

	assert.Equal(t, 75.00, shares[0].Amount)
	assert.Equal(t, 25.00, shares[1].Amount)
}

func TestSplitWeighted_SumsToTotalWithRounding(t *testing.T) {
	participants := []domain.Participant{
		{ID: "p1", Weight: 1},
		{ID: "p2", Weight: 1},
		{ID: "p3", Weight: 1},
	}

	shares, err := SplitWeighted(100.00, participants)
	require.NoError(t, err)

	assert.True(t, sumShares(t, shares).Equal(decimal.NewFromFloat(100.00)))
}

func TestSplitWeighted_ZeroWeightGetsNothing(t *testing.T) {
	participants := []domain.Participant{
		{ID: "p1", Weight: 2},
		{ID: "p2", Weight: 0},
	}

	shares, err := SplitWeighted(50.00, participants)
	require.NoError(t, err)

	assert.Equal(t, 50.00, shares[0].Amount)
	assert.Equal(t, 0.00, shares[1].Amount)
}

func TestSplitWeighted_AllZeroWeights(t *testing.T) {
	_, err := SplitWeighted(50.00, []domain.Participant{{ID: "p1"}, {ID: "p2"}})
	assert.ErrorIs(t, err, ErrZeroWeights)
}
