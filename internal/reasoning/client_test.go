package reasoning

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/errs"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/infrastructure/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(config.ReasoningConfig{
		Enabled:        true,
		BaseURL:        server.URL,
		APIKey:         "test-key",
		Model:          "reconcile-v1",
		RequestTimeout: 5 * time.Second,
		MaxRetries:     0,
	}, slog.Default())
}

func testPair() (domain.ExtractedExpense, domain.Transaction) {
	expense := domain.ExtractedExpense{
		ID:       "exp-1",
		EventID:  "EVT100",
		Amount:   285.50,
		Currency: "USD",
		Date:     time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Vendor:   "Marriott Downtown",
	}
	tx := domain.Transaction{
		ID:           "txa-1",
		EventID:      "EVT100",
		Amount:       285.50,
		Currency:     "USD",
		Date:         time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Vendor:       "Marriott Hotels",
		SourceSystem: domain.LedgerA,
	}
	return expense, tx
}

func TestScorePair_Success(t *testing.T) {
	// Arrange
	var got scoreRequest
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/score", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(scoreResponse{
			Scores:    domain.CriterionScores{Amount: 1.0, Date: 1.0, Vendor: 0.9, Currency: 1.0},
			Overall:   0.92,
			Rationale: "amounts and dates align; vendor names refer to the same hotel",
		})
	})
	expense, tx := testPair()

	// Act
	score, err := client.ScorePair(context.Background(), expense, tx, domain.LedgerA)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 0.92, score.Weighted)
	assert.Equal(t, 0.9, score.Scores.Vendor)
	assert.NotEmpty(t, score.Rationale)
	assert.Equal(t, "exp-1", got.Expense.ID)
	assert.Equal(t, "txa-1", got.Transaction.ID)
	assert.Equal(t, domain.LedgerA, got.SourceSystem)
	assert.Equal(t, "reconcile-v1", got.Model)
}

func TestScorePair_NonOKStatus(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	})
	expense, tx := testPair()

	_, err := client.ScorePair(context.Background(), expense, tx, domain.LedgerA)

	require.Error(t, err)
	assert.Equal(t, errs.KindService, errs.KindOf(err))
}

func TestScorePair_MalformedResponse(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json at all"))
	})
	expense, tx := testPair()

	_, err := client.ScorePair(context.Background(), expense, tx, domain.LedgerB)

	require.Error(t, err)
	assert.Equal(t, errs.KindService, errs.KindOf(err))
}

func TestScorePair_ScoreOutOfRange(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(scoreResponse{Overall: 1.7, Rationale: "confident"})
	})
	expense, tx := testPair()

	_, err := client.ScorePair(context.Background(), expense, tx, domain.LedgerA)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside [0, 1]")
}

func TestScorePair_MissingRationale(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(scoreResponse{Overall: 0.8})
	})
	expense, tx := testPair()

	_, err := client.ScorePair(context.Background(), expense, tx, domain.LedgerA)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rationale")
}

func TestScorePair_ContextCancelled(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(scoreResponse{Overall: 0.5, Rationale: "ok"})
	})
	expense, tx := testPair()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ScorePair(ctx, expense, tx, domain.LedgerA)
	require.Error(t, err)
}
