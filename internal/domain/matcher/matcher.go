// Package matcher scores extracted expenses against the transactions of a
// single ledger.
//
// For one expense the matcher scores every transaction in the ledger,
// drops candidates below the configured minimum, and returns the rest
// ordered by descending weighted score. Matching is scored independently
// per expense: a transaction claimed by a higher-scoring expense stays in
// consideration for lower-scoring ones. Exclusivity, if ever wanted, is an
// arbitration concern, not a matching one.
//
// Example usage:
//
//	m := matcher.New(matcher.DefaultConfig(), nil, logger)
//	candidates := m.Score(ctx, expense, ledgerTxs, domain.LedgerA)
package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain/similarity"
)

// Matcher scores expense/transaction pairs for one ledger at a time.
type Matcher struct {
	config        Config
	primary       Scorer // optional service-backed scorer, nil = pure fallback mode
	deterministic *DeterministicScorer
	logger        *slog.Logger
}

// New creates a matcher. primary may be nil, in which case every pair is
// scored deterministically.
func New(config Config, primary Scorer, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		config:        config,
		primary:       primary,
		deterministic: NewDeterministicScorer(config),
		logger:        logger,
	}
}

// Score scores the expense against every transaction of one ledger and
// returns candidates ordered by descending weighted score. Candidates
// below the configured minimum score are dropped rather than returned.
func (m *Matcher) Score(ctx context.Context, expense domain.ExtractedExpense, transactions []domain.Transaction, system domain.SourceSystem) []domain.CandidateMatch {
	candidates := make([]domain.CandidateMatch, 0, len(transactions))

	for _, tx := range transactions {
		pair := m.scorePair(ctx, expense, tx, system)
		if pair.Weighted < m.config.MinScore {
			continue
		}

		candidates = append(candidates, domain.CandidateMatch{
			ExpenseID:     expense.ID,
			TransactionID: tx.ID,
			SourceSystem:  system,
			Scores:        pair.Scores,
			WeightedScore: pair.Weighted,
			Rationale:     pair.Rationale,
		})
	}

	// Descending score; transaction ID breaks ties so output is
	// deterministic for identical input
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].WeightedScore != candidates[j].WeightedScore {
			return candidates[i].WeightedScore > candidates[j].WeightedScore
		}
		return candidates[i].TransactionID < candidates[j].TransactionID
	})

	return candidates
}

// scorePair tries the primary scorer first and falls back to the
// deterministic formula on any failure, recording the fallback in the
// rationale. Service failures are warnings, never matching failures.
func (m *Matcher) scorePair(ctx context.Context, expense domain.ExtractedExpense, tx domain.Transaction, system domain.SourceSystem) PairScore {
	if m.primary != nil {
		pair, err := m.primary.ScorePair(ctx, expense, tx, system)
		if err == nil {
			return pair
		}
		m.logger.Warn("reasoning service scoring failed, using deterministic fallback",
			"expense_id", expense.ID,
			"transaction_id", tx.ID,
			"system", system,
			"error", err,
		)
		fallback, _ := m.deterministic.ScorePair(ctx, expense, tx, system)
		fallback.Rationale = fmt.Sprintf("fallback after service error (%v); %s", err, fallback.Rationale)
		return fallback
	}

	pair, _ := m.deterministic.ScorePair(ctx, expense, tx, system)
	return pair
}

// DeterministicScorer applies the weighted similarity formula. It is the
// pure, always-available half of the scoring strategy.
type DeterministicScorer struct {
	config Config
}

// NewDeterministicScorer creates a deterministic scorer with the given config
func NewDeterministicScorer(config Config) *DeterministicScorer {
	return &DeterministicScorer{config: config}
}

// ScorePair computes per-criterion similarity scores and their weighted
// combination. It never returns an error.
func (s *DeterministicScorer) ScorePair(_ context.Context, expense domain.ExtractedExpense, tx domain.Transaction, _ domain.SourceSystem) (PairScore, error) {
	vendor := similarity.TextSimilar(expense.Vendor, tx.Vendor)
	if vendor < s.config.FuzzyThreshold {
		// Below the fuzzy threshold the vendor criterion carries no weight;
		// weak name resemblance must not inflate the match.
		vendor = 0.0
	}

	scores := domain.CriterionScores{
		Amount:   similarity.AmountClose(expense.Amount, tx.Amount, s.config.AmountTolerance),
		Date:     similarity.DateClose(expense.Date, tx.Date, s.config.DateTolerance),
		Vendor:   vendor,
		Currency: similarity.CurrencyMatch(expense.Currency, tx.Currency),
	}

	w := s.config.Weights
	weighted := w.Amount*scores.Amount +
		w.Date*scores.Date +
		w.Vendor*scores.Vendor +
		w.Currency*scores.Currency

	rationale := fmt.Sprintf(
		"deterministic: amount=%.2f date=%.2f vendor=%.2f currency=%.2f",
		scores.Amount, scores.Date, scores.Vendor, scores.Currency,
	)

	return PairScore{Scores: scores, Weighted: weighted, Rationale: rationale}, nil
}
