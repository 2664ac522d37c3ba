package matcher

import (
	"context"

	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain"
)

// Weights holds the per-criterion weights applied to a pair score.
type Weights struct {
	Amount   float64
	Date     float64
	Vendor   float64
	Currency float64
}

// Config holds matcher configuration
type Config struct {
	AmountTolerance float64 // fraction of the larger amount (default: 0.01)
	DateTolerance   int     // days (default: 3)
	FuzzyThreshold  float64 // vendor similarity below this scores 0 (default: 0.45)
	MinScore        float64 // candidates below this are dropped
	Weights         Weights
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		AmountTolerance: 0.01,
		DateTolerance:   3,
		FuzzyThreshold:  0.45,
		MinScore:        0.3,
		Weights: Weights{
			Amount:   0.4,
			Date:     0.3,
			Vendor:   0.2,
			Currency: 0.1,
		},
	}
}

// PairScore is the scored comparison of one (expense, transaction) pair.
type PairScore struct {
	Scores    domain.CriterionScores
	Weighted  float64
	Rationale string
}

// Scorer scores one (expense, transaction) pair within a single ledger.
//
// Two implementations exist: the deterministic toolkit scorer and the
// reasoning-service scorer. The matcher selects between them at call time;
// a Scorer error never fails matching, it triggers the deterministic
// fallback.
type Scorer interface {
	ScorePair(ctx context.Context, expense domain.ExtractedExpense, tx domain.Transaction, system domain.SourceSystem) (PairScore, error)
}
