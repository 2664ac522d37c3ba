// Package splitter divides an event's matched expense total among its
// participants.
//
// Splits are computed in decimal cents so shares always sum back to the
// exact total; leftover cents from uneven divisions go to the first
// participants in ID order so the distribution is deterministic.
package splitter

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain"
)

// Split methods
const (
	MethodEqual    = "equal"
	MethodWeighted = "weighted"
)

var (
	ErrNoParticipants = errors.New("no participants to split among")
	ErrZeroWeights    = errors.New("weighted split requires at least one positive weight")
)

// SplitEqual divides total evenly among the participants.
func SplitEqual(total float64, participants []domain.Participant) ([]domain.ParticipantShare, error) {
	if len(participants) == 0 {
		return nil, ErrNoParticipants
	}

	ordered := sortedByID(participants)
	amount := decimal.NewFromFloat(total)
	n := decimal.NewFromInt(int64(len(ordered)))

	base := amount.Div(n).RoundDown(2)
	remainder := amount.Sub(base.Mul(n)) // leftover cents

	cent := decimal.New(1, -2)
	shares := make([]domain.ParticipantShare, len(ordered))
	for i, p := range ordered {
		share := base
		if remainder.GreaterThanOrEqual(cent) {
			share = share.Add(cent)
			remainder = remainder.Sub(cent)
		}
		shares[i] = domain.ParticipantShare{
			ParticipantID: p.ID,
			Name:          p.Name,
			Amount:        share.InexactFloat64(),
			Method:        MethodEqual,
		}
	}
	return shares, nil
}

// SplitWeighted divides total proportionally to participant weights.
// Participants with zero weight receive nothing.
func SplitWeighted(total float64, participants []domain.Participant) ([]domain.ParticipantShare, error) {
	if len(participants) == 0 {
		return nil, ErrNoParticipants
	}

	ordered := sortedByID(participants)

	totalWeight := decimal.Zero
	for _, p := range ordered {
		if p.Weight > 0 {
			totalWeight = totalWeight.Add(decimal.NewFromFloat(p.Weight))
		}
	}
	if totalWeight.IsZero() {
		return nil, ErrZeroWeights
	}

	amount := decimal.NewFromFloat(total)
	shares := make([]domain.ParticipantShare, len(ordered))
	allocated := decimal.Zero
	lastPositive := -1

	for i, p := range ordered {
		share := decimal.Zero
		if p.Weight > 0 {
			weight := decimal.NewFromFloat(p.Weight)
			share = amount.Mul(weight).Div(totalWeight).RoundDown(2)
			lastPositive = i
		}
		allocated = allocated.Add(share)
		shares[i] = domain.ParticipantShare{
			ParticipantID: p.ID,
			Name:          p.Name,
			Amount:        share.InexactFloat64(),
			Method:        MethodWeighted,
		}
	}

	// Rounding residue goes to the last weighted participant so the
	// shares sum exactly to the total
	if residue := amount.Sub(allocated); !residue.IsZero() && lastPositive >= 0 {
		adjusted := decimal.NewFromFloat(shares[lastPositive].Amount).Add(residue)
		shares[lastPositive].Amount = adjusted.InexactFloat64()
	}

	return shares, nil
}

func sortedByID(participants []domain.Participant) []domain.Participant {
	ordered := append([]domain.Participant(nil), participants...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	return ordered
}
