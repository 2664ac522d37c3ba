// Package domain defines the core records that flow through the
// reconciliation engine: ledger transactions, extracted expenses, and the
// match results produced by scoring and arbitration.
package domain

import "time"

// SourceSystem identifies which of the two independent ledgers a
// transaction came from.
type SourceSystem string

const (
	LedgerA SourceSystem = "ledger_a"
	LedgerB SourceSystem = "ledger_b"
)

// Transaction is one normalized ledger row. Rows are validated at ingestion;
// the engine treats them as immutable for the duration of a run.
type Transaction struct {
	ID           string       `json:"id"`
	EventID      string       `json:"event_id"`
	Amount       float64      `json:"amount"`
	Currency     string       `json:"currency"`
	Date         time.Time    `json:"date"`
	Vendor       string       `json:"vendor"`
	Description  string       `json:"description"`
	SourceSystem SourceSystem `json:"source_system"`
}

// ExtractedExpense is one expense record produced by the external document
// service, tagged with the event it belongs to. Read-only input to matching.
type ExtractedExpense struct {
	ID                   string    `json:"id"`
	EventID              string    `json:"event_id"`
	Amount               float64   `json:"amount"`
	Currency             string    `json:"currency"`
	Date                 time.Time `json:"date"`
	Vendor               string    `json:"vendor"`
	Category             string    `json:"category,omitempty"`
	Description          string    `json:"description,omitempty"`
	ExtractionConfidence float64   `json:"extraction_confidence"`
}

// CriterionScores holds the per-criterion breakdown behind a weighted score.
type CriterionScores struct {
	Amount   float64 `json:"amount"`
	Date     float64 `json:"date"`
	Vendor   float64 `json:"vendor"`
	Currency float64 `json:"currency"`
}

// CandidateMatch is a scored pairing between one expense and one transaction
// within a single ledger. Candidates live only for one matching pass; only
// the arbitrated result is persisted.
type CandidateMatch struct {
	ExpenseID     string          `json:"expense_id"`
	TransactionID string          `json:"transaction_id"`
	SourceSystem  SourceSystem    `json:"source_system"`
	Scores        CriterionScores `json:"scores"`
	WeightedScore float64         `json:"weighted_score"`
	Rationale     string          `json:"rationale"`
}

// Classification bands an overall confidence into High/Medium/Low.
type Classification string

const (
	ClassificationHigh   Classification = "high"
	ClassificationMedium Classification = "medium"
	ClassificationLow    Classification = "low"
)

// Confidence band thresholds. Classification is a pure function of the
// overall confidence; nothing else may influence the band.
const (
	HighConfidenceThreshold   = 0.8
	MediumConfidenceThreshold = 0.6
)

// Classify maps an overall confidence to its band.
func Classify(confidence float64) Classification {
	switch {
	case confidence >= HighConfidenceThreshold:
		return ClassificationHigh
	case confidence >= MediumConfidenceThreshold:
		return ClassificationMedium
	default:
		return ClassificationLow
	}
}

// ArbitratedMatch is the unified cross-ledger reconciliation result for one
// expense. It holds at most one candidate per source system. Re-running a
// reconciliation supersedes the previous result rather than mutating it.
type ArbitratedMatch struct {
	ExpenseID         string          `json:"expense_id"`
	EventID           string          `json:"event_id"`
	LedgerAMatch      *CandidateMatch `json:"ledger_a_match,omitempty"`
	LedgerBMatch      *CandidateMatch `json:"ledger_b_match,omitempty"`
	OverallConfidence float64         `json:"overall_confidence"`
	Classification    Classification  `json:"classification"`
	ConsistencyNotes  []string        `json:"consistency_notes,omitempty"`
}

// EventCoverage reports which ledgers an event appears in. Derived data,
// recomputed on every run.
type EventCoverage struct {
	EventID      string  `json:"event_id"`
	HasLedgerA   bool    `json:"has_ledger_a"`
	HasLedgerB   bool    `json:"has_ledger_b"`
	LedgerACount int     `json:"ledger_a_count"`
	LedgerBCount int     `json:"ledger_b_count"`
	LedgerATotal float64 `json:"ledger_a_total"`
	LedgerBTotal float64 `json:"ledger_b_total"`
}

// Ready reports whether the event qualifies for matching: it must have
// transactions in both ledgers.
func (c EventCoverage) Ready() bool {
	return c.HasLedgerA && c.HasLedgerB
}

// Participant is one person attached to an event for expense splitting.
type Participant struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Email  string  `json:"email,omitempty"`
	Weight float64 `json:"weight,omitempty"`
}

// ParticipantShare is one participant's slice of an event's matched
// expense total.
type ParticipantShare struct {
	ParticipantID string  `json:"participant_id"`
	Name          string  `json:"name"`
	Amount        float64 `json:"amount"`
	Method        string  `json:"method"`
}

// EventReport summarizes reconciliation output for one event: how much was
// matched, at what confidence, and who owes what.
type EventReport struct {
	EventID          string                 `json:"event_id"`
	ExpenseCount     int                    `json:"expense_count"`
	MatchedCount     int                    `json:"matched_count"`
	TotalAmount      float64                `json:"total_amount"`
	ByClassification map[Classification]int `json:"by_classification"`
	Shares           []ParticipantShare     `json:"shares,omitempty"`
	GeneratedAt      time.Time              `json:"generated_at"`
}
