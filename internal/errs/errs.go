// Package errs defines the reconciliation error taxonomy.
//
// Only PhaseError halts workflow progress. Input, service, and consistency
// problems are absorbed into graded output by the components that detect
// them; they exist here so callers can classify what they absorbed.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a reconciliation error.
type Kind string

const (
	// KindInput marks malformed or incomplete source rows. Rejected at
	// ingestion, never enters scoring.
	KindInput Kind = "input_error"

	// KindService marks external reasoning service failures. Recovered
	// locally via the deterministic fallback.
	KindService Kind = "service_error"

	// KindConsistency marks cross-ledger disagreement beyond tolerance.
	// Surfaced as a capped-confidence match, not a failure.
	KindConsistency Kind = "consistency_error"

	// KindPhase marks a workflow phase that could not produce any output.
	// The only kind that halts progress.
	KindPhase Kind = "phase_error"
)

// Error is a classified reconciliation error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a classified error wrapping a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Input creates an input error.
func Input(format string, args ...any) *Error {
	return New(KindInput, fmt.Sprintf(format, args...))
}

// Service wraps a cause as a service error.
func Service(message string, err error) *Error {
	return Wrap(KindService, message, err)
}

// KindOf extracts the Kind from an error chain. Unclassified errors report
// KindPhase, since anything that escapes a component is a phase problem.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindPhase
}

// PhaseError is the structured failure surfaced to external callers:
// which run, which phase, what kind of error, and a message that never
// exposes internal stack detail.
type PhaseError struct {
	RunID   string
	Phase   string
	Kind    Kind
	Message string
	Err     error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("run %s phase %s: %s: %s", e.RunID, e.Phase, e.Kind, e.Message)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// NewPhaseError classifies err and binds it to a run and phase.
func NewPhaseError(runID, phase string, err error) *PhaseError {
	return &PhaseError{
		RunID:   runID,
		Phase:   phase,
		Kind:    KindOf(err),
		Message: err.Error(),
		Err:     err,
	}
}
