package dto

import "github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain"

// StartRunRequest is the body of POST /api/runs.
type StartRunRequest struct {
	Participants []domain.Participant `json:"participants,omitempty"`
	SplitMethod  string               `json:"split_method,omitempty"`
}

// RetryPhaseRequest is the body of POST /api/runs/{id}/retry.
type RetryPhaseRequest struct {
	Phase string `json:"phase"`
}
