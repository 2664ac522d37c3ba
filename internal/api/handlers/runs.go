package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/api/dto"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/application/service"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain/splitter"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/errs"
)

// RunsHandler handles reconciliation run HTTP requests.
type RunsHandler struct {
	*Base
	service *service.ReconcileService
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(svc *service.ReconcileService) *RunsHandler {
	return &RunsHandler{service: svc, Base: &Base{}}
}

// List handles GET /api/runs - returns recent runs, newest first.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", 20)
	status := r.URL.Query().Get("status")

	runs, err := h.service.ListRuns(status, limit)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.RunListResponse{
		Runs:  make([]dto.RunResponse, 0, len(runs)),
		Count: len(runs),
	}
	for _, run := range runs {
		response.Runs = append(response.Runs, dto.ToRunResponse(run, false))
	}
	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/runs/{id} - returns one run with its phase history.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	run, err := h.service.GetRun(runID)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if run == nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("run"))
		return
	}
	h.WriteJSON(w, http.StatusOK, dto.ToRunResponse(run, true))
}

// Start handles POST /api/runs - launches a reconciliation run.
func (h *RunsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req dto.StartRunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
			return
		}
	}

	switch req.SplitMethod {
	case "", splitter.MethodEqual, splitter.MethodWeighted:
	default:
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("split_method must be equal or weighted"))
		return
	}

	runID, err := h.service.StartRun(r.Context(), service.RunRequest{
		Participants: req.Participants,
		SplitMethod:  req.SplitMethod,
	})
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusAccepted, dto.StartRunResponse{RunID: runID, Status: "started"})
}

// Cancel handles DELETE /api/runs/{id} - requests cancellation.
func (h *RunsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	if err := h.service.CancelRun(runID); err != nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("running run"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Retry handles POST /api/runs/{id}/retry - re-executes one phase.
func (h *RunsHandler) Retry(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	var req dto.RetryPhaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Phase == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("phase is required"))
		return
	}

	run, err := h.service.RetryPhase(r.Context(), runID, req.Phase)
	if err != nil {
		if errs.KindOf(err) == errs.KindInput {
			h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
			return
		}
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	h.WriteJSON(w, http.StatusOK, dto.ToRunResponse(run, true))
}

// Matches handles GET /api/runs/{id}/matches - arbitrated matches,
// optionally filtered by ?event_id=.
func (h *RunsHandler) Matches(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	eventID := r.URL.Query().Get("event_id")

	matches, err := h.service.ListMatches(runID, eventID)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	h.WriteJSON(w, http.StatusOK, dto.MatchListResponse{
		RunID:   runID,
		EventID: eventID,
		Matches: matches,
		Count:   len(matches),
	})
}

// Coverage handles GET /api/runs/{id}/coverage - event coverage rows.
func (h *RunsHandler) Coverage(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	coverage, err := h.service.ListEventCoverage(runID)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	h.WriteJSON(w, http.StatusOK, dto.CoverageListResponse{
		RunID:    runID,
		Coverage: coverage,
		Count:    len(coverage),
	})
}

// Reports handles GET /api/runs/{id}/reports - event reports.
func (h *RunsHandler) Reports(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	reports, err := h.service.ListReports(runID)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	h.WriteJSON(w, http.StatusOK, dto.ReportListResponse{
		RunID:   runID,
		Reports: reports,
		Count:   len(reports),
	})
}

// PhaseLog handles GET /api/runs/{id}/log - the phase audit trail.
func (h *RunsHandler) PhaseLog(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	entries, err := h.service.ListPhaseLog(runID)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	h.WriteJSON(w, http.StatusOK, dto.PhaseLogResponse{
		RunID:   runID,
		Entries: entries,
		Count:   len(entries),
	})
}
