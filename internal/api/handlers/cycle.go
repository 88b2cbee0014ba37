package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cloo-solutions/insightd/internal/api"
	"github.com/cloo-solutions/insightd/internal/domain"
	"github.com/cloo-solutions/insightd/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

const maxListLimit = 100

type CycleRunner interface {
	Trigger(ctx context.Context, tier *domain.Priority) (string, error)
	State() pipeline.State
	Latest() *domain.CycleSummary
}

// CycleLedger is the persisted cycle history.
type CycleLedger interface {
	Latest(ctx context.Context) (*domain.CycleSummary, error)
	List(ctx context.Context, limit int) ([]*domain.CycleSummary, error)
	GetByID(ctx context.Context, id string) (*domain.CycleSummary, error)
	Outcomes(ctx context.Context, cycleID string) ([]domain.ItemOutcome, error)
}

type CycleHandler struct {
	runner  CycleRunner
	ledger  CycleLedger
	baseCtx context.Context
}

// NewCycleHandler returns a handler whose triggered cycles run under baseCtx,
// not the request context. ledger may be nil.
func NewCycleHandler(baseCtx context.Context, runner CycleRunner, ledger CycleLedger) *CycleHandler {
	return &CycleHandler{runner: runner, ledger: ledger, baseCtx: baseCtx}
}

type TriggerCycleRequest struct {
	Tier string `json:"tier"`
}

type TriggerCycleResponse struct {
	CycleID string `json:"cycle_id"`
	Tier    string `json:"tier"`
}

type HealthResponse struct {
	Status string `json:"status"`
	State  string `json:"state"`
	Ledger bool   `json:"ledger"`
}

func (h *CycleHandler) Health(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, HealthResponse{
		Status: "ok",
		State:  string(h.runner.State()),
		Ledger: h.ledger != nil,
	})
}

func (h *CycleHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req TriggerCycleRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	var tier *domain.Priority
	if req.Tier != "" && req.Tier != "all" {
		p, err := domain.ParsePriority(req.Tier)
		if err != nil {
			api.HandleError(w, err)
			return
		}
		tier = &p
	}

	id, err := h.runner.Trigger(h.baseCtx, tier)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, TriggerCycleResponse{CycleID: id, Tier: domain.TierLabel(tier)})
}

// Latest prefers the in-memory summary with its item outcomes and falls
// back to the ledger after a restart.
func (h *CycleHandler) Latest(w http.ResponseWriter, r *http.Request) {
	if s := h.runner.Latest(); s != nil {
		api.Success(w, http.StatusOK, s)
		return
	}
	if h.ledger == nil {
		api.Error(w, http.StatusNotFound, "no scan cycle has completed")
		return
	}

	s, err := h.ledger.Latest(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, s)
}

func (h *CycleHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		api.Error(w, http.StatusServiceUnavailable, "scan ledger not configured")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	cycles, err := h.ledger.List(r.Context(), limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, cycles)
}

func (h *CycleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if s := h.runner.Latest(); s != nil && s.ID == id {
		api.Success(w, http.StatusOK, s)
		return
	}
	if h.ledger == nil {
		api.Error(w, http.StatusNotFound, "scan cycle not found")
		return
	}

	s, err := h.ledger.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	items, err := h.ledger.Outcomes(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	s.Items = items
	api.Success(w, http.StatusOK, s)
}
