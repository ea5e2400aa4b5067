package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/cbledger/internal/adapter/http/dto"
	"github.com/iho/cbledger/internal/domain"
	"github.com/iho/cbledger/internal/usecase"
)

// PoolService defines the behavior needed by PoolHandler.
type PoolService interface {
	CreatePool(ctx context.Context, input usecase.CreatePoolInput) (*domain.Pool, error)
	GetPool(ctx context.Context, id string) (*domain.Pool, error)
	ListPools(ctx context.Context, year int) ([]*domain.Pool, error)
}

// PoolHandler handles pooling HTTP requests.
type PoolHandler struct {
	poolingUC PoolService
}

// NewPoolHandler creates a new PoolHandler.
func NewPoolHandler(poolingUC PoolService) *PoolHandler {
	return &PoolHandler{poolingUC: poolingUC}
}

// Create validates and settles a pool.
func (h *PoolHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreatePoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	pool, err := h.poolingUC.CreatePool(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, r, "failed to create pool", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.PoolFromDomain(pool))
}

// Get retrieves a pool by ID.
func (h *PoolHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing pool ID", "")
		return
	}

	pool, err := h.poolingUC.GetPool(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, "failed to get pool", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PoolFromDomain(pool))
}

// List lists the pools of a year.
func (h *PoolHandler) List(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year", err.Error())
		return
	}

	pools, err := h.poolingUC.ListPools(r.Context(), year)
	if err != nil {
		writeDomainError(w, r, "failed to list pools", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PoolsFromDomain(pools))
}
