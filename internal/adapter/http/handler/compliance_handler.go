package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/iho/cbledger/internal/adapter/http/dto"
	"github.com/iho/cbledger/internal/domain"
	"github.com/iho/cbledger/internal/usecase"
)

// ComplianceService defines the behavior needed by ComplianceHandler.
type ComplianceService interface {
	GetCB(ctx context.Context, shipID string, year int) (decimal.Decimal, error)
	GetAdjustedCBForYear(ctx context.Context, year int) ([]domain.PoolMember, error)
	SetRawCB(ctx context.Context, shipID string, year int, value float64) error
	SyncFromRoutes(ctx context.Context, year int) (map[string]decimal.Decimal, error)
}

// Reconciler checks a year of the ledger.
type Reconciler interface {
	ReconcileYear(ctx context.Context, year int) (*usecase.ReconciliationReport, error)
}

// ComplianceHandler serves compliance balance queries.
type ComplianceHandler struct {
	complianceUC ComplianceService
	reconciler   Reconciler
}

// NewComplianceHandler creates a new ComplianceHandler.
func NewComplianceHandler(complianceUC ComplianceService, reconciler Reconciler) *ComplianceHandler {
	return &ComplianceHandler{complianceUC: complianceUC, reconciler: reconciler}
}

// GetCB returns the current balance of a ship, or of the fleet when shipId is omitted.
func (h *ComplianceHandler) GetCB(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year", err.Error())
		return
	}

	shipID := r.URL.Query().Get("shipId")

	cb, err := h.complianceUC.GetCB(r.Context(), shipID, year)
	if err != nil {
		writeDomainError(w, r, "failed to get compliance balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CBResponse{CB: dto.NumberFrom(cb), ShipID: shipID, Year: year})
}

// SetCB overwrites the raw balance of a ship-year.
func (h *ComplianceHandler) SetCB(w http.ResponseWriter, r *http.Request) {
	var req dto.SetCBRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := h.complianceUC.SetRawCB(r.Context(), req.ShipID, req.Year, req.CB); err != nil {
		writeDomainError(w, r, "failed to set compliance balance", err)
		return
	}

	cb, err := h.complianceUC.GetCB(r.Context(), req.ShipID, req.Year)
	if err != nil {
		writeDomainError(w, r, "failed to get compliance balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CBResponse{CB: dto.NumberFrom(cb), ShipID: req.ShipID, Year: req.Year})
}

// Sync derives raw balances for a year from the stored routes.
func (h *ComplianceHandler) Sync(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year", err.Error())
		return
	}

	totals, err := h.complianceUC.SyncFromRoutes(r.Context(), year)
	if err != nil {
		writeDomainError(w, r, "failed to sync from routes", err)
		return
	}

	resp := dto.SyncResponse{Totals: make(map[string]dto.Number, len(totals)), Year: year}
	for shipID, cb := range totals {
		resp.Totals[shipID] = dto.NumberFrom(cb)
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetAdjustedCB lists every ship's adjusted balance for a year.
func (h *ComplianceHandler) GetAdjustedCB(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year", err.Error())
		return
	}

	members, err := h.complianceUC.GetAdjustedCBForYear(r.Context(), year)
	if err != nil {
		writeDomainError(w, r, "failed to get adjusted compliance balances", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PoolMembersFromDomain(members))
}

// Reconcile runs the ledger consistency checks for a year.
func (h *ComplianceHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year", err.Error())
		return
	}

	report, err := h.reconciler.ReconcileYear(r.Context(), year)
	if err != nil {
		writeDomainError(w, r, "failed to reconcile", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationFromReport(report))
}
