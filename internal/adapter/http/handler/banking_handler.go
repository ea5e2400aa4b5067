package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/iho/cbledger/internal/adapter/http/dto"
	"github.com/iho/cbledger/internal/domain"
	"github.com/iho/cbledger/internal/usecase"
)

// BankingService defines the behavior needed by BankingHandler.
type BankingService interface {
	Bank(ctx context.Context, input usecase.BankingInput) (*domain.BankingKPIs, error)
	Apply(ctx context.Context, input usecase.BankingInput) (*domain.BankingKPIs, error)
	GetRecord(ctx context.Context, shipID string, year int) (*domain.ShipYearRecord, error)
}

// BankingHandler handles banking HTTP requests.
type BankingHandler struct {
	bankingUC BankingService
}

// NewBankingHandler creates a new BankingHandler.
func NewBankingHandler(bankingUC BankingService) *BankingHandler {
	return &BankingHandler{bankingUC: bankingUC}
}

// Bank moves surplus into the bank.
func (h *BankingHandler) Bank(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "failed to bank surplus", h.bankingUC.Bank)
}

// Apply draws banked credit into the current balance.
func (h *BankingHandler) Apply(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "failed to apply banked credit", h.bankingUC.Apply)
}

func (h *BankingHandler) handle(
	w http.ResponseWriter,
	r *http.Request,
	message string,
	op func(context.Context, usecase.BankingInput) (*domain.BankingKPIs, error),
) {
	var req dto.BankingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	kpis, err := op(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, r, message, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BankingKPIsFromDomain(kpis))
}

// GetRecord returns the ledger record of a ship-year.
func (h *BankingHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year", err.Error())
		return
	}

	record, err := h.bankingUC.GetRecord(r.Context(), r.URL.Query().Get("shipId"), year)
	if err != nil {
		writeDomainError(w, r, "failed to get record", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RecordFromDomain(record))
}
