package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iho/cbledger/internal/domain"
	"github.com/iho/cbledger/internal/usecase"
)

type bankingServiceStub struct {
	bankFn   func(ctx context.Context, input usecase.BankingInput) (*domain.BankingKPIs, error)
	applyFn  func(ctx context.Context, input usecase.BankingInput) (*domain.BankingKPIs, error)
	recordFn func(ctx context.Context, shipID string, year int) (*domain.ShipYearRecord, error)
}

func (s *bankingServiceStub) Bank(ctx context.Context, input usecase.BankingInput) (*domain.BankingKPIs, error) {
	return s.bankFn(ctx, input)
}

func (s *bankingServiceStub) Apply(ctx context.Context, input usecase.BankingInput) (*domain.BankingKPIs, error) {
	return s.applyFn(ctx, input)
}

func (s *bankingServiceStub) GetRecord(ctx context.Context, shipID string, year int) (*domain.ShipYearRecord, error) {
	return s.recordFn(ctx, shipID, year)
}

func TestBankingHandler_Bank(t *testing.T) {
	var captured usecase.BankingInput

	h := NewBankingHandler(&bankingServiceStub{
		bankFn: func(_ context.Context, input usecase.BankingInput) (*domain.BankingKPIs, error) {
			captured = input
			return &domain.BankingKPIs{
				CBBefore: decimal.NewFromInt(100),
				Applied:  input.Amount,
				CBAfter:  decimal.NewFromInt(100),
			}, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/banking/bank",
		strings.NewReader(`{"shipId":"S1","year":2030,"amount":40}`))
	rec := httptest.NewRecorder()

	h.Bank(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if captured.ShipID != "S1" || captured.Year != 2030 || !captured.Amount.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected input to match request, got %+v", captured)
	}

	var resp map[string]float64
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp["cb_before"] != 100 || resp["applied"] != 40 || resp["cb_after"] != 100 {
		t.Fatalf("unexpected KPIs %v", resp)
	}
}

func TestBankingHandler_ApplyErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"malformed body", `{"amount":`, nil, http.StatusBadRequest},
		{"insufficient credit", `{"shipId":"S1","year":2030,"amount":999}`, domain.ErrInsufficientBankedCredit, http.StatusUnprocessableEntity},
		{"invalid amount", `{"shipId":"S1","year":2030,"amount":0}`, domain.ErrInvalidAmount, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewBankingHandler(&bankingServiceStub{
				applyFn: func(context.Context, usecase.BankingInput) (*domain.BankingKPIs, error) {
					return nil, tt.err
				},
			})

			rec := httptest.NewRecorder()
			h.Apply(rec, httptest.NewRequest(http.MethodPost, "/banking/apply", strings.NewReader(tt.body)))

			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestBankingHandler_GetRecord(t *testing.T) {
	h := NewBankingHandler(&bankingServiceStub{
		recordFn: func(_ context.Context, shipID string, year int) (*domain.ShipYearRecord, error) {
			r := &domain.ShipYearRecord{ShipID: shipID, Year: year}
			r.RawCB = decimal.NewFromInt(100)
			r.BankedIn = decimal.NewFromInt(40)
			r.AppliedFromBank = decimal.NewFromInt(10)
			return r, nil
		},
	})

	rec := httptest.NewRecorder()
	h.GetRecord(rec, httptest.NewRequest(http.MethodGet, "/banking/records?shipId=S1&year=2030", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ShipID          string  `json:"shipId"`
		RemainingCredit float64 `json:"remainingCredit"`
		CBAfter         float64 `json:"cbAfter"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.ShipID != "S1" || resp.RemainingCredit != 30 || resp.CBAfter != 110 {
		t.Fatalf("unexpected record %+v", resp)
	}

	rec = httptest.NewRecorder()
	h.GetRecord(rec, httptest.NewRequest(http.MethodGet, "/banking/records?shipId=S1", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without year, got %d", rec.Code)
	}
}
