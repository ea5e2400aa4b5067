package usecase_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/iho/cbledger/internal/adapter/repository/memory"
	"github.com/iho/cbledger/internal/infrastructure/metrics"
	"github.com/iho/cbledger/internal/usecase"
)

type seqIDGenerator struct {
	n atomic.Int64
}

func (g *seqIDGenerator) Generate() string {
	return fmt.Sprintf("pool-%d", g.n.Add(1))
}

type harness struct {
	store          *usecase.BalanceStore
	banking        *usecase.BankingUseCase
	pooling        *usecase.PoolingUseCase
	compliance     *usecase.ComplianceUseCase
	routes         *usecase.RouteUseCase
	reconciliation *usecase.ReconciliationUseCase
	records        *memory.RecordRepository
	pools          *memory.PoolRepository
	metrics        *metrics.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	s := memory.NewStore()
	records := memory.NewRecordRepository(s)
	pools := memory.NewPoolRepository(s)
	routeRepo := memory.NewRouteRepository(s)
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())

	store := usecase.NewBalanceStore(memory.NewTxManager(s), records, nil, nil, m)

	return &harness{
		store:          store,
		banking:        usecase.NewBankingUseCase(store, m),
		pooling:        usecase.NewPoolingUseCase(store, pools, &seqIDGenerator{}, m),
		compliance:     usecase.NewComplianceUseCase(store, routeRepo, nil, 0, m),
		routes:         usecase.NewRouteUseCase(routeRepo),
		reconciliation: usecase.NewReconciliationUseCase(store, pools, m),
		records:        records,
		pools:          pools,
		metrics:        m,
	}
}

func (h *harness) setRaw(t *testing.T, shipID string, year int, value float64) {
	t.Helper()

	if err := h.store.SetRawCB(context.Background(), shipID, year, value); err != nil {
		t.Fatalf("SetRawCB(%s): %v", shipID, err)
	}
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func decPtr(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}
