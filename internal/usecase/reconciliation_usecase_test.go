package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/cbledger/internal/domain"
	"github.com/iho/cbledger/internal/usecase"
	"github.com/iho/cbledger/internal/usecase/mocks"
)

func TestReconcileYear_Consistent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.setRaw(t, "S1", 2025, -30)
	h.setRaw(t, "S2", 2025, 50)
	h.setRaw(t, "S3", 2025, 5)

	_, err := h.pooling.CreatePool(ctx, usecase.CreatePoolInput{Year: 2025, Members: members("S1", "S2")})
	require.NoError(t, err)

	report, err := h.reconciliation.ReconcileYear(ctx, 2025)
	require.NoError(t, err)

	assert.True(t, report.Consistent())
	assert.Equal(t, 3, report.Records)
	assert.Equal(t, 1, report.Pools)
	assert.True(t, report.FleetCB.Equal(dec("25")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ReconciliationRuns.WithLabelValues("consistent")))
}

func TestReconcileYear_Discrepancies(t *testing.T) {
	ctrl := gomock.NewController(t)

	poolID := "P1"
	broken := domain.NewShipYearRecord("S1", 2025, time.Now())
	broken.BankedIn = dec("5")
	broken.AppliedFromBank = dec("10")
	broken.PoolID = &poolID

	orphan := domain.NewShipYearRecord("S2", 2025, time.Now())
	orphan.PoolAdjustment = dec("3")

	after := dec("100")
	pool := &domain.Pool{ID: poolID, Year: 2025, Members: []domain.PoolMember{
		{ShipID: "S1", AdjustedCBBefore: dec("-5"), AdjustedCBAfter: &after},
		{ShipID: "S9", AdjustedCBBefore: dec("5"), AdjustedCBAfter: &after},
	}}

	records := mocks.NewMockRecordRepository(ctrl)
	records.EXPECT().ListByYear(gomock.Any(), 2025).Return([]*domain.ShipYearRecord{broken, orphan}, nil)

	pools := mocks.NewMockPoolRepository(ctrl)
	pools.EXPECT().ListByYear(gomock.Any(), 2025).Return([]*domain.Pool{pool}, nil)

	store := usecase.NewBalanceStore(mocks.NewMockTransactionManager(ctrl), records, nil, nil, nil)
	uc := usecase.NewReconciliationUseCase(store, pools, nil)

	report, err := uc.ReconcileYear(context.Background(), 2025)
	require.NoError(t, err)

	subjects := make([]string, len(report.Discrepancies))
	for i, d := range report.Discrepancies {
		subjects[i] = d.Subject
	}

	assert.False(t, report.Consistent())
	assert.ElementsMatch(t, []string{"S1/2025", "S2/2025", "pool P1", "pool P1"}, subjects)
}

func TestReconcileYear_PropagatesError(t *testing.T) {
	ctrl := gomock.NewController(t)

	records := mocks.NewMockRecordRepository(ctrl)
	records.EXPECT().ListByYear(gomock.Any(), 2025).Return(nil, errors.New("connection refused"))

	store := usecase.NewBalanceStore(mocks.NewMockTransactionManager(ctrl), records, nil, nil, nil)
	uc := usecase.NewReconciliationUseCase(store, mocks.NewMockPoolRepository(ctrl), nil)

	_, err := uc.ReconcileYear(context.Background(), 2025)
	assert.Error(t, err)
}
