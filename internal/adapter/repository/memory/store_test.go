package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/cbledger/internal/domain"
)

func newRepos() (*Store, *TxManager, *RecordRepository, *PoolRepository) {
	s := NewStore()
	return s, NewTxManager(s), NewRecordRepository(s), NewPoolRepository(s)
}

func TestRecordRepository_CommitPublishesWrites(t *testing.T) {
	ctx := context.Background()
	_, txm, records, _ := newRepos()
	key := domain.RecordKey{ShipID: "S1", Year: 2025}

	tx, err := txm.Begin(ctx)
	require.NoError(t, err)

	locked, err := records.GetForUpdate(ctx, tx, []domain.RecordKey{key})
	require.NoError(t, err)
	require.Len(t, locked, 1)

	locked[0].RawCB = decimal.NewFromInt(100)
	require.NoError(t, records.Save(ctx, tx, locked[0]))

	list, err := records.ListByYear(ctx, 2025)
	require.NoError(t, err)
	assert.Empty(t, list, "staged writes must not be visible before commit")

	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Rollback(ctx))

	got, err := records.GetOrCreate(ctx, "S1", 2025)
	require.NoError(t, err)
	assert.True(t, got.RawCB.Equal(decimal.NewFromInt(100)))
}

func TestRecordRepository_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	_, txm, records, pools := newRepos()

	_, err := records.GetOrCreate(ctx, "S1", 2025)
	require.NoError(t, err)

	tx, err := txm.Begin(ctx)
	require.NoError(t, err)

	locked, err := records.GetForUpdate(ctx, tx, []domain.RecordKey{{ShipID: "S1", Year: 2025}})
	require.NoError(t, err)

	locked[0].BankedIn = decimal.NewFromInt(40)
	require.NoError(t, records.Save(ctx, tx, locked[0]))
	require.NoError(t, pools.Create(ctx, tx, &domain.Pool{ID: "P1", Year: 2025}))
	require.NoError(t, tx.Rollback(ctx))

	got, err := records.GetOrCreate(ctx, "S1", 2025)
	require.NoError(t, err)
	assert.True(t, got.BankedIn.IsZero())

	_, err = pools.GetByID(ctx, "P1")
	assert.ErrorIs(t, err, domain.ErrPoolNotFound)

	assert.ErrorIs(t, tx.Commit(ctx), ErrTxDone)
}

func TestRecordRepository_LockBlocksSecondTransaction(t *testing.T) {
	ctx := context.Background()
	_, txm, records, _ := newRepos()
	keys := []domain.RecordKey{{ShipID: "S1", Year: 2025}}

	tx1, err := txm.Begin(ctx)
	require.NoError(t, err)

	_, err = records.GetForUpdate(ctx, tx1, keys)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	tx2, err := txm.Begin(ctx)
	require.NoError(t, err)

	_, err = records.GetForUpdate(waitCtx, tx2, keys)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	require.NoError(t, tx2.Rollback(ctx))

	require.NoError(t, tx1.Rollback(ctx))

	tx3, err := txm.Begin(ctx)
	require.NoError(t, err)

	_, err = records.GetForUpdate(ctx, tx3, keys)
	require.NoError(t, err)
	require.NoError(t, tx3.Rollback(ctx))
}

func TestRecordRepository_SaveRequiresLock(t *testing.T) {
	ctx := context.Background()
	_, txm, records, _ := newRepos()

	tx, err := txm.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	err = records.Save(ctx, tx, domain.NewShipYearRecord("S1", 2025, time.Now()))
	assert.Error(t, err)
}

func TestRecordRepository_ForeignTransaction(t *testing.T) {
	ctx := context.Background()
	_, _, records, _ := newRepos()
	_, otherTxm, _, _ := newRepos()

	tx, err := otherTxm.Begin(ctx)
	require.NoError(t, err)

	_, err = records.GetForUpdate(ctx, tx, []domain.RecordKey{{ShipID: "S1", Year: 2025}})
	assert.ErrorIs(t, err, ErrForeignTransaction)
}

func TestRecordRepository_ListByYearSorted(t *testing.T) {
	ctx := context.Background()
	_, _, records, _ := newRepos()

	for _, id := range []string{"S3", "S1", "S2"} {
		_, err := records.GetOrCreate(ctx, id, 2025)
		require.NoError(t, err)
	}

	_, err := records.GetOrCreate(ctx, "S9", 2026)
	require.NoError(t, err)

	list, err := records.ListByYear(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "S1", list[0].ShipID)
	assert.Equal(t, "S3", list[2].ShipID)
}

func TestRouteRepository_SetBaseline(t *testing.T) {
	ctx := context.Background()
	repo := NewRouteRepository(NewStore())

	require.NoError(t, repo.Upsert(ctx, []*domain.Route{
		{RouteID: "R1", Year: 2024},
		{RouteID: "R2", Year: 2024},
		{RouteID: "R3", Year: 2025},
	}))

	require.NoError(t, repo.SetBaseline(ctx, "R1"))
	require.NoError(t, repo.SetBaseline(ctx, "R3"))
	require.NoError(t, repo.SetBaseline(ctx, "R2"))

	routes, err := repo.List(ctx, domain.RouteFilter{})
	require.NoError(t, err)

	baselines := map[string]bool{}
	for _, r := range routes {
		baselines[r.RouteID] = r.IsBaseline
	}

	assert.Equal(t, map[string]bool{"R1": false, "R2": true, "R3": true}, baselines)
	assert.ErrorIs(t, repo.SetBaseline(ctx, "missing"), domain.ErrRouteNotFound)
}
