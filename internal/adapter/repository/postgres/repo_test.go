package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"

	"github.com/iho/cbledger/internal/domain"
)

var recordColumnNames = []string{
	"ship_id", "year", "raw_cb", "banked_in", "applied_from_bank", "pool_adjustment",
	"pool_id", "version", "created_at", "updated_at",
}

func TestRecordRepositoryGetForUpdate(t *testing.T) {
	ctx := context.Background()
	mockPool := newMockPool(t)
	now := time.Now().UTC()

	mockPool.ExpectBegin()
	mockPool.ExpectExec("INSERT INTO ship_year_records").
		WithArgs("S1", 2025).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mockPool.ExpectQuery("FOR UPDATE").
		WithArgs("S1", 2025).
		WillReturnRows(pgxmock.NewRows(recordColumnNames).
			AddRow("S1", 2025, "100.5", "40", "10", "0", nil, int64(3), now, now))
	mockPool.ExpectRollback()

	tx, err := newTxManagerWithPool(mockPool).Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	records, err := newRecordRepository(mockPool).GetForUpdate(ctx, tx, []domain.RecordKey{{ShipID: "S1", Year: 2025}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	r := records[0]
	if !r.RawCB.Equal(decimal.RequireFromString("100.5")) || !r.RemainingCredit().Equal(decimal.NewFromInt(30)) {
		t.Fatalf("unexpected ledger fields: %+v", r)
	}

	if r.PoolID != nil || r.Version != 3 {
		t.Fatalf("unexpected pool id or version: %+v", r)
	}

	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestRecordRepositorySaveVersionConflict(t *testing.T) {
	ctx := context.Background()
	mockPool := newMockPool(t)

	mockPool.ExpectBegin()
	mockPool.ExpectExec("UPDATE ship_year_records").
		WithArgs("S1", 2025, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), int64(5), pgxmock.AnyArg(), int64(4)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := newTxManagerWithPool(mockPool).Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	record := domain.NewShipYearRecord("S1", 2025, time.Now())
	record.Version = 5

	err = newRecordRepository(mockPool).Save(ctx, tx, record)
	if !errors.Is(err, domain.ErrConcurrentModification) {
		t.Fatalf("expected concurrent modification, got %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestPoolRepositoryGetByIDNotFound(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectQuery("SELECT id, year, created_at FROM pools").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := newPoolRepository(mockPool).GetByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrPoolNotFound) {
		t.Fatalf("expected pool not found, got %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestPoolRepositoryCreate(t *testing.T) {
	ctx := context.Background()
	mockPool := newMockPool(t)
	after := decimal.NewFromInt(20)
	zero := decimal.Zero

	pool := &domain.Pool{
		ID:        "01J0000000000000000000POOL",
		Year:      2025,
		CreatedAt: time.Now(),
		Members: []domain.PoolMember{
			{ShipID: "S1", AdjustedCBBefore: decimal.NewFromInt(-30), AdjustedCBAfter: &zero},
			{ShipID: "S2", AdjustedCBBefore: decimal.NewFromInt(50), AdjustedCBAfter: &after},
		},
	}

	mockPool.ExpectBegin()
	mockPool.ExpectExec("INSERT INTO pools").
		WithArgs(pool.ID, 2025, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectExec("INSERT INTO pool_members").
		WithArgs(pool.ID, 0, "S1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectExec("INSERT INTO pool_members").
		WithArgs(pool.ID, 1, "S2", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectCommit()

	tx, err := newTxManagerWithPool(mockPool).Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	if err := newPoolRepository(mockPool).Create(ctx, tx, pool); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestRouteRepositorySetBaselineNotFound(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()
	mockPool.ExpectQuery("SELECT year FROM routes").
		WithArgs("R404").
		WillReturnError(pgx.ErrNoRows)
	mockPool.ExpectRollback()

	err := newRouteRepository(mockPool).SetBaseline(context.Background(), "R404")
	if !errors.Is(err, domain.ErrRouteNotFound) {
		t.Fatalf("expected route not found, got %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestRouteRepositoryListFilters(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectQuery(`FROM routes WHERE fuel_type = \$1 AND year = \$2 ORDER BY route_id`).
		WithArgs("LNG", 2025).
		WillReturnRows(pgxmock.NewRows([]string{
			"route_id", "ship_id", "vessel_type", "fuel_type", "year", "ghg_intensity",
			"fuel_consumption", "distance", "total_emissions", "is_baseline",
		}).AddRow("R002", "S2", "BulkCarrier", "LNG", 2025, 88.0, 4800.0, 11500.0, 4200.0, false))

	routes, err := newRouteRepository(mockPool).List(context.Background(), domain.RouteFilter{FuelType: "LNG", Year: 2025})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(routes) != 1 || routes[0].RouteID != "R002" || routes[0].GHGIntensity != 88.0 {
		t.Fatalf("unexpected routes: %+v", routes)
	}

	assertExpectations(t, mockPool)
}

func TestNumericRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "-30", "6.6666666666666667", "1000000000000000"} {
		d := decimal.RequireFromString(s)
		if got := numericToDecimal(decimalToNumeric(d)); !got.Equal(d) {
			t.Fatalf("round trip of %s gave %s", s, got)
		}
	}
}
