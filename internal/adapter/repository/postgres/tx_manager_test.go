package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"

	"github.com/iho/cbledger/internal/domain"
)

// foreignTx is a usecase.Transaction not started by TxManager.
type foreignTx struct{}

func (foreignTx) Commit(context.Context) error   { return nil }
func (foreignTx) Rollback(context.Context) error { return nil }

func TestTxManagerEndsTransaction(t *testing.T) {
	tests := []struct {
		name   string
		commit bool
	}{
		{name: "commit", commit: true},
		{name: "rollback", commit: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			mockPool := newMockPool(t)
			mockPool.ExpectBegin()

			if tt.commit {
				mockPool.ExpectCommit()
			} else {
				mockPool.ExpectRollback()
			}

			tx, err := newTxManagerWithPool(mockPool).Begin(ctx)
			if err != nil {
				t.Fatalf("begin: %v", err)
			}

			if _, err := pgxTxFrom(tx); err != nil {
				t.Fatalf("expected a managed transaction, got %v", err)
			}

			if tt.commit {
				err = tx.Commit(ctx)
			} else {
				err = tx.Rollback(ctx)
			}

			if err != nil {
				t.Fatalf("%s: %v", tt.name, err)
			}

			assertExpectations(t, mockPool)
		})
	}
}

func TestTxManagerBeginError(t *testing.T) {
	mockPool := newMockPool(t)
	beginErr := errors.New("too many connections")
	mockPool.ExpectBegin().WillReturnError(beginErr)

	tx, err := newTxManagerWithPool(mockPool).Begin(context.Background())
	if !errors.Is(err, beginErr) || tx != nil {
		t.Fatalf("expected begin error and no transaction, got tx=%v err=%v", tx, err)
	}
}

func TestRepositoriesRejectForeignTransaction(t *testing.T) {
	ctx := context.Background()
	mockPool := newMockPool(t)

	if _, err := pgxTxFrom(foreignTx{}); !errors.Is(err, errForeignTransaction) {
		t.Fatalf("expected errForeignTransaction, got %v", err)
	}

	records := newRecordRepository(mockPool)

	keys := []domain.RecordKey{{ShipID: "S1", Year: 2025}}
	if _, err := records.GetForUpdate(ctx, foreignTx{}, keys); !errors.Is(err, errForeignTransaction) {
		t.Fatalf("GetForUpdate: expected errForeignTransaction, got %v", err)
	}

	record := domain.NewShipYearRecord("S1", 2025, time.Now())
	record.RawCB = decimal.NewFromInt(10)

	if err := records.Save(ctx, foreignTx{}, record); !errors.Is(err, errForeignTransaction) {
		t.Fatalf("Save: expected errForeignTransaction, got %v", err)
	}

	pool := &domain.Pool{ID: "P1", Year: 2025}
	if err := newPoolRepository(mockPool).Create(ctx, foreignTx{}, pool); !errors.Is(err, errForeignTransaction) {
		t.Fatalf("Create: expected errForeignTransaction, got %v", err)
	}

	// No statement may reach the database.
	assertExpectations(t, mockPool)
}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()

	pool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}

func assertExpectations(t *testing.T, pool pgxmock.PgxPoolIface) {
	t.Helper()

	if err := pool.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations were not met: %v", err)
	}
}
