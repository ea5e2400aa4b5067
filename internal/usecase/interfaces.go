package usecase

import (
	"context"
	"time"

	"github.com/iho/cbledger/internal/domain"
)

// RecordRepository defines data access for ship-year ledger records.
type RecordRepository interface {
	// GetOrCreate returns the record, inserting a zero record if absent.
	GetOrCreate(ctx context.Context, shipID string, year int) (*domain.ShipYearRecord, error)
	// GetForUpdate locks and returns the records for keys, creating absent ones.
	// Keys must be passed in ascending ShipID order.
	GetForUpdate(ctx context.Context, tx Transaction, keys []domain.RecordKey) ([]*domain.ShipYearRecord, error)
	// Save persists a record previously returned by GetForUpdate in the same tx.
	Save(ctx context.Context, tx Transaction, record *domain.ShipYearRecord) error
	ListByYear(ctx context.Context, year int) ([]*domain.ShipYearRecord, error)
}

// PoolRepository defines data access for settled pools.
type PoolRepository interface {
	Create(ctx context.Context, tx Transaction, pool *domain.Pool) error
	GetByID(ctx context.Context, id string) (*domain.Pool, error)
	ListByYear(ctx context.Context, year int) ([]*domain.Pool, error)
}

// RouteRepository defines data access for upstream route records.
type RouteRepository interface {
	Upsert(ctx context.Context, routes []*domain.Route) error
	List(ctx context.Context, filter domain.RouteFilter) ([]*domain.Route, error)
	GetByID(ctx context.Context, routeID string) (*domain.Route, error)
	SetBaseline(ctx context.Context, routeID string) error
}

// Transaction represents a unit of work holding record locks.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation on transient storage conflicts.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Incr atomically increments an integer key, starting from zero.
	Incr(ctx context.Context, key string) (int64, error)
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a claimed key so the request can be retried.
	Release(ctx context.Context, key string) error
}
