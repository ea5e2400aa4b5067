// Package memory implements the repositories in process. Record locks are
// held by a transaction until it commits or rolls back, and writes are only
// visible after commit.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iho/cbledger/internal/domain"
	"github.com/iho/cbledger/internal/usecase"
)

// ErrForeignTransaction is returned when a transaction from another store is used.
var ErrForeignTransaction = errors.New("transaction does not belong to this store")

// ErrTxDone is returned when a finished transaction is used.
var ErrTxDone = errors.New("transaction has already been committed or rolled back")

// Store is the shared state behind the memory repositories.
type Store struct {
	mu      sync.Mutex
	records map[domain.RecordKey]*domain.ShipYearRecord
	locks   map[domain.RecordKey]chan struct{}
	pools   map[string]*domain.Pool
	routes  map[string]*domain.Route
	now     func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		records: make(map[domain.RecordKey]*domain.ShipYearRecord),
		locks:   make(map[domain.RecordKey]chan struct{}),
		pools:   make(map[string]*domain.Pool),
		routes:  make(map[string]*domain.Route),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) lockFor(key domain.RecordKey) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[key] = ch
	}

	return ch
}

// TxManager implements usecase.TransactionManager.
type TxManager struct {
	store *Store
}

// NewTxManager creates a new TxManager.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Begin starts a new transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Tx{
		store:   m.store,
		held:    make(map[domain.RecordKey]chan struct{}),
		records: make(map[domain.RecordKey]*domain.ShipYearRecord),
	}, nil
}

// Tx holds record locks and staged writes.
type Tx struct {
	store   *Store
	held    map[domain.RecordKey]chan struct{}
	records map[domain.RecordKey]*domain.ShipYearRecord
	pools   []*domain.Pool
	done    bool
}

// Commit publishes staged writes and releases held locks.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	t.store.mu.Lock()
	for key, r := range t.records {
		t.store.records[key] = r
	}

	for _, p := range t.pools {
		t.store.pools[p.ID] = p
	}
	t.store.mu.Unlock()

	t.release()

	return nil
}

// Rollback discards staged writes and releases held locks. Calling it after
// Commit is a no-op.
func (t *Tx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}

	t.release()

	return nil
}

func (t *Tx) release() {
	for key, ch := range t.held {
		<-ch
		delete(t.held, key)
	}

	t.records = nil
	t.pools = nil
	t.done = true
}

func (t *Tx) acquire(ctx context.Context, key domain.RecordKey) error {
	if _, ok := t.held[key]; ok {
		return nil
	}

	ch := t.store.lockFor(key)

	select {
	case ch <- struct{}{}:
		t.held[key] = ch
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func txFrom(store *Store, tx usecase.Transaction) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t.store != store {
		return nil, ErrForeignTransaction
	}

	if t.done {
		return nil, ErrTxDone
	}

	return t, nil
}

func copyRecord(r *domain.ShipYearRecord) *domain.ShipYearRecord {
	c := *r
	if r.PoolID != nil {
		id := *r.PoolID
		c.PoolID = &id
	}

	return &c
}

func copyPool(p *domain.Pool) *domain.Pool {
	c := *p
	c.Members = make([]domain.PoolMember, len(p.Members))

	for i, m := range p.Members {
		c.Members[i] = m
		if m.AdjustedCBAfter != nil {
			after := *m.AdjustedCBAfter
			c.Members[i].AdjustedCBAfter = &after
		}
	}

	return &c
}

func sortRecords(records []*domain.ShipYearRecord) {
	sort.Slice(records, func(i, j int) bool { return records[i].ShipID < records[j].ShipID })
}
