package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/cbledger/internal/domain"
	"github.com/iho/cbledger/internal/infrastructure/metrics"
)

// BalanceStore owns ship-year records and is the only path that mutates them.
type BalanceStore struct {
	txManager  TransactionManager
	recordRepo RecordRepository
	retrier    Retrier
	cache      Cache
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewBalanceStore creates a new BalanceStore. retrier, cache and metrics may be nil.
func NewBalanceStore(
	txManager TransactionManager,
	recordRepo RecordRepository,
	retrier Retrier,
	cache Cache,
	metrics *metrics.Metrics,
) *BalanceStore {
	return &BalanceStore{
		txManager:  txManager,
		recordRepo: recordRepo,
		retrier:    retrier,
		cache:      cache,
		metrics:    metrics,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// GetRecord returns the record for (shipID, year), creating a zero record if absent.
func (s *BalanceStore) GetRecord(ctx context.Context, shipID string, year int) (*domain.ShipYearRecord, error) {
	if err := domain.ValidateKey(shipID, year); err != nil {
		return nil, err
	}

	return s.recordRepo.GetOrCreate(ctx, shipID, year)
}

// ListByYear returns every known record of year.
func (s *BalanceStore) ListByYear(ctx context.Context, year int) ([]*domain.ShipYearRecord, error) {
	if err := domain.ValidateYear(year); err != nil {
		return nil, err
	}

	return s.recordRepo.ListByYear(ctx, year)
}

// SetRawCB sets the upstream computed raw compliance balance.
func (s *BalanceStore) SetRawCB(ctx context.Context, shipID string, year int, value float64) error {
	raw, err := domain.DecimalFromFloat(value)
	if err != nil {
		return err
	}

	if err := domain.ValidateShipID(shipID); err != nil {
		return err
	}

	return s.SetRawCBBatch(ctx, year, map[string]decimal.Decimal{shipID: raw})
}

// SetRawCBBatch sets raw balances of several ships of one year atomically.
func (s *BalanceStore) SetRawCBBatch(ctx context.Context, year int, values map[string]decimal.Decimal) error {
	if err := domain.ValidateYear(year); err != nil {
		return err
	}

	if len(values) == 0 {
		return nil
	}

	keys := make([]domain.RecordKey, 0, len(values))
	for shipID := range values {
		if err := domain.ValidateShipID(shipID); err != nil {
			return err
		}

		keys = append(keys, domain.RecordKey{ShipID: shipID, Year: year})
	}

	err := s.InTx(ctx, func(ctx context.Context, tx Transaction) error {
		records, err := s.Lock(ctx, tx, keys)
		if err != nil {
			return err
		}

		now := s.now()
		for _, key := range keys {
			next := *records[key]
			next.RawCB = values[key.ShipID]
			next.Version++
			next.UpdatedAt = now

			if err := s.recordRepo.Save(ctx, tx, &next); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.LedgerUpdates.WithLabelValues("raw_cb").Add(float64(len(keys)))
	}

	s.Invalidate(ctx, year)

	return nil
}

// UpdateLedger atomically applies delta to the record under its lock.
func (s *BalanceStore) UpdateLedger(ctx context.Context, shipID string, year int, delta domain.LedgerDelta) (*domain.ShipYearRecord, error) {
	if err := domain.ValidateKey(shipID, year); err != nil {
		return nil, err
	}

	var updated *domain.ShipYearRecord

	err := s.InTx(ctx, func(ctx context.Context, tx Transaction) error {
		record, err := s.LockOne(ctx, tx, shipID, year)
		if err != nil {
			return err
		}

		updated, err = s.UpdateLedgerTx(ctx, tx, record, delta)

		return err
	})
	if err != nil {
		return nil, err
	}

	s.Invalidate(ctx, year)

	return updated, nil
}

// UpdateLedgerTx applies delta to a record locked by tx. The record passed in
// is not modified; the persisted successor is returned.
func (s *BalanceStore) UpdateLedgerTx(
	ctx context.Context,
	tx Transaction,
	record *domain.ShipYearRecord,
	delta domain.LedgerDelta,
) (*domain.ShipYearRecord, error) {
	next, err := record.ApplyDelta(delta, s.now())
	if err != nil {
		if s.metrics != nil && errors.Is(err, domain.ErrLedgerInvariantViolation) {
			s.metrics.InvariantViolations.Inc()
		}

		return nil, err
	}

	if err := s.recordRepo.Save(ctx, tx, next); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.LedgerUpdates.WithLabelValues(deltaKind(delta)).Inc()
	}

	return next, nil
}

// Lock acquires exclusive access to the records of keys in ascending ShipID
// order and returns them by key.
func (s *BalanceStore) Lock(ctx context.Context, tx Transaction, keys []domain.RecordKey) (map[domain.RecordKey]*domain.ShipYearRecord, error) {
	sorted := make([]domain.RecordKey, len(keys))
	copy(sorted, keys)
	sortKeys(sorted)

	records, err := s.recordRepo.GetForUpdate(ctx, tx, sorted)
	if err != nil {
		return nil, err
	}

	if len(records) != len(sorted) {
		return nil, fmt.Errorf("%w: locked %d of %d records", domain.ErrLedgerInvariantViolation, len(records), len(sorted))
	}

	byKey := make(map[domain.RecordKey]*domain.ShipYearRecord, len(records))
	for _, r := range records {
		byKey[r.Key()] = r
	}

	return byKey, nil
}

// LockOne locks a single record.
func (s *BalanceStore) LockOne(ctx context.Context, tx Transaction, shipID string, year int) (*domain.ShipYearRecord, error) {
	key := domain.RecordKey{ShipID: shipID, Year: year}

	records, err := s.Lock(ctx, tx, []domain.RecordKey{key})
	if err != nil {
		return nil, err
	}

	return records[key], nil
}

// InTx runs fn in a transaction bounded by DefaultTransactionTimeout and
// commits it when fn succeeds. Storage conflicts are retried when a Retrier
// is configured.
func (s *BalanceStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error {
	run := func() error {
		txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
		defer cancel()

		tx, err := s.txManager.Begin(txCtx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(txCtx) }()

		if err := fn(txCtx, tx); err != nil {
			return err
		}

		return tx.Commit(txCtx)
	}

	if s.retrier == nil {
		return run()
	}

	return s.retrier.Retry(ctx, run)
}

// Invalidate moves the cached listings of years to a new generation, so
// listings read before the call are never served again.
func (s *BalanceStore) Invalidate(ctx context.Context, years ...int) {
	if s.cache == nil {
		return
	}

	for _, year := range years {
		if _, err := s.cache.Incr(ctx, adjustedCBGenerationKey(year)); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Int("year", year).Msg("failed to invalidate adjusted balance cache")
		}
	}
}

func sortKeys(keys []domain.RecordKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ShipID != keys[j].ShipID {
			return keys[i].ShipID < keys[j].ShipID
		}

		return keys[i].Year < keys[j].Year
	})
}

func deltaKind(delta domain.LedgerDelta) string {
	switch {
	case !delta.Pooled.IsZero():
		return "pool"
	case !delta.Applied.IsZero():
		return "apply"
	case !delta.BankedIn.IsZero():
		return "bank"
	default:
		return "noop"
	}
}
