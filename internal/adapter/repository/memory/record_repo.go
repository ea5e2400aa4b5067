package memory

import (
	"context"
	"fmt"

	"github.com/iho/cbledger/internal/domain"
	"github.com/iho/cbledger/internal/usecase"
)

// RecordRepository implements usecase.RecordRepository.
type RecordRepository struct {
	store *Store
}

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(store *Store) *RecordRepository {
	return &RecordRepository{store: store}
}

// GetOrCreate returns a copy of the committed record, creating a zero one if absent.
func (r *RecordRepository) GetOrCreate(_ context.Context, shipID string, year int) (*domain.ShipYearRecord, error) {
	key := domain.RecordKey{ShipID: shipID, Year: year}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	record, ok := r.store.records[key]
	if !ok {
		record = domain.NewShipYearRecord(shipID, year, r.store.now())
		r.store.records[key] = record
	}

	return copyRecord(record), nil
}

// GetForUpdate locks keys in the given order and returns their records.
func (r *RecordRepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, keys []domain.RecordKey) ([]*domain.ShipYearRecord, error) {
	t, err := txFrom(r.store, tx)
	if err != nil {
		return nil, err
	}

	records := make([]*domain.ShipYearRecord, 0, len(keys))

	for _, key := range keys {
		if err := t.acquire(ctx, key); err != nil {
			return nil, fmt.Errorf("failed to lock record %s: %w", key, err)
		}

		if staged, ok := t.records[key]; ok {
			records = append(records, copyRecord(staged))
			continue
		}

		r.store.mu.Lock()
		committed, ok := r.store.records[key]
		r.store.mu.Unlock()

		if !ok {
			created := domain.NewShipYearRecord(key.ShipID, key.Year, r.store.now())
			t.records[key] = created
			records = append(records, copyRecord(created))

			continue
		}

		records = append(records, copyRecord(committed))
	}

	return records, nil
}

// Save stages record for commit. The record must be locked by tx.
func (r *RecordRepository) Save(_ context.Context, tx usecase.Transaction, record *domain.ShipYearRecord) error {
	t, err := txFrom(r.store, tx)
	if err != nil {
		return err
	}

	key := record.Key()
	if _, ok := t.held[key]; !ok {
		return fmt.Errorf("record %s is not locked by this transaction", key)
	}

	t.records[key] = copyRecord(record)

	return nil
}

// ListByYear returns committed records of year ordered by ShipID.
func (r *RecordRepository) ListByYear(_ context.Context, year int) ([]*domain.ShipYearRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	records := make([]*domain.ShipYearRecord, 0)
	for key, record := range r.store.records {
		if key.Year == year {
			records = append(records, copyRecord(record))
		}
	}

	sortRecords(records)

	return records, nil
}
