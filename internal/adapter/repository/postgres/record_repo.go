package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/cbledger/internal/domain"
	"github.com/iho/cbledger/internal/usecase"
)

const recordColumns = `ship_id, year, raw_cb, banked_in, applied_from_bank, pool_adjustment,
	pool_id, version, created_at, updated_at`

const insertRecordSQL = `INSERT INTO ship_year_records (ship_id, year)
	VALUES ($1, $2)
	ON CONFLICT (ship_id, year) DO NOTHING`

// RecordRepository implements usecase.RecordRepository.
type RecordRepository struct {
	db dbtx
}

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(pool *pgxpool.Pool) *RecordRepository {
	return newRecordRepository(pool)
}

func newRecordRepository(db dbtx) *RecordRepository {
	return &RecordRepository{db: db}
}

// GetOrCreate returns the record, inserting a zero record if absent.
func (r *RecordRepository) GetOrCreate(ctx context.Context, shipID string, year int) (*domain.ShipYearRecord, error) {
	if _, err := r.db.Exec(ctx, insertRecordSQL, shipID, year); err != nil {
		return nil, fmt.Errorf("failed to create record %s/%d: %w", shipID, year, err)
	}

	row := r.db.QueryRow(ctx, `SELECT `+recordColumns+`
		FROM ship_year_records WHERE ship_id = $1 AND year = $2`, shipID, year)

	return scanRecord(row)
}

// GetForUpdate locks the records of keys with SELECT ... FOR UPDATE in the
// order given, inserting absent ones first.
func (r *RecordRepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, keys []domain.RecordKey) ([]*domain.ShipYearRecord, error) {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return nil, err
	}

	records := make([]*domain.ShipYearRecord, 0, len(keys))

	for _, key := range keys {
		if _, err := pgxTx.Exec(ctx, insertRecordSQL, key.ShipID, key.Year); err != nil {
			return nil, fmt.Errorf("failed to create record %s: %w", key, err)
		}

		row := pgxTx.QueryRow(ctx, `SELECT `+recordColumns+`
			FROM ship_year_records WHERE ship_id = $1 AND year = $2
			FOR UPDATE`, key.ShipID, key.Year)

		record, err := scanRecord(row)
		if err != nil {
			return nil, fmt.Errorf("failed to lock record %s: %w", key, err)
		}

		records = append(records, record)
	}

	return records, nil
}

// Save writes record if the stored version is the one it was read at.
func (r *RecordRepository) Save(ctx context.Context, tx usecase.Transaction, record *domain.ShipYearRecord) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	tag, err := pgxTx.Exec(ctx, `UPDATE ship_year_records
		SET raw_cb = $3, banked_in = $4, applied_from_bank = $5, pool_adjustment = $6,
			pool_id = $7, version = $8, updated_at = $9
		WHERE ship_id = $1 AND year = $2 AND version = $10`,
		record.ShipID,
		record.Year,
		decimalToNumeric(record.RawCB),
		decimalToNumeric(record.BankedIn),
		decimalToNumeric(record.AppliedFromBank),
		decimalToNumeric(record.PoolAdjustment),
		ptrToText(record.PoolID),
		record.Version,
		timeToPgTimestamptz(record.UpdatedAt),
		record.Version-1,
	)
	if err != nil {
		return fmt.Errorf("failed to save record %s: %w", record.Key(), err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s at version %d", domain.ErrConcurrentModification, record.Key(), record.Version-1)
	}

	return nil
}

// ListByYear returns the records of year ordered by ship.
func (r *RecordRepository) ListByYear(ctx context.Context, year int) ([]*domain.ShipYearRecord, error) {
	rows, err := r.db.Query(ctx, `SELECT `+recordColumns+`
		FROM ship_year_records WHERE year = $1 ORDER BY ship_id`, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*domain.ShipYearRecord, 0)

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, rows.Err()
}

func scanRecord(row pgx.Row) (*domain.ShipYearRecord, error) {
	var (
		record                               domain.ShipYearRecord
		raw, banked, applied, poolAdjustment pgtype.Numeric
		poolID                               pgtype.Text
		createdAt, updatedAt                 pgtype.Timestamptz
	)

	err := row.Scan(
		&record.ShipID,
		&record.Year,
		&raw,
		&banked,
		&applied,
		&poolAdjustment,
		&poolID,
		&record.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.RawCB = numericToDecimal(raw)
	record.BankedIn = numericToDecimal(banked)
	record.AppliedFromBank = numericToDecimal(applied)
	record.PoolAdjustment = numericToDecimal(poolAdjustment)
	record.PoolID = textToPtr(poolID)
	record.CreatedAt = createdAt.Time
	record.UpdatedAt = updatedAt.Time

	return &record, nil
}
