package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/cbledger/internal/domain"
	"github.com/iho/cbledger/internal/usecase"
)

// PoolRepository implements usecase.PoolRepository.
type PoolRepository struct {
	db dbtx
}

// NewPoolRepository creates a new PoolRepository.
func NewPoolRepository(pool *pgxpool.Pool) *PoolRepository {
	return newPoolRepository(pool)
}

func newPoolRepository(db dbtx) *PoolRepository {
	return &PoolRepository{db: db}
}

// Create inserts a settled pool and its members.
func (r *PoolRepository) Create(ctx context.Context, tx usecase.Transaction, pool *domain.Pool) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	_, err = pgxTx.Exec(ctx, `INSERT INTO pools (id, year, created_at) VALUES ($1, $2, $3)`,
		pool.ID, pool.Year, timeToPgTimestamptz(pool.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert pool: %w", err)
	}

	for i, m := range pool.Members {
		if m.AdjustedCBAfter == nil {
			return fmt.Errorf("%w: member %s of pool %s is not settled", domain.ErrInvalidInput, m.ShipID, pool.ID)
		}

		_, err := pgxTx.Exec(ctx, `INSERT INTO pool_members (pool_id, position, ship_id, cb_before, cb_after)
			VALUES ($1, $2, $3, $4, $5)`,
			pool.ID, i, m.ShipID, decimalToNumeric(m.AdjustedCBBefore), decimalToNumeric(*m.AdjustedCBAfter))
		if err != nil {
			return fmt.Errorf("failed to insert pool member %s: %w", m.ShipID, err)
		}
	}

	return nil
}

// GetByID retrieves a pool by ID.
func (r *PoolRepository) GetByID(ctx context.Context, id string) (*domain.Pool, error) {
	var (
		pool      domain.Pool
		createdAt pgtype.Timestamptz
	)

	err := r.db.QueryRow(ctx, `SELECT id, year, created_at FROM pools WHERE id = $1`, id).
		Scan(&pool.ID, &pool.Year, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPoolNotFound
		}

		return nil, err
	}

	pool.CreatedAt = createdAt.Time

	if pool.Members, err = r.members(ctx, pool.ID); err != nil {
		return nil, err
	}

	return &pool, nil
}

// ListByYear returns the pools of year in creation order.
func (r *PoolRepository) ListByYear(ctx context.Context, year int) ([]*domain.Pool, error) {
	rows, err := r.db.Query(ctx, `SELECT id, year, created_at FROM pools
		WHERE year = $1 ORDER BY created_at, id`, year)
	if err != nil {
		return nil, err
	}

	pools := make([]*domain.Pool, 0)

	for rows.Next() {
		var (
			pool      domain.Pool
			createdAt pgtype.Timestamptz
		)

		if err := rows.Scan(&pool.ID, &pool.Year, &createdAt); err != nil {
			rows.Close()
			return nil, err
		}

		pool.CreatedAt = createdAt.Time
		pools = append(pools, &pool)
	}

	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, pool := range pools {
		if pool.Members, err = r.members(ctx, pool.ID); err != nil {
			return nil, err
		}
	}

	return pools, nil
}

func (r *PoolRepository) members(ctx context.Context, poolID string) ([]domain.PoolMember, error) {
	rows, err := r.db.Query(ctx, `SELECT ship_id, cb_before, cb_after FROM pool_members
		WHERE pool_id = $1 ORDER BY position`, poolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]domain.PoolMember, 0)

	for rows.Next() {
		var (
			shipID        string
			before, after pgtype.Numeric
		)

		if err := rows.Scan(&shipID, &before, &after); err != nil {
			return nil, err
		}

		settled := numericToDecimal(after)
		members = append(members, domain.PoolMember{
			ShipID:           shipID,
			AdjustedCBBefore: numericToDecimal(before),
			AdjustedCBAfter:  &settled,
		})
	}

	return members, rows.Err()
}
