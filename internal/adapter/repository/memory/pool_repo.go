package memory

import (
	"context"
	"sort"

	"github.com/iho/cbledger/internal/domain"
	"github.com/iho/cbledger/internal/usecase"
)

// PoolRepository implements usecase.PoolRepository.
type PoolRepository struct {
	store *Store
}

// NewPoolRepository creates a new PoolRepository.
func NewPoolRepository(store *Store) *PoolRepository {
	return &PoolRepository{store: store}
}

// Create stages pool for commit.
func (r *PoolRepository) Create(_ context.Context, tx usecase.Transaction, pool *domain.Pool) error {
	t, err := txFrom(r.store, tx)
	if err != nil {
		return err
	}

	t.pools = append(t.pools, copyPool(pool))

	return nil
}

// GetByID retrieves a pool by ID.
func (r *PoolRepository) GetByID(_ context.Context, id string) (*domain.Pool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	pool, ok := r.store.pools[id]
	if !ok {
		return nil, domain.ErrPoolNotFound
	}

	return copyPool(pool), nil
}

// ListByYear returns the pools of year in creation order.
func (r *PoolRepository) ListByYear(_ context.Context, year int) ([]*domain.Pool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	pools := make([]*domain.Pool, 0)
	for _, p := range r.store.pools {
		if p.Year == year {
			pools = append(pools, copyPool(p))
		}
	}

	sort.Slice(pools, func(i, j int) bool {
		if !pools[i].CreatedAt.Equal(pools[j].CreatedAt) {
			return pools[i].CreatedAt.Before(pools[j].CreatedAt)
		}

		return pools[i].ID < pools[j].ID
	})

	return pools, nil
}
