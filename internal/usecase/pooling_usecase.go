package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/cbledger/internal/domain"
	"github.com/iho/cbledger/internal/infrastructure/metrics"
)

// PoolingUseCase validates and settles compliance pools.
type PoolingUseCase struct {
	store       *BalanceStore
	poolRepo    PoolRepository
	idGenerator IDGenerator
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewPoolingUseCase creates a new PoolingUseCase.
func NewPoolingUseCase(
	store *BalanceStore,
	poolRepo PoolRepository,
	idGenerator IDGenerator,
	metrics *metrics.Metrics,
) *PoolingUseCase {
	return &PoolingUseCase{
		store:       store,
		poolRepo:    poolRepo,
		idGenerator: idGenerator,
		metrics:     metrics,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// PoolMemberInput is one requested pool member. AdjustedCBBefore is the
// balance the caller based its proposal on; nil means "use the current one".
type PoolMemberInput struct {
	AdjustedCBBefore *decimal.Decimal
	ShipID           string
}

// CreatePoolInput represents input for creating a pool.
type CreatePoolInput struct {
	Members []PoolMemberInput
	Year    int
}

// Validate checks a proposal without touching storage.
func (uc *PoolingUseCase) Validate(proposal *domain.PoolProposal) error {
	if err := domain.ValidateYear(proposal.Year); err != nil {
		return err
	}

	return proposal.Validate()
}

// Settle settles a proposal whose balances were read from the store. The
// proposal is rejected with ErrStaleProposal if any balance moved since.
func (uc *PoolingUseCase) Settle(ctx context.Context, proposal *domain.PoolProposal) (*domain.Pool, error) {
	input := CreatePoolInput{
		Year:    proposal.Year,
		Members: make([]PoolMemberInput, len(proposal.Members)),
	}

	for i, m := range proposal.Members {
		before := m.AdjustedCBBefore
		input.Members[i] = PoolMemberInput{ShipID: m.ShipID, AdjustedCBBefore: &before}
	}

	return uc.CreatePool(ctx, input)
}

// CreatePool locks every member record, rebuilds the proposal from the
// current balances, validates it and writes the redistribution back.
// Either every member is updated and the pool persisted, or nothing is.
func (uc *PoolingUseCase) CreatePool(ctx context.Context, input CreatePoolInput) (*domain.Pool, error) {
	start := time.Now()

	pool, err := uc.createPool(ctx, input)
	if err != nil {
		if uc.metrics != nil {
			uc.metrics.PoolErrors.WithLabelValues(errorType(err)).Inc()
		}

		zerolog.Ctx(ctx).Debug().Err(err).Int("year", input.Year).Int("members", len(input.Members)).Msg("pool rejected")

		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.PoolsCreated.Inc()
		uc.metrics.PoolSize.Observe(float64(len(pool.Members)))
		uc.metrics.PoolSettlementTime.Observe(time.Since(start).Seconds())
	}

	uc.store.Invalidate(ctx, pool.Year)

	zerolog.Ctx(ctx).Info().
		Str("pool_id", pool.ID).
		Int("year", pool.Year).
		Int("members", len(pool.Members)).
		Str("sum", pool.SumAfter().String()).
		Msg("pool settled")

	return pool, nil
}

func (uc *PoolingUseCase) createPool(ctx context.Context, input CreatePoolInput) (*domain.Pool, error) {
	if err := domain.ValidateYear(input.Year); err != nil {
		return nil, err
	}

	shipIDs := make([]string, len(input.Members))
	keys := make([]domain.RecordKey, len(input.Members))

	for i, m := range input.Members {
		shipIDs[i] = m.ShipID
		keys[i] = domain.RecordKey{ShipID: m.ShipID, Year: input.Year}
	}

	if err := domain.ValidateMemberSet(shipIDs); err != nil {
		return nil, err
	}

	var pool *domain.Pool

	err := uc.store.InTx(ctx, func(ctx context.Context, tx Transaction) error {
		records, err := uc.store.Lock(ctx, tx, keys)
		if err != nil {
			return err
		}

		proposal, err := buildProposal(input, records)
		if err != nil {
			return err
		}

		if err := proposal.Validate(); err != nil {
			return err
		}

		pool = &domain.Pool{
			ID:        uc.idGenerator.Generate(),
			Year:      input.Year,
			Members:   domain.Redistribute(proposal.Members),
			CreatedAt: uc.now(),
		}

		if err := uc.writeBack(ctx, tx, pool, records); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrSettlementFailed, err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return pool, nil
}

// buildProposal reads each member's current balance from its locked record.
func buildProposal(input CreatePoolInput, records map[domain.RecordKey]*domain.ShipYearRecord) (*domain.PoolProposal, error) {
	proposal := &domain.PoolProposal{
		Year:    input.Year,
		Members: make([]domain.PoolMember, len(input.Members)),
	}

	for i, m := range input.Members {
		record := records[domain.RecordKey{ShipID: m.ShipID, Year: input.Year}]

		if record.Pooled() {
			return nil, fmt.Errorf("%w: %s in pool %s", domain.ErrMemberAlreadyPooled, m.ShipID, *record.PoolID)
		}

		current := record.CBAfter()
		if m.AdjustedCBBefore != nil && !m.AdjustedCBBefore.Equal(current) {
			return nil, fmt.Errorf("%w: %s proposed %s, current %s",
				domain.ErrStaleProposal, m.ShipID, m.AdjustedCBBefore, current)
		}

		proposal.Members[i] = domain.PoolMember{ShipID: m.ShipID, AdjustedCBBefore: current}
	}

	return proposal, nil
}

// writeBack moves every member's balance to its settled value and persists the pool.
func (uc *PoolingUseCase) writeBack(
	ctx context.Context,
	tx Transaction,
	pool *domain.Pool,
	records map[domain.RecordKey]*domain.ShipYearRecord,
) error {
	if err := pool.CheckConservation(); err != nil {
		return err
	}

	for _, m := range pool.Members {
		member := *records[domain.RecordKey{ShipID: m.ShipID, Year: pool.Year}]
		member.PoolID = &pool.ID

		delta := domain.LedgerDelta{Pooled: m.AdjustedCBAfter.Sub(m.AdjustedCBBefore)}
		if _, err := uc.store.UpdateLedgerTx(ctx, tx, &member, delta); err != nil {
			return fmt.Errorf("member %s: %w", m.ShipID, err)
		}
	}

	return uc.poolRepo.Create(ctx, tx, pool)
}

// GetPool returns a settled pool.
func (uc *PoolingUseCase) GetPool(ctx context.Context, id string) (*domain.Pool, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: pool id is required", domain.ErrInvalidInput)
	}

	return uc.poolRepo.GetByID(ctx, id)
}

// ListPools returns the settled pools of a year.
func (uc *PoolingUseCase) ListPools(ctx context.Context, year int) ([]*domain.Pool, error) {
	if err := domain.ValidateYear(year); err != nil {
		return nil, err
	}

	return uc.poolRepo.ListByYear(ctx, year)
}
