package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/cbledger/internal/domain"
	"github.com/iho/cbledger/internal/infrastructure/metrics"
)

// ComplianceUseCase answers adjusted balance queries and feeds raw balances in.
type ComplianceUseCase struct {
	store     *BalanceStore
	routeRepo RouteRepository
	cache     Cache
	cacheTTL  time.Duration
	metrics   *metrics.Metrics
}

// NewComplianceUseCase creates a new ComplianceUseCase. cache may be nil.
func NewComplianceUseCase(
	store *BalanceStore,
	routeRepo RouteRepository,
	cache Cache,
	cacheTTL time.Duration,
	metrics *metrics.Metrics,
) *ComplianceUseCase {
	if cacheTTL <= 0 {
		cacheTTL = AdjustedCBCacheTTL
	}

	return &ComplianceUseCase{
		store:     store,
		routeRepo: routeRepo,
		cache:     cache,
		cacheTTL:  cacheTTL,
		metrics:   metrics,
	}
}

// GetAdjustedCB returns the current balance of a ship-year.
func (uc *ComplianceUseCase) GetAdjustedCB(ctx context.Context, shipID string, year int) (decimal.Decimal, error) {
	record, err := uc.store.GetRecord(ctx, shipID, year)
	if err != nil {
		return decimal.Zero, err
	}

	return record.CBAfter(), nil
}

// GetCB returns the ship's current balance, or the fleet total when shipID is empty.
func (uc *ComplianceUseCase) GetCB(ctx context.Context, shipID string, year int) (decimal.Decimal, error) {
	if shipID != "" {
		return uc.GetAdjustedCB(ctx, shipID, year)
	}

	return uc.GetFleetCB(ctx, year)
}

// GetFleetCB sums the current balance of every known ship of year.
func (uc *ComplianceUseCase) GetFleetCB(ctx context.Context, year int) (decimal.Decimal, error) {
	records, err := uc.store.ListByYear(ctx, year)
	if err != nil {
		return decimal.Zero, err
	}

	sum := decimal.Zero
	for _, r := range records {
		sum = sum.Add(r.CBAfter())
	}

	return sum, nil
}

// GetAdjustedCBForYear lists every known ship of year as a pool member.
// AdjustedCBAfter is set only for ships already settled into a pool, in
// which case AdjustedCBBefore is the balance the pool started from.
func (uc *ComplianceUseCase) GetAdjustedCBForYear(ctx context.Context, year int) ([]domain.PoolMember, error) {
	if err := domain.ValidateYear(year); err != nil {
		return nil, err
	}

	generation, cacheable := uc.generation(ctx, year)
	if cacheable {
		if members, ok := uc.cached(ctx, year, generation); ok {
			return members, nil
		}
	}

	records, err := uc.store.ListByYear(ctx, year)
	if err != nil {
		return nil, err
	}

	members := make([]domain.PoolMember, len(records))
	for i, r := range records {
		members[i] = memberOf(r)
	}

	if cacheable {
		uc.storeCached(ctx, year, generation, members)
	}

	return members, nil
}

func memberOf(r *domain.ShipYearRecord) domain.PoolMember {
	if !r.Pooled() {
		return domain.PoolMember{ShipID: r.ShipID, AdjustedCBBefore: r.CBAfter()}
	}

	after := r.CBAfter()

	return domain.PoolMember{
		ShipID:           r.ShipID,
		AdjustedCBBefore: r.AdjustedBeforePool(),
		AdjustedCBAfter:  &after,
	}
}

// generation reads the cache generation of year. The listing is not cached
// at all when the generation cannot be read.
func (uc *ComplianceUseCase) generation(ctx context.Context, year int) (int64, bool) {
	if uc.cache == nil {
		return 0, false
	}

	data, err := uc.cache.Get(ctx, adjustedCBGenerationKey(year))
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int("year", year).Msg("failed to read adjusted balance cache generation")
		return 0, false
	}

	if data == nil {
		return 0, true
	}

	generation, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int("year", year).Msg("unreadable adjusted balance cache generation")
		return 0, false
	}

	return generation, true
}

func (uc *ComplianceUseCase) cached(ctx context.Context, year int, generation int64) ([]domain.PoolMember, bool) {
	data, err := uc.cache.Get(ctx, adjustedCBCacheKey(year, generation))
	if err != nil || data == nil {
		if uc.metrics != nil {
			uc.metrics.CacheMisses.Inc()
		}

		return nil, false
	}

	var members []domain.PoolMember
	if err := json.Unmarshal(data, &members); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int("year", year).Msg("discarding unreadable cache entry")
		return nil, false
	}

	if uc.metrics != nil {
		uc.metrics.CacheHits.Inc()
	}

	return members, true
}

// storeCached caches members under generation unless a mutation committed
// while they were being read.
func (uc *ComplianceUseCase) storeCached(ctx context.Context, year int, generation int64, members []domain.PoolMember) {
	if current, ok := uc.generation(ctx, year); !ok || current != generation {
		zerolog.Ctx(ctx).Debug().Int("year", year).Msg("adjusted balances changed while listing, not caching")
		return
	}

	data, err := json.Marshal(members)
	if err != nil {
		return
	}

	if err := uc.cache.Set(ctx, adjustedCBCacheKey(year, generation), data, uc.cacheTTL); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int("year", year).Msg("failed to cache adjusted balances")
	}
}

// SetRawCB sets the upstream computed raw balance of a ship-year.
func (uc *ComplianceUseCase) SetRawCB(ctx context.Context, shipID string, year int, value float64) error {
	return uc.store.SetRawCB(ctx, shipID, year, value)
}

// SyncFromRoutes derives raw balances of year from the route records and
// stores them per ship. It returns the balances written.
func (uc *ComplianceUseCase) SyncFromRoutes(ctx context.Context, year int) (map[string]decimal.Decimal, error) {
	if err := domain.ValidateYear(year); err != nil {
		return nil, err
	}

	routes, err := uc.routeRepo.List(ctx, domain.RouteFilter{Year: year})
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}

	totals := make(map[string]decimal.Decimal)
	for _, r := range routes {
		cb, err := r.ComplianceBalance()
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", r.RouteID, err)
		}

		totals[r.Owner()] = totals[r.Owner()].Add(cb)
	}

	if err := uc.store.SetRawCBBatch(ctx, year, totals); err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Int("year", year).Int("routes", len(routes)).Int("ships", len(totals)).Msg("raw balances synced from routes")

	return totals, nil
}
