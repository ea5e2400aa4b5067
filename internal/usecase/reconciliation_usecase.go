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

// ReconciliationUseCase checks stored ledger state against its invariants
type ReconciliationUseCase struct {
	store    *BalanceStore
	poolRepo PoolRepository
	metrics  *metrics.Metrics
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(store *BalanceStore, poolRepo PoolRepository, metrics *metrics.Metrics) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		store:    store,
		poolRepo: poolRepo,
		metrics:  metrics,
	}
}

// Discrepancy describes one failed check
type Discrepancy struct {
	Subject string
	Detail  string
}

// ReconciliationReport represents a full reconciliation report for one year
type ReconciliationReport struct {
	CheckedAt     time.Time
	Discrepancies []Discrepancy
	FleetCB       decimal.Decimal
	Year          int
	Records       int
	Pools         int
}

// Consistent reports whether every check passed.
func (r *ReconciliationReport) Consistent() bool {
	return len(r.Discrepancies) == 0
}

// ReconcileYear verifies every record of year against the ledger invariants,
// every pool against conservation, and pool membership in both directions.
func (uc *ReconciliationUseCase) ReconcileYear(ctx context.Context, year int) (*ReconciliationReport, error) {
	records, err := uc.store.ListByYear(ctx, year)
	if err != nil {
		uc.observe("error")
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	pools, err := uc.poolRepo.ListByYear(ctx, year)
	if err != nil {
		uc.observe("error")
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}

	report := &ReconciliationReport{
		Year:      year,
		Records:   len(records),
		Pools:     len(pools),
		FleetCB:   decimal.Zero,
		CheckedAt: time.Now().UTC(),
	}

	byShip := make(map[string]*domain.ShipYearRecord, len(records))
	for _, r := range records {
		byShip[r.ShipID] = r
		report.FleetCB = report.FleetCB.Add(r.CBAfter())

		if err := r.CheckInvariants(); err != nil {
			report.add(r.Key().String(), err.Error())
		}

		if !r.Pooled() && !r.PoolAdjustment.IsZero() {
			report.add(r.Key().String(), fmt.Sprintf("pool adjustment %s without pool", r.PoolAdjustment))
		}
	}

	members := make(map[string]string)
	for _, p := range pools {
		if err := p.CheckConservation(); err != nil {
			report.add("pool "+p.ID, err.Error())
		}

		for _, m := range p.Members {
			members[m.ShipID] = p.ID

			r, ok := byShip[m.ShipID]
			if !ok {
				report.add("pool "+p.ID, fmt.Sprintf("member %s has no record", m.ShipID))
				continue
			}

			if r.PoolID == nil || *r.PoolID != p.ID {
				report.add(r.Key().String(), fmt.Sprintf("not linked to pool %s", p.ID))
			}
		}
	}

	for _, r := range records {
		if r.Pooled() && members[r.ShipID] != *r.PoolID {
			report.add(r.Key().String(), fmt.Sprintf("linked to unknown pool %s", *r.PoolID))
		}
	}

	if report.Consistent() {
		uc.observe("consistent")
	} else {
		uc.observe("inconsistent")
		zerolog.Ctx(ctx).Error().
			Int("year", year).
			Int("discrepancies", len(report.Discrepancies)).
			Msg("ledger reconciliation found discrepancies")
	}

	return report, nil
}

func (r *ReconciliationReport) add(subject, detail string) {
	r.Discrepancies = append(r.Discrepancies, Discrepancy{Subject: subject, Detail: detail})
}

func (uc *ReconciliationUseCase) observe(outcome string) {
	if uc.metrics != nil {
		uc.metrics.ReconciliationRuns.WithLabelValues(outcome).Inc()
	}
}
