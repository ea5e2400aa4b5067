package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/cbledger/internal/domain"
	"github.com/iho/cbledger/internal/infrastructure/metrics"
)

// BankingUseCase banks surplus compliance balance and applies banked credit.
type BankingUseCase struct {
	store   *BalanceStore
	metrics *metrics.Metrics
}

// NewBankingUseCase creates a new BankingUseCase.
func NewBankingUseCase(store *BalanceStore, metrics *metrics.Metrics) *BankingUseCase {
	return &BankingUseCase{
		store:   store,
		metrics: metrics,
	}
}

// BankingInput represents input for a bank or apply operation.
type BankingInput struct {
	ShipID string
	Year   int
	Amount decimal.Decimal
}

// Bank records amount as banked credit. The current balance is unchanged.
func (uc *BankingUseCase) Bank(ctx context.Context, input BankingInput) (*domain.BankingKPIs, error) {
	kpis, err := uc.run(ctx, "bank", input, func(record *domain.ShipYearRecord) (domain.LedgerDelta, error) {
		if !record.RawCB.IsPositive() {
			return domain.LedgerDelta{}, fmt.Errorf("%w: raw balance is %s", domain.ErrNoSurplus, record.RawCB)
		}

		return domain.LedgerDelta{BankedIn: input.Amount}, nil
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		f, _ := input.Amount.Float64()
		uc.metrics.BankedAmount.Observe(f)
	}

	return kpis, nil
}

// Apply consumes banked credit, raising the current balance by amount.
func (uc *BankingUseCase) Apply(ctx context.Context, input BankingInput) (*domain.BankingKPIs, error) {
	kpis, err := uc.run(ctx, "apply", input, func(record *domain.ShipYearRecord) (domain.LedgerDelta, error) {
		remaining := record.RemainingCredit()
		if input.Amount.GreaterThan(remaining) {
			return domain.LedgerDelta{}, fmt.Errorf("%w: requested %s, remaining %s",
				domain.ErrInsufficientBankedCredit, input.Amount, remaining)
		}

		return domain.LedgerDelta{Applied: input.Amount}, nil
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		f, _ := input.Amount.Float64()
		uc.metrics.AppliedAmount.Observe(f)
	}

	return kpis, nil
}

// GetRecord returns the ledger record of a ship-year.
func (uc *BankingUseCase) GetRecord(ctx context.Context, shipID string, year int) (*domain.ShipYearRecord, error) {
	return uc.store.GetRecord(ctx, shipID, year)
}

// run validates input, locks the record and applies the delta chosen by plan.
// The check inside plan and the write happen under the same lock.
func (uc *BankingUseCase) run(
	ctx context.Context,
	operation string,
	input BankingInput,
	plan func(record *domain.ShipYearRecord) (domain.LedgerDelta, error),
) (*domain.BankingKPIs, error) {
	if err := domain.ValidateKey(input.ShipID, input.Year); err != nil {
		return nil, uc.fail(operation, err)
	}

	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, uc.fail(operation, err)
	}

	var kpis *domain.BankingKPIs

	err := uc.store.InTx(ctx, func(ctx context.Context, tx Transaction) error {
		record, err := uc.store.LockOne(ctx, tx, input.ShipID, input.Year)
		if err != nil {
			return err
		}

		delta, err := plan(record)
		if err != nil {
			return err
		}

		updated, err := uc.store.UpdateLedgerTx(ctx, tx, record, delta)
		if err != nil {
			return err
		}

		kpis = &domain.BankingKPIs{
			CBBefore: record.CBAfter(),
			Applied:  input.Amount,
			CBAfter:  updated.CBAfter(),
		}

		return nil
	})
	if err != nil {
		return nil, uc.fail(operation, err)
	}

	uc.store.Invalidate(ctx, input.Year)

	if uc.metrics != nil {
		uc.metrics.BankingOperations.WithLabelValues(operation).Inc()
	}

	zerolog.Ctx(ctx).Info().
		Str("operation", operation).
		Str("ship_id", input.ShipID).
		Int("year", input.Year).
		Str("amount", input.Amount.String()).
		Str("cb_before", kpis.CBBefore.String()).
		Str("cb_after", kpis.CBAfter.String()).
		Msg("banking operation applied")

	return kpis, nil
}

func (uc *BankingUseCase) fail(operation string, err error) error {
	if uc.metrics != nil {
		uc.metrics.BankingErrors.WithLabelValues(operation, errorType(err)).Inc()
	}

	return err
}

// errorType returns a low-cardinality label for err.
func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, domain.ErrNoSurplus):
		return "no_surplus"
	case errors.Is(err, domain.ErrInsufficientBankedCredit):
		return "insufficient_banked_credit"
	case errors.Is(err, domain.ErrEmptyPool):
		return "empty_pool"
	case errors.Is(err, domain.ErrDuplicateMember):
		return "duplicate_member"
	case errors.Is(err, domain.ErrPoolInDeficit):
		return "pool_in_deficit"
	case errors.Is(err, domain.ErrMemberAlreadyPooled):
		return "already_pooled"
	case errors.Is(err, domain.ErrStaleProposal):
		return "stale_proposal"
	case errors.Is(err, domain.ErrSettlementFailed):
		return "settlement_failed"
	case errors.Is(err, domain.ErrLedgerInvariantViolation):
		return "invariant_violation"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "internal"
	}
}
