package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ShipYearRecord holds the compliance balance ledger of one ship for one year.
type ShipYearRecord struct {
	CreatedAt       time.Time
	UpdatedAt       time.Time
	PoolID          *string
	ShipID          string
	Year            int
	RawCB           decimal.Decimal
	BankedIn        decimal.Decimal
	AppliedFromBank decimal.Decimal
	PoolAdjustment  decimal.Decimal
	Version         int64
}

// NewShipYearRecord returns a zero-initialized record.
func NewShipYearRecord(shipID string, year int, now time.Time) *ShipYearRecord {
	return &ShipYearRecord{
		ShipID:          shipID,
		Year:            year,
		RawCB:           decimal.Zero,
		BankedIn:        decimal.Zero,
		AppliedFromBank: decimal.Zero,
		PoolAdjustment:  decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// CBAfter is the current adjusted compliance balance.
func (r *ShipYearRecord) CBAfter() decimal.Decimal {
	return r.AdjustedBeforePool().Add(r.PoolAdjustment)
}

// AdjustedBeforePool is the balance after banking but before pool settlement.
func (r *ShipYearRecord) AdjustedBeforePool() decimal.Decimal {
	return r.RawCB.Add(r.AppliedFromBank)
}

// RemainingCredit is banked credit not yet applied.
func (r *ShipYearRecord) RemainingCredit() decimal.Decimal {
	return r.BankedIn.Sub(r.AppliedFromBank)
}

// Pooled reports whether the record has been settled into a pool.
func (r *ShipYearRecord) Pooled() bool {
	return r.PoolID != nil
}

// Key returns the record key.
func (r *ShipYearRecord) Key() RecordKey {
	return RecordKey{ShipID: r.ShipID, Year: r.Year}
}

// CheckInvariants verifies the ledger fields are consistent.
func (r *ShipYearRecord) CheckInvariants() error {
	if r.BankedIn.IsNegative() {
		return fmt.Errorf("%w: banked_in %s is negative", ErrLedgerInvariantViolation, r.BankedIn)
	}

	if r.AppliedFromBank.IsNegative() {
		return fmt.Errorf("%w: applied_from_bank %s is negative", ErrLedgerInvariantViolation, r.AppliedFromBank)
	}

	if r.AppliedFromBank.GreaterThan(r.BankedIn) {
		return fmt.Errorf("%w: applied_from_bank %s exceeds banked_in %s",
			ErrLedgerInvariantViolation, r.AppliedFromBank, r.BankedIn)
	}

	return nil
}

// ApplyDelta returns a copy of the record with delta applied. The receiver is
// never modified, so a failed check leaves the caller's state untouched.
func (r *ShipYearRecord) ApplyDelta(delta LedgerDelta, now time.Time) (*ShipYearRecord, error) {
	next := *r
	next.BankedIn = r.BankedIn.Add(delta.BankedIn)
	next.AppliedFromBank = r.AppliedFromBank.Add(delta.Applied)
	next.PoolAdjustment = r.PoolAdjustment.Add(delta.Pooled)

	if err := next.CheckInvariants(); err != nil {
		return nil, err
	}

	next.Version = r.Version + 1
	next.UpdatedAt = now

	return &next, nil
}

// RecordKey identifies a ShipYearRecord.
type RecordKey struct {
	ShipID string
	Year   int
}

func (k RecordKey) String() string {
	return fmt.Sprintf("%s/%d", k.ShipID, k.Year)
}

// LedgerDelta is a signed adjustment to a record's ledger fields.
type LedgerDelta struct {
	BankedIn decimal.Decimal
	Applied  decimal.Decimal
	Pooled   decimal.Decimal
}

// IsZero reports whether the delta changes nothing.
func (d LedgerDelta) IsZero() bool {
	return d.BankedIn.IsZero() && d.Applied.IsZero() && d.Pooled.IsZero()
}

// BankingKPIs summarizes a banking operation.
type BankingKPIs struct {
	CBBefore decimal.Decimal
	Applied  decimal.Decimal
	CBAfter  decimal.Decimal
}
