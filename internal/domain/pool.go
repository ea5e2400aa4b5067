package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PoolMember is one ship's share of a pool.
type PoolMember struct {
	AdjustedCBAfter  *decimal.Decimal
	ShipID           string
	AdjustedCBBefore decimal.Decimal
}

// PoolProposal is a candidate pool, not yet settled.
type PoolProposal struct {
	Members []PoolMember
	Year    int
}

// Pool is a settled pool. Immutable once created.
type Pool struct {
	CreatedAt time.Time
	ID        string
	Members   []PoolMember
	Year      int
}

// Validate checks the proposal against the pooling rules.
// A pool whose members sum to exactly zero is valid.
func (p *PoolProposal) Validate() error {
	if err := ValidateMemberSet(p.shipIDs()); err != nil {
		return err
	}

	if sum := p.SumBefore(); sum.IsNegative() {
		return fmt.Errorf("%w: sum %s", ErrPoolInDeficit, sum)
	}

	return nil
}

// SumBefore returns the aggregate adjusted balance of the members.
func (p *PoolProposal) SumBefore() decimal.Decimal {
	return sumBefore(p.Members)
}

func (p *PoolProposal) shipIDs() []string {
	ids := make([]string, len(p.Members))
	for i, m := range p.Members {
		ids[i] = m.ShipID
	}

	return ids
}

// ValidateMemberSet rejects empty member lists and repeated ship IDs.
func ValidateMemberSet(shipIDs []string) error {
	if len(shipIDs) == 0 {
		return ErrEmptyPool
	}

	seen := make(map[string]bool, len(shipIDs))
	for _, id := range shipIDs {
		if err := ValidateShipID(id); err != nil {
			return err
		}

		if seen[id] {
			return fmt.Errorf("%w: %s", ErrDuplicateMember, id)
		}

		seen[id] = true
	}

	return nil
}

// SumBefore returns the pool's aggregate balance before settlement.
func (p *Pool) SumBefore() decimal.Decimal {
	return sumBefore(p.Members)
}

// SumAfter returns the pool's aggregate balance after settlement.
func (p *Pool) SumAfter() decimal.Decimal {
	return sumAfter(p.Members)
}

// CheckConservation verifies the pool neither created nor destroyed balance.
func (p *Pool) CheckConservation() error {
	before, after := p.SumBefore(), p.SumAfter()
	if !before.Equal(after) {
		return fmt.Errorf("%w: pool %s before=%s after=%s", ErrLedgerInvariantViolation, p.ID, before, after)
	}

	return nil
}

func sumBefore(members []PoolMember) decimal.Decimal {
	sum := decimal.Zero
	for _, m := range members {
		sum = sum.Add(m.AdjustedCBBefore)
	}

	return sum
}
