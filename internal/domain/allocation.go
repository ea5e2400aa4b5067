package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// AllocationPrecision is the number of decimal places kept by pro rata division.
const AllocationPrecision int32 = 16

// Redistribute computes AdjustedCBAfter for every member of a pool.
//
// Deficit members are raised toward zero by drawing from the pooled surplus,
// each in proportion to the size of its deficit. Surplus members give up the
// drawn amount in proportion to their surplus and keep the remainder. Any
// rounding residual goes to the member with the largest absolute balance so
// that the pool total is conserved exactly.
func Redistribute(members []PoolMember) []PoolMember {
	result := make([]PoolMember, len(members))
	copy(result, members)

	surplus, deficit := decimal.Zero, decimal.Zero
	for _, m := range members {
		if m.AdjustedCBBefore.IsNegative() {
			deficit = deficit.Add(m.AdjustedCBBefore.Neg())
		} else {
			surplus = surplus.Add(m.AdjustedCBBefore)
		}
	}

	drawn := decimal.Min(deficit, surplus)
	remaining := surplus.Sub(drawn)

	for i, m := range result {
		var after decimal.Decimal

		switch {
		case m.AdjustedCBBefore.IsNegative():
			after = raiseDeficit(m.AdjustedCBBefore, drawn, deficit)
		case drawn.IsZero():
			after = m.AdjustedCBBefore
		default:
			after = m.AdjustedCBBefore.Mul(remaining).DivRound(surplus, AllocationPrecision)
		}

		result[i].AdjustedCBAfter = &after
	}

	assignResidual(result, sumBefore(members).Sub(sumAfter(result)))

	return result
}

func raiseDeficit(before, drawn, deficit decimal.Decimal) decimal.Decimal {
	if drawn.Equal(deficit) {
		return decimal.Zero
	}

	raise := before.Neg().Mul(drawn).DivRound(deficit, AllocationPrecision)

	return before.Add(raise)
}

// assignResidual adds residual to the largest-magnitude member, skipping a
// deficit member that was brought to zero if the residual would push it back
// below zero.
func assignResidual(members []PoolMember, residual decimal.Decimal) {
	if residual.IsZero() || len(members) == 0 {
		return
	}

	order := make([]int, len(members))
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		return members[order[a]].AdjustedCBBefore.Abs().GreaterThan(members[order[b]].AdjustedCBBefore.Abs())
	})

	target := order[0]
	for _, idx := range order {
		m := members[idx]
		candidate := m.AdjustedCBAfter.Add(residual)

		if m.AdjustedCBBefore.IsNegative() && !m.AdjustedCBAfter.IsNegative() && candidate.IsNegative() {
			continue
		}

		target = idx

		break
	}

	adjusted := members[target].AdjustedCBAfter.Add(residual)
	members[target].AdjustedCBAfter = &adjusted
}

func sumAfter(members []PoolMember) decimal.Decimal {
	sum := decimal.Zero
	for _, m := range members {
		if m.AdjustedCBAfter != nil {
			sum = sum.Add(*m.AdjustedCBAfter)
		}
	}

	return sum
}
