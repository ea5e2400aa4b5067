package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func members(pairs ...any) []PoolMember {
	var out []PoolMember
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, PoolMember{
			ShipID:           pairs[i].(string),
			AdjustedCBBefore: decimal.RequireFromString(pairs[i+1].(string)),
		})
	}

	return out
}

func afterOf(t *testing.T, result []PoolMember, shipID string) decimal.Decimal {
	t.Helper()

	for _, m := range result {
		if m.ShipID == shipID {
			if m.AdjustedCBAfter == nil {
				t.Fatalf("member %s has no after value", shipID)
			}
			return *m.AdjustedCBAfter
		}
	}

	t.Fatalf("member %s not found", shipID)

	return decimal.Zero
}

func TestRedistribute(t *testing.T) {
	tests := []struct {
		name     string
		members  []PoolMember
		expected map[string]string
	}{
		{
			name:     "deficit fully offset, remainder to surplus",
			members:  members("S1", "-30", "S2", "50"),
			expected: map[string]string{"S1": "0", "S2": "20"},
		},
		{
			name:     "zero sum pool",
			members:  members("S1", "-40", "S2", "40"),
			expected: map[string]string{"S1": "0", "S2": "0"},
		},
		{
			name:     "surplus drawn pro rata",
			members:  members("S1", "-30", "S2", "20", "S3", "40"),
			expected: map[string]string{"S1": "0", "S2": "10", "S3": "20"},
		},
		{
			name:     "deficits share the pooled surplus",
			members:  members("S1", "-10", "S2", "-30", "S3", "100"),
			expected: map[string]string{"S1": "0", "S2": "0", "S3": "60"},
		},
		{
			name:     "only surplus members unchanged",
			members:  members("S1", "5", "S2", "7"),
			expected: map[string]string{"S1": "5", "S2": "7"},
		},
		{
			name:     "single member",
			members:  members("S1", "0"),
			expected: map[string]string{"S1": "0"},
		},
		{
			name:     "insufficient surplus raises deficits pro rata",
			members:  members("S1", "-30", "S2", "-10", "S3", "20"),
			expected: map[string]string{"S1": "-15", "S2": "-5", "S3": "0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Redistribute(tt.members)

			for shipID, want := range tt.expected {
				got := afterOf(t, result, shipID)
				if !got.Equal(decimal.RequireFromString(want)) {
					t.Errorf("%s: expected after %s, got %s", shipID, want, got)
				}
			}

			if !sumAfter(result).Equal(sumBefore(tt.members)) {
				t.Errorf("conservation broken: before=%s after=%s", sumBefore(tt.members), sumAfter(result))
			}
		})
	}
}

func TestRedistribute_DoesNotMutateInput(t *testing.T) {
	input := members("S1", "-30", "S2", "50")

	_ = Redistribute(input)

	for _, m := range input {
		if m.AdjustedCBAfter != nil {
			t.Fatalf("expected input member %s to be untouched", m.ShipID)
		}
	}
}

func TestRedistribute_ResidualConservesTotal(t *testing.T) {
	// 10 * 20 / 30 does not terminate; three surplus members each round up.
	input := members("S1", "-10", "S2", "10", "S3", "10", "S4", "10")

	result := Redistribute(input)

	if !sumAfter(result).Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected exact total 20, got %s", sumAfter(result))
	}

	if got := afterOf(t, result, "S1"); !got.IsZero() {
		t.Fatalf("expected deficit member to stay at zero, got %s", got)
	}

	// S1 ties on magnitude and comes first but cannot absorb a negative
	// residual, so S2 takes it.
	if got, want := afterOf(t, result, "S2"), decimal.RequireFromString("6.6666666666666666"); !got.Equal(want) {
		t.Fatalf("expected S2 to absorb residual (%s), got %s", want, got)
	}

	if got, want := afterOf(t, result, "S3"), decimal.RequireFromString("6.6666666666666667"); !got.Equal(want) {
		t.Fatalf("expected S3 %s, got %s", want, got)
	}
}

func TestRedistribute_ResidualGoesToLargestMagnitude(t *testing.T) {
	input := members("S1", "-10", "S2", "10", "S3", "10", "S4", "40")

	result := Redistribute(input)

	if !sumAfter(result).Equal(sumBefore(input)) {
		t.Fatalf("conservation broken: before=%s after=%s", sumBefore(input), sumAfter(result))
	}

	// S2 and S3 are computed without residual; only S4 may differ from the
	// plain pro rata share.
	plain := decimal.NewFromInt(10).Mul(decimal.NewFromInt(50)).DivRound(decimal.NewFromInt(60), AllocationPrecision)
	if got := afterOf(t, result, "S2"); !got.Equal(plain) {
		t.Fatalf("expected S2 %s, got %s", plain, got)
	}
	if got := afterOf(t, result, "S3"); !got.Equal(plain) {
		t.Fatalf("expected S3 %s, got %s", plain, got)
	}
}
