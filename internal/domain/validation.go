package domain

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation constants
const (
	MaxShipIDLength = 64
	MinYear         = 2000
	MaxYear         = 2100
	MaxAmount       = "1000000000000000" // 1e15 gCO2e

	// LedgerScale is the number of decimal places stored for every balance.
	LedgerScale int32 = 18
)

// maxBalance bounds the magnitude of a stored balance (20 integer digits).
var maxBalance = decimal.New(1, 20)

var shipIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]*$`)

// ValidateShipID validates a ship identifier
func ValidateShipID(shipID string) error {
	if strings.TrimSpace(shipID) == "" {
		return fmt.Errorf("%w: ship id cannot be empty", ErrInvalidInput)
	}

	if len(shipID) > MaxShipIDLength {
		return fmt.Errorf("%w: ship id exceeds %d characters", ErrInvalidInput, MaxShipIDLength)
	}

	if !shipIDRegex.MatchString(shipID) {
		return fmt.Errorf("%w: ship id %q contains forbidden characters", ErrInvalidInput, shipID)
	}

	return nil
}

// ValidateYear validates a compliance year
func ValidateYear(year int) error {
	if year < MinYear || year > MaxYear {
		return fmt.Errorf("%w: year %d outside [%d, %d]", ErrInvalidInput, year, MinYear, MaxYear)
	}

	return nil
}

// ValidateKey validates both parts of a record key.
func ValidateKey(shipID string, year int) error {
	if err := ValidateShipID(shipID); err != nil {
		return err
	}

	return ValidateYear(year)
}

// ValidateAmount validates a banking or apply amount
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	if !amount.Equal(amount.Round(LedgerScale)) {
		return fmt.Errorf("%w: amount has more than %d decimal places", ErrInvalidAmount, LedgerScale)
	}

	maxAmount := decimal.RequireFromString(MaxAmount)
	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrInvalidAmount, MaxAmount)
	}

	return nil
}

// DecimalFromFloat converts an upstream float rounded to LedgerScale places.
// NaN, infinities and values of 1e20 or more in magnitude are rejected.
func DecimalFromFloat(v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, fmt.Errorf("%w: value %v is not finite", ErrInvalidInput, v)
	}

	d := decimal.NewFromFloat(v).Round(LedgerScale)
	if d.Abs().GreaterThanOrEqual(maxBalance) {
		return decimal.Zero, fmt.Errorf("%w: value %v exceeds the storable range", ErrInvalidInput, v)
	}

	return d, nil
}
