package dto

import (
	"github.com/shopspring/decimal"
)

// Number is a decimal that marshals as a bare JSON number.
type Number decimal.Decimal

// NumberFrom wraps d.
func NumberFrom(d decimal.Decimal) Number {
	return Number(d)
}

// Decimal returns the wrapped value.
func (n Number) Decimal() decimal.Decimal {
	return decimal.Decimal(n)
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(n).String()), nil
}

// UnmarshalJSON accepts both quoted and bare numbers.
func (n *Number) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}

	*n = Number(d)

	return nil
}
