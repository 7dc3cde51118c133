package domain

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimal expresses a in major units, scale being the number of fractional
// digits of the unit (7 for stroops per lumen).
func (a Amount) Decimal(scale int32) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(a)), -scale)
}

// Display formats a in major units with exactly scale fractional digits.
func (a Amount) Display(scale int32) string {
	return a.Decimal(scale).StringFixed(scale)
}

// ParseAmount reads a figure given in major units, such as "12.5", and
// returns it in the smallest unit. More fractional digits than scale, negative
// values and values past the largest Amount are rejected.
func ParseAmount(s string, scale int32) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("parse amount %q: negative", s)
	}
	minor := d.Shift(scale)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("parse amount %q: more than %d fractional digits", s, scale)
	}
	if minor.GreaterThan(decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)) {
		return 0, fmt.Errorf("parse amount %q: %w", s, ErrOverflow)
	}
	return Amount(minor.BigInt().Uint64()), nil
}
