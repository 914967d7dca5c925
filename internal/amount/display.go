package amount

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Format renders base units with the asset's decimals, e.g. 1500000 with 6
// decimals is "1.500000".
func Format(units *big.Int, decimals uint32) string {
	d := decimal.NewFromBigInt(orZero(units), -int32(decimals))
	return d.StringFixed(int32(decimals))
}

// Parse converts a decimal string to base units.
func Parse(s string, decimals uint32) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount")
	}
	units := d.Shift(int32(decimals))
	if !units.Equal(units.Truncate(0)) {
		return nil, fmt.Errorf("too many decimal places (max %d)", decimals)
	}
	return units.BigInt(), nil
}

// Uint64 converts v to a chain amount, failing when it does not fit.
func Uint64(v *big.Int) (uint64, bool) {
	if v == nil {
		return 0, true
	}
	if v.Sign() < 0 || !v.IsUint64() {
		return 0, false
	}
	return v.Uint64(), true
}
