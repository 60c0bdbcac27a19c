package util

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RoundTo snaps v to the nearest multiple of 1/factor, ties away from zero.
// The arithmetic runs in decimal so the result is the float closest to the
// exact tick (0.09996, not 0.09996000000000001). factor must be positive.
func RoundTo(v float64, factor int64) float64 {
	return RoundDecimal(decimal.NewFromFloat(v), factor).InexactFloat64()
}

// RoundDecimal is RoundTo for callers already holding a decimal.
func RoundDecimal(v decimal.Decimal, factor int64) decimal.Decimal {
	if factor <= 0 {
		panic(fmt.Sprintf("util: rounding factor must be positive, got %d", factor))
	}
	f := decimal.NewFromInt(factor)
	return v.Mul(f).Round(0).Div(f)
}
