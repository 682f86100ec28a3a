package common

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round2 rounds a monetary/point value to two decimal places, half away from
// zero. Stored rupee and point fields all pass through here so reruns produce
// byte-identical rows.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// RoundSig rounds to the given number of significant digits. Used for
// growth percentages, where the magnitude varies by orders of magnitude.
func RoundSig(v float64, sig int) float64 {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	exp := int32(sig) - 1 - int32(math.Floor(math.Log10(math.Abs(v))))
	f, _ := decimal.NewFromFloat(v).Round(exp).Float64()
	return f
}
