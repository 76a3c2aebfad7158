package execution

import (
	"github.com/shopspring/decimal"
)

// SizeMultiplier returns the fixed score → multiplier mapping (unknown score = 0)
func SizeMultiplier(score int, table map[int]float64) float64 {
	return table[score]
}

// PositionNotional = cash × maxPositionPct × multiplier, floored to cents
func PositionNotional(cash, maxPositionPct, multiplier float64) decimal.Decimal {
	if cash <= 0 || maxPositionPct <= 0 || multiplier <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(cash).
		Mul(decimal.NewFromFloat(maxPositionPct)).
		Mul(decimal.NewFromFloat(multiplier)).
		RoundFloor(2)
}
