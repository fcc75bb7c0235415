package positions

import (
	"math"
)

func calculateSpreadIntrinsicValue(shortStrike, longStrike, forward float64, spreadType SpreadType) float64 {
	width := math.Abs(shortStrike - longStrike)
	if spreadType == BullPut {
		return math.Min(width, math.Max(0, shortStrike-forward))
	}
	return math.Min(width, math.Max(0, forward-shortStrike))
}

func calculateSingleOptionIntrinsicValue(strike, forward float64, isCall bool) float64 {
	if isCall {
		return math.Max(0, forward-strike)
	}
	return math.Max(0, strike-forward)
}

func sanitizeFloat(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
