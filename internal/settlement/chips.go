package settlement

import (
	"github.com/shopspring/decimal"
)

// ChipPoints converts a chip delta into display points: delta × rate × 100.
// The stored rate is the user-facing rate divided by 100, so a stored 1.0
// makes one chip worth 100 points.
func ChipPoints(chipDelta int, cfg EffectiveConfig) decimal.Decimal {
	return decimal.NewFromInt(int64(chipDelta)).Mul(cfg.ChipRate).Mul(hundred)
}

// CombinedAmount puts settlement points and chip points in the same units:
// points × 100 + chipPoints.
func CombinedAmount(settlementPoints, chipPoints decimal.Decimal) decimal.Decimal {
	return settlementPoints.Mul(hundred).Add(chipPoints)
}
