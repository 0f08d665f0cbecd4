package settlement

import (
	"github.com/shopspring/decimal"
)

// CumulativeStats are running totals over one player's settlement history.
type CumulativeStats struct {
	TotalSettlementPoints decimal.Decimal `json:"total_settlement_points"`
	TotalChipDelta        int             `json:"total_chip_delta"`
	TotalChipPoints       decimal.Decimal `json:"total_chip_points"`
	TotalCombinedAmount   decimal.Decimal `json:"total_combined_amount"`
	SettledRounds         int             `json:"settled_rounds"`
}

// Aggregate folds a player's history into totals. Entries without settlement
// points are left out of the points sum (they are not counted as zero), but
// their chips still count. Order does not matter and an empty history yields
// zero totals.
func Aggregate(history []SettlementEntry) CumulativeStats {
	stats := CumulativeStats{
		TotalSettlementPoints: decimal.Zero,
		TotalChipPoints:       decimal.Zero,
		TotalCombinedAmount:   decimal.Zero,
	}
	for _, e := range history {
		if e.SettlementPoints.Valid {
			stats.TotalSettlementPoints = stats.TotalSettlementPoints.Add(e.SettlementPoints.Decimal)
			stats.SettledRounds++
		}
		stats.TotalChipDelta += e.ChipDelta
		stats.TotalChipPoints = stats.TotalChipPoints.Add(e.ChipPoints)
		stats.TotalCombinedAmount = stats.TotalCombinedAmount.Add(e.CombinedAmount())
	}
	return stats
}
