package settlement

import (
	"github.com/shopspring/decimal"
)

// Accepted per-seat input ranges.
const (
	MinRawScore  = -200_000
	MaxRawScore  = 200_000
	MaxChipDelta = 10_000
)

// SettlementEntry is the settled result for one seat. SettlementPoints is
// always valid when produced by Settle; it may be null in persisted history
// for a round that was only partially recorded.
type SettlementEntry struct {
	SeatOrder        int                 `json:"seat_order"`
	Rank             int                 `json:"rank"`
	RawScore         int                 `json:"raw_score"`
	ChipDelta        int                 `json:"chip_delta"`
	SettlementPoints decimal.NullDecimal `json:"settlement_points"`
	ChipPoints       decimal.Decimal     `json:"chip_points"`
}

// CombinedAmount is the display total for the entry: settlement points scaled
// by 100 plus chip points. A null settlement contributes only its chips.
func (e SettlementEntry) CombinedAmount() decimal.Decimal {
	if !e.SettlementPoints.Valid {
		return e.ChipPoints
	}
	return CombinedAmount(e.SettlementPoints.Decimal, e.ChipPoints)
}

// checkRanges rejects the whole batch if any seat is out of range.
func checkRanges(entries []RankedEntry) error {
	var seen [Seats + 1]bool
	for _, e := range entries {
		if e.Rank < 1 || e.Rank > Seats || seen[e.Rank] {
			return validationErr(e.SeatOrder, "rank", "ranks must be a permutation of 1..%d", Seats)
		}
		seen[e.Rank] = true
		if e.RawScore < MinRawScore || e.RawScore > MaxRawScore {
			return validationErr(e.SeatOrder, "raw_score", "must be between %d and %d", MinRawScore, MaxRawScore)
		}
		if e.ChipDelta < -MaxChipDelta || e.ChipDelta > MaxChipDelta {
			return validationErr(e.SeatOrder, "chip_delta", "must be between %d and %d", -MaxChipDelta, MaxChipDelta)
		}
	}
	return nil
}

// Settle computes settlement points for four ranked entries:
//
//	points = (rawScore - returnPoints) / 1000 + uma[rank] + (bonus if rank == 1)
//
// The uma terms cancel, so the four results sum to Σbase + bonusValue. If any
// entry is invalid no entries are returned. Output is ordered by rank.
func Settle(cfg EffectiveConfig, ranked []RankedEntry) ([]SettlementEntry, error) {
	seats := make([]SeatEntry, len(ranked))
	for i, r := range ranked {
		seats[i] = r.SeatEntry
	}
	if err := checkSeats(seats); err != nil {
		return nil, err
	}
	if err := checkRanges(ranked); err != nil {
		return nil, err
	}

	out := make([]SettlementEntry, Seats)
	for _, r := range ranked {
		points := BasePoints(r.RawScore, cfg.ReturnPoints).Add(cfg.UmaFor(r.Rank))
		if r.Rank == 1 {
			points = points.Add(decimal.NewFromInt(int64(cfg.BonusValue)))
		}
		out[r.Rank-1] = SettlementEntry{
			SeatOrder:        r.SeatOrder,
			Rank:             r.Rank,
			RawScore:         r.RawScore,
			ChipDelta:        r.ChipDelta,
			SettlementPoints: decimal.NewNullDecimal(points),
			ChipPoints:       ChipPoints(r.ChipDelta, cfg),
		}
	}
	return out, nil
}

// BasePoints is the raw score normalized against the return points, in
// thousands. The division is exact.
func BasePoints(rawScore, returnPoints int) decimal.Decimal {
	return decimal.NewFromInt(int64(rawScore - returnPoints)).Div(thousand)
}

// SettleRound runs the full pipeline for one round: resolve the room's
// configuration, rank the entries, and settle them.
func SettleRound(rc RoomConfig, entries []SeatEntry) ([]SettlementEntry, error) {
	cfg, err := Resolve(rc)
	if err != nil {
		return nil, err
	}
	ranked, err := Rank(entries)
	if err != nil {
		return nil, err
	}
	return Settle(cfg, ranked)
}
