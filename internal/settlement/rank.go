package settlement

import (
	"sort"
)

// SeatEntry is one seat's raw input for a round.
type SeatEntry struct {
	SeatOrder int `json:"seat_order"`
	RawScore  int `json:"raw_score"`
	ChipDelta int `json:"chip_delta"`
}

// RankedEntry is a SeatEntry with its finishing position.
type RankedEntry struct {
	SeatEntry
	Rank int `json:"rank"`
}

// checkSeats verifies there are exactly four entries covering seats 1..4.
func checkSeats(entries []SeatEntry) error {
	if len(entries) != Seats {
		return validationErr(0, "entries", "expected %d entries, got %d", Seats, len(entries))
	}
	var seen [Seats + 1]bool
	for _, e := range entries {
		if e.SeatOrder < 1 || e.SeatOrder > Seats {
			return validationErr(e.SeatOrder, "seat_order", "must be between 1 and %d", Seats)
		}
		if seen[e.SeatOrder] {
			return validationErr(e.SeatOrder, "seat_order", "duplicate seat")
		}
		seen[e.SeatOrder] = true
	}
	return nil
}

// Rank orders four entries by raw score, highest first, and assigns ranks
// 1..4. Equal raw scores go to the lower seat order, so the ranks are always
// a permutation of 1..4. The input slice is not modified.
func Rank(entries []SeatEntry) ([]RankedEntry, error) {
	if err := checkSeats(entries); err != nil {
		return nil, err
	}

	ranked := make([]RankedEntry, len(entries))
	for i, e := range entries {
		ranked[i] = RankedEntry{SeatEntry: e}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].RawScore != ranked[j].RawScore {
			return ranked[i].RawScore > ranked[j].RawScore
		}
		return ranked[i].SeatOrder < ranked[j].SeatOrder
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked, nil
}
