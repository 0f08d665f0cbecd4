// Package settlement turns the four raw scores of a mahjong round into ranked
// settlement points, converts chip side bets into point-equivalent value, and
// folds settlement history into per-player running totals.
//
// Every function in this package is pure: configuration and entries are passed
// in, immutable values come out, and nothing is stored or fetched. Point values
// use shopspring/decimal so that (rawScore - returnPoints) / 1000 is exact.
package settlement

import (
	"github.com/shopspring/decimal"
)

// Scheme names a sashi-uma preset.
type Scheme string

const (
	Scheme5_10   Scheme = "5-10"
	Scheme10_20  Scheme = "10-20"
	Scheme10_30  Scheme = "10-30"
	SchemeCustom Scheme = "custom"
)

// Accepted configuration ranges.
const (
	MaxHandicap = 1000
	MaxPoints   = 1_000_000
	MaxBonus    = 1000
)

// Seats is the fixed number of players in a round.
const Seats = 4

// RateType names a stakes preset. Each preset fixes the return points;
// RateCustom takes them from the room's own setting.
type RateType string

const (
	RateNone    RateType = "no"
	RateTen1    RateType = "ten1"
	RateTen2    RateType = "ten2"
	RateTen3    RateType = "ten3"
	RateTen5    RateType = "ten5"
	RatePin     RateType = "pin"
	RateRyanpin RateType = "ryanpin"
	RateUpin    RateType = "upin"
	RateDekapin RateType = "dekapin"
	RateCustom  RateType = "custom"
)

var rateReturnPoints = map[RateType]int{
	RateNone:    25000,
	RateTen1:    26000,
	RateTen2:    27000,
	RateTen3:    28000,
	RateTen5:    30000,
	RatePin:     35000,
	RateRyanpin: 45000,
	RateUpin:    75000,
	RateDekapin: 125000,
}

var presets = map[Scheme][2]int{
	Scheme5_10:  {5, 10},
	Scheme10_20: {10, 20},
	Scheme10_30: {10, 30},
}

var (
	hundred  = decimal.NewFromInt(100)
	thousand = decimal.NewFromInt(1000)
)

// RoomConfig is a room's stored scoring settings. ChipRate is kept in storage
// form: the user-facing rate divided by 100.
//
// ReturnPoints holds the effective value. For a preset RateType it is
// overridden by the preset; an empty RateType is treated as RateCustom.
type RoomConfig struct {
	HandicapScheme Scheme          `json:"handicap_scheme"`
	HandicapLow    int             `json:"handicap_low"`
	HandicapHigh   int             `json:"handicap_high"`
	RateType       RateType        `json:"rate_type"`
	StartingPoints int             `json:"starting_points"`
	ReturnPoints   int             `json:"return_points"`
	BonusValue     int             `json:"bonus_value"`
	ChipRate       decimal.Decimal `json:"chip_rate"`
}

// EffectiveConfig is the concrete numeric configuration consumed by Settle
// and ChipPoints. Uma is indexed by rank-1.
type EffectiveConfig struct {
	Uma          [Seats]decimal.Decimal
	ReturnPoints int
	BonusValue   int
	ChipRate     decimal.Decimal
}

// UmaFor returns the handicap for a rank in 1..4, or zero for anything else.
func (c EffectiveConfig) UmaFor(rank int) decimal.Decimal {
	if rank < 1 || rank > Seats {
		return decimal.Zero
	}
	return c.Uma[rank-1]
}

// ChipRateFromInput converts a user-entered chip rate ("100" means one chip is
// worth 100 points) into storage form.
func ChipRateFromInput(userRate decimal.Decimal) decimal.Decimal {
	return userRate.Div(hundred)
}

// ChipRateForDisplay is the inverse of ChipRateFromInput.
func ChipRateForDisplay(stored decimal.Decimal) decimal.Decimal {
	return stored.Mul(hundred)
}

// ReturnPointsFor maps a rate to its return points. customReturnPoints is
// used only for RateCustom and must lie in [0, MaxPoints].
func ReturnPointsFor(rate RateType, customReturnPoints int) (int, error) {
	if rate == RateCustom {
		if customReturnPoints < 0 || customReturnPoints > MaxPoints {
			return 0, configErr("return_points", "must be between 0 and %d", MaxPoints)
		}
		return customReturnPoints, nil
	}
	ret, ok := rateReturnPoints[rate]
	if !ok {
		return 0, configErr("rate_type", "unrecognized rate %q", rate)
	}
	return ret, nil
}

// Handicaps returns the low and high uma magnitudes selected by the scheme.
func Handicaps(rc RoomConfig) (low, high int, err error) {
	if rc.HandicapScheme == SchemeCustom {
		if rc.HandicapLow < 0 || rc.HandicapLow > MaxHandicap {
			return 0, 0, configErr("handicap_low", "must be between 0 and %d", MaxHandicap)
		}
		if rc.HandicapHigh < 0 || rc.HandicapHigh > MaxHandicap {
			return 0, 0, configErr("handicap_high", "must be between 0 and %d", MaxHandicap)
		}
		return rc.HandicapLow, rc.HandicapHigh, nil
	}
	p, ok := presets[rc.HandicapScheme]
	if !ok {
		return 0, 0, configErr("handicap_scheme", "unrecognized scheme %q", rc.HandicapScheme)
	}
	return p[0], p[1], nil
}

// Resolve validates a room's settings and derives the per-rank uma table:
// +high, +low, -low, -high. The table always sums to zero.
func Resolve(rc RoomConfig) (EffectiveConfig, error) {
	low, high, err := Handicaps(rc)
	if err != nil {
		return EffectiveConfig{}, err
	}
	if rc.StartingPoints < 0 || rc.StartingPoints > MaxPoints {
		return EffectiveConfig{}, configErr("starting_points", "must be between 0 and %d", MaxPoints)
	}
	rate := rc.RateType
	if rate == "" {
		rate = RateCustom
	}
	returnPoints, err := ReturnPointsFor(rate, rc.ReturnPoints)
	if err != nil {
		return EffectiveConfig{}, err
	}
	if rc.BonusValue < 0 || rc.BonusValue > MaxBonus {
		return EffectiveConfig{}, configErr("bonus_value", "must be between 0 and %d", MaxBonus)
	}
	if rc.ChipRate.IsNegative() {
		return EffectiveConfig{}, configErr("chip_rate", "must not be negative")
	}

	lo := decimal.NewFromInt(int64(low))
	hi := decimal.NewFromInt(int64(high))
	return EffectiveConfig{
		Uma:          [Seats]decimal.Decimal{hi, lo, lo.Neg(), hi.Neg()},
		ReturnPoints: returnPoints,
		BonusValue:   rc.BonusValue,
		ChipRate:     rc.ChipRate,
	}, nil
}
