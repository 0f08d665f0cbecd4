// Package model defines the persisted domain types shared across the score
// engine. All point values use shopspring/decimal, never float64.
package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jansou/score-engine/internal/settlement"
)

// Room is one group's scoring session. Its settings are read once per
// settlement call; ChipRate is stored as the user-facing rate divided by 100.
type Room struct {
	ID             string              `json:"id" db:"id"`
	Code           string              `json:"code" db:"code"` // 6 chars, A-Z0-9
	HandicapScheme settlement.Scheme   `json:"handicap_scheme" db:"handicap_scheme"`
	HandicapLow    int                 `json:"handicap_low" db:"handicap_low"`
	HandicapHigh   int                 `json:"handicap_high" db:"handicap_high"`
	RateType       settlement.RateType `json:"rate_type" db:"rate_type"`
	StartingPoints int                 `json:"starting_points" db:"starting_points"`
	ReturnPoints   int                 `json:"return_points" db:"return_points"`
	BonusValue     int                 `json:"bonus_value" db:"bonus_value"`
	ChipRate       decimal.Decimal     `json:"chip_rate" db:"chip_rate"`
	CreatedAt      time.Time           `json:"created_at" db:"created_at"`
	LastUsedAt     time.Time           `json:"last_used_at" db:"last_used_at"`
}

// Config projects the room's stored settings for the settlement engine.
func (r *Room) Config() settlement.RoomConfig {
	return settlement.RoomConfig{
		HandicapScheme: r.HandicapScheme,
		HandicapLow:    r.HandicapLow,
		HandicapHigh:   r.HandicapHigh,
		RateType:       r.RateType,
		StartingPoints: r.StartingPoints,
		ReturnPoints:   r.ReturnPoints,
		BonusValue:     r.BonusValue,
		ChipRate:       r.ChipRate,
	}
}

// ApplyConfig copies scoring settings onto the room.
func (r *Room) ApplyConfig(rc settlement.RoomConfig) {
	r.HandicapScheme = rc.HandicapScheme
	r.HandicapLow = rc.HandicapLow
	r.HandicapHigh = rc.HandicapHigh
	r.RateType = rc.RateType
	r.StartingPoints = rc.StartingPoints
	r.ReturnPoints = rc.ReturnPoints
	r.BonusValue = rc.BonusValue
	r.ChipRate = rc.ChipRate
}

// Player occupies one seat of a room. Seat order is the stable identity used
// when entering scores.
type Player struct {
	ID        string `json:"id" db:"id"`
	RoomID    string `json:"room_id" db:"room_id"`
	Name      string `json:"name" db:"name"`
	SeatOrder int    `json:"seat_order" db:"seat_order"` // 1..4
}

// Round is one settled hand (hanchan). Number is sequential within a room.
type Round struct {
	ID        string        `json:"id" db:"id"`
	RoomID    string        `json:"room_id" db:"room_id"`
	Number    int           `json:"number" db:"number"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	Records   []ScoreRecord `json:"records"`
}

// ScoreRecord is an immutable per-seat settlement row. Points is null when a
// round was recorded without being settled.
type ScoreRecord struct {
	ID         string              `json:"id" db:"id"`
	RoundID    string              `json:"round_id" db:"round_id"`
	PlayerID   string              `json:"player_id" db:"player_id"`
	SeatOrder  int                 `json:"seat_order" db:"seat_order"`
	RawScore   int                 `json:"raw_score" db:"raw_score"`
	ChipDelta  int                 `json:"chip_delta" db:"chip_delta"`
	Rank       int                 `json:"rank" db:"rank"` // 0 when unranked
	Points     decimal.NullDecimal `json:"points" db:"points"`
	ChipPoints decimal.Decimal     `json:"chip_points" db:"chip_points"`
}

// Entry converts the record back into a settlement entry for aggregation.
func (r ScoreRecord) Entry() settlement.SettlementEntry {
	return settlement.SettlementEntry{
		SeatOrder:        r.SeatOrder,
		Rank:             r.Rank,
		RawScore:         r.RawScore,
		ChipDelta:        r.ChipDelta,
		SettlementPoints: r.Points,
		ChipPoints:       r.ChipPoints,
	}
}

// PlayerStats pairs a player with their cumulative totals in a room.
type PlayerStats struct {
	Player Player                     `json:"player"`
	Stats  settlement.CumulativeStats `json:"stats"`
}

// Dashboard is the read model for a room's summary view.
type Dashboard struct {
	Room    Room          `json:"room"`
	Players []Player      `json:"players"`
	Stats   []PlayerStats `json:"stats"`
	Rounds  []Round       `json:"rounds"`
}
