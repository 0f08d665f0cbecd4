package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jansou/score-engine/internal/model"
	"github.com/jansou/score-engine/internal/settlement"
)

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*CachedStore)(nil)
)

func seedRoom(t *testing.T, s *MemoryStore, id, code string, lastUsed time.Time) *model.Room {
	t.Helper()
	room := &model.Room{
		ID:             id,
		Code:           code,
		HandicapScheme: settlement.Scheme10_20,
		StartingPoints: 25000,
		ReturnPoints:   30000,
		BonusValue:     20,
		ChipRate:       decimal.NewFromInt(1),
		CreatedAt:      lastUsed,
		LastUsedAt:     lastUsed,
	}
	require.NoError(t, s.CreateRoom(context.Background(), room))
	return room
}

func fourRecords(players []model.Player) []model.ScoreRecord {
	records := make([]model.ScoreRecord, len(players))
	for i, p := range players {
		records[i] = model.ScoreRecord{
			PlayerID:  p.ID,
			SeatOrder: p.SeatOrder,
			RawScore:  30000,
			Rank:      i + 1,
			Points:    decimal.NewNullDecimal(decimal.NewFromInt(int64(10 * (i + 1)))),
		}
	}
	return records
}

func seatPlayers(t *testing.T, s *MemoryStore, roomID string, names ...string) []model.Player {
	t.Helper()
	in := make([]model.Player, len(names))
	for i, n := range names {
		in[i] = model.Player{Name: n, SeatOrder: i + 1}
	}
	players, err := s.SavePlayers(context.Background(), roomID, in)
	require.NoError(t, err)
	return players
}

func TestMemoryStore_RoomCodeUnique(t *testing.T) {
	s := NewMemoryStore()
	seedRoom(t, s, "r1", "ABC123", time.Now())

	err := s.CreateRoom(context.Background(), &model.Room{ID: "r2", Code: "ABC123"})
	require.ErrorIs(t, err, ErrConflict)
}

func TestMemoryStore_GetRoomByCode(t *testing.T) {
	s := NewMemoryStore()
	seedRoom(t, s, "r1", "ABC123", time.Now())

	room, err := s.GetRoomByCode(context.Background(), "ABC123")
	require.NoError(t, err)
	require.Equal(t, "r1", room.ID)

	// Returned value is a copy.
	room.BonusValue = 999
	again, err := s.GetRoomByCode(context.Background(), "ABC123")
	require.NoError(t, err)
	require.Equal(t, 20, again.BonusValue)

	_, err = s.GetRoomByCode(context.Background(), "ZZZZZZ")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_SavePlayersKeepsIDs(t *testing.T) {
	s := NewMemoryStore()
	seedRoom(t, s, "r1", "ABC123", time.Now())

	first := seatPlayers(t, s, "r1", "A", "B", "C", "D")
	require.Len(t, first, 4)

	second := seatPlayers(t, s, "r1", "A2", "B2", "C2", "D2")
	for i := range second {
		require.Equal(t, first[i].ID, second[i].ID, "seat %d should keep its player ID", i+1)
		require.Equal(t, i+1, second[i].SeatOrder)
	}
	require.Equal(t, "A2", second[0].Name)

	_, err := s.SavePlayers(context.Background(), "missing", []model.Player{{Name: "x", SeatOrder: 1}})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_RoundNumbering(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedRoom(t, s, "r1", "ABC123", time.Now())
	seedRoom(t, s, "r2", "XYZ789", time.Now())
	p1 := seatPlayers(t, s, "r1", "A", "B", "C", "D")
	p2 := seatPlayers(t, s, "r2", "E", "F", "G", "H")

	for want := 1; want <= 3; want++ {
		rd, err := s.CreateRound(ctx, "r1", fourRecords(p1))
		require.NoError(t, err)
		require.Equal(t, want, rd.Number)
		require.Len(t, rd.Records, 4)
		for _, rec := range rd.Records {
			require.Equal(t, rd.ID, rec.RoundID)
			require.NotEmpty(t, rec.ID)
		}
	}

	// Numbering is per room.
	rd, err := s.CreateRound(ctx, "r2", fourRecords(p2))
	require.NoError(t, err)
	require.Equal(t, 1, rd.Number)

	rounds, err := s.ListRounds(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, rounds, 3)
	require.Equal(t, 3, rounds[0].Number, "rounds are listed newest first")

	_, err = s.CreateRound(ctx, "missing", fourRecords(p1))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ConcurrentRoundsGetDistinctNumbers(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedRoom(t, s, "r1", "ABC123", time.Now())
	players := seatPlayers(t, s, "r1", "A", "B", "C", "D")

	const n = 50
	var wg sync.WaitGroup
	numbers := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rd, err := s.CreateRound(ctx, "r1", fourRecords(players))
			if err == nil {
				numbers <- rd.Number
			}
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[int]bool)
	for num := range numbers {
		require.False(t, seen[num], "round number %d assigned twice", num)
		seen[num] = true
	}
	require.Len(t, seen, n)
}

func TestMemoryStore_DeleteRoundRemovesRecords(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedRoom(t, s, "r1", "ABC123", time.Now())
	players := seatPlayers(t, s, "r1", "A", "B", "C", "D")

	keep, err := s.CreateRound(ctx, "r1", fourRecords(players))
	require.NoError(t, err)
	drop, err := s.CreateRound(ctx, "r1", fourRecords(players))
	require.NoError(t, err)

	require.NoError(t, s.DeleteRound(ctx, "r1", drop.ID))
	require.ErrorIs(t, s.DeleteRound(ctx, "r1", drop.ID), ErrNotFound)

	records, err := s.ListRoomRecords(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, records, 4)
	for _, rec := range records {
		require.Equal(t, keep.ID, rec.RoundID)
	}
}

func TestMemoryStore_IdleRoomsAndDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	seedRoom(t, s, "old", "OLD111", now.Add(-48*time.Hour))
	seedRoom(t, s, "fresh", "NEW222", now.Add(-time.Hour))

	idle, err := s.ListIdleRooms(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, idle, 1)
	require.Equal(t, "old", idle[0].ID)

	// Touching a room takes it off the idle list.
	require.NoError(t, s.TouchRoom(ctx, "old", now))
	idle, err = s.ListIdleRooms(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Empty(t, idle)

	require.NoError(t, s.DeleteRoom(ctx, "old"))
	_, err = s.GetRoomByCode(ctx, "OLD111")
	require.True(t, errors.Is(err, ErrNotFound))
	require.ErrorIs(t, s.DeleteRoom(ctx, "old"), ErrNotFound)
}

func TestMemoryStore_UpdateRoomSettings(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	room := seedRoom(t, s, "r1", "ABC123", time.Now())

	room.HandicapScheme = settlement.SchemeCustom
	room.HandicapLow = 15
	room.HandicapHigh = 25
	room.ChipRate = decimal.RequireFromString("0.5")
	require.NoError(t, s.UpdateRoomSettings(ctx, room))

	got, err := s.GetRoomByCode(ctx, "ABC123")
	require.NoError(t, err)
	require.Equal(t, settlement.SchemeCustom, got.HandicapScheme)
	require.Equal(t, 25, got.HandicapHigh)
	require.True(t, got.ChipRate.Equal(decimal.RequireFromString("0.5")))
}

func TestMemoryStore_DeleteRoomIfIdle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	seedRoom(t, s, "old", "OLD111", now.Add(-48*time.Hour))
	seedRoom(t, s, "fresh", "NEW222", now.Add(-time.Hour))
	cutoff := now.Add(-24 * time.Hour)

	deleted, err := s.DeleteRoomIfIdle(ctx, "fresh", cutoff)
	require.NoError(t, err)
	require.False(t, deleted, "a room used after the cutoff must survive")

	// Activity between listing and deleting keeps the room.
	require.NoError(t, s.TouchRoom(ctx, "old", now))
	deleted, err = s.DeleteRoomIfIdle(ctx, "old", cutoff)
	require.NoError(t, err)
	require.False(t, deleted)

	require.NoError(t, s.TouchRoom(ctx, "old", now.Add(-30*time.Hour)))
	deleted, err = s.DeleteRoomIfIdle(ctx, "old", cutoff)
	require.NoError(t, err)
	require.True(t, deleted)
	_, err = s.GetRoomByCode(ctx, "OLD111")
	require.ErrorIs(t, err, ErrNotFound)

	deleted, err = s.DeleteRoomIfIdle(ctx, "missing", cutoff)
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestMemoryStore_GetRoomSettings(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	room := seedRoom(t, s, "r1", "ABC123", time.Now())

	room.RateType = settlement.RatePin
	room.ReturnPoints = 35000
	require.NoError(t, s.UpdateRoomSettings(ctx, room))

	rc, err := s.GetRoomSettings(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, settlement.RatePin, rc.RateType)
	require.Equal(t, 35000, rc.ReturnPoints)

	_, err = s.GetRoomSettings(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}
