package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jansou/score-engine/internal/model"
	"github.com/jansou/score-engine/internal/settlement"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the room's keys;
// reads check Redis first then fall back to the primary.
//
// LastUsedAt on a cached room may lag behind the primary by up to the TTL.
// So may its settings: a read racing UpdateRoomSettings can re-cache the old
// values after the invalidation. Settlement therefore reads settings through
// GetRoomSettings, which always goes to the primary, as do idle-room queries.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateRoom(ctx context.Context, r *model.Room) error {
	if err := s.primary.CreateRoom(ctx, r); err != nil {
		return err
	}
	s.cacheRoom(ctx, r)
	return nil
}

func (s *CachedStore) UpdateRoomSettings(ctx context.Context, r *model.Room) error {
	if err := s.primary.UpdateRoomSettings(ctx, r); err != nil {
		return err
	}
	s.invalidateRoom(ctx, r.ID)
	return nil
}

func (s *CachedStore) TouchRoom(ctx context.Context, roomID string, at time.Time) error {
	return s.primary.TouchRoom(ctx, roomID, at)
}

func (s *CachedStore) DeleteRoom(ctx context.Context, roomID string) error {
	if err := s.primary.DeleteRoom(ctx, roomID); err != nil {
		return err
	}
	s.invalidateRoom(ctx, roomID)
	s.rdb.Del(ctx, playersKey(roomID), roundsKey(roomID))
	return nil
}

func (s *CachedStore) DeleteRoomIfIdle(ctx context.Context, roomID string, cutoff time.Time) (bool, error) {
	deleted, err := s.primary.DeleteRoomIfIdle(ctx, roomID, cutoff)
	if err != nil || !deleted {
		return deleted, err
	}
	s.invalidateRoom(ctx, roomID)
	s.rdb.Del(ctx, playersKey(roomID), roundsKey(roomID))
	return true, nil
}

func (s *CachedStore) SavePlayers(ctx context.Context, roomID string, players []model.Player) ([]model.Player, error) {
	saved, err := s.primary.SavePlayers(ctx, roomID, players)
	if err != nil {
		return nil, err
	}
	s.rdb.Del(ctx, playersKey(roomID))
	return saved, nil
}

func (s *CachedStore) CreateRound(ctx context.Context, roomID string, records []model.ScoreRecord) (*model.Round, error) {
	round, err := s.primary.CreateRound(ctx, roomID, records)
	if err != nil {
		return nil, err
	}
	s.rdb.Del(ctx, roundsKey(roomID))
	return round, nil
}

func (s *CachedStore) DeleteRound(ctx context.Context, roomID, roundID string) error {
	if err := s.primary.DeleteRound(ctx, roomID, roundID); err != nil {
		return err
	}
	s.rdb.Del(ctx, roundsKey(roomID))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetRoomByCode(ctx context.Context, code string) (*model.Room, error) {
	data, err := s.rdb.Get(ctx, roomKey(code)).Bytes()
	if err == nil {
		var r model.Room
		if json.Unmarshal(data, &r) == nil {
			return &r, nil
		}
	}

	// Cache miss: read from primary.
	r, err := s.primary.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	s.cacheRoom(ctx, r)
	return r, nil
}

func (s *CachedStore) ListPlayers(ctx context.Context, roomID string) ([]model.Player, error) {
	var players []model.Player
	if s.readJSON(ctx, playersKey(roomID), &players) {
		return players, nil
	}

	players, err := s.primary.ListPlayers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	s.writeJSON(ctx, playersKey(roomID), players)
	return players, nil
}

func (s *CachedStore) ListRounds(ctx context.Context, roomID string) ([]model.Round, error) {
	var rounds []model.Round
	if s.readJSON(ctx, roundsKey(roomID), &rounds) {
		return rounds, nil
	}

	rounds, err := s.primary.ListRounds(ctx, roomID)
	if err != nil {
		return nil, err
	}
	s.writeJSON(ctx, roundsKey(roomID), rounds)
	return rounds, nil
}

// ListRoomRecords is served from the cached round list so the dashboard fold
// and the round list share one cache entry.
func (s *CachedStore) ListRoomRecords(ctx context.Context, roomID string) ([]model.ScoreRecord, error) {
	rounds, err := s.ListRounds(ctx, roomID)
	if err != nil {
		return nil, err
	}
	var records []model.ScoreRecord
	for _, rd := range rounds {
		records = append(records, rd.Records...)
	}
	return records, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) GetRoomSettings(ctx context.Context, roomID string) (settlement.RoomConfig, error) {
	return s.primary.GetRoomSettings(ctx, roomID)
}

func (s *CachedStore) ListIdleRooms(ctx context.Context, cutoff time.Time) ([]model.Room, error) {
	return s.primary.ListIdleRooms(ctx, cutoff)
}

// --- Cache helpers ---

func (s *CachedStore) cacheRoom(ctx context.Context, r *model.Room) {
	if data, err := json.Marshal(r); err == nil {
		s.rdb.Set(ctx, roomKey(r.Code), data, s.ttl)
		s.rdb.Set(ctx, roomCodeKey(r.ID), r.Code, s.ttl)
	}
}

// invalidateRoom drops the cached room using the ID → code mapping.
func (s *CachedStore) invalidateRoom(ctx context.Context, roomID string) {
	code, err := s.rdb.Get(ctx, roomCodeKey(roomID)).Result()
	if err == nil {
		s.rdb.Del(ctx, roomKey(code))
	}
	s.rdb.Del(ctx, roomCodeKey(roomID))
}

func (s *CachedStore) readJSON(ctx context.Context, key string, v any) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

func (s *CachedStore) writeJSON(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func roomKey(code string) string      { return fmt.Sprintf("room:%s", code) }
func roomCodeKey(id string) string    { return fmt.Sprintf("roomcode:%s", id) }
func playersKey(roomID string) string { return fmt.Sprintf("players:%s", roomID) }
func roundsKey(roomID string) string  { return fmt.Sprintf("rounds:%s", roomID) }
