package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jansou/score-engine/internal/model"
	"github.com/jansou/score-engine/internal/settlement"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	rooms   map[string]*model.Room    // room ID → room
	players map[string][]model.Player // room ID → players
	rounds  map[string][]*model.Round // room ID → rounds in creation order
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:   make(map[string]*model.Room),
		players: make(map[string][]model.Player),
		rounds:  make(map[string][]*model.Round),
	}
}

func (s *MemoryStore) CreateRoom(_ context.Context, r *model.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.rooms {
		if existing.Code == r.Code {
			return fmt.Errorf("room code %s: %w", r.Code, ErrConflict)
		}
	}

	// Store a copy to avoid external mutation.
	copy := *r
	s.rooms[r.ID] = &copy
	return nil
}

func (s *MemoryStore) GetRoomByCode(_ context.Context, code string) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.rooms {
		if r.Code == code {
			copy := *r
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("room %s: %w", code, ErrNotFound)
}

func (s *MemoryStore) GetRoomSettings(_ context.Context, roomID string) (settlement.RoomConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return settlement.RoomConfig{}, fmt.Errorf("room %s: %w", roomID, ErrNotFound)
	}
	return r.Config(), nil
}

func (s *MemoryStore) UpdateRoomSettings(_ context.Context, r *model.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rooms[r.ID]
	if !ok {
		return fmt.Errorf("room %s: %w", r.ID, ErrNotFound)
	}
	existing.ApplyConfig(r.Config())
	return nil
}

func (s *MemoryStore) TouchRoom(_ context.Context, roomID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return fmt.Errorf("room %s: %w", roomID, ErrNotFound)
	}
	r.LastUsedAt = at
	return nil
}

func (s *MemoryStore) DeleteRoom(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[roomID]; !ok {
		return fmt.Errorf("room %s: %w", roomID, ErrNotFound)
	}
	delete(s.rooms, roomID)
	delete(s.players, roomID)
	delete(s.rounds, roomID)
	return nil
}

func (s *MemoryStore) DeleteRoomIfIdle(_ context.Context, roomID string, cutoff time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok || !r.LastUsedAt.Before(cutoff) {
		return false, nil
	}
	delete(s.rooms, roomID)
	delete(s.players, roomID)
	delete(s.rounds, roomID)
	return true, nil
}

func (s *MemoryStore) ListIdleRooms(_ context.Context, cutoff time.Time) ([]model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var idle []model.Room
	for _, r := range s.rooms {
		if r.LastUsedAt.Before(cutoff) {
			idle = append(idle, *r)
		}
	}
	sort.Slice(idle, func(i, j int) bool { return idle[i].LastUsedAt.Before(idle[j].LastUsedAt) })
	return idle, nil
}

func (s *MemoryStore) SavePlayers(_ context.Context, roomID string, players []model.Player) ([]model.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[roomID]; !ok {
		return nil, fmt.Errorf("room %s: %w", roomID, ErrNotFound)
	}

	bySeat := make(map[int]model.Player)
	for _, p := range s.players[roomID] {
		bySeat[p.SeatOrder] = p
	}
	for _, p := range players {
		if existing, ok := bySeat[p.SeatOrder]; ok {
			existing.Name = p.Name
			bySeat[p.SeatOrder] = existing
			continue
		}
		bySeat[p.SeatOrder] = model.Player{
			ID:        uuid.New().String(),
			RoomID:    roomID,
			Name:      p.Name,
			SeatOrder: p.SeatOrder,
		}
	}

	saved := make([]model.Player, 0, len(bySeat))
	for _, p := range bySeat {
		saved = append(saved, p)
	}
	sort.Slice(saved, func(i, j int) bool { return saved[i].SeatOrder < saved[j].SeatOrder })
	s.players[roomID] = saved

	out := make([]model.Player, len(saved))
	copy(out, saved)
	return out, nil
}

func (s *MemoryStore) ListPlayers(_ context.Context, roomID string) ([]model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Player, len(s.players[roomID]))
	copy(out, s.players[roomID])
	return out, nil
}

// CreateRound numbers and stores the round under the write lock, which
// serializes concurrent submissions for the same room.
func (s *MemoryStore) CreateRound(_ context.Context, roomID string, records []model.ScoreRecord) (*model.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[roomID]; !ok {
		return nil, fmt.Errorf("room %s: %w", roomID, ErrNotFound)
	}

	number := 1
	for _, rd := range s.rounds[roomID] {
		if rd.Number >= number {
			number = rd.Number + 1
		}
	}

	round := &model.Round{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Number:    number,
		CreatedAt: time.Now().UTC(),
		Records:   make([]model.ScoreRecord, len(records)),
	}
	for i, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		rec.RoundID = round.ID
		round.Records[i] = rec
	}
	sortRecords(round.Records)
	s.rounds[roomID] = append(s.rounds[roomID], round)

	return copyRound(round), nil
}

func (s *MemoryStore) ListRounds(_ context.Context, roomID string) ([]model.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rounds := make([]model.Round, 0, len(s.rounds[roomID]))
	for _, rd := range s.rounds[roomID] {
		rounds = append(rounds, *copyRound(rd))
	}
	sort.Slice(rounds, func(i, j int) bool { return rounds[i].Number > rounds[j].Number })
	return rounds, nil
}

func (s *MemoryStore) DeleteRound(_ context.Context, roomID, roundID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rounds := s.rounds[roomID]
	for i, rd := range rounds {
		if rd.ID == roundID {
			s.rounds[roomID] = append(rounds[:i:i], rounds[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("round %s: %w", roundID, ErrNotFound)
}

func (s *MemoryStore) ListRoomRecords(_ context.Context, roomID string) ([]model.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []model.ScoreRecord
	for _, rd := range s.rounds[roomID] {
		records = append(records, rd.Records...)
	}
	return records, nil
}

func sortRecords(records []model.ScoreRecord) {
	sort.Slice(records, func(i, j int) bool { return records[i].SeatOrder < records[j].SeatOrder })
}

func copyRound(rd *model.Round) *model.Round {
	c := *rd
	c.Records = make([]model.ScoreRecord, len(rd.Records))
	copy(c.Records, rd.Records)
	return &c
}
