// Package store defines the persistence interface for the score engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jansou/score-engine/internal/model"
	"github.com/jansou/score-engine/internal/settlement"
)

var (
	// ErrNotFound is returned when a room or round does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when a unique key (room code) is already taken.
	ErrConflict = errors.New("store: conflict")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Rooms ---

	// CreateRoom persists a new room. Returns ErrConflict if the code is taken.
	CreateRoom(ctx context.Context, room *model.Room) error

	// GetRoomByCode retrieves a room by its join code.
	GetRoomByCode(ctx context.Context, code string) (*model.Room, error)

	// GetRoomSettings reads a room's scoring settings from the source of
	// truth. Implementations must not serve it from a cache.
	GetRoomSettings(ctx context.Context, roomID string) (settlement.RoomConfig, error)

	// UpdateRoomSettings overwrites the scoring settings of a room.
	UpdateRoomSettings(ctx context.Context, room *model.Room) error

	// TouchRoom records activity on a room.
	TouchRoom(ctx context.Context, roomID string, at time.Time) error

	// DeleteRoom removes a room with its players, rounds and records.
	DeleteRoom(ctx context.Context, roomID string) error

	// DeleteRoomIfIdle deletes the room only if it was last used before
	// cutoff, checked atomically with the delete. It reports whether the room
	// was deleted; a room touched since being listed is left alone.
	DeleteRoomIfIdle(ctx context.Context, roomID string, cutoff time.Time) (bool, error)

	// ListIdleRooms returns rooms last used before cutoff.
	ListIdleRooms(ctx context.Context, cutoff time.Time) ([]model.Room, error)

	// --- Players ---

	// SavePlayers upserts players by seat order. Existing players keep their
	// IDs so their history stays attached.
	SavePlayers(ctx context.Context, roomID string, players []model.Player) ([]model.Player, error)

	// ListPlayers returns a room's players ordered by seat.
	ListPlayers(ctx context.Context, roomID string) ([]model.Player, error)

	// --- Rounds (immutable records) ---

	// CreateRound assigns the next round number and inserts the round with
	// its records in one serialized step per room. Either everything is
	// stored or nothing is.
	CreateRound(ctx context.Context, roomID string, records []model.ScoreRecord) (*model.Round, error)

	// ListRounds returns a room's rounds, newest first, records ordered by seat.
	ListRounds(ctx context.Context, roomID string) ([]model.Round, error)

	// DeleteRound removes a round and its records.
	DeleteRound(ctx context.Context, roomID, roundID string) error

	// ListRoomRecords returns every score record in a room.
	ListRoomRecords(ctx context.Context, roomID string) ([]model.ScoreRecord, error)
}
