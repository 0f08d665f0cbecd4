package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/jansou/score-engine/internal/model"
	"github.com/jansou/score-engine/internal/settlement"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Point values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS rooms (
			id              TEXT PRIMARY KEY,
			code            TEXT NOT NULL UNIQUE,
			handicap_scheme TEXT NOT NULL,
			handicap_low    INTEGER NOT NULL DEFAULT 0,
			handicap_high   INTEGER NOT NULL DEFAULT 0,
			rate_type       TEXT NOT NULL DEFAULT 'custom',
			starting_points INTEGER NOT NULL,
			return_points   INTEGER NOT NULL,
			bonus_value     INTEGER NOT NULL,
			chip_rate       NUMERIC NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL,
			last_used_at    TIMESTAMPTZ NOT NULL
		);
		ALTER TABLE rooms ADD COLUMN IF NOT EXISTS rate_type TEXT NOT NULL DEFAULT 'custom';
		CREATE INDEX IF NOT EXISTS idx_rooms_last_used_at ON rooms(last_used_at);

		CREATE TABLE IF NOT EXISTS players (
			id         TEXT PRIMARY KEY,
			room_id    TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
			name       TEXT NOT NULL,
			seat_order INTEGER NOT NULL,
			UNIQUE (room_id, seat_order)
		);

		CREATE TABLE IF NOT EXISTS rounds (
			id         TEXT PRIMARY KEY,
			room_id    TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
			number     INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (room_id, number)
		);

		CREATE TABLE IF NOT EXISTS score_records (
			id          TEXT PRIMARY KEY,
			round_id    TEXT NOT NULL REFERENCES rounds(id) ON DELETE CASCADE,
			player_id   TEXT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			seat_order  INTEGER NOT NULL,
			raw_score   INTEGER NOT NULL,
			chip_delta  INTEGER NOT NULL DEFAULT 0,
			rank        INTEGER,
			points      NUMERIC,
			chip_points NUMERIC NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_score_records_round_id ON score_records(round_id);
	`)
	return err
}

const roomColumns = `id, code, handicap_scheme, handicap_low, handicap_high,
	rate_type, starting_points, return_points, bonus_value, chip_rate::TEXT,
	created_at, last_used_at`

func (s *PostgresStore) CreateRoom(ctx context.Context, r *model.Room) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rooms (id, code, handicap_scheme, handicap_low, handicap_high,
		                    rate_type, starting_points, return_points, bonus_value, chip_rate,
		                    created_at, last_used_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::NUMERIC, $11, $12)`,
		r.ID, r.Code, string(r.HandicapScheme), r.HandicapLow, r.HandicapHigh,
		string(r.RateType), r.StartingPoints, r.ReturnPoints, r.BonusValue, r.ChipRate.String(),
		r.CreatedAt, r.LastUsedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("room code %s: %w", r.Code, ErrConflict)
	}
	return err
}

func (s *PostgresStore) GetRoomByCode(ctx context.Context, code string) (*model.Room, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE code = $1`, code)
	r, err := scanRoom(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("room %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", code, err)
	}
	return r, nil
}

func (s *PostgresStore) GetRoomSettings(ctx context.Context, roomID string) (settlement.RoomConfig, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, roomID)
	r, err := scanRoom(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return settlement.RoomConfig{}, fmt.Errorf("room %s: %w", roomID, ErrNotFound)
	}
	if err != nil {
		return settlement.RoomConfig{}, fmt.Errorf("get room settings %s: %w", roomID, err)
	}
	return r.Config(), nil
}

func (s *PostgresStore) UpdateRoomSettings(ctx context.Context, r *model.Room) error {
	ct, err := s.pool.Exec(ctx,
		`UPDATE rooms
		 SET handicap_scheme = $2, handicap_low = $3, handicap_high = $4,
		     rate_type = $5, starting_points = $6, return_points = $7,
		     bonus_value = $8, chip_rate = $9::NUMERIC
		 WHERE id = $1`,
		r.ID, string(r.HandicapScheme), r.HandicapLow, r.HandicapHigh,
		string(r.RateType), r.StartingPoints, r.ReturnPoints, r.BonusValue, r.ChipRate.String(),
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("room %s: %w", r.ID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) TouchRoom(ctx context.Context, roomID string, at time.Time) error {
	ct, err := s.pool.Exec(ctx, `UPDATE rooms SET last_used_at = $2 WHERE id = $1`, roomID, at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("room %s: %w", roomID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) DeleteRoom(ctx context.Context, roomID string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, roomID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("room %s: %w", roomID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) DeleteRoomIfIdle(ctx context.Context, roomID string, cutoff time.Time) (bool, error) {
	ct, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1 AND last_used_at < $2`, roomID, cutoff)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListIdleRooms(ctx context.Context, cutoff time.Time) ([]model.Room, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE last_used_at < $1 ORDER BY last_used_at`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []model.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *r)
	}
	return rooms, rows.Err()
}

func (s *PostgresStore) SavePlayers(ctx context.Context, roomID string, players []model.Player) ([]model.Player, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, p := range players {
		if _, err := tx.Exec(ctx,
			`INSERT INTO players (id, room_id, name, seat_order)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (room_id, seat_order) DO UPDATE SET name = EXCLUDED.name`,
			uuid.New().String(), roomID, p.Name, p.SeatOrder,
		); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				return nil, fmt.Errorf("room %s: %w", roomID, ErrNotFound)
			}
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.ListPlayers(ctx, roomID)
}

func (s *PostgresStore) ListPlayers(ctx context.Context, roomID string) ([]model.Player, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, room_id, name, seat_order FROM players WHERE room_id = $1 ORDER BY seat_order`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	players := []model.Player{}
	for rows.Next() {
		var p model.Player
		if err := rows.Scan(&p.ID, &p.RoomID, &p.Name, &p.SeatOrder); err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// CreateRound locks the room row so that reading the last round number and
// inserting the next one is serialized per room.
func (s *PostgresStore) CreateRound(ctx context.Context, roomID string, records []model.ScoreRecord) (*model.Round, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked string
	err = tx.QueryRow(ctx, `SELECT id FROM rooms WHERE id = $1 FOR UPDATE`, roomID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("room %s: %w", roomID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lock room %s: %w", roomID, err)
	}

	round := &model.Round{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(number), 0) + 1 FROM rounds WHERE room_id = $1`, roomID,
	).Scan(&round.Number); err != nil {
		return nil, fmt.Errorf("next round number: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO rounds (id, room_id, number, created_at) VALUES ($1, $2, $3, $4)`,
		round.ID, round.RoomID, round.Number, round.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert round: %w", err)
	}

	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		rec.RoundID = round.ID
		if _, err := tx.Exec(ctx,
			`INSERT INTO score_records (id, round_id, player_id, seat_order, raw_score, chip_delta, rank, points, chip_points)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::NUMERIC, $9::NUMERIC)`,
			rec.ID, rec.RoundID, rec.PlayerID, rec.SeatOrder, rec.RawScore, rec.ChipDelta,
			nullableRank(rec.Rank), nullableDecimal(rec.Points), rec.ChipPoints.String(),
		); err != nil {
			return nil, fmt.Errorf("insert score record seat %d: %w", rec.SeatOrder, err)
		}
		round.Records = append(round.Records, rec)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	sortRecords(round.Records)
	return round, nil
}

func (s *PostgresStore) ListRounds(ctx context.Context, roomID string) ([]model.Round, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, room_id, number, created_at FROM rounds WHERE room_id = $1 ORDER BY number DESC`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rounds := []model.Round{}
	index := make(map[string]int)
	for rows.Next() {
		var rd model.Round
		if err := rows.Scan(&rd.ID, &rd.RoomID, &rd.Number, &rd.CreatedAt); err != nil {
			return nil, err
		}
		index[rd.ID] = len(rounds)
		rounds = append(rounds, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	records, err := s.ListRoomRecords(ctx, roomID)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if i, ok := index[rec.RoundID]; ok {
			rounds[i].Records = append(rounds[i].Records, rec)
		}
	}
	return rounds, nil
}

func (s *PostgresStore) DeleteRound(ctx context.Context, roomID, roundID string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM rounds WHERE id = $1 AND room_id = $2`, roundID, roomID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("round %s: %w", roundID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListRoomRecords(ctx context.Context, roomID string) ([]model.ScoreRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT sr.id, sr.round_id, sr.player_id, sr.seat_order, sr.raw_score, sr.chip_delta,
		        COALESCE(sr.rank, 0), sr.points::TEXT, sr.chip_points::TEXT
		 FROM score_records sr
		 JOIN rounds r ON r.id = sr.round_id
		 WHERE r.room_id = $1
		 ORDER BY r.number DESC, sr.seat_order`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanScoreRecords(rows)
}

// pgxRow is satisfied by both pgx.Row and pgx.Rows.
type pgxRow interface {
	Scan(dest ...interface{}) error
}

func scanRoom(row pgxRow) (*model.Room, error) {
	var r model.Room
	var scheme, rate, chipRate string
	if err := row.Scan(&r.ID, &r.Code, &scheme, &r.HandicapLow, &r.HandicapHigh,
		&rate, &r.StartingPoints, &r.ReturnPoints, &r.BonusValue, &chipRate,
		&r.CreatedAt, &r.LastUsedAt); err != nil {
		return nil, err
	}
	r.HandicapScheme = settlement.Scheme(scheme)
	r.RateType = settlement.RateType(rate)
	r.ChipRate, _ = decimal.NewFromString(chipRate)
	return &r, nil
}

// scanScoreRecords reads pgx rows into ScoreRecord slices.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanScoreRecords(rows pgxRows) ([]model.ScoreRecord, error) {
	var records []model.ScoreRecord
	for rows.Next() {
		var rec model.ScoreRecord
		var pointsS *string
		var chipPointsS string

		if err := rows.Scan(&rec.ID, &rec.RoundID, &rec.PlayerID, &rec.SeatOrder,
			&rec.RawScore, &rec.ChipDelta, &rec.Rank, &pointsS, &chipPointsS); err != nil {
			return nil, err
		}

		if pointsS != nil {
			if p, err := decimal.NewFromString(*pointsS); err == nil {
				rec.Points = decimal.NewNullDecimal(p)
			}
		}
		rec.ChipPoints, _ = decimal.NewFromString(chipPointsS)

		records = append(records, rec)
	}
	return records, rows.Err()
}

func nullableDecimal(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func nullableRank(rank int) *int {
	if rank == 0 {
		return nil
	}
	return &rank
}
