// Package scoreboard provides the HTTP handlers for rooms, player seating,
// round entry and the cumulative dashboard.
//
// Point values use shopspring/decimal end to end. Settlement is delegated to
// the settlement package; this package owns persistence and HTTP mapping.
package scoreboard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jansou/score-engine/internal/metrics"
	"github.com/jansou/score-engine/internal/model"
	"github.com/jansou/score-engine/internal/roomcode"
	"github.com/jansou/score-engine/internal/settlement"
	"github.com/jansou/score-engine/internal/store"
)

// MaxNameLength is the longest accepted player name, in characters.
const MaxNameLength = 50

// codeAttempts bounds retries when a generated room code is already taken.
const codeAttempts = 5

// Service handles room and round operations. Round numbering is serialized
// by the store, so handlers hold no locks of their own.
type Service struct {
	store    store.Store
	defaults settlement.RoomConfig
	now      func() time.Time
}

// NewService creates a scoreboard service. New rooms start from defaults.
func NewService(st store.Store, defaults settlement.RoomConfig) *Service {
	return &Service{
		store:    st,
		defaults: defaults,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Routes mounts the room endpoints on r.
func (s *Service) Routes(r chi.Router) {
	r.Post("/rooms", s.CreateRoom)
	r.Route("/rooms/{code}", func(r chi.Router) {
		r.Get("/", s.GetRoom)
		r.Delete("/", s.DeleteRoom)
		r.Put("/players", s.SavePlayers)
		r.Put("/settings", s.UpdateSettings)
		r.Get("/rounds", s.ListRounds)
		r.Post("/rounds", s.RecordRound)
		r.Delete("/rounds/{roundID}", s.DeleteRound)
		r.Get("/dashboard", s.Dashboard)
	})
}

// --- Request/Response types ---

// RoomResponse is returned when joining a room.
type RoomResponse struct {
	Room          model.Room      `json:"room"`
	Players       []model.Player  `json:"players"`
	Ready         bool            `json:"ready"` // all four seats registered
	ChipRateInput decimal.Decimal `json:"chip_rate_input"`
}

// PlayersRequest is the JSON body for PUT /rooms/{code}/players. Names are
// given in seat order.
type PlayersRequest struct {
	Names []string `json:"names"`
}

// SettingsRequest is the JSON body for PUT /rooms/{code}/settings. ChipRate is
// the user-facing rate (100 means one chip is worth 100 points).
// CustomReturnPoints is read only when RateType is "custom".
type SettingsRequest struct {
	HandicapScheme     settlement.Scheme   `json:"handicap_scheme"`
	HandicapLow        int                 `json:"handicap_low"`
	HandicapHigh       int                 `json:"handicap_high"`
	StartingPoints     int                 `json:"starting_points"`
	RateType           settlement.RateType `json:"rate_type"`
	CustomReturnPoints int                 `json:"custom_return_points"`
	BonusValue         int                 `json:"bonus_value"`
	ChipRate           decimal.Decimal     `json:"chip_rate"`
}

// RoundRequest is the JSON body for POST /rooms/{code}/rounds.
type RoundRequest struct {
	Entries []settlement.SeatEntry `json:"entries"`
}

// --- HTTP Handlers ---

// CreateRoom handles POST /api/v1/rooms
func (s *Service) CreateRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := s.now()

	room := &model.Room{
		ID:         uuid.New().String(),
		CreatedAt:  now,
		LastUsedAt: now,
	}
	room.ApplyConfig(s.defaults)

	var err error
	for attempt := 0; attempt < codeAttempts; attempt++ {
		room.Code, err = roomcode.New()
		if err != nil {
			break
		}
		err = s.store.CreateRoom(ctx, room)
		if !errors.Is(err, store.ErrConflict) {
			break
		}
	}
	if err != nil {
		slog.Error("room creation failed", "err", err)
		writeError(w, "failed to create room", http.StatusInternalServerError)
		return
	}

	metrics.RoomsCreated.Inc()
	slog.Info("room created", "room", room.Code, "id", room.ID)

	writeJSON(w, http.StatusCreated, s.roomResponse(room, []model.Player{}))
}

// GetRoom handles GET /api/v1/rooms/{code}
func (s *Service) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := s.loadRoom(w, r)
	if !ok {
		return
	}
	players, err := s.store.ListPlayers(r.Context(), room.ID)
	if err != nil {
		writeError(w, "failed to load players", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s.roomResponse(room, players))
}

// SavePlayers handles PUT /api/v1/rooms/{code}/players
// Registers or renames the four seated players. Existing seats keep their
// player IDs so earlier rounds stay attached.
func (s *Service) SavePlayers(w http.ResponseWriter, r *http.Request) {
	var req PlayersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Names) != settlement.Seats {
		writeError(w, "exactly 4 player names are required", http.StatusBadRequest)
		return
	}

	players := make([]model.Player, len(req.Names))
	for i, raw := range req.Names {
		name, err := normalizeName(raw)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		players[i] = model.Player{Name: name, SeatOrder: i + 1}
	}

	room, ok := s.loadRoom(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	saved, err := s.store.SavePlayers(ctx, room.ID, players)
	if err != nil {
		writeStoreError(w, err, "failed to save players")
		return
	}
	s.touch(ctx, room)

	slog.Info("players saved", "room", room.Code, "count", len(saved))
	writeJSON(w, http.StatusOK, s.roomResponse(room, saved))
}

// UpdateSettings handles PUT /api/v1/rooms/{code}/settings
func (s *Service) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	returnPoints, err := settlement.ReturnPointsFor(req.RateType, req.CustomReturnPoints)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	rc := settlement.RoomConfig{
		HandicapScheme: req.HandicapScheme,
		HandicapLow:    req.HandicapLow,
		HandicapHigh:   req.HandicapHigh,
		StartingPoints: req.StartingPoints,
		ReturnPoints:   returnPoints,
		RateType:       req.RateType,
		BonusValue:     req.BonusValue,
		ChipRate:       settlement.ChipRateFromInput(req.ChipRate),
	}
	if _, err := settlement.Resolve(rc); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	room, ok := s.loadRoom(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	players, err := s.store.ListPlayers(ctx, room.ID)
	if err != nil {
		writeError(w, "failed to load players", http.StatusInternalServerError)
		return
	}

	room.ApplyConfig(rc)
	if err := s.store.UpdateRoomSettings(ctx, room); err != nil {
		writeStoreError(w, err, "failed to update settings")
		return
	}
	s.touch(ctx, room)

	slog.Info("room settings updated",
		"room", room.Code,
		"scheme", string(rc.HandicapScheme),
		"rate", string(rc.RateType),
		"return_points", rc.ReturnPoints,
		"bonus", rc.BonusValue,
		"chip_rate", rc.ChipRate.String(),
	)

	writeJSON(w, http.StatusOK, s.roomResponse(room, players))
}

// RecordRound handles POST /api/v1/rooms/{code}/rounds
// Settles the four entries against the room's settings and persists the
// round with its records in one step. Nothing is stored on rejection.
func (s *Service) RecordRound(w http.ResponseWriter, r *http.Request) {
	var req RoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	room, ok := s.loadRoom(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	players, err := s.store.ListPlayers(ctx, room.ID)
	if err != nil {
		writeError(w, "failed to load players", http.StatusInternalServerError)
		return
	}
	if len(players) != settlement.Seats {
		metrics.SettlementRejections.WithLabelValues("players").Inc()
		writeError(w, "all 4 players must be registered before entering scores", http.StatusConflict)
		return
	}

	// Settings come from the primary store; a cached room may predate the
	// latest settings update.
	cfg, err := s.store.GetRoomSettings(ctx, room.ID)
	if err != nil {
		writeStoreError(w, err, "failed to load room settings")
		return
	}

	start := time.Now()
	settled, err := settlement.SettleRound(cfg, req.Entries)
	metrics.SettleLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		switch {
		case errors.Is(err, settlement.ErrConfig):
			metrics.SettlementRejections.WithLabelValues("config").Inc()
			slog.Warn("room has invalid settings", "room", room.Code, "err", err)
		case errors.Is(err, settlement.ErrValidation):
			metrics.SettlementRejections.WithLabelValues("validation").Inc()
		}
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	playerBySeat := make(map[int]string, len(players))
	for _, p := range players {
		playerBySeat[p.SeatOrder] = p.ID
	}
	records := make([]model.ScoreRecord, len(settled))
	for i, e := range settled {
		records[i] = model.ScoreRecord{
			PlayerID:   playerBySeat[e.SeatOrder],
			SeatOrder:  e.SeatOrder,
			RawScore:   e.RawScore,
			ChipDelta:  e.ChipDelta,
			Rank:       e.Rank,
			Points:     e.SettlementPoints,
			ChipPoints: e.ChipPoints,
		}
	}

	round, err := s.store.CreateRound(ctx, room.ID, records)
	if err != nil {
		writeStoreError(w, err, "failed to record round")
		return
	}
	s.touch(ctx, room)
	metrics.RoundsSettled.Inc()

	slog.Info("round settled",
		"room", room.Code,
		"round", round.Number,
		"round_id", round.ID,
	)

	writeJSON(w, http.StatusCreated, round)
}

// ListRounds handles GET /api/v1/rooms/{code}/rounds
// Returns rounds newest first.
func (s *Service) ListRounds(w http.ResponseWriter, r *http.Request) {
	room, ok := s.loadRoom(w, r)
	if !ok {
		return
	}
	rounds, err := s.store.ListRounds(r.Context(), room.ID)
	if err != nil {
		writeError(w, "failed to list rounds", http.StatusInternalServerError)
		return
	}
	if rounds == nil {
		rounds = []model.Round{}
	}
	writeJSON(w, http.StatusOK, rounds)
}

// DeleteRound handles DELETE /api/v1/rooms/{code}/rounds/{roundID}
func (s *Service) DeleteRound(w http.ResponseWriter, r *http.Request) {
	room, ok := s.loadRoom(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	roundID := chi.URLParam(r, "roundID")

	if err := s.store.DeleteRound(ctx, room.ID, roundID); err != nil {
		writeStoreError(w, err, "failed to delete round")
		return
	}
	s.touch(ctx, room)

	slog.Info("round deleted", "room", room.Code, "round_id", roundID)
	w.WriteHeader(http.StatusNoContent)
}

// Dashboard handles GET /api/v1/rooms/{code}/dashboard
// Folds the room's full history into per-player totals.
func (s *Service) Dashboard(w http.ResponseWriter, r *http.Request) {
	room, ok := s.loadRoom(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	players, err := s.store.ListPlayers(ctx, room.ID)
	if err != nil {
		writeError(w, "failed to load players", http.StatusInternalServerError)
		return
	}
	rounds, err := s.store.ListRounds(ctx, room.ID)
	if err != nil {
		writeError(w, "failed to list rounds", http.StatusInternalServerError)
		return
	}
	s.touch(ctx, room)

	writeJSON(w, http.StatusOK, BuildDashboard(*room, players, rounds))
}

// DeleteRoom handles DELETE /api/v1/rooms/{code}
func (s *Service) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := s.loadRoom(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteRoom(r.Context(), room.ID); err != nil {
		writeStoreError(w, err, "failed to delete room")
		return
	}
	metrics.RoomsDeleted.WithLabelValues("manual").Inc()
	slog.Info("room deleted", "room", room.Code, "id", room.ID)
	w.WriteHeader(http.StatusNoContent)
}

// BuildDashboard groups every record by player and aggregates each group.
// Stats follow seat order.
func BuildDashboard(room model.Room, players []model.Player, rounds []model.Round) model.Dashboard {
	history := make(map[string][]settlement.SettlementEntry, len(players))
	for _, rd := range rounds {
		for _, rec := range rd.Records {
			history[rec.PlayerID] = append(history[rec.PlayerID], rec.Entry())
		}
	}

	stats := make([]model.PlayerStats, 0, len(players))
	for _, p := range players {
		stats = append(stats, model.PlayerStats{
			Player: p,
			Stats:  settlement.Aggregate(history[p.ID]),
		})
	}
	if players == nil {
		players = []model.Player{}
	}
	if rounds == nil {
		rounds = []model.Round{}
	}
	return model.Dashboard{
		Room:    room,
		Players: players,
		Stats:   stats,
		Rounds:  rounds,
	}
}

// --- Helpers ---

// loadRoom resolves the {code} URL parameter. It writes the error response
// and returns false when the room cannot be loaded.
func (s *Service) loadRoom(w http.ResponseWriter, r *http.Request) (*model.Room, bool) {
	code, err := roomcode.Parse(chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	room, err := s.store.GetRoomByCode(r.Context(), code)
	if err != nil {
		writeStoreError(w, err, "failed to load room")
		return nil, false
	}
	return room, true
}

// touch records activity so the idle sweeper leaves the room alone. Failure
// is logged, not returned.
func (s *Service) touch(ctx context.Context, room *model.Room) {
	now := s.now()
	if err := s.store.TouchRoom(ctx, room.ID, now); err != nil {
		slog.Warn("failed to touch room", "room", room.Code, "err", err)
		return
	}
	room.LastUsedAt = now
}

func (s *Service) roomResponse(room *model.Room, players []model.Player) RoomResponse {
	if players == nil {
		players = []model.Player{}
	}
	return RoomResponse{
		Room:          *room,
		Players:       players,
		Ready:         len(players) == settlement.Seats,
		ChipRateInput: settlement.ChipRateForDisplay(room.ChipRate),
	}
}

var errNameRequired = errors.New("player name is required")

func normalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", errNameRequired
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", errors.New("player name must be at most 50 characters")
	}
	return name, nil
}

// writeStoreError maps store sentinels to status codes.
func writeStoreError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, "not found", http.StatusNotFound)
	case errors.Is(err, store.ErrConflict):
		writeError(w, err.Error(), http.StatusConflict)
	default:
		slog.Error(fallback, "err", err)
		writeError(w, fallback, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
