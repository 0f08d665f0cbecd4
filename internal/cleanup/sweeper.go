// Package cleanup deletes rooms nobody has used for a while.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jansou/score-engine/internal/metrics"
	"github.com/jansou/score-engine/internal/model"
	"github.com/jansou/score-engine/internal/store"
)

// Sweeper removes rooms whose LastUsedAt is older than IdleAfter.
type Sweeper struct {
	store     store.Store
	idleAfter time.Duration
	now       func() time.Time
}

// Result describes one sweep. Deleted is empty on a dry run.
type Result struct {
	Cutoff     time.Time
	Candidates []model.Room
	Deleted    []model.Room
}

func NewSweeper(st store.Store, idleAfter time.Duration) *Sweeper {
	return &Sweeper{
		store:     st,
		idleAfter: idleAfter,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Sweep finds idle rooms and, unless dryRun is set, deletes them along with
// their players and rounds. Each delete rechecks the cutoff, so a room that
// was used or removed after listing is skipped.
func (s *Sweeper) Sweep(ctx context.Context, dryRun bool) (Result, error) {
	res := Result{Cutoff: s.now().Add(-s.idleAfter)}

	idle, err := s.store.ListIdleRooms(ctx, res.Cutoff)
	if err != nil {
		return res, fmt.Errorf("list idle rooms: %w", err)
	}
	res.Candidates = idle
	if dryRun {
		return res, nil
	}

	for _, room := range idle {
		deleted, err := s.store.DeleteRoomIfIdle(ctx, room.ID, res.Cutoff)
		if err != nil {
			return res, fmt.Errorf("delete room %s: %w", room.Code, err)
		}
		if !deleted {
			continue
		}
		metrics.RoomsDeleted.WithLabelValues("idle").Inc()
		res.Deleted = append(res.Deleted, room)
	}
	return res, nil
}

// Run sweeps every interval until ctx is cancelled. Sweep errors are logged
// and the loop continues.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	res, err := s.Sweep(ctx, false)
	if err != nil {
		slog.Error("idle room sweep failed", "err", err)
		return
	}
	if len(res.Deleted) > 0 {
		slog.Info("idle rooms deleted",
			"count", len(res.Deleted),
			"cutoff", res.Cutoff.Format(time.RFC3339),
		)
	}
}
