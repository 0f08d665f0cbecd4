// Command cleanup deletes rooms that have been idle longer than a cutoff.
// Run it from cron when the server's built-in sweeper is not enough.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jansou/score-engine/internal/cleanup"
	"github.com/jansou/score-engine/internal/config"
	"github.com/jansou/score-engine/internal/store"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		dryRun    bool
		idleAfter time.Duration
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete rooms that have not been used recently",
		Long: "Deletes every room whose last activity is older than --idle-after, " +
			"together with its players, rounds and score records.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("idle-after") {
				idleAfter = cfg.IdleRoomTTL
			}
			if idleAfter <= 0 {
				return fmt.Errorf("--idle-after must be positive")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			st, closeStore, err := store.Open(ctx, storeOptions(cfg))
			if err != nil {
				return err
			}
			defer closeStore()

			res, err := cleanup.NewSweeper(st, idleAfter).Sweep(ctx, dryRun)
			if err != nil {
				return err
			}
			printResult(cmd, res, dryRun)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list rooms that would be deleted without deleting them")
	cmd.Flags().DurationVar(&idleAfter, "idle-after", 24*time.Hour, "delete rooms idle for longer than this (default from IDLE_ROOM_TTL)")
	return cmd
}

// storeOptions includes the cache so deleted rooms are also evicted from Redis.
func storeOptions(cfg *config.Config) store.Options {
	return store.Options{
		DatabaseURL: cfg.DatabaseURL,
		RedisURL:    cfg.RedisURL,
		CacheTTL:    cfg.CacheTTL,
	}
}

func printResult(cmd *cobra.Command, res cleanup.Result, dryRun bool) {
	out := cmd.OutOrStdout()
	if len(res.Candidates) == 0 {
		fmt.Fprintln(out, "No idle rooms found.")
		return
	}

	if dryRun {
		fmt.Fprintf(out, "[dry run] %d room(s) idle since before %s:\n",
			len(res.Candidates), res.Cutoff.Format(time.RFC3339))
		for _, room := range res.Candidates {
			fmt.Fprintf(out, "  %s  created %s  last used %s\n",
				room.Code,
				room.CreatedAt.Format(time.RFC3339),
				room.LastUsedAt.Format(time.RFC3339),
			)
		}
		return
	}

	fmt.Fprintf(out, "Deleted %d idle room(s).\n", len(res.Deleted))
}
