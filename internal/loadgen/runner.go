// Package loadgen drives a running service with synthetic platform
// snapshots and checks the resulting leaderboard.
package loadgen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/unirank/pkg/logger"
)

// Run executes the complete load run.
func Run(ctx context.Context, cfg *Config) error {
	if cfg.Users < 1 || cfg.Rounds < 1 || cfg.Workers < 1 {
		return errors.New("users, rounds and workers must be positive")
	}
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting unirank load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("users", cfg.Users),
		logger.Int("rounds", cfg.Rounds),
		logger.Int("workers", cfg.Workers),
		logger.String("timeout", cfg.Timeout.String()))

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	if err := client.get(ctx, "/healthz", nil); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	platforms := Catalogue()
	if cfg.Register {
		if err := registerPlatforms(ctx, client, platforms); err != nil {
			return fmt.Errorf("platform registration failed: %w", err)
		}
	}

	users := generateUsers(cfg.Users)
	snapshots := generateSnapshots(ctx, platforms, users, cfg.Rounds, stats)

	submitSnapshots(ctx, cfg, client, snapshots, stats)
	if stats.SnapshotsFailed > 0 {
		return fmt.Errorf("%d snapshots failed", stats.SnapshotsFailed)
	}
	if err := verifyReplay(ctx, client, snapshots[0]); err != nil {
		return err
	}

	rated := ratedUsers(snapshots)
	stats.UsersRated = len(rated)
	board, err := awaitLeaderboard(ctx, client, len(rated), cfg.Wait)
	if err != nil {
		return fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	stats.LeaderboardEntries = len(board)
	if err := verifyLeaderboard(ctx, board, rated); err != nil {
		return err
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.SnapshotsAccepted) / stats.Duration.Seconds()
	}
	logger.Get().Info(ctx, "final statistics",
		logger.Int("snapshotsGenerated", stats.SnapshotsGenerated),
		logger.Int("snapshotsAccepted", stats.SnapshotsAccepted),
		logger.Int("snapshotsDuplicate", stats.SnapshotsDuplicate),
		logger.Int("snapshotsFailed", stats.SnapshotsFailed),
		logger.Int("retries", stats.Retries),
		logger.Int("usersRated", stats.UsersRated),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("snapshotsPerSecond", perSecond))
}
