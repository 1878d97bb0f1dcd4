package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/unirank/pkg/logger"
)

// Submission retry constants.
const (
	maxRetries        = 5
	retryBackoff      = 50 * time.Millisecond
	channelMultiplier = 2
)

type outcome int

const (
	outcomeAccepted outcome = iota
	outcomeDuplicate
	outcomeFailed
)

// registerPlatforms posts the catalogue. Platforms already present are kept.
func registerPlatforms(ctx context.Context, client *HTTPClient, platforms []Platform) error {
	for _, p := range platforms {
		status, body, err := client.post(ctx, "/platforms", p)
		if err != nil {
			return err
		}
		switch status {
		case http.StatusCreated, http.StatusConflict:
		default:
			return fmt.Errorf("register %s: %w %d: %s", p.Name, ErrUnexpectedStatus, status, body)
		}
	}
	logger.Get().Info(ctx, "platforms registered", logger.Int("count", len(platforms)))
	return nil
}

// submitSnapshots posts snapshots concurrently using a worker pool.
func submitSnapshots(ctx context.Context, cfg *Config, client *HTTPClient, snapshots []Snapshot, stats *Stats) {
	log := logger.Get()
	log.Info(ctx, "submitting snapshots", logger.Int("count", len(snapshots)), logger.Int("workers", cfg.Workers))

	var accepted, duplicate, failed, retries int64
	work := make(chan Snapshot, cfg.Workers*channelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for snap := range work {
				res, tries := submitSnapshot(ctx, client, snap)
				atomic.AddInt64(&retries, int64(tries))
				switch res {
				case outcomeAccepted:
					atomic.AddInt64(&accepted, 1)
				case outcomeDuplicate:
					atomic.AddInt64(&duplicate, 1)
				default:
					atomic.AddInt64(&failed, 1)
					if cfg.Verbose {
						log.Warn(ctx, "snapshot failed", logger.String("updateID", snap.UpdateID))
					}
				}
			}
		}()
	}

	go func() {
		defer close(work)
		for _, snap := range snapshots {
			select {
			case <-ctx.Done():
				return
			case work <- snap:
			}
		}
	}()
	wg.Wait()

	stats.SnapshotsAccepted = int(accepted)
	stats.SnapshotsDuplicate = int(duplicate)
	stats.SnapshotsFailed = int(failed)
	stats.Retries = int(retries)
	log.Info(ctx, "snapshot submission completed",
		logger.Int("accepted", stats.SnapshotsAccepted),
		logger.Int("duplicate", stats.SnapshotsDuplicate),
		logger.Int("failed", stats.SnapshotsFailed),
		logger.Int("retries", stats.Retries))
}

// submitSnapshot posts one snapshot, retrying while the service applies
// backpressure. It returns the outcome and the number of retries.
func submitSnapshot(ctx context.Context, client *HTTPClient, snap Snapshot) (outcome, int) {
	for attempt := 0; ; attempt++ {
		status, body, err := client.post(ctx, "/updates", snap)
		if err != nil {
			return outcomeFailed, attempt
		}
		switch status {
		case http.StatusAccepted:
			return outcomeAccepted, attempt
		case http.StatusOK:
			var ack AckResponse
			if err := json.Unmarshal(body, &ack); err == nil && ack.Duplicate {
				return outcomeDuplicate, attempt
			}
			return outcomeFailed, attempt
		case http.StatusTooManyRequests:
			if attempt >= maxRetries {
				return outcomeFailed, attempt
			}
			select {
			case <-ctx.Done():
				return outcomeFailed, attempt
			case <-time.After(retryBackoff * time.Duration(attempt+1)):
			}
		default:
			return outcomeFailed, attempt
		}
	}
}

// verifyReplay posts an already accepted snapshot again and expects it to
// be acknowledged as a duplicate.
func verifyReplay(ctx context.Context, client *HTTPClient, snap Snapshot) error {
	res, _ := submitSnapshot(ctx, client, snap)
	if res != outcomeDuplicate {
		return fmt.Errorf("replayed update %s was not reported as duplicate", snap.UpdateID)
	}
	logger.Get().Info(ctx, "replay deduplicated", logger.String("updateID", snap.UpdateID))
	return nil
}
