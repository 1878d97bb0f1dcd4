package loadgen

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/unirank/pkg/logger"
)

const pollInterval = 100 * time.Millisecond

// ErrVerification is returned when the leaderboard is inconsistent.
var ErrVerification = errors.New("verification failed")

// ratedUsers returns the set of users that appear in any snapshot.
func ratedUsers(snapshots []Snapshot) map[string]struct{} {
	users := make(map[string]struct{})
	for _, s := range snapshots {
		for _, r := range s.Ratings {
			users[r.UserID] = struct{}{}
		}
	}
	return users
}

// awaitLeaderboard polls the leaderboard until it holds want entries or the
// wait expires. It returns the last board fetched.
func awaitLeaderboard(ctx context.Context, client *HTTPClient, want int, wait time.Duration) ([]Entry, error) {
	deadline := time.Now().Add(wait)
	path := "/leaderboard?limit=" + strconv.Itoa(want)
	for {
		var board []Entry
		if err := client.get(ctx, path, &board); err != nil {
			return nil, err
		}
		if len(board) >= want || time.Now().After(deadline) {
			return board, nil
		}
		select {
		case <-ctx.Done():
			return board, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// verifyLeaderboard checks that every rated user is ranked once, ranks are
// consecutive and total ratings never increase down the board.
func verifyLeaderboard(ctx context.Context, board []Entry, users map[string]struct{}) error {
	if len(board) != len(users) {
		return fmt.Errorf("%w: leaderboard has %d entries, want %d", ErrVerification, len(board), len(users))
	}
	seen := make(map[string]struct{}, len(board))
	for i, e := range board {
		if e.Rank != i+1 {
			return fmt.Errorf("%w: entry %d has rank %d", ErrVerification, i, e.Rank)
		}
		if i > 0 && e.TotalRating > board[i-1].TotalRating {
			return fmt.Errorf("%w: entry %d (%.3f) outranks entry %d (%.3f)",
				ErrVerification, i, e.TotalRating, i-1, board[i-1].TotalRating)
		}
		if _, ok := users[e.UserID]; !ok {
			return fmt.Errorf("%w: unexpected user %s", ErrVerification, e.UserID)
		}
		if _, dup := seen[e.UserID]; dup {
			return fmt.Errorf("%w: user %s ranked twice", ErrVerification, e.UserID)
		}
		seen[e.UserID] = struct{}{}
	}
	displayTop(ctx, board)
	return nil
}

func displayTop(ctx context.Context, board []Entry) {
	n := min(len(board), 10)
	for _, e := range board[:n] {
		logger.Get().Info(ctx, "top user",
			logger.Int("rank", e.Rank),
			logger.String("userID", e.UserID),
			logger.Float64("totalRating", e.TotalRating))
	}
}
