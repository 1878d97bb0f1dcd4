package loadgen

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/okian/unirank/pkg/logger"
)

const randomFloatDivisor = 1_000_000

// Catalogue is the calibration catalogue registered before a run.
func Catalogue() []Platform {
	return []Platform{
		{Name: "Codeforces", MaxRating: 3000, Difficulty: 2100, Participation: 0.8},
		{Name: "Leetcode", MaxRating: 2500, Difficulty: 2100, Participation: 0.8},
		{Name: "Atcoder", MaxRating: 2800, Difficulty: 2100, Participation: 0.8},
		{Name: "CodeChef", MaxRating: 1800, Difficulty: 3100, Participation: 0.5},
		{Name: "HackerRank", MaxRating: 2000, Difficulty: 2100, Participation: 0.8},
	}
}

// getRandomFloat returns a random float64 in [0, 1) using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// generateUsers creates n unique user ids.
func generateUsers(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = "user-" + uuid.NewString()
	}
	return ids
}

// generateSnapshots builds rounds snapshots per platform. Each user shows up
// on a platform with probability equal to its participation, so ratings are
// sparse across platforms. The first platform always covers every user.
func generateSnapshots(ctx context.Context, platforms []Platform, users []string, rounds int, stats *Stats) []Snapshot {
	snapshots := make([]Snapshot, 0, len(platforms)*rounds)
	for round := 0; round < rounds; round++ {
		for i, p := range platforms {
			snap := Snapshot{
				UpdateID: uuid.NewString(),
				Platform: p.Name,
				Ratings:  []Rating{},
				TS:       time.Now().UTC().Format(time.RFC3339),
			}
			for _, id := range users {
				if i > 0 && getRandomFloat() >= p.Participation {
					continue
				}
				snap.Ratings = append(snap.Ratings, Rating{UserID: id, Rating: generateRating(p.MaxRating)})
			}
			snapshots = append(snapshots, snap)
		}
	}
	stats.SnapshotsGenerated = len(snapshots)
	logger.Get().Info(ctx, "generated snapshots",
		logger.Int("snapshots", len(snapshots)),
		logger.Int("users", len(users)),
		logger.Int("platforms", len(platforms)))
	return snapshots
}

// generateRating draws a rating skewed towards the middle of [0, maxRating].
func generateRating(maxRating float64) float64 {
	return maxRating * (getRandomFloat() + getRandomFloat()) / 2
}
