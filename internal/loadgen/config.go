package loadgen

import "time"

// Config holds configuration for a load run.
type Config struct {
	BaseURL  string        // Base URL of the service
	Users    int           // Number of synthetic users
	Rounds   int           // Snapshots submitted per platform
	Workers  int           // Number of concurrent submitters
	Timeout  time.Duration // HTTP request timeout
	Wait     time.Duration // How long to wait for the board to settle
	Register bool          // Register the calibration catalogue first
	Verbose  bool          // Enable verbose logging
}

// Platform is one entry of the calibration catalogue.
type Platform struct {
	Name          string  `json:"name"`
	MaxRating     float64 `json:"max_rating"`
	Difficulty    float64 `json:"difficulty"`
	Participation float64 `json:"participation"`
}

// Rating is one user's rating inside a snapshot.
type Rating struct {
	UserID string  `json:"user_id"`
	Rating float64 `json:"rating"`
}

// Snapshot is a platform update as posted to /updates.
type Snapshot struct {
	UpdateID string   `json:"update_id"`
	Platform string   `json:"platform"`
	Ratings  []Rating `json:"ratings"`
	TS       string   `json:"ts"`
}

// Entry represents a leaderboard entry.
type Entry struct {
	Rank          int     `json:"rank"`
	UserID        string  `json:"user_id"`
	UnifiedRating float64 `json:"unified_rating"`
	CourseBonus   float64 `json:"course_bonus"`
	TotalRating   float64 `json:"total_rating"`
}

// AckResponse represents the response from an update submission.
type AckResponse struct {
	Status    string `json:"status"`
	UpdateID  string `json:"update_id"`
	Duplicate bool   `json:"duplicate"`
}

// Stats holds run statistics.
type Stats struct {
	SnapshotsGenerated int
	SnapshotsAccepted  int
	SnapshotsDuplicate int
	SnapshotsFailed    int
	Retries            int
	UsersRated         int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
