// Package types contains the read shapes the HTTP API returns.
package types

import "time"

// Entry represents a leaderboard entry.
type Entry struct {
	Rank          int     `json:"rank"`
	UserID        string  `json:"user_id"`
	UnifiedRating float64 `json:"unified_rating"`
	CourseBonus   float64 `json:"course_bonus"`
	TotalRating   float64 `json:"total_rating"`
}

// WeightsView exposes the per-platform weights of the last recompute.
type WeightsView struct {
	Raw     map[string]float64 `json:"raw"`
	Softmax map[string]float64 `json:"softmax"`
	Final   map[string]float64 `json:"final"`
}

// PlatformView summarizes a registered platform.
type PlatformView struct {
	Name          string    `json:"name"`
	MaxRating     float64   `json:"max_rating"`
	Difficulty    float64   `json:"difficulty"`
	Participation float64   `json:"participation"`
	Drift         float64   `json:"drift"`
	Updates       int       `json:"updates"`
	LastUpdate    time.Time `json:"last_update"`
}

// UserView is a user's account as shown by GET /users/{id}.
type UserView struct {
	UserID          string             `json:"user_id"`
	PlatformRatings map[string]float64 `json:"platform_ratings"`
	UnifiedRating   float64            `json:"unified_rating"`
	CourseBonus     float64            `json:"course_bonus"`
	TotalRating     float64            `json:"total_rating"`
}
