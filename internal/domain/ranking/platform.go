package ranking

import (
	"math"
	"time"
)

// Window sizes used by the drift signal and by history-based imputation.
const (
	driftWindow   = 5
	imputeWindow  = 3
	neutralFactor = 0.5
)

// StatsEntry is one platform snapshot summary, recorded per update.
type StatsEntry struct {
	Difficulty    float64   `json:"difficulty"`
	Participation float64   `json:"participation"`
	AvgRating     float64   `json:"avg_rating"`
	Timestamp     time.Time `json:"timestamp"`
}

// Observation is a single rating reported for a user on a platform.
type Observation struct {
	Timestamp time.Time `json:"timestamp"`
	Rating    float64   `json:"rating"`
}

// PlatformStats is a read-only copy of a platform's state.
type PlatformStats struct {
	Name          string       `json:"name"`
	MaxRating     float64      `json:"max_rating"`
	Difficulty    float64      `json:"difficulty"`
	Participation float64      `json:"participation"`
	Drift         float64      `json:"drift"`
	Updated       bool         `json:"updated"`
	LastUpdate    time.Time    `json:"last_update"`
	Updates       int          `json:"updates"`
	History       []StatsEntry `json:"history"`
}

// platform holds one external system's accumulated statistics. It is owned
// by a System and only mutated under the System's write lock.
type platform struct {
	name      string
	maxRating float64

	// difficulty, participation and drift are meaningful only once updated is true.
	difficulty    float64
	participation float64
	drift         float64
	updated       bool
	lastUpdate    time.Time
	updates       int

	history []StatsEntry
	ratings map[string][]Observation
}

func newPlatform(name string, maxRating float64) *platform {
	return &platform{
		name:      name,
		maxRating: maxRating,
		ratings:   make(map[string][]Observation),
	}
}

// updateStats folds a new rating snapshot into the platform. limit bounds
// the retained history; limit <= 0 keeps everything.
func (p *platform) updateStats(now time.Time, difficulty, participation float64, current map[string]float64, limit int) {
	hadHistory := len(p.history) > 0
	avg := snapshotMean(current)

	p.history = append(p.history, StatsEntry{
		Difficulty:    difficulty,
		Participation: participation,
		AvgRating:     avg,
		Timestamp:     now,
	})
	p.history = trimStats(p.history, limit)

	p.difficulty = difficulty / p.maxRating
	p.participation = participation
	if !hadHistory || len(current) == 0 {
		p.drift = 0
	} else {
		p.drift = math.Abs(avg-p.trailingAvg(driftWindow)) / p.maxRating
	}
	p.lastUpdate = now
	p.updated = true
	p.updates++

	for userID, rating := range current {
		obs := append(p.ratings[userID], Observation{Timestamp: now, Rating: rating})
		p.ratings[userID] = trimObservations(obs, limit)
	}
}

// trailingAvg averages AvgRating over the newest n history entries.
// The caller guarantees history is not empty.
func (p *platform) trailingAvg(n int) float64 {
	window := p.history
	if len(window) > n {
		window = window[len(window)-n:]
	}
	var sum float64
	for _, s := range window {
		sum += s.AvgRating
	}
	return sum / float64(len(window))
}

func (p *platform) snapshot() PlatformStats {
	return PlatformStats{
		Name:          p.name,
		MaxRating:     p.maxRating,
		Difficulty:    p.difficulty,
		Participation: p.participation,
		Drift:         p.drift,
		Updated:       p.updated,
		LastUpdate:    p.lastUpdate,
		Updates:       p.updates,
		History:       append([]StatsEntry(nil), p.history...),
	}
}

func snapshotMean(current map[string]float64) float64 {
	if len(current) == 0 {
		return 0
	}
	var sum float64
	for _, r := range current {
		sum += r
	}
	return sum / float64(len(current))
}

func trimStats(s []StatsEntry, limit int) []StatsEntry {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	// Copy so the dropped prefix can be collected.
	return append([]StatsEntry(nil), s[len(s)-limit:]...)
}

func trimObservations(s []Observation, limit int) []Observation {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return append([]Observation(nil), s[len(s)-limit:]...)
}
