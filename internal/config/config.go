// Package config defines service configuration and its koanf loader.
package config

import (
	"fmt"
	"math"
	"strings"
)

// PlatformConfig is one entry of the calibration catalogue.
type PlatformConfig struct {
	Name          string  `koanf:"name"`
	MaxRating     float64 `koanf:"max_rating"`
	Difficulty    float64 `koanf:"difficulty"`
	Participation float64 `koanf:"participation"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory update queue.
	QueueSize int `koanf:"queue_size"`

	// DedupeSize sets the size of the update id cache. Zero or less means unbounded.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// Alpha, Beta and Gamma weight difficulty, participation and drift.
	Alpha float64 `koanf:"alpha"`
	Beta  float64 `koanf:"beta"`
	Gamma float64 `koanf:"gamma"`

	// DecayLambda is the per-day exponential decay rate.
	DecayLambda float64 `koanf:"decay_lambda"`

	// HistoryLimit bounds per-platform history. Zero or less keeps everything.
	HistoryLimit int `koanf:"history_limit"`

	// RefreshSchedule is a cron spec for decay refreshes. Empty disables them.
	RefreshSchedule string `koanf:"refresh_schedule"`

	// RedisAddr enables the leaderboard mirror when set.
	RedisAddr string `koanf:"redis_addr"`

	// RedisKey is the sorted set the mirror writes to.
	RedisKey string `koanf:"redis_key"`

	// MirrorTopN is how many leaders are mirrored.
	MirrorTopN int `koanf:"mirror_top_n"`

	// Platforms is registered at startup.
	Platforms []PlatformConfig `koanf:"platforms"`
}

// DefaultPlatforms is the built-in calibration catalogue.
func DefaultPlatforms() []PlatformConfig {
	return []PlatformConfig{
		{Name: "Codeforces", MaxRating: 3000, Difficulty: 2100, Participation: 0.8},
		{Name: "Leetcode", MaxRating: 2500, Difficulty: 2100, Participation: 0.8},
		{Name: "Atcoder", MaxRating: 2800, Difficulty: 2100, Participation: 0.8},
		{Name: "CodeChef", MaxRating: 1800, Difficulty: 3100, Participation: 0.5},
		{Name: "HackerRank", MaxRating: 2000, Difficulty: 2100, Participation: 0.8},
	}
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		QueueSize:           10_000,
		DedupeSize:          50_000,
		MaxLeaderboardLimit: 1000,
		Alpha:               0.5,
		Beta:                0.3,
		Gamma:               0.2,
		DecayLambda:         0.01,
		HistoryLimit:        256,
		RefreshSchedule:     "@every 1h",
		RedisKey:            "unirank:leaderboard",
		MirrorTopN:          100,
		Platforms:           DefaultPlatforms(),
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr", "must not be empty")
	case c.QueueSize <= 0:
		return invalid("queue_size", "must be positive")
	case c.MaxLeaderboardLimit <= 0:
		return invalid("max_leaderboard_limit", "must be positive")
	case c.MirrorTopN <= 0:
		return invalid("mirror_top_n", "must be positive")
	case c.RedisAddr != "" && c.RedisKey == "":
		return invalid("redis_key", "must not be empty when redis_addr is set")
	}
	for _, coef := range []struct {
		key string
		v   float64
	}{
		{"alpha", c.Alpha}, {"beta", c.Beta}, {"gamma", c.Gamma}, {"decay_lambda", c.DecayLambda},
	} {
		if math.IsNaN(coef.v) || math.IsInf(coef.v, 0) || coef.v < 0 {
			return invalid(coef.key, "must be a finite non-negative number")
		}
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		return invalid("log_format", "must be text or json")
	}

	seen := make(map[string]struct{}, len(c.Platforms))
	for i, p := range c.Platforms {
		key := fmt.Sprintf("platforms[%d]", i)
		if p.Name == "" {
			return invalid(key+".name", "must not be empty")
		}
		if _, dup := seen[p.Name]; dup {
			return invalid(key+".name", "duplicate platform "+p.Name)
		}
		seen[p.Name] = struct{}{}
		if !(p.MaxRating > 0) || math.IsInf(p.MaxRating, 0) {
			return invalid(key+".max_rating", "must be positive")
		}
		if p.Difficulty < 0 || p.Participation < 0 {
			return invalid(key, "calibration must be non-negative")
		}
	}
	return nil
}

func invalid(key, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidConfig, key, reason)
}
