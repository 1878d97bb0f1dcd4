package service

import (
	"time"

	"github.com/okian/unirank/internal/adapters/mirror"
	"github.com/okian/unirank/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithQueueSize sets the maximum number of pending updates.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the update id cache. Zero or less is unbounded.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		s.dedupeSize = size
	}
}

// WithCoefficients sets alpha, beta and gamma of the raw weight.
func WithCoefficients(alpha, beta, gamma float64) Option {
	return func(s *Service) {
		s.coefficients = &[3]float64{alpha, beta, gamma}
	}
}

// WithDecayLambda sets the per-day decay rate.
func WithDecayLambda(lambda float64) Option {
	return func(s *Service) {
		s.decayLambda = &lambda
	}
}

// WithHistoryLimit bounds per-platform history.
func WithHistoryLimit(limit int) Option {
	return func(s *Service) {
		s.historyLimit = &limit
	}
}

// WithRefreshSchedule sets the cron spec for decay refreshes. Empty disables them.
func WithRefreshSchedule(spec string) Option {
	return func(s *Service) {
		s.refreshSchedule = spec
	}
}

// WithPlatforms registers platforms on Start.
func WithPlatforms(platforms []PlatformSpec) Option {
	return func(s *Service) {
		s.seed = append([]PlatformSpec(nil), platforms...)
	}
}

// WithMirror publishes the leaderboard after every change.
func WithMirror(p mirror.Publisher) Option {
	return func(s *Service) {
		s.mirror = p
	}
}

// WithMirrorTopN sets how many leaders are mirrored.
func WithMirrorTopN(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.mirrorTopN = n
		}
	}
}

// WithPublishTimeout bounds each mirror publish.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
