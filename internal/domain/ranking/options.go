package ranking

import "time"

// Option applies a configuration option to the System.
type Option func(*System)

// WithCoefficients sets the difficulty, participation and drift coefficients
// of the raw weight. They are free coefficients and need not sum to 1.
func WithCoefficients(alpha, beta, gamma float64) Option {
	return func(s *System) {
		if finite(alpha) && finite(beta) && finite(gamma) {
			s.alpha = alpha
			s.beta = beta
			s.gamma = gamma
		}
	}
}

// WithDecayLambda sets the per-day time decay rate.
func WithDecayLambda(lambda float64) Option {
	return func(s *System) {
		if finite(lambda) && lambda >= 0 {
			s.decayLambda = lambda
		}
	}
}

// WithHistoryLimit caps the per-platform stats history and each per-user
// observation list. Zero or negative keeps everything. Limits below the
// drift window are raised to it.
func WithHistoryLimit(limit int) Option {
	return func(s *System) {
		switch {
		case limit <= 0:
			s.historyLimit = 0
		case limit < driftWindow:
			s.historyLimit = driftWindow
		default:
			s.historyLimit = limit
		}
	}
}

// WithClock replaces the wall clock used for timestamps and decay.
func WithClock(now func() time.Time) Option {
	return func(s *System) {
		if now != nil {
			s.now = now
		}
	}
}
