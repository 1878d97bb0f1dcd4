package mirror

import (
	"time"

	"github.com/okian/unirank/pkg/logger"
)

// Option configures a RedisMirror.
type Option func(*RedisMirror)

// WithKey sets the sorted set key.
func WithKey(key string) Option {
	return func(m *RedisMirror) {
		if key != "" {
			m.key = key
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(m *RedisMirror) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides the timestamp source for metadata.
func WithClock(now func() time.Time) Option {
	return func(m *RedisMirror) {
		if now != nil {
			m.now = now
		}
	}
}
