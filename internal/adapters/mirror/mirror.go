// Package mirror publishes the leaderboard to a Redis sorted set so other
// processes can read it. The rating engine never reads it back.
package mirror

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/okian/unirank/internal/domain/types"
	"github.com/okian/unirank/pkg/logger"
	"github.com/okian/unirank/pkg/metrics"
)

const (
	defaultKey         = "unirank:leaderboard"
	defaultDialTimeout = 2 * time.Second
	metaSuffix         = ":meta"
)

// Publisher receives leaderboard snapshots.
type Publisher interface {
	Publish(ctx context.Context, entries []types.Entry) error
	Close() error
}

// RedisMirror writes snapshots to a sorted set scored by total rating.
type RedisMirror struct {
	client *redis.Client
	key    string
	now    func() time.Time
	logger logger.Logger
}

// New wraps an existing client.
func New(client *redis.Client, opts ...Option) *RedisMirror {
	m := &RedisMirror{client: client, key: defaultKey, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logger.Get().Named("mirror")
	}
	return m
}

// Dial creates a client for addr and wraps it.
func Dial(addr string, opts ...Option) *RedisMirror {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: defaultDialTimeout,
	})
	return New(client, opts...)
}

// Key returns the sorted set key.
func (m *RedisMirror) Key() string { return m.key }

// MetaKey returns the hash holding publish metadata.
func (m *RedisMirror) MetaKey() string { return m.key + metaSuffix }

// Publish replaces the sorted set with entries in one transaction.
func (m *RedisMirror) Publish(ctx context.Context, entries []types.Entry) error {
	pipe := m.client.TxPipeline()
	pipe.Del(ctx, m.key)
	if zs := Members(entries); len(zs) > 0 {
		pipe.ZAdd(ctx, m.key, zs...)
	}
	pipe.HSet(ctx, m.MetaKey(),
		"updated_at", m.now().UTC().Format(time.RFC3339Nano),
		"size", strconv.Itoa(len(entries)),
	)
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RecordMirrorError()
		metrics.RecordErrorByComponent("mirror", "redis")
		return fmt.Errorf("%w: %s: %w", ErrPublish, m.key, err)
	}
	metrics.RecordMirrorPublish()
	m.logger.Debug(ctx, "leaderboard mirrored", logger.String("key", m.key), logger.Int("size", len(entries)))
	return nil
}

// Ping checks connectivity.
func (m *RedisMirror) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrPublish, err)
	}
	return nil
}

// Close releases the client.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}

// Members converts entries to sorted set members keyed by user id.
func Members(entries []types.Entry) []*redis.Z {
	zs := make([]*redis.Z, 0, len(entries))
	for _, e := range entries {
		zs = append(zs, &redis.Z{Score: e.TotalRating, Member: e.UserID})
	}
	return zs
}
