// Package cache provides the key/value store used for counters, cached
// lookups, token revocation and user settings. Redis backs it in deployed
// environments; the in-memory store serves single-instance and test setups.
package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Store is a JSON key/value store with expiry.
type Store interface {
	// Get decodes the value at key into dest. It reports false on a miss.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Incr increments a counter, setting ttl when the key is created.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Keys lists keys (without prefix) matching a glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Options configures New.
type Options struct {
	RedisURL string
	Prefix   string
}

// New returns a Redis store when RedisURL is set and reachable, else an
// in-memory store.
func New(ctx context.Context, opts Options, logger zerolog.Logger) (Store, error) {
	if opts.RedisURL == "" {
		logger.Info().Msg("REDIS_URL not set, using in-memory cache")
		return NewMemoryStore(opts.Prefix), nil
	}

	store, err := NewRedisStore(ctx, opts.RedisURL, opts.Prefix)
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("connected to redis")
	return store, nil
}
