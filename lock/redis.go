package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// Redis locks through a shared Redis server.
type Redis struct {
	client  *redislock.Client
	prefix  string
	ttl     time.Duration
	retries int
	backoff time.Duration
}

// RedisOption configures a Redis locker.
type RedisOption func(*Redis)

// WithPrefix sets the key namespace. Default "stockwise:lock:".
func WithPrefix(p string) RedisOption {
	return func(r *Redis) { r.prefix = p }
}

// WithRetry sets how often and how far apart Acquire retries a held key.
func WithRetry(retries int, backoff time.Duration) RedisOption {
	return func(r *Redis) {
		r.retries = retries
		r.backoff = backoff
	}
}

// NewRedis returns a Locker that holds each key for at most ttl.
func NewRedis(client redis.UniversalClient, ttl time.Duration, opts ...RedisOption) *Redis {
	r := &Redis{
		client:  redislock.New(client),
		prefix:  "stockwise:lock:",
		ttl:     ttl,
		retries: 40,
		backoff: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Acquire implements Locker.
func (r *Redis) Acquire(ctx context.Context, key string) (Release, error) {
	lk, err := r.client.Obtain(ctx, r.prefix+key, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(r.backoff), r.retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("lock: obtain %s: %w", key, err)
	}
	return func(ctx context.Context) error {
		if err := lk.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return fmt.Errorf("lock: release %s: %w", key, err)
		}
		return nil
	}, nil
}
