package lock_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/stockwise/lock"
)

// Set STOCKWISE_TEST_REDIS_ADDR (host:port) to run against a live server.
func newRedisClient(t *testing.T) (*redis.Client, string) {
	t.Helper()
	addr := os.Getenv("STOCKWISE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("STOCKWISE_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("ping %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, fmt.Sprintf("stockwise-test:%s:%d:", t.Name(), time.Now().UnixNano())
}

func TestRedisHeldKeyIsNotObtained(t *testing.T) {
	client, prefix := newRedisClient(t)
	ctx := context.Background()
	l := lock.NewRedis(client, 5*time.Second, lock.WithPrefix(prefix), lock.WithRetry(2, 10*time.Millisecond))

	release, err := l.Acquire(ctx, "I007")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if n, err := client.Exists(ctx, prefix+"I007").Result(); err != nil || n != 1 {
		t.Fatalf("expected key %q in redis, got %d (%v)", prefix+"I007", n, err)
	}

	if _, err := l.Acquire(ctx, "I007"); !errors.Is(err, lock.ErrNotObtained) {
		t.Fatalf("second Acquire: got %v, want ErrNotObtained", err)
	}

	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := release(ctx); err != nil {
		t.Errorf("second release: %v", err)
	}

	again, err := l.Acquire(ctx, "I007")
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	_ = again(ctx)
}

func TestRedisWaitsForRelease(t *testing.T) {
	client, prefix := newRedisClient(t)
	ctx := context.Background()
	l := lock.NewRedis(client, 5*time.Second, lock.WithPrefix(prefix), lock.WithRetry(100, 10*time.Millisecond))

	release, err := l.Acquire(ctx, "I007")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		r, err := l.Acquire(ctx, "I007")
		if err == nil {
			err = r(ctx)
		}
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("waiter finished while the key was held: %v", err)
	default:
	}

	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("waiter: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("waiter never acquired the key")
	}
}

func TestRedisDistinctKeysDoNotBlock(t *testing.T) {
	client, prefix := newRedisClient(t)
	ctx := context.Background()
	l := lock.NewRedis(client, 5*time.Second, lock.WithPrefix(prefix), lock.WithRetry(0, 0))

	a, err := l.Acquire(ctx, "I001")
	if err != nil {
		t.Fatalf("Acquire I001: %v", err)
	}
	defer a(ctx) //nolint:errcheck // test cleanup
	b, err := l.Acquire(ctx, "I002")
	if err != nil {
		t.Fatalf("Acquire I002: %v", err)
	}
	defer b(ctx) //nolint:errcheck // test cleanup
}
