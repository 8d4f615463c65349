// Package lock keeps ingestion runs from overlapping across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultKey is the redis key guarding ingestion runs
	DefaultKey = "ducksgather:ingest:lock"

	// DefaultTTL bounds how long a crashed holder blocks later runs
	DefaultTTL = 10 * time.Minute
)

var (
	// ErrLockNotAcquired is returned when another holder has the lock.
	ErrLockNotAcquired = errors.New("lock not acquired")

	// ErrLockNotHeld is returned when trying to release a lock that is not held.
	ErrLockNotHeld = errors.New("lock not held")
)

var (
	releaseScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	extendScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
)

// RedisLock is a non-blocking mutual exclusion lock stored under one redis
// key. Every Acquire takes a fresh token, so one RedisLock can guard a
// sequence of runs.
type RedisLock struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	token string
}

// NewRedisLock creates a lock on key. Zero values fall back to defaults.
func NewRedisLock(client redis.UniversalClient, key string, ttl time.Duration) *RedisLock {
	if key == "" {
		key = DefaultKey
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}
}

// Acquire takes the lock or returns ErrLockNotAcquired without waiting
func (l *RedisLock) Acquire(ctx context.Context) error {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLockNotAcquired, l.key)
	}

	l.mu.Lock()
	l.token = token
	l.mu.Unlock()
	return nil
}

// Release frees the lock if this instance still holds it
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()

	if token == "" {
		return ErrLockNotHeld
	}

	result, err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if result == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Extend resets the TTL while the lock is still held
func (l *RedisLock) Extend(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.mu.Unlock()

	if token == "" {
		return ErrLockNotHeld
	}

	result, err := extendScript.Run(ctx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to extend lock: %w", err)
	}
	if result == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Key returns the lock key.
func (l *RedisLock) Key() string {
	return l.key
}
