package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrNotAcquired is returned when the lock stays held past the wait window
var ErrNotAcquired = errors.New("lock not acquired")

// Locker serializes read-modify-write cycles on one person's aggregate. The
// lock auto-expires after ttl so a crashed holder cannot wedge the key, and
// WithLock releases on every exit path including panics in fn.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error
}

const (
	keyPrefix     = "lock:"
	retryInterval = 25 * time.Millisecond
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lock re-acquired by someone else is never released by us
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// RedisLocker implements Locker on a shared Redis instance
type RedisLocker struct {
	redis *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{redis: client}
}

func (l *RedisLocker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	token := uuid.New().String()
	name := keyPrefix + key

	if err := l.acquire(ctx, name, token, ttl); err != nil {
		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		releaseScript.Run(releaseCtx, l.redis, []string{name}, token)
	}()

	return fn()
}

func (l *RedisLocker) acquire(ctx context.Context, name, token string, ttl time.Duration) error {
	deadline := time.Now().Add(ttl)
	for {
		ok, err := l.redis.SetNX(ctx, name, token, ttl).Result()
		if err != nil {
			return fmt.Errorf("failed to acquire lock %s: %w", name, err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

// LocalLocker implements Locker with in-process mutexes, one per key. It
// serves the ephemeral sandbox mode and the test suites where a single
// process owns the store.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *LocalLocker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn()
}
