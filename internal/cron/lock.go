package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 4 * time.Minute

// Lock elects the single cron worker allowed to sweep orders in a cycle.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Extend(ctx context.Context) error
	Release(ctx context.Context) error
}

// ErrLockLost is returned by Extend when another worker now owns the lock.
var ErrLockLost = errors.New("cron lock lost")

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ExtendLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, owner string) (bool, error)
}

// LeaderLock is a TTL lease in redis tagged with the holder's instance id.
type LeaderLock struct {
	store    lockStore
	key      string
	ttl      time.Duration
	instance string
	token    string
}

// NewLeaderLock builds a lease on key. instance prefixes the owner token so
// the current holder can be read straight out of redis.
func NewLeaderLock(store lockStore, key, instance string, ttl time.Duration) (*LeaderLock, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if instance == "" {
		instance = "cron"
	}
	return &LeaderLock{store: store, key: key, ttl: ttl, instance: instance}, nil
}

func (l *LeaderLock) Acquire(ctx context.Context) (bool, error) {
	token := l.instance + ":" + uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Extend pushes the lease out by one TTL between jobs.
func (l *LeaderLock) Extend(ctx context.Context) error {
	if l.token == "" {
		return ErrLockLost
	}
	ok, err := l.store.ExtendLock(ctx, l.key, l.token, l.ttl)
	if err != nil {
		return fmt.Errorf("extend %s: %w", l.key, err)
	}
	if !ok {
		l.token = ""
		return ErrLockLost
	}
	return nil
}

func (l *LeaderLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""
	if _, err := l.store.ReleaseLock(ctx, l.key, token); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
