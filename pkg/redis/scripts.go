package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// fixedWindow sets the window TTL in the same step as the first
	// increment, so a counter can never outlive its window.
	fixedWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then redis.call("PEXPIRE", KEYS[1], ARGV[1]) end
return n`)

	releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) end
return 0`)

	extendLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("PEXPIRE", KEYS[1], ARGV[2]) end
return 0`)
)

func (c *Client) run(ctx context.Context, script *redis.Script, key string, args ...any) (int64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	return script.Run(ctx, c.store, []string{key}, args...).Int64()
}

// FixedWindowAllow counts a hit against scope and reports whether the count
// is still within limit for the current window.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	count, err := c.run(ctx, fixedWindow, c.RateLimitKey(scope), window.Milliseconds())
	if err != nil {
		return false, 0, err
	}
	return count <= limit, count, nil
}

// ReleaseLock deletes key only while owner still holds it.
func (c *Client) ReleaseLock(ctx context.Context, key, owner string) (bool, error) {
	n, err := c.run(ctx, releaseLock, key, owner)
	return n == 1, err
}

// ExtendLock resets the TTL of key only while owner still holds it.
func (c *Client) ExtendLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	n, err := c.run(ctx, extendLock, key, owner, ttl.Milliseconds())
	return n == 1, err
}
