package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Hynox-org/aharraa-server/pkg/config"
)

// memoryStore answers EVALSHA for the package scripts by hash.
type memoryStore struct {
	data map[string]string
	ttl  map[string]time.Duration
	hits map[string]int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}, ttl: map[string]time.Duration{}, hits: map[string]int64{}}
}

func (m *memoryStore) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *memoryStore) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := m.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *memoryStore) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *memoryStore) EvalSha(ctx context.Context, sha string, keys []string, args ...any) *redis.Cmd {
	cmd := redis.NewCmd(ctx)
	key := keys[0]
	owned := len(args) > 0 && m.data[key] == fmt.Sprint(args[0])
	switch sha {
	case fixedWindow.Hash():
		m.hits[key]++
		if m.hits[key] == 1 {
			m.ttl[key] = time.Duration(args[0].(int64)) * time.Millisecond
		}
		cmd.SetVal(m.hits[key])
	case releaseLock.Hash():
		if owned {
			delete(m.data, key)
		}
		cmd.SetVal(boolInt(owned))
	case extendLock.Hash():
		if owned {
			m.ttl[key] = time.Duration(args[1].(int64)) * time.Millisecond
		}
		cmd.SetVal(boolInt(owned))
	default:
		cmd.SetErr(fmt.Errorf("unknown script %s", sha))
	}
	return cmd
}

func (m *memoryStore) Eval(ctx context.Context, _ string, _ []string, _ ...any) *redis.Cmd {
	cmd := redis.NewCmd(ctx)
	cmd.SetErr(fmt.Errorf("EVAL not expected"))
	return cmd
}

func (m *memoryStore) EvalRO(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return m.Eval(ctx, script, keys, args...)
}

func (m *memoryStore) EvalShaRO(ctx context.Context, sha string, keys []string, args ...any) *redis.Cmd {
	return m.EvalSha(ctx, sha, keys, args...)
}

func (m *memoryStore) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (m *memoryStore) ScriptLoad(_ context.Context, _ string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

func boolInt(ok bool) int64 {
	if ok {
		return 1
	}
	return 0
}

func TestFixedWindowAllowSetsTTLOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	client := &Client{store: store}
	key := client.RateLimitKey("verify:user-1")

	for i, want := range []bool{true, true, false} {
		allowed, count, err := client.FixedWindowAllow(ctx, "verify:user-1", 2, 30*time.Second)
		require.NoError(t, err)
		require.Equal(t, want, allowed, "hit %d", i+1)
		require.EqualValues(t, i+1, count)
	}
	require.Equal(t, 30*time.Second, store.ttl[key])
}

func TestSetNXFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMemoryStore()}
	key := client.IdempotencyKey("orders.create", "user-1:abc")

	ok, err := client.SetNX(ctx, key, "in_flight", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.SetNX(ctx, key, "in_flight", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, client.Del(ctx, key))
	_, err = client.Get(ctx, key)
	require.ErrorIs(t, err, redis.Nil)
}

func TestLockScriptsCheckOwner(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	client := &Client{store: store}
	key := client.LockKey("cron-worker")

	ok, err := client.SetNX(ctx, key, "worker-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.ExtendLock(ctx, key, "worker-b", time.Minute)
	require.NoError(t, err)
	require.False(t, ok, "foreign extend")

	ok, err = client.ExtendLock(ctx, key, "worker-a", 2*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2*time.Minute, store.ttl[key])

	ok, _ = client.ReleaseLock(ctx, key, "worker-b")
	require.False(t, ok, "foreign release")
	require.Contains(t, store.data, key)

	ok, err = client.ReleaseLock(ctx, key, "worker-a")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotContains(t, store.data, key)
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	_, err := client.Get(context.Background(), "k")
	require.ErrorIs(t, err, errNotInitialized)
	require.ErrorIs(t, client.Ping(context.Background()), errNotInitialized)
	_, _, err = client.FixedWindowAllow(context.Background(), "s", 1, time.Second)
	require.ErrorIs(t, err, errNotInitialized)
	require.NoError(t, client.Close())
}

func TestKeyspace(t *testing.T) {
	var k Keyspace
	require.Equal(t, "aharraa:idempotency:scope:id", k.IdempotencyKey("scope", "id"))
	require.Equal(t, "aharraa:idempotency:scope", k.IdempotencyKey("scope", " "))
	require.Equal(t, "aharraa:rate_limit:verify:user-1", k.RateLimitKey("verify:user-1"))
	require.Equal(t, "aharraa:lock:pending-order-sweep", k.LockKey("pending-order-sweep"))
}

func TestOptions(t *testing.T) {
	_, err := options(config.RedisConfig{})
	require.Error(t, err)

	opts, err := options(config.RedisConfig{URL: "redis://:secret@cache:6380/3", DB: 1, PoolSize: 20, DialTimeout: time.Second})
	require.NoError(t, err)
	require.Equal(t, "cache:6380", opts.Addr)
	require.Equal(t, 3, opts.DB, "url db wins")
	require.Equal(t, 20, opts.PoolSize)
	require.Equal(t, time.Second, opts.DialTimeout)

	opts, err = options(config.RedisConfig{Address: "localhost:6379", Password: "pw", DB: 2})
	require.NoError(t, err)
	require.Equal(t, "localhost:6379", opts.Addr)
	require.Equal(t, 2, opts.DB)
}
