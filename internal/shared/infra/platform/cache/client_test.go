package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingStore cuenta las llamadas a Scan y puede simular un almacén caído.
type countingStore struct {
	Store
	scans int
	err   error
}

func (s *countingStore) Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error) {
	s.scans++
	if s.err != nil {
		return nil, 0, s.err
	}
	return s.Store.Scan(ctx, cursor, match, count)
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	return s.Store.Get(ctx, key)
}

func (s *countingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.err != nil {
		return s.err
	}
	return s.Store.Set(ctx, key, value, ttl)
}

func newMemoryClient(t *testing.T, prefix string, scanCount int64) (*Client, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore(0)
	t.Cleanup(func() { _ = store.Close() })
	return NewClient(store, Options{Prefix: prefix, ScanCount: scanCount}, zap.NewNop(), nil), store
}

func seedIssueKeys(t *testing.T, c *Client, matching, other int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < matching; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("issues:u%d:user:all:first:10:desc:all:all:all:none", i), i, 60))
	}
	for i := 0; i < other; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("user_stats_%d", i), i, 60))
	}
}

func TestClient_GetSetDelete(t *testing.T) {
	c, store := newMemoryClient(t, "", 0)
	ctx := context.Background()

	type payload struct {
		Name string `json:"name"`
	}
	require.NoError(t, c.Set(ctx, "user:1", payload{Name: "Ana"}, 0))

	// El namespace por defecto se aplica a la clave física.
	_, ok, _ := store.Get(ctx, "civic:user:1")
	assert.True(t, ok)

	var got payload
	hit, err := c.Get(ctx, "user:1", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "Ana", got.Name)

	require.NoError(t, c.Delete(ctx, "user:1"))
	require.NoError(t, c.Delete(ctx, "user:1"), "borrar una clave inexistente no es error")

	hit, err = c.Get(ctx, "user:1", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestClient_CorruptEntryIsMiss(t *testing.T) {
	c, store := newMemoryClient(t, "", 0)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, c.Key("issue:1"), []byte("{not json"), time.Minute))

	var dest map[string]interface{}
	hit, err := c.Get(ctx, "issue:1", &dest)
	assert.NoError(t, err)
	assert.False(t, hit)
}

func TestClient_UnreachableStore(t *testing.T) {
	store := &countingStore{Store: NewMemoryStore(0), err: errors.New("connection refused")}
	c := NewClient(store, Options{}, zap.NewNop(), nil)
	ctx := context.Background()

	var dest int
	_, err := c.Get(ctx, "k", &dest)
	assert.Error(t, err)

	assert.Error(t, c.Set(ctx, "k", 1, 10))

	_, err = c.InvalidateByPattern(ctx, "issues:*")
	assert.Error(t, err)
}

func TestClient_SetUnserializable(t *testing.T) {
	c, _ := newMemoryClient(t, "", 0)
	err := c.Set(context.Background(), "k", make(chan int), 10)
	assert.Error(t, err)
}

func TestClient_TTLExpiry(t *testing.T) {
	c, store := newMemoryClient(t, "", 0)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, c.Key("short"), []byte(`1`), 10*time.Millisecond))

	time.Sleep(25 * time.Millisecond)
	var v int
	hit, err := c.Get(ctx, "short", &v)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestInvalidateByPattern_CompleteRegardlessOfBatchSize(t *testing.T) {
	for _, count := range []int64{1, 7, 100, 1000} {
		t.Run(fmt.Sprintf("count=%d", count), func(t *testing.T) {
			mem := NewMemoryStore(0)
			store := &countingStore{Store: mem}
			c := NewClient(store, Options{ScanCount: count}, zap.NewNop(), nil)
			seedIssueKeys(t, c, 250, 40)

			deleted, err := c.InvalidateByPattern(context.Background(), "issues:*")
			require.NoError(t, err)
			assert.Equal(t, int64(250), deleted)

			left, _ := mem.Keys(context.Background(), c.Key("issues:*"))
			assert.Empty(t, left)
			assert.Equal(t, 40, mem.Len())

			if count < 250 {
				assert.Greater(t, store.scans, 1, "con lotes pequeños hace falta más de un SCAN")
			}
		})
	}
}

func TestInvalidateByPattern_Idempotent(t *testing.T) {
	c, _ := newMemoryClient(t, "", 10)
	seedIssueKeys(t, c, 20, 0)
	ctx := context.Background()

	n, err := c.InvalidateByPattern(ctx, "issues:*")
	require.NoError(t, err)
	assert.Equal(t, int64(20), n)

	n, err = c.InvalidateByPattern(ctx, "issues:*")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNamespaceIsolation(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Close()
	a := NewClient(store, Options{Prefix: "civic:"}, zap.NewNop(), nil)
	b := NewClient(store, Options{Prefix: "other:"}, zap.NewNop(), nil)
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "issues:public:guest", 1, 60))
	require.NoError(t, b.Set(ctx, "issues:public:guest", 2, 60))

	n, err := a.InvalidateByPattern(ctx, "*")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = a.ClearPattern(ctx, "issues:*")
	require.NoError(t, err)
	assert.Zero(t, n)

	var v int
	hit, _ := b.Get(ctx, "issues:public:guest", &v)
	assert.True(t, hit)
	assert.Equal(t, 2, v)
}

func TestClearPatternAndClearAll(t *testing.T) {
	c, store := newMemoryClient(t, "", 0)
	seedIssueKeys(t, c, 5, 3)
	ctx := context.Background()

	n, err := c.ClearPattern(ctx, "user_stats_*")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, 5, store.Len())

	require.NoError(t, c.ClearAll(ctx))
	assert.Zero(t, store.Len())
}

func TestInvalidateTags(t *testing.T) {
	c, store := newMemoryClient(t, "", 0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "issues:a", 1, 60, "issue:1"))
	require.NoError(t, c.Set(ctx, "issues:b", 2, 60, "issue:1", "issue:2"))
	require.NoError(t, c.Set(ctx, "issues:c", 3, 60, "issue:2"))

	n, err := c.InvalidateTags(ctx, "issue:1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var v int
	hit, _ := c.Get(ctx, "issues:c", &v)
	assert.True(t, hit)

	// El índice de issue:2 aún apunta a issues:b, ya borrada: no cuenta.
	n, err = c.InvalidateTags(ctx, "issue:2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Zero(t, store.Len())
}

// ---------------- Backends reales sobre miniredis ----------------

func TestRedisStore_PatternInvalidation(t *testing.T) {
	server := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: server.Addr()})
	c := NewClient(NewRedisStore(rdb), Options{ScanCount: 100}, zap.NewNop(), nil)
	defer c.Close()
	ctx := context.Background()

	seedIssueKeys(t, c, 250, 10)
	require.NoError(t, c.Set(ctx, "review:9", "x", 60, "comment:9"))

	deleted, err := c.InvalidateByPattern(ctx, "issues:*")
	require.NoError(t, err)
	assert.Equal(t, int64(250), deleted)

	remaining, err := rdb.Keys(ctx, "civic:issues:*").Result()
	require.NoError(t, err)
	assert.Empty(t, remaining)

	n, err := c.InvalidateTags(ctx, "comment:9")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = c.ClearPattern(ctx, "user_stats_*")
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
}

func TestRedisStore_PatternInvalidation_AnyBatchSize(t *testing.T) {
	for _, count := range []int64{1, 7, 100, 1000} {
		t.Run(fmt.Sprintf("count=%d", count), func(t *testing.T) {
			server := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: server.Addr()})
			c := NewClient(NewRedisStore(rdb), Options{ScanCount: count}, zap.NewNop(), nil)
			defer c.Close()
			ctx := context.Background()

			seedIssueKeys(t, c, 250, 3)

			deleted, err := c.InvalidateByPattern(ctx, "issues:*")
			require.NoError(t, err)
			assert.Equal(t, int64(250), deleted)
			assert.Len(t, server.Keys(), 3)
		})
	}
}

func TestRedisStore_TTLAndMiss(t *testing.T) {
	server := miniredis.RunT(t)
	c := NewClient(NewRedisStore(redis.NewClient(&redis.Options{Addr: server.Addr()})), Options{}, zap.NewNop(), nil)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "issue:1", map[string]string{"title": "Fuga"}, 1))
	server.FastForward(2 * time.Second)

	var v map[string]string
	hit, err := c.Get(ctx, "issue:1", &v)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestValkeyStore_PatternInvalidation(t *testing.T) {
	server := miniredis.RunT(t)
	store, err := NewValkeyStore(ValkeyConfig{Address: server.Addr()})
	require.NoError(t, err)
	c := NewClient(store, Options{ScanCount: 50}, zap.NewNop(), nil)
	defer c.Close()
	ctx := context.Background()

	seedIssueKeys(t, c, 250, 5)

	var v int
	hit, err := c.Get(ctx, "user_stats_1", &v)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, v)

	deleted, err := c.InvalidateByPattern(ctx, "issues:*")
	require.NoError(t, err)
	assert.Equal(t, int64(250), deleted)

	require.NoError(t, c.Set(ctx, "issue:7", 7, 60, "issue:7"))
	n, err := c.InvalidateTags(ctx, "issue:7")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, c.ClearAll(ctx))
	assert.Empty(t, server.Keys())
}

func TestNewValkeyStore_RequiresAddress(t *testing.T) {
	_, err := NewValkeyStore(ValkeyConfig{})
	assert.Error(t, err)
}
