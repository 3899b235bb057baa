package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReadThrough_MissThenHit(t *testing.T) {
	c, _ := newMemoryClient(t, "", 0)
	ctx := context.Background()
	calls := 0
	fetch := func(ctx context.Context) ([]string, error) {
		calls++
		return []string{"a", "b"}, nil
	}

	got, fromCache, err := ReadThrough(ctx, c, "issues:x", 600, zap.NewNop(), fetch)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, []string{"a", "b"}, got)

	got, fromCache, err = ReadThrough(ctx, c, "issues:x", 600, zap.NewNop(), fetch)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 1, calls)
}

func TestReadThrough_FetchErrorIsNotCached(t *testing.T) {
	c, store := newMemoryClient(t, "", 0)
	boom := errors.New("db down")

	_, _, err := ReadThrough(context.Background(), c, "issue:1", 600, zap.NewNop(), func(ctx context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, store.Len())
}

func TestReadThrough_CacheDownFallsBackToFetch(t *testing.T) {
	store := &countingStore{Store: NewMemoryStore(0), err: errors.New("connection refused")}
	c := NewClient(store, Options{}, zap.NewNop(), nil)

	got, fromCache, err := ReadThrough(context.Background(), c, "issue:1", 600, zap.NewNop(), func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 42, got)
}

func TestReadThrough_NilCache(t *testing.T) {
	got, fromCache, err := ReadThrough[int](context.Background(), nil, "k", 600, zap.NewNop(), func(ctx context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 7, got)
}

func TestReadThroughTagged_TagsFromValue(t *testing.T) {
	c, _ := newMemoryClient(t, "", 0)
	ctx := context.Background()

	type review struct {
		ID      string `json:"id"`
		IssueID string `json:"issueId"`
	}
	_, _, err := ReadThroughTagged(ctx, c, "review:r1", 600, nil, func(ctx context.Context) (review, error) {
		return review{ID: "r1", IssueID: "i1"}, nil
	}, func(r review) []string { return []string{"issue:" + r.IssueID} })
	require.NoError(t, err)

	n, err := c.InvalidateTags(ctx, "issue:i1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
