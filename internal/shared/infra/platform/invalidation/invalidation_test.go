package invalidation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/davicafu/civicreport/internal/shared/cachekeys"
	sharedEvents "github.com/davicafu/civicreport/internal/shared/domain/events"
	"github.com/davicafu/civicreport/internal/shared/infra/platform/cache"
)

const issueID = "507f1f77bcf86cd799439011"

func newCache(t *testing.T) *cache.Client {
	t.Helper()
	store := cache.NewMemoryStore(0)
	t.Cleanup(func() { _ = store.Close() })
	return cache.NewClient(store, cache.Options{ScanCount: 7}, zap.NewNop(), nil)
}

func seed(t *testing.T, c *cache.Client, keys ...string) {
	t.Helper()
	for _, k := range keys {
		require.NoError(t, c.Set(context.Background(), k, k, 600))
	}
}

func exists(t *testing.T, c *cache.Client, key string) bool {
	t.Helper()
	var v string
	hit, err := c.Get(context.Background(), key, &v)
	require.NoError(t, err)
	return hit
}

func TestPlanFor_Issue(t *testing.T) {
	plan, err := PlanFor(Options{
		Entity:   EntityIssue,
		EntityID: issueID,
		UserID:   "u1",
		Category: "water",
		Division: "Dhaka",
		Role:     "category-admin",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"super_admin_stats",
		"issue:" + issueID,
		"user_stats_u1",
		"category_stats:water",
	}, plan.Keys)

	assert.Equal(t, []string{
		"issues:*",
		"issues:*:*:*:*:*:*:pending:*",
		"issues:*:*:*:*:*:*:in-progress:*",
		"issues:*:*:*:*:*:*:resolved:*",
		"issues:*:*:*:*:*:*:rejected:*",
		"unread_issues_count:*",
		"user:u1:issues:*",
		"issues:*:*:*:*:*:*:*:water:*",
		"issues:*:*:*:*:*:*:Dhaka:*",
		"issues:*:category-admin:*",
		"issues:public:*",
		"issues:guest:*",
	}, plan.Patterns)

	assert.Equal(t, []string{"issue:" + issueID}, plan.Tags)
}

func TestPlanFor_Deduplicates(t *testing.T) {
	plan, err := PlanFor(Options{Entity: EntityIssue, Status: "resolved"})
	require.NoError(t, err)

	seen := map[string]int{}
	for _, p := range plan.Patterns {
		seen[p]++
	}
	for p, n := range seen {
		assert.Equal(t, 1, n, p)
	}
}

func TestPlanFor_CommentNeverTouchesUserStats(t *testing.T) {
	plan, err := PlanFor(Options{Entity: EntityComment, EntityID: issueID, UserID: "u1"})
	require.NoError(t, err)

	for _, k := range append(plan.Keys, plan.Patterns...) {
		assert.NotContains(t, k, "user_stats")
	}
	assert.Contains(t, plan.Patterns, "comments:issue:"+issueID+":*")
	assert.Contains(t, plan.Patterns, "reviews:issue:"+issueID+":*")
	assert.Contains(t, plan.Patterns, "reviews:user:u1:*")
	assert.Contains(t, plan.Patterns, "reviews:admin:*")
}

func TestPlanFor_User(t *testing.T) {
	plan, err := PlanFor(Options{Entity: EntityUser, UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"user:u1", "user_stats_u1"}, plan.Keys)
	assert.Subset(t, plan.Patterns, []string{
		"users:list:*", "user:u1:issues:*", "issues:u1:*", "unread_issues_count:u1:*",
	})
	assert.Equal(t, []string{"user:u1"}, plan.Tags)
}

func TestPlanFor_CategoryDivisionMessage(t *testing.T) {
	plan, _ := PlanFor(Options{Entity: EntityCategory, Category: "gas"})
	assert.Contains(t, plan.Patterns, "issues:*:gas:*")
	assert.Equal(t, []string{"category_stats:gas"}, plan.Keys)

	plan, _ = PlanFor(Options{Entity: EntityDivision, Division: "Sylhet"})
	assert.Contains(t, plan.Patterns, "issues:*:Sylhet:*")

	plan, _ = PlanFor(Options{Entity: EntityMessage})
	assert.Contains(t, plan.Patterns, "messages:*")

	plan, _ = PlanFor(Options{Entity: EntityMessage, EntityID: issueID, UserID: "u2"})
	assert.NotContains(t, plan.Patterns, "messages:*")
	assert.Contains(t, plan.Patterns, "messages:issue:"+issueID+":*")
	assert.Contains(t, plan.Patterns, "messages:user:u2:*")
}

func TestPlanFor_EscapesGlobValues(t *testing.T) {
	plan, err := PlanFor(Options{Entity: EntityDivision, Division: "a*b:c"})
	require.NoError(t, err)
	assert.Contains(t, plan.Patterns, `issues:*:a\*b%3Ac:*`)
}

func TestPlanFor_UnknownEntity(t *testing.T) {
	_, err := PlanFor(Options{Entity: "planet"})
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestExecutor_IssueStatusChange(t *testing.T) {
	c := newCache(t)
	listKey := "issues:public:guest:all:first:10:desc:all:all:all:none"
	categoryKey := "issues:u1:citizen:all:first:10:desc:all:all:water:none"
	divisionKey := "issues:u2:citizen:all:first:10:desc:all:Dhaka:all:none"
	untouched := []string{"user_stats_u9", "review:r1", "users:list:role=citizen:first:10:desc"}
	seed(t, c, listKey, "issue:"+issueID, categoryKey, divisionKey)
	seed(t, c, untouched...)

	exec := NewExecutor(c, ModeSync, zap.NewNop(), nil)
	deleted, err := exec.Invalidate(context.Background(), Options{
		Entity:   EntityIssue,
		EntityID: issueID,
		Category: "water",
		Division: "Dhaka",
		Role:     "category-admin",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)

	for _, k := range []string{listKey, "issue:" + issueID, categoryKey, divisionKey} {
		assert.False(t, exists(t, c, k), k)
	}
	for _, k := range untouched {
		assert.True(t, exists(t, c, k), k)
	}
}

func TestExecutor_Idempotent(t *testing.T) {
	c := newCache(t)
	seed(t, c, "issue:"+issueID, "issues:public:guest:all:first:10:desc:all:all:all:none")
	exec := NewExecutor(c, ModeSync, zap.NewNop(), nil)
	opts := Options{Entity: EntityIssue, EntityID: issueID}

	n, err := exec.Invalidate(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = exec.Invalidate(context.Background(), opts)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExecutor_CommentKeepsUserStats(t *testing.T) {
	c := newCache(t)
	stats := cachekeys.UserStats("u1").String()
	reviews := cachekeys.IssueReviews(issueID, cachekeys.Page{Limit: 10, SortOrder: "desc"}).String()
	seed(t, c, stats, reviews)

	exec := NewExecutor(c, ModeSync, zap.NewNop(), nil)
	_, err := exec.Invalidate(context.Background(), Options{Entity: EntityComment, EntityID: issueID, UserID: "u1"})
	require.NoError(t, err)

	assert.True(t, exists(t, c, stats))
	assert.False(t, exists(t, c, reviews))
}

func TestExecutor_TagsPurgeTaggedKeys(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()
	msgs := cachekeys.IssueMessages(issueID, cachekeys.Page{Limit: 10, SortOrder: "desc"}).String()
	require.NoError(t, c.Set(ctx, msgs, "x", 600, cachekeys.Tag(EntityIssue, issueID)))

	exec := NewExecutor(c, ModeSync, zap.NewNop(), nil)
	_, err := exec.Invalidate(ctx, Options{Entity: EntityIssue, EntityID: issueID})
	require.NoError(t, err)
	assert.False(t, exists(t, c, msgs))
}

func TestExecutor_AsyncLeavesListsToConsumer(t *testing.T) {
	c := newCache(t)
	listKey := "issues:public:guest:all:first:10:desc:all:all:all:none"
	seed(t, c, listKey, "issue:"+issueID)

	exec := NewExecutor(c, ModeAsync, zap.NewNop(), nil)
	opts := Options{Entity: EntityIssue, EntityID: issueID}

	n, err := exec.Invalidate(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.False(t, exists(t, c, "issue:"+issueID))
	assert.True(t, exists(t, c, listKey))

	data, _ := json.Marshal(opts.Event())
	payload, _ := json.Marshal(sharedEvents.IntegrationEvent{Type: "issue.status_changed", AggregateID: issueID, Data: data})

	consumer := NewConsumer(exec, zap.NewNop())
	consumer.HandleMessage(context.Background(), issueID, payload)
	assert.False(t, exists(t, c, listKey))

	// Reentrega: no hay nada más que borrar y no falla.
	consumer.HandleMessage(context.Background(), issueID, payload)
}

func TestPlanFor_CommentDetailIsExactKey(t *testing.T) {
	plan, err := PlanFor(Options{Entity: EntityComment, EntityID: issueID, ReviewID: "c1", UserID: "u1"})
	require.NoError(t, err)
	assert.Contains(t, plan.Keys, "review:c1")
	assert.Contains(t, plan.Keys, "issue:"+issueID)

	opts := FromEvent(Options{Entity: EntityComment, ReviewID: "c1"}.Event())
	assert.Equal(t, "c1", opts.ReviewID)
}

func TestExecutor_AsyncDropsCommentDetailInline(t *testing.T) {
	c := newCache(t)
	listKey := "reviews:issue:" + issueID + ":first:10:desc"
	seed(t, c, "review:c1", listKey)

	exec := NewExecutor(c, ModeAsync, zap.NewNop(), nil)
	_, err := exec.Invalidate(context.Background(), Options{Entity: EntityComment, EntityID: issueID, ReviewID: "c1"})
	require.NoError(t, err)
	assert.False(t, exists(t, c, "review:c1"))
	assert.True(t, exists(t, c, listKey))
}

type brokenInvalidator struct{}

func (brokenInvalidator) DeleteKeys(ctx context.Context, keys ...string) (int64, error) {
	return 0, nil
}

func (brokenInvalidator) InvalidateByPattern(ctx context.Context, pattern string) (int64, error) {
	return 0, errors.New("connection refused")
}

func (brokenInvalidator) InvalidateTags(ctx context.Context, tags ...string) (int64, error) {
	return 0, nil
}

func TestExecutor_StoreFailurePropagates(t *testing.T) {
	exec := NewExecutor(brokenInvalidator{}, ModeSync, zap.NewNop(), nil)
	_, err := exec.Invalidate(context.Background(), Options{Entity: EntityUser, UserID: "u1"})
	assert.ErrorIs(t, err, ErrCacheInvalidation)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeAsync, ParseMode("async"))
	assert.Equal(t, ModeSync, ParseMode(""))
	assert.Equal(t, ModeSync, ParseMode("eventually"))
}

func TestDecode(t *testing.T) {
	evt, err := Decode([]byte(`{"entity":"user","userId":"u1"}`))
	require.NoError(t, err)
	assert.Equal(t, "u1", evt.UserID)

	_, err = Decode([]byte(`{"type":"x","data":{"foo":1}}`))
	assert.Error(t, err)
}

// flakyInvalidator borra siempre las claves exactas y falla el primer patrón.
type flakyInvalidator struct {
	patternCalls int
}

func (f *flakyInvalidator) DeleteKeys(ctx context.Context, keys ...string) (int64, error) {
	return int64(len(keys)), nil
}

func (f *flakyInvalidator) InvalidateByPattern(ctx context.Context, pattern string) (int64, error) {
	f.patternCalls++
	if f.patternCalls == 1 {
		return 0, errors.New("connection reset")
	}
	return 0, nil
}

func (f *flakyInvalidator) InvalidateTags(ctx context.Context, tags ...string) (int64, error) {
	return 0, nil
}

func TestConsumer_RetryCountsOnlyLastAttempt(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	exec := NewExecutor(&flakyInvalidator{}, ModeSync, zap.NewNop(), nil)
	consumer := NewConsumer(exec, zap.New(core))

	opts := Options{Entity: EntityIssue, EntityID: issueID}
	plan, err := PlanFor(opts)
	require.NoError(t, err)

	data, _ := json.Marshal(opts.Event())
	payload, _ := json.Marshal(sharedEvents.IntegrationEvent{Type: "issue.updated", AggregateID: issueID, Data: data})
	consumer.HandleMessage(context.Background(), issueID, payload)

	applied := logs.FilterMessage("Async invalidation applied").All()
	require.Len(t, applied, 1)
	assert.Equal(t, int64(len(plan.Keys)), applied[0].ContextMap()["deleted"])
}
