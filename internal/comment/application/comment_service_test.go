package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	commentDomain "github.com/davicafu/civicreport/internal/comment/domain"
	issueDomain "github.com/davicafu/civicreport/internal/issue/domain"
	"github.com/davicafu/civicreport/internal/mocks"
	"github.com/davicafu/civicreport/internal/shared/cachekeys"
	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedEvents "github.com/davicafu/civicreport/internal/shared/domain/events"
	"github.com/davicafu/civicreport/internal/shared/infra/platform/cache"
	"github.com/davicafu/civicreport/internal/shared/infra/platform/invalidation"
	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
)

var (
	waterIssue = issueDomain.IssueRef{ID: "507f1f77bcf86cd799439011", ReporterID: "owner", Category: "water", Division: "Dhaka"}
	gasIssue   = issueDomain.IssueRef{ID: "507f1f77bcf86cd799439012", ReporterID: "owner", Category: "gas", Division: "Sylhet"}

	citizen    = sharedDomain.Viewer{UserID: "u1", Role: sharedDomain.RoleCitizen}
	waterAdmin = sharedDomain.Viewer{UserID: "a1", Role: sharedDomain.RoleCategoryAdmin, Category: "water"}
)

type fixture struct {
	repo    *mocks.InMemoryCommentRepo
	cache   *cache.Client
	service *CommentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := cache.NewMemoryStore(0)
	t.Cleanup(func() { _ = store.Close() })
	c := cache.NewClient(store, cache.Options{}, zap.NewNop(), nil)
	repo := mocks.NewInMemoryCommentRepo()
	exec := invalidation.NewExecutor(c, invalidation.ModeSync, zap.NewNop(), nil)
	lookup := mocks.NewStaticIssueLookup(waterIssue, gasIssue)
	return &fixture{
		repo:    repo,
		cache:   c,
		service: NewCommentService(repo, lookup, c, exec, zap.NewNop()),
	}
}

func (f *fixture) cached(t *testing.T, key string) bool {
	t.Helper()
	var raw interface{}
	hit, err := f.cache.Get(context.Background(), key, &raw)
	require.NoError(t, err)
	return hit
}

func (f *fixture) comment(t *testing.T, viewer sharedDomain.Viewer, issueID, text string) *commentDomain.Comment {
	t.Helper()
	c, err := f.service.CreateComment(context.Background(), viewer, issueID, CreateCommentInput{Text: text})
	require.NoError(t, err)
	return c
}

func firstPage(limit int) sharedQuery.PaginationRequest {
	return sharedQuery.PaginationRequest{Limit: limit}
}

func TestCreateComment(t *testing.T) {
	f := newFixture(t)

	c := f.comment(t, citizen, waterIssue.ID, "  Same on my street  ")
	assert.Equal(t, "Same on my street", c.Text)
	assert.Equal(t, "water", c.IssueCategory)
	assert.Equal(t, "u1", c.AuthorID)

	require.Len(t, f.repo.Outbox, 1)
	evt := f.repo.Outbox[0]
	assert.Equal(t, commentDomain.CommentCreated, evt.EventType)

	payload, ok := evt.Payload.(sharedEvents.EntityChanged)
	require.True(t, ok)
	assert.Equal(t, invalidation.EntityComment, payload.Entity)
	assert.Equal(t, waterIssue.ID, payload.EntityID)
	assert.Equal(t, "u1", payload.UserID)
}

func TestCreateComment_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.CreateComment(ctx, citizen, "507f1f77bcf86cd799439099", CreateCommentInput{Text: "x"})
	assert.ErrorIs(t, err, issueDomain.ErrIssueNotFound)

	_, err = f.service.CreateComment(ctx, citizen, "garbage", CreateCommentInput{Text: "x"})
	assert.ErrorIs(t, err, issueDomain.ErrIssueNotFound)

	_, err = f.service.CreateComment(ctx, citizen, waterIssue.ID, CreateCommentInput{Text: "   "})
	assert.ErrorIs(t, err, commentDomain.ErrTextRequired)

	_, err = f.service.CreateComment(ctx, citizen, waterIssue.ID, CreateCommentInput{Text: "x", Rating: 9})
	assert.ErrorIs(t, err, commentDomain.ErrInvalidRating)

	assert.Empty(t, f.repo.Outbox)
}

func TestListByIssue_ReadThroughAndInvalidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.comment(t, citizen, waterIssue.ID, "first")

	page, fromCache, err := f.service.ListByIssue(ctx, waterIssue.ID, firstPage(10))
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Len(t, page.Data, 1)

	_, fromCache, err = f.service.ListByIssue(ctx, waterIssue.ID, firstPage(10))
	require.NoError(t, err)
	assert.True(t, fromCache)

	f.comment(t, citizen, waterIssue.ID, "second")

	page, fromCache, err = f.service.ListByIssue(ctx, waterIssue.ID, firstPage(10))
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Len(t, page.Data, 2)
}

func TestListByIssue_Paginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		c := f.comment(t, citizen, waterIssue.ID, "c")
		c.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		f.repo.Items[c.ID] = *c
	}

	seen := map[string]bool{}
	req := firstPage(2)
	for pages := 0; ; pages++ {
		require.Less(t, pages, 5)
		page, _, err := f.service.ListByIssue(ctx, waterIssue.ID, req)
		require.NoError(t, err)
		for _, c := range page.Data {
			assert.False(t, seen[c.ID], "duplicate %s", c.ID)
			seen[c.ID] = true
		}
		if !page.HasMore {
			break
		}
		req.Cursor = *page.NextCursor
	}
	assert.Len(t, seen, 5)
}

func TestListAdmin_ScopedByCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.comment(t, citizen, waterIssue.ID, "water")
	f.comment(t, citizen, gasIssue.ID, "gas")

	page, _, err := f.service.ListAdmin(ctx, waterAdmin, firstPage(10))
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "water", page.Data[0].IssueCategory)

	superAdmin := sharedDomain.Viewer{UserID: "s1", Role: sharedDomain.RoleSuperAdmin}
	page, _, err = f.service.ListAdmin(ctx, superAdmin, firstPage(10))
	require.NoError(t, err)
	assert.Len(t, page.Data, 2)
}

func TestListMine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.comment(t, citizen, waterIssue.ID, "mine")
	f.comment(t, waterAdmin, waterIssue.ID, "not mine")

	page, _, err := f.service.ListMine(ctx, citizen, firstPage(10))
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "mine", page.Data[0].Text)
}

func TestCommentDoesNotPurgeReporterStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stats := cachekeys.UserStats(waterIssue.ReporterID).String()
	require.NoError(t, f.cache.Set(ctx, stats, map[string]int{"total": 3}, 600))

	f.comment(t, citizen, waterIssue.ID, "any update?")

	assert.True(t, f.cached(t, stats))
}

func TestCommentPurgesIssueDetailAndReviewLists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	detail := cachekeys.Issue(waterIssue.ID).String()
	require.NoError(t, f.cache.Set(ctx, detail, "x", 600))

	_, _, err := f.service.ListAdmin(ctx, waterAdmin, firstPage(10))
	require.NoError(t, err)
	_, _, err = f.service.ListMine(ctx, citizen, firstPage(10))
	require.NoError(t, err)

	f.comment(t, citizen, waterIssue.ID, "hello")

	assert.False(t, f.cached(t, detail))
	_, fromCache, err := f.service.ListAdmin(ctx, waterAdmin, firstPage(10))
	require.NoError(t, err)
	assert.False(t, fromCache)
	_, fromCache, err = f.service.ListMine(ctx, citizen, firstPage(10))
	require.NoError(t, err)
	assert.False(t, fromCache)
}

func TestGetComment_TaggedWithIssue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.comment(t, citizen, waterIssue.ID, "hello")

	got, fromCache, err := f.service.GetComment(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, c.ID, got.ID)
	assert.True(t, f.cached(t, cachekeys.Review(c.ID).String()))

	// Cualquier escritura sobre la incidencia arrastra el detalle del comentario.
	exec := invalidation.NewExecutor(f.cache, invalidation.ModeSync, zap.NewNop(), nil)
	_, err = exec.Invalidate(ctx, invalidation.Options{Entity: invalidation.EntityIssue, EntityID: waterIssue.ID})
	require.NoError(t, err)
	assert.False(t, f.cached(t, cachekeys.Review(c.ID).String()))

	_, _, err = f.service.GetComment(ctx, "507f1f77bcf86cd799439099")
	assert.ErrorIs(t, err, commentDomain.ErrCommentNotFound)
	_, _, err = f.service.GetComment(ctx, "nope")
	assert.ErrorIs(t, err, commentDomain.ErrCommentNotFound)
}

func TestUpdateAndDeleteComment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.comment(t, citizen, waterIssue.ID, "draft")

	_, _, err := f.service.GetComment(ctx, c.ID)
	require.NoError(t, err)

	text, rating := "final", 4
	updated, err := f.service.UpdateComment(ctx, citizen, c.ID, UpdateCommentInput{Text: &text, Rating: &rating})
	require.NoError(t, err)
	assert.Equal(t, "final", updated.Text)
	assert.Equal(t, 4, updated.Rating)

	got, fromCache, err := f.service.GetComment(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, "final", got.Text)

	require.NoError(t, f.service.DeleteComment(ctx, citizen, c.ID))
	_, _, err = f.service.GetComment(ctx, c.ID)
	assert.ErrorIs(t, err, commentDomain.ErrCommentNotFound)

	assert.Equal(t, []string{
		commentDomain.CommentCreated, commentDomain.CommentUpdated, commentDomain.CommentDeleted,
	}, f.repo.Events())
}

func TestUpdateComment_AsyncModeDropsOwnDetail(t *testing.T) {
	store := cache.NewMemoryStore(0)
	t.Cleanup(func() { _ = store.Close() })
	c := cache.NewClient(store, cache.Options{}, zap.NewNop(), nil)
	exec := invalidation.NewExecutor(c, invalidation.ModeAsync, zap.NewNop(), nil)
	service := NewCommentService(mocks.NewInMemoryCommentRepo(), mocks.NewStaticIssueLookup(waterIssue), c, exec, zap.NewNop())
	ctx := context.Background()

	created, err := service.CreateComment(ctx, citizen, waterIssue.ID, CreateCommentInput{Text: "old text"})
	require.NoError(t, err)
	_, fromCache, err := service.GetComment(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, fromCache)

	text := "new text"
	_, err = service.UpdateComment(ctx, citizen, created.ID, UpdateCommentInput{Text: &text})
	require.NoError(t, err)

	got, fromCache, err := service.GetComment(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, "new text", got.Text)
}
