package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	issueDomain "github.com/davicafu/civicreport/internal/issue/domain"
	messageDomain "github.com/davicafu/civicreport/internal/message/domain"
	"github.com/davicafu/civicreport/internal/mocks"
	"github.com/davicafu/civicreport/internal/shared/cachekeys"
	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedEvents "github.com/davicafu/civicreport/internal/shared/domain/events"
	"github.com/davicafu/civicreport/internal/shared/infra/platform/cache"
	"github.com/davicafu/civicreport/internal/shared/infra/platform/invalidation"
	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
)

var (
	roadIssue = issueDomain.IssueRef{ID: "507f1f77bcf86cd799439011", ReporterID: "reporter", Category: "road", Division: "Khulna"}

	admin    = sharedDomain.Viewer{UserID: "a1", Role: sharedDomain.RoleCategoryAdmin, Category: "road"}
	reporter = sharedDomain.Viewer{UserID: "reporter", Role: sharedDomain.RoleCitizen}
)

type fixture struct {
	repo    *mocks.InMemoryMessageRepo
	cache   *cache.Client
	service *MessageService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := cache.NewMemoryStore(0)
	t.Cleanup(func() { _ = store.Close() })
	c := cache.NewClient(store, cache.Options{}, zap.NewNop(), nil)
	repo := mocks.NewInMemoryMessageRepo()
	exec := invalidation.NewExecutor(c, invalidation.ModeSync, zap.NewNop(), nil)
	return &fixture{
		repo:    repo,
		cache:   c,
		service: NewMessageService(repo, mocks.NewStaticIssueLookup(roadIssue), c, exec, zap.NewNop()),
	}
}

func (f *fixture) cached(t *testing.T, key string) bool {
	t.Helper()
	var raw interface{}
	hit, err := f.cache.Get(context.Background(), key, &raw)
	require.NoError(t, err)
	return hit
}

func firstPage(limit int) sharedQuery.PaginationRequest {
	return sharedQuery.PaginationRequest{Limit: limit}
}

func TestSendMessage_DefaultsToReporter(t *testing.T) {
	f := newFixture(t)

	msg, err := f.service.SendMessage(context.Background(), admin, SendMessageInput{IssueID: roadIssue.ID, Body: " We are on it "})
	require.NoError(t, err)
	assert.Equal(t, "reporter", msg.RecipientID)
	assert.Equal(t, "We are on it", msg.Body)
	assert.Nil(t, msg.ReadAt)

	// Un evento por participante.
	require.Len(t, f.repo.Outbox, 2)
	users := []string{}
	for _, evt := range f.repo.Outbox {
		assert.Equal(t, messageDomain.MessageSent, evt.EventType)
		payload, ok := evt.Payload.(sharedEvents.EntityChanged)
		require.True(t, ok)
		assert.Equal(t, roadIssue.ID, payload.EntityID)
		users = append(users, payload.UserID)
	}
	assert.ElementsMatch(t, []string{"a1", "reporter"}, users)
}

func TestSendMessage_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.SendMessage(ctx, admin, SendMessageInput{IssueID: "507f1f77bcf86cd7994390ff", Body: "hi"})
	assert.ErrorIs(t, err, issueDomain.ErrIssueNotFound)

	_, err = f.service.SendMessage(ctx, admin, SendMessageInput{IssueID: "nope", Body: "hi"})
	assert.ErrorIs(t, err, issueDomain.ErrIssueNotFound)

	_, err = f.service.SendMessage(ctx, admin, SendMessageInput{Body: "hi"})
	assert.ErrorIs(t, err, messageDomain.ErrRecipientRequired)

	_, err = f.service.SendMessage(ctx, admin, SendMessageInput{RecipientID: "u2", Body: "   "})
	assert.ErrorIs(t, err, messageDomain.ErrBodyRequired)

	_, err = f.service.SendMessage(ctx, reporter, SendMessageInput{IssueID: roadIssue.ID, Body: "note to self"})
	assert.ErrorIs(t, err, messageDomain.ErrSelfMessage)

	assert.Empty(t, f.repo.Outbox)
}

func TestSendMessage_PurgesBothInboxes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, fromCache, err := f.service.ListInbox(ctx, reporter, firstPage(10))
	require.NoError(t, err)
	assert.False(t, fromCache)
	_, _, err = f.service.ListInbox(ctx, admin, firstPage(10))
	require.NoError(t, err)
	_, _, err = f.service.ListByIssue(ctx, roadIssue.ID, firstPage(10))
	require.NoError(t, err)

	page, fromCache, err := f.service.ListInbox(ctx, reporter, firstPage(10))
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Empty(t, page.Data)

	_, err = f.service.SendMessage(ctx, admin, SendMessageInput{IssueID: roadIssue.ID, Body: "Crew dispatched"})
	require.NoError(t, err)

	p := cachekeys.Page{Limit: 10, SortOrder: "desc"}
	assert.False(t, f.cached(t, cachekeys.UserMessages("reporter", p).String()))
	assert.False(t, f.cached(t, cachekeys.UserMessages("a1", p).String()))
	assert.False(t, f.cached(t, cachekeys.IssueMessages(roadIssue.ID, p).String()))

	page, fromCache, err = f.service.ListInbox(ctx, reporter, firstPage(10))
	require.NoError(t, err)
	assert.False(t, fromCache)
	require.Len(t, page.Data, 1)

	page, _, err = f.service.ListInbox(ctx, admin, firstPage(10))
	require.NoError(t, err)
	assert.Len(t, page.Data, 1)
}

func TestListByIssue_Pagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.service.SendMessage(ctx, admin, SendMessageInput{IssueID: roadIssue.ID, Body: "update"})
		require.NoError(t, err)
	}

	page, _, err := f.service.ListByIssue(ctx, roadIssue.ID, firstPage(2))
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.True(t, page.HasMore)
	require.NotNil(t, page.NextCursor)

	next, _, err := f.service.ListByIssue(ctx, roadIssue.ID, sharedQuery.PaginationRequest{Limit: 2, Cursor: *page.NextCursor})
	require.NoError(t, err)
	require.Len(t, next.Data, 1)
	assert.False(t, next.HasMore)
	assert.NotEqual(t, page.Data[1].ID, next.Data[0].ID)

	_, _, err = f.service.ListByIssue(ctx, "garbage", firstPage(2))
	assert.ErrorIs(t, err, issueDomain.ErrIssueNotFound)
}

func TestListByIssue_PurgedByIssueTag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.service.ListByIssue(ctx, roadIssue.ID, firstPage(10))
	require.NoError(t, err)
	key := cachekeys.IssueMessages(roadIssue.ID, cachekeys.Page{Limit: 10, SortOrder: "desc"}).String()
	require.True(t, f.cached(t, key))

	exec := invalidation.NewExecutor(f.cache, invalidation.ModeSync, zap.NewNop(), nil)
	_, err = exec.Invalidate(ctx, invalidation.Options{Entity: invalidation.EntityIssue, EntityID: roadIssue.ID})
	require.NoError(t, err)
	assert.False(t, f.cached(t, key))
}

func TestMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.service.SendMessage(ctx, admin, SendMessageInput{IssueID: roadIssue.ID, Body: "Fixed?"})
	require.NoError(t, err)

	_, err = f.service.MarkRead(ctx, admin, msg.ID)
	assert.ErrorIs(t, err, messageDomain.ErrMessageNotFound)

	read, err := f.service.MarkRead(ctx, reporter, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, read.ReadAt)
	first := *read.ReadAt

	again, err := f.service.MarkRead(ctx, reporter, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, first, *again.ReadAt)

	assert.Equal(t, []string{
		messageDomain.MessageSent, messageDomain.MessageSent,
		messageDomain.MessageRead, messageDomain.MessageRead,
	}, f.repo.Events())

	_, err = f.service.MarkRead(ctx, reporter, "507f1f77bcf86cd7994390aa")
	assert.ErrorIs(t, err, messageDomain.ErrMessageNotFound)
	_, err = f.service.MarkRead(ctx, reporter, "bad")
	assert.ErrorIs(t, err, messageDomain.ErrMessageNotFound)
}
