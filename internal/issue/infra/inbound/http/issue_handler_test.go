package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/civicreport/internal/issue/application"
	issueDomain "github.com/davicafu/civicreport/internal/issue/domain"
	"github.com/davicafu/civicreport/internal/mocks"
	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	"github.com/davicafu/civicreport/internal/shared/infra/http/middleware"
	"github.com/davicafu/civicreport/internal/shared/infra/platform/cache"
	"github.com/davicafu/civicreport/internal/shared/infra/platform/invalidation"
	"github.com/davicafu/civicreport/pkg/utils"
)

type pageResponse struct {
	Data       []issueDomain.Issue `json:"data"`
	HasMore    bool                `json:"hasMore"`
	NextCursor *string             `json:"nextCursor"`
	FromCache  bool                `json:"fromCache"`
}

func newRouter(t *testing.T, repo *mocks.InMemoryIssueRepo, inv invalidation.Invalidator, viewer sharedDomain.Viewer) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := cache.NewMemoryStore(0)
	t.Cleanup(func() { _ = store.Close() })
	c := cache.NewClient(store, cache.Options{}, zap.NewNop(), nil)
	if inv == nil {
		inv = invalidation.NewExecutor(c, invalidation.ModeSync, zap.NewNop(), nil)
	}

	r := gin.New()
	r.Use(middleware.WithViewer(viewer))
	RegisterIssueRoutes(r, NewIssueHandler(application.NewIssueService(repo, c, inv, zap.NewNop())))
	return r
}

func do(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func seedIssues(t *testing.T, repo *mocks.InMemoryIssueRepo, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		issue, err := issueDomain.NewIssue("u1", "Leak", "", "water", "Dhaka", "", nil)
		require.NoError(t, err)
		repo.Seed(issue)
	}
}

func TestListIssues_HTTPContract(t *testing.T) {
	repo := mocks.NewInMemoryIssueRepo()
	seedIssues(t, repo, 3)
	r := newRouter(t, repo, nil, sharedDomain.Viewer{})

	rec := do(r, http.MethodGet, "/api/issues?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page pageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Data, 2)
	assert.True(t, page.HasMore)
	require.NotNil(t, page.NextCursor)
	assert.False(t, page.FromCache)

	rec = do(r, http.MethodGet, "/api/issues?limit=2&cursor="+*page.NextCursor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Data, 1)
	assert.False(t, page.HasMore)
	assert.Nil(t, page.NextCursor)

	rec = do(r, http.MethodGet, "/api/issues?limit=2", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.True(t, page.FromCache)
}

func TestListIssues_BadLimitFallsBackToDefault(t *testing.T) {
	repo := mocks.NewInMemoryIssueRepo()
	seedIssues(t, repo, 12)
	r := newRouter(t, repo, nil, sharedDomain.Viewer{})

	rec := do(r, http.MethodGet, "/api/issues?limit=abc", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page pageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Data, 10)
	assert.True(t, page.HasMore)
}

func TestGetIssue_NotFound(t *testing.T) {
	r := newRouter(t, mocks.NewInMemoryIssueRepo(), nil, sharedDomain.Viewer{})

	rec := do(r, http.MethodGet, "/api/issues/"+sharedDomain.NewID(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":{"message":"issue not found"}}`, rec.Body.String())
}

func TestCreateIssue_HTTP(t *testing.T) {
	repo := mocks.NewInMemoryIssueRepo()
	citizen := sharedDomain.Viewer{UserID: "u1", Role: sharedDomain.RoleCitizen}

	body := map[string]interface{}{"title": "Dark street", "category": "electricity", "division": "Khulna"}

	rec := do(newRouter(t, repo, nil, sharedDomain.Viewer{}), http.MethodPost, "/api/issues", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	r := newRouter(t, repo, nil, citizen)
	rec = do(r, http.MethodPost, "/api/issues", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data issueDomain.Issue `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Dark street", resp.Data.Title)
	assert.Equal(t, "u1", resp.Data.ReporterID)

	rec = do(r, http.MethodPost, "/api/issues", map[string]interface{}{"title": "x", "category": "lava", "division": "Khulna"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, http.MethodPost, "/api/issues", map[string]interface{}{"category": "gas"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type failingInvalidator struct{}

func (failingInvalidator) Invalidate(context.Context, invalidation.Options) (int64, error) {
	return 0, errors.Join(invalidation.ErrCacheInvalidation, errors.New("connection refused"))
}

func TestChangeStatus_CacheRefreshFailure(t *testing.T) {
	repo := mocks.NewInMemoryIssueRepo()
	issue, err := issueDomain.NewIssue("u1", "Leak", "", "water", "Dhaka", "", nil)
	require.NoError(t, err)
	repo.Seed(issue)

	admin := sharedDomain.Viewer{UserID: "a1", Role: sharedDomain.RoleCategoryAdmin, Category: "water"}
	r := newRouter(t, repo, failingInvalidator{}, admin)

	rec := do(r, http.MethodPatch, "/api/issues/"+issue.ID+"/status", map[string]string{"status": "resolved"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), utils.CacheRefreshFailedMessage)

	// La escritura quedó guardada.
	stored, err := repo.GetByID(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.Equal(t, sharedDomain.StatusResolved, stored.Status)
}

func TestMarkReadAndDelete_HTTP(t *testing.T) {
	repo := mocks.NewInMemoryIssueRepo()
	issue, err := issueDomain.NewIssue("u1", "Leak", "", "water", "Dhaka", "", nil)
	require.NoError(t, err)
	repo.Seed(issue)

	r := newRouter(t, repo, nil, sharedDomain.Viewer{UserID: "a1", Role: sharedDomain.RoleSuperAdmin})

	rec := do(r, http.MethodGet, "/api/issues/unread-count", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"count":1},"fromCache":false}`, rec.Body.String())

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodPost, "/api/issues/"+issue.ID+"/read", nil).Code)

	rec = do(r, http.MethodGet, "/api/issues/unread-count", nil)
	assert.JSONEq(t, `{"data":{"count":0},"fromCache":false}`, rec.Body.String())

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/api/issues/"+issue.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/api/issues/"+issue.ID, nil).Code)
}

func TestStats_HTTP(t *testing.T) {
	repo := mocks.NewInMemoryIssueRepo()
	seedIssues(t, repo, 2)
	r := newRouter(t, repo, nil, sharedDomain.Viewer{UserID: "u1", Role: sharedDomain.RoleCitizen})

	rec := do(r, http.MethodGet, "/api/issues/stats/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":2`)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/issues/stats/category/water", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/issues/stats/category/lava", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/issues/stats/overview", nil).Code)
}
