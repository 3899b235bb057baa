package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	issueDomain "github.com/davicafu/civicreport/internal/issue/domain"
	"github.com/davicafu/civicreport/internal/message/application"
	messageDomain "github.com/davicafu/civicreport/internal/message/domain"
	"github.com/davicafu/civicreport/internal/mocks"
	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	"github.com/davicafu/civicreport/internal/shared/infra/http/middleware"
	"github.com/davicafu/civicreport/internal/shared/infra/platform/cache"
	"github.com/davicafu/civicreport/internal/shared/infra/platform/invalidation"
)

const issueID = "507f1f77bcf86cd799439011"

func newService(t *testing.T) *application.MessageService {
	t.Helper()
	store := cache.NewMemoryStore(0)
	t.Cleanup(func() { _ = store.Close() })
	c := cache.NewClient(store, cache.Options{}, zap.NewNop(), nil)
	exec := invalidation.NewExecutor(c, invalidation.ModeSync, zap.NewNop(), nil)
	lookup := mocks.NewStaticIssueLookup(issueDomain.IssueRef{ID: issueID, ReporterID: "reporter", Category: "gas"})
	return application.NewMessageService(mocks.NewInMemoryMessageRepo(), lookup, c, exec, zap.NewNop())
}

func newRouter(service *application.MessageService, viewer sharedDomain.Viewer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.WithViewer(viewer))
	RegisterMessageRoutes(r, NewMessageHandler(service))
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

func TestMessageRoutes(t *testing.T) {
	service := newService(t)
	adminRouter := newRouter(service, sharedDomain.Viewer{UserID: "a1", Role: sharedDomain.RoleSuperAdmin})
	reporterRouter := newRouter(service, sharedDomain.Viewer{UserID: "reporter", Role: sharedDomain.RoleCitizen})

	rec := do(adminRouter, http.MethodPost, "/api/messages", map[string]string{"issueId": issueID, "body": "Leak sealed"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var sent struct {
		Data messageDomain.Message `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sent))
	assert.Equal(t, "reporter", sent.Data.RecipientID)

	rec = do(reporterRouter, http.MethodGet, "/api/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Data      []messageDomain.Message `json:"data"`
		FromCache bool                    `json:"fromCache"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Data, 1)
	assert.False(t, page.FromCache)

	rec = do(reporterRouter, http.MethodGet, "/api/messages/issue/"+issueID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(reporterRouter, http.MethodPost, "/api/messages/"+sent.Data.ID+"/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var read struct {
		Data messageDomain.Message `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &read))
	assert.NotNil(t, read.Data.ReadAt)
}

func TestMessageRoutes_Errors(t *testing.T) {
	service := newService(t)
	guest := newRouter(service, sharedDomain.Viewer{})
	citizen := newRouter(service, sharedDomain.Viewer{UserID: "u1", Role: sharedDomain.RoleCitizen})

	cases := []struct {
		name   string
		router *gin.Engine
		method string
		path   string
		body   interface{}
		status int
	}{
		{"invitado", guest, http.MethodGet, "/api/messages", nil, http.StatusUnauthorized},
		{"sin cuerpo", citizen, http.MethodPost, "/api/messages", map[string]string{"recipientId": "u2"}, http.StatusBadRequest},
		{"sin destinatario", citizen, http.MethodPost, "/api/messages", map[string]string{"body": "hola"}, http.StatusBadRequest},
		{"a sí mismo", citizen, http.MethodPost, "/api/messages", map[string]string{"recipientId": "u1", "body": "hola"}, http.StatusBadRequest},
		{"incidencia inexistente", citizen, http.MethodPost, "/api/messages", map[string]string{"issueId": "507f1f77bcf86cd7994390ff", "body": "hola"}, http.StatusNotFound},
		{"hilo con id inválido", citizen, http.MethodGet, "/api/messages/issue/xyz", nil, http.StatusNotFound},
		{"mensaje inexistente", citizen, http.MethodPost, "/api/messages/507f1f77bcf86cd7994390aa/read", nil, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(tc.router, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}
