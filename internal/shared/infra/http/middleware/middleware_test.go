package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	"github.com/davicafu/civicreport/internal/shared/infra/platform/metrics"
)

var secret = []byte("test-secret")

func sign(t *testing.T, claims jwt.Claims, key []byte) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Authenticate(secret), AccessLog(zap.NewNop(), metrics.NewRecorder(nil)))
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, ViewerFrom(c))
	})
	r.POST("/write", RequireAuth(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func whoami(t *testing.T, r *gin.Engine, header string) (*httptest.ResponseRecorder, sharedDomain.Viewer) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var v sharedDomain.Viewer
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	}
	return rec, v
}

func TestAuthenticate_GuestWithoutToken(t *testing.T) {
	rec, v := whoami(t, newRouter(), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, v.IsGuest())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestAuthenticate_ValidToken(t *testing.T) {
	token := sign(t, Claims{
		Role:     sharedDomain.RoleCategoryAdmin,
		Category: "water",
		Division: "Dhaka",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, secret)

	rec, v := whoami(t, newRouter(), "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", v.UserID)
	assert.Equal(t, sharedDomain.RoleCategoryAdmin, v.Role)
	assert.Equal(t, "water", v.ScopeCategory())
	assert.Equal(t, "Dhaka", v.Division)
}

func TestAuthenticate_UserIDClaimAndDefaultRole(t *testing.T) {
	token := sign(t, jwt.MapClaims{"user_id": "u2"}, secret)

	_, v := whoami(t, newRouter(), "Bearer "+token)
	assert.Equal(t, "u2", v.UserID)
	assert.Equal(t, sharedDomain.RoleCitizen, v.Role)
}

func TestAuthenticate_Rejects(t *testing.T) {
	expired := sign(t, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}}, secret)
	wrongKey := sign(t, jwt.MapClaims{"sub": "u1"}, []byte("other"))
	noSubject := sign(t, jwt.MapClaims{"role": "citizen"}, secret)

	for name, header := range map[string]string{
		"expired":    "Bearer " + expired,
		"wrong key":  "Bearer " + wrongKey,
		"no subject": "Bearer " + noSubject,
		"no bearer":  "Token abc",
	} {
		t.Run(name, func(t *testing.T) {
			rec, _ := whoami(t, newRouter(), header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestRequireAuth(t *testing.T) {
	r := newRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/write", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/write", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, jwt.MapClaims{"sub": "u1"}, secret))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequestID_KeepsIncoming(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	newRouter().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}
