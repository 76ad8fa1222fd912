package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter(cfg *JWTConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", NewJWTAuth(cfg), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetUserID(c)})
	})
	return router
}

func TestJWTAuthBearerHeader(t *testing.T) {
	cfg := &JWTConfig{Secret: "test-secret", ExpireTime: time.Hour}
	router := newAuthRouter(cfg)

	token, err := GenerateToken("user-123", "alice", cfg)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-123")
}

func TestJWTAuthSessionCookie(t *testing.T) {
	cfg := &JWTConfig{Secret: "test-secret", ExpireTime: time.Hour}
	router := newAuthRouter(cfg)

	token, err := GenerateToken("user-123", "alice", cfg)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTAuthRejectsMissingToken(t *testing.T) {
	cfg := &JWTConfig{Secret: "test-secret", ExpireTime: time.Hour}
	router := newAuthRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuthRejectsWrongSecret(t *testing.T) {
	cfg := &JWTConfig{Secret: "test-secret", ExpireTime: time.Hour}
	router := newAuthRouter(cfg)

	token, err := GenerateToken("user-123", "alice", &JWTConfig{Secret: "other-secret", ExpireTime: time.Hour})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuthRejectsExpiredToken(t *testing.T) {
	cfg := &JWTConfig{Secret: "test-secret", ExpireTime: -time.Hour}
	router := newAuthRouter(cfg)

	token, err := GenerateToken("user-123", "alice", cfg)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
