package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"codeberg.org/vestilook/server/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T, rate string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := NewStore(context.Background(), "")
	require.NoError(t, err)

	limit, err := store.Middleware("test", rate)
	require.NoError(t, err)

	router := gin.New()
	router.POST("/limited", func(c *gin.Context) {
		if user := c.GetHeader("X-Test-User"); user != "" {
			c.Set(auth.UserIDKey, user)
		}
		c.Next()
	}, limit, func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	return router
}

func post(router *gin.Engine, user string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/limited", nil)
	req.Header.Set("X-Test-User", user)
	router.ServeHTTP(w, req)

	return w
}

func TestMiddleware_LimitsPerUser(t *testing.T) {
	router := newRouter(t, "2-M")

	assert.Equal(t, http.StatusNoContent, post(router, "u1").Code)
	assert.Equal(t, http.StatusNoContent, post(router, "u1").Code)

	w := post(router, "u1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), `"too_many_requests"`)
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))

	assert.Equal(t, http.StatusNoContent, post(router, "u2").Code)
}

func TestMiddleware_InvalidRate(t *testing.T) {
	store, err := NewStore(context.Background(), "")
	require.NoError(t, err)

	_, err = store.Middleware("bad", "ten per minute")
	assert.Error(t, err)
}

func TestNewStore_InvalidRedisURL(t *testing.T) {
	_, err := NewStore(context.Background(), "://nope")
	assert.Error(t, err)
}

func TestStore_MemoryPingAlwaysSucceeds(t *testing.T) {
	store, err := NewStore(context.Background(), "")
	require.NoError(t, err)

	assert.NoError(t, store.Ping(context.Background()))
	assert.NoError(t, store.Close())
}
