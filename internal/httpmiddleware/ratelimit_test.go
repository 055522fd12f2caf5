package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(l Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(l.GinMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func get(r *gin.Engine, ip string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = ip + ":12345"
	r.ServeHTTP(w, req)
	return w.Code
}

func TestSimpleTokenBucketLimits(t *testing.T) {
	r := newRouter(NewSimpleTokenBucket(3, 3))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, get(r, "10.0.0.1"))
	}
	assert.Equal(t, http.StatusTooManyRequests, get(r, "10.0.0.1"))

	// A different client has its own bucket.
	assert.Equal(t, http.StatusOK, get(r, "10.0.0.2"))
}

func TestSimpleTokenBucketDefaultCapacity(t *testing.T) {
	l := NewSimpleTokenBucket(0, 5)
	assert.Equal(t, 5, l.capacity)
}

func TestRedisFixedWindowLimits(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := newRouter(NewRedisFixedWindow(client, 2))

	assert.Equal(t, http.StatusOK, get(r, "10.0.0.1"))
	assert.Equal(t, http.StatusOK, get(r, "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, get(r, "10.0.0.1"))

	assert.Equal(t, http.StatusOK, get(r, "10.0.0.3"))

	// Window expiry resets the counter.
	mr.FastForward(2 * time.Minute)
	assert.Equal(t, http.StatusOK, get(r, "10.0.0.1"))
}

func TestRedisFixedWindowFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	r := newRouter(NewRedisFixedWindow(client, 1))
	require.Equal(t, http.StatusOK, get(r, "10.0.0.1"))
	require.Equal(t, http.StatusOK, get(r, "10.0.0.1"))
}
