package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func limitedRouter(limits map[string]RateLimit, bucket string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ping", NewRateLimiter(limits).Limit(bucket), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return r
}

func hit(r *gin.Engine, remoteAddr string) int {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimiterBlocksAfterBudget(t *testing.T) {
	r := limitedRouter(map[string]RateLimit{
		"test": {Requests: 2, Window: time.Minute},
	}, "test")

	assert.Equal(t, http.StatusOK, hit(r, "10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, hit(r, "10.0.0.1:1000"))
	assert.Equal(t, http.StatusTooManyRequests, hit(r, "10.0.0.1:1000"))
}

func TestRateLimiterIsPerClient(t *testing.T) {
	r := limitedRouter(map[string]RateLimit{
		"test": {Requests: 1, Window: time.Minute},
	}, "test")

	assert.Equal(t, http.StatusOK, hit(r, "10.0.0.1:1000"))
	assert.Equal(t, http.StatusTooManyRequests, hit(r, "10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, hit(r, "10.0.0.2:1000"))
}

func TestRateLimiterUnknownBucketPassesThrough(t *testing.T) {
	r := limitedRouter(map[string]RateLimit{}, "missing")

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, hit(r, "10.0.0.1:1000"))
	}
}
