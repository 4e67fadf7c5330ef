package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/reviewscope/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func okHandler(c *gin.Context) {
	c.String(http.StatusOK, c.GetString(APIKeyContextKey))
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuth(t *testing.T) {
	r := gin.New()
	r.Use(Auth([]string{"key-1", "key-2"}))
	r.GET("/x", okHandler)

	tests := []struct {
		name   string
		header map[string]string
		status int
		body   string
	}{
		{"missing", nil, http.StatusUnauthorized, ""},
		{"x-api-key", map[string]string{"X-API-Key": "key-1"}, http.StatusOK, "key-1"},
		{"bearer", map[string]string{"Authorization": "Bearer key-2 "}, http.StatusOK, "key-2"},
		{"wrong key", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized, ""},
		{"basic scheme", map[string]string{"Authorization": "Basic key-1"}, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := serve(r, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.body, rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), `"UNAUTHORIZED"`)
			}
		})
	}
}

func TestAuth_NoKeysIsOpen(t *testing.T) {
	r := gin.New()
	r.Use(Auth(nil))
	r.GET("/x", okHandler)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(config.RateLimitConfig{RequestsPerSecond: 0.5, Burst: 2}))
	r.GET("/x", okHandler)

	req := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = ip + ":1234"
		return serve(r, req)
	}

	assert.Equal(t, http.StatusOK, req("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, req("10.0.0.1").Code)

	limited := req("10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "2", limited.Header().Get("Retry-After"))
	assert.Contains(t, limited.Body.String(), `"RATE_LIMITED"`)

	assert.Equal(t, http.StatusOK, req("10.0.0.2").Code, "identities have separate buckets")
}

func TestLimiterSet_Evict(t *testing.T) {
	set := newLimiterSet(config.RateLimitConfig{RequestsPerSecond: 1})
	now := time.Now()

	a := set.get("a", now.Add(-2*time.Hour))
	set.get("b", now)
	set.evict(now.Add(-time.Hour))

	assert.Len(t, set.limiters, 1)
	assert.NotSame(t, a, set.get("a", now), "evicted identity starts a fresh bucket")
	assert.Equal(t, 1, set.burst, "non-positive burst is raised to one")
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	generated := rec.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = serve(r, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

type observation struct {
	route, method string
	status        int
}

type fakeObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (f *fakeObserver) ObserveHTTP(route, method string, status int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.obs = append(f.obs, observation{route, method, status})
}

func TestMetrics(t *testing.T) {
	obs := &fakeObserver{}
	r := gin.New()
	r.Use(Metrics(obs))
	r.GET("/jobs/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	serve(r, httptest.NewRequest(http.MethodGet, "/jobs/batch-1", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, []observation{
		{"/jobs/:id", http.MethodGet, http.StatusNoContent},
		{"unmatched", http.MethodGet, http.StatusNotFound},
	}, obs.obs)
}
