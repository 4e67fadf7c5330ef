package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveScrape(t *testing.T) {
	r := New()

	r.ObserveScrape("success", 12*time.Second, 37, "converged")
	r.ObserveScrape("success", 40*time.Second, 120, "exhausted")
	r.ObserveScrape("NAVIGATION_TIMEOUT", 30*time.Second, 0, "")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.scrapes.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.scrapes.WithLabelValues("NAVIGATION_TIMEOUT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.convergence.WithLabelValues("converged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.convergence.WithLabelValues("exhausted")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.convergence))
}

func TestObserveHTTPAndCache(t *testing.T) {
	r := New()

	r.ObserveHTTP("/api/v1/reviews", http.MethodPost, 200, 3*time.Second)
	r.ObserveHTTP("/api/v1/reviews", http.MethodPost, 504, time.Minute)
	r.ObserveCache("hit")
	r.ObserveCache("hit")
	r.ObserveCache("miss")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.httpRequests.WithLabelValues("/api/v1/reviews", "POST", "504")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.cacheEvents.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheEvents.WithLabelValues("miss")))
}

func TestHandler(t *testing.T) {
	r := New()
	r.ObserveScrape("success", time.Second, 3, "converged")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `reviewscope_scrapes_total{outcome="success"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
