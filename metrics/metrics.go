// Package metrics exposes Prometheus collectors for scrapes, the HTTP API
// and the result cache.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reviewscope"

// Recorder owns a registry and the collectors registered on it.
type Recorder struct {
	reg *prometheus.Registry

	scrapes        *prometheus.CounterVec
	scrapeDuration *prometheus.HistogramVec
	reviews        prometheus.Histogram
	convergence    *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
	cacheEvents    *prometheus.CounterVec
}

// New creates a Recorder with its own registry, including Go runtime and
// process collectors.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		scrapes: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "scrapes_total", Help: "Review scrape invocations by outcome."},
			[]string{"outcome"}, // success or error code
		),
		scrapeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace, Name: "scrape_duration_seconds",
				Help:    "Wall time of review scrape invocations.",
				Buckets: []float64{5, 10, 20, 30, 45, 60, 90, 120, 180, 300},
			},
			[]string{"outcome"},
		),
		reviews: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "reviews_per_scrape",
			Help:    "Reviews returned by successful scrapes.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		convergence: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "scroll_outcomes_total", Help: "How scrolling ended on successful scrapes."},
			[]string{"state"}, // converged|exhausted
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests."},
			[]string{"route", "method", "status"},
		),
		httpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace, Name: "http_request_duration_seconds",
				Help:    "HTTP request duration seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		cacheEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "cache_events_total", Help: "Result cache hits/misses/sets."},
			[]string{"event"}, // hit|miss|set
		),
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.scrapes, r.scrapeDuration, r.reviews, r.convergence,
		r.httpRequests, r.httpLatency, r.cacheEvents,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveScrape records one scrape invocation.
func (r *Recorder) ObserveScrape(outcome string, elapsed time.Duration, reviews int, convergence string) {
	r.scrapes.WithLabelValues(outcome).Inc()
	r.scrapeDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	if outcome != "success" {
		return
	}
	r.reviews.Observe(float64(reviews))
	if convergence != "" {
		r.convergence.WithLabelValues(convergence).Inc()
	}
}

// ObserveHTTP records one API request. route is the route template, not
// the raw path.
func (r *Recorder) ObserveHTTP(route, method string, status int, dur time.Duration) {
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.httpLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

// ObserveCache counts a cache event: hit, miss or set.
func (r *Recorder) ObserveCache(event string) {
	r.cacheEvents.WithLabelValues(event).Inc()
}
