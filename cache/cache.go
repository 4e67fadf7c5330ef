// Package cache keeps recent review results so repeated requests for the
// same listing within a caller-chosen age skip the browser.
package cache

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/reviewscope/models"
)

// Store is a result cache backend. Lookups honour a caller-chosen maximum
// age; maxAge <= 0 disables them. Implementations store and return copies.
type Store interface {
	Get(ctx context.Context, key string, maxAge time.Duration) (*models.ReviewsResponse, bool)
	Set(ctx context.Context, key string, resp *models.ReviewsResponse)
	Close() error
}

// settings are shared by every backend.
type settings struct {
	ttl     time.Duration
	now     func() time.Time
	onEvent func(event string)
}

func newSettings(opts []Option) settings {
	s := settings{
		ttl:     time.Hour,
		now:     time.Now,
		onEvent: func(string) {},
	}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// Option customises a Store.
type Option func(*settings)

// WithTTL sets how long entries survive regardless of max_age. Default 1h.
func WithTTL(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithEventHook is called with "hit", "miss" or "set".
func WithEventHook(fn func(event string)) Option {
	return func(s *settings) { s.onEvent = fn }
}

type entry struct {
	response  models.ReviewsResponse
	createdAt time.Time
}

// Cache is an in-memory Store keyed by listing URL.
// It is safe for concurrent use.
type Cache struct {
	settings

	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	stop       chan struct{}
	stopOnce   sync.Once
}

// New creates a Cache holding at most maxEntries results and starts the
// expiry loop. Call Close to stop it.
func New(maxEntries int, opts ...Option) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	c := &Cache{
		settings:   newSettings(opts),
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		stop:       make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Key normalises a listing URL: scheme and host lower-cased, fragment and
// trailing slash dropped. Unparsable input is used verbatim.
func Key(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""
	return u.String()
}

// Get returns a copy of the cached response for key if it is younger than
// maxAge. maxAge <= 0 disables the lookup.
func (c *Cache) Get(_ context.Context, key string, maxAge time.Duration) (*models.ReviewsResponse, bool) {
	if maxAge <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.createdAt) > maxAge {
		c.onEvent("miss")
		return nil, false
	}
	c.onEvent("hit")
	resp := e.response
	return &resp, true
}

// Set stores a copy of resp. At capacity the oldest entry is evicted.
func (c *Cache) Set(_ context.Context, key string, resp *models.ReviewsResponse) {
	if resp == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.store[key] = &entry{response: *resp, createdAt: c.now()}
	c.onEvent("set")
}

// Len reports the number of stored entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the expiry loop.
func (c *Cache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

func (c *Cache) evictOldestLocked() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for k, e := range c.store {
		if oldestKey == "" || e.createdAt.Before(oldest) {
			oldestKey, oldest = k, e.createdAt
		}
	}
	delete(c.store, oldestKey)
}

// expire drops entries older than the TTL.
func (c *Cache) expire() int {
	cutoff := c.now().Add(-c.ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
			n++
		}
	}
	return n
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.expire()
		case <-c.stop:
			return
		}
	}
}
