package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
	Metrics   MetricsConfig
	Batch     BatchConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls how browser sessions are launched.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// ProfileDir is the local profile directory reused across runs.
	// Each concurrent session gets its own slot-N sub-directory.
	ProfileDir string // default: ".reviewscope/profile"

	// MaxSessions bounds concurrently running browser processes.
	MaxSessions int // default: 2

	// LaunchTimeout bounds process start + CDP connect.
	LaunchTimeout time.Duration // default: 30s

	// DefaultProxy is the proxy URL passed to the browser.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// ScraperConfig controls the review extraction pipeline.
type ScraperConfig struct {
	// InvocationTimeout is the overall deadline for one invocation.
	InvocationTimeout time.Duration // default: 3m

	// NavigationTimeout bounds page load until network idle. Exceeding it
	// fails the invocation.
	NavigationTimeout time.Duration // default: 30s

	// SettleDelay is the pause after load for client-side rendering.
	SettleDelay time.Duration // default: 3s

	// TabSettleDelay is the pause after activating the reviews tab.
	TabSettleDelay time.Duration // default: 3s

	// ReviewKeywords are the localized labels of the reviews tab.
	ReviewKeywords []string

	// ScrollInterval is the cadence between scroll rounds.
	ScrollInterval time.Duration // default: 500ms

	// ScrollRounds is the round budget of the convergence controller.
	ScrollRounds int // default: 40

	// SampleEvery is how many rounds pass between element-count samples.
	SampleEvery int // default: 5

	// StableSamples is how many consecutive equal samples mean convergence.
	StableSamples int // default: 4

	// FinalSettleDelay is the pause between scrolling and extraction.
	FinalSettleDelay time.Duration // default: 2s

	// SelectorsFile optionally overrides the built-in selector chains.
	SelectorsFile string

	// BlockedResourceTypes lists resource types to block.
	// default: ["Font", "Media"]
	BlockedResourceTypes []string

	// BlockAds blocks well-known ad and tracking domains.
	BlockAds bool // default: true
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 3
}

// CacheConfig controls the result cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached results held in memory.
	MaxEntries int // default: 500

	// TTL bounds how long any result is kept, whatever max_age asks for.
	TTL time.Duration // default: 1h

	// RedisURL switches the cache to a shared Redis, e.g.
	// redis://:password@localhost:6379/0.
	RedisURL string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool // default: true
}

// BatchConfig controls batch jobs.
type BatchConfig struct {
	// Concurrency bounds URLs processed at once per job. It is further
	// bounded by Browser.MaxSessions.
	Concurrency int // default: 2

	// Retention is how long finished jobs stay queryable.
	Retention time.Duration // default: 1h
}

// DefaultReviewKeywords are the tab labels meaning "reviews" or "comments".
var DefaultReviewKeywords = []string{
	"отзывы", "отзыв", "комментарии",
	"відгуки",
	"reviews", "review", "comments",
	"bewertungen", "rezensionen",
	"avis", "commentaires",
	"reseñas", "opiniones",
	"yorumlar", "değerlendirmeler",
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("REVIEWSCOPE_HOST", "0.0.0.0"),
			Port: envIntOr("REVIEWSCOPE_PORT", 8080),
			Mode: envOr("REVIEWSCOPE_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:      envBoolOr("REVIEWSCOPE_HEADLESS", true),
			ProfileDir:    envOr("REVIEWSCOPE_PROFILE_DIR", ".reviewscope/profile"),
			MaxSessions:   envIntOr("REVIEWSCOPE_MAX_SESSIONS", 2),
			LaunchTimeout: envDurationOr("REVIEWSCOPE_LAUNCH_TIMEOUT", 30*time.Second),
			DefaultProxy:  os.Getenv("REVIEWSCOPE_PROXY"),
			NoSandbox:     envBoolOr("REVIEWSCOPE_NO_SANDBOX", false),
			BrowserBin:    os.Getenv("REVIEWSCOPE_BROWSER_BIN"),
		},
		Scraper: ScraperConfig{
			InvocationTimeout: envDurationOr("REVIEWSCOPE_INVOCATION_TIMEOUT", 3*time.Minute),
			NavigationTimeout: envDurationOr("REVIEWSCOPE_NAV_TIMEOUT", 30*time.Second),
			SettleDelay:       envDurationOr("REVIEWSCOPE_SETTLE_DELAY", 3*time.Second),
			TabSettleDelay:    envDurationOr("REVIEWSCOPE_TAB_SETTLE_DELAY", 3*time.Second),
			ReviewKeywords:    envSliceOr("REVIEWSCOPE_REVIEW_KEYWORDS", DefaultReviewKeywords),
			ScrollInterval:    envDurationOr("REVIEWSCOPE_SCROLL_INTERVAL", 500*time.Millisecond),
			ScrollRounds:      envIntOr("REVIEWSCOPE_SCROLL_ROUNDS", 40),
			SampleEvery:       envIntOr("REVIEWSCOPE_SAMPLE_EVERY", 5),
			StableSamples:     envIntOr("REVIEWSCOPE_STABLE_SAMPLES", 4),
			FinalSettleDelay:  envDurationOr("REVIEWSCOPE_FINAL_SETTLE_DELAY", 2*time.Second),
			SelectorsFile:     os.Getenv("REVIEWSCOPE_SELECTORS_FILE"),
			BlockedResourceTypes: envSliceOr("REVIEWSCOPE_BLOCKED_RESOURCES", []string{
				"Font", "Media",
			}),
			BlockAds: envBoolOr("REVIEWSCOPE_BLOCK_ADS", true),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("REVIEWSCOPE_AUTH_ENABLED", true),
			APIKeys: envSliceOr("REVIEWSCOPE_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("REVIEWSCOPE_RATE_RPS", 1.0),
			Burst:             envIntOr("REVIEWSCOPE_RATE_BURST", 3),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("REVIEWSCOPE_CACHE_MAX_ENTRIES", 500),
			TTL:        envDurationOr("REVIEWSCOPE_CACHE_TTL", time.Hour),
			RedisURL:   os.Getenv("REVIEWSCOPE_REDIS_URL"),
		},
		Log: LogConfig{
			Level:  envOr("REVIEWSCOPE_LOG_LEVEL", "info"),
			Format: envOr("REVIEWSCOPE_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: envBoolOr("REVIEWSCOPE_METRICS_ENABLED", true),
		},
		Batch: BatchConfig{
			Concurrency: envIntOr("REVIEWSCOPE_BATCH_CONCURRENCY", 2),
			Retention:   envDurationOr("REVIEWSCOPE_BATCH_RETENTION", time.Hour),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
