package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/use-agent/reviewscope/models"
)

// KeyPrefix namespaces result keys in a shared Redis.
const KeyPrefix = "reviewscope:result:"

// redisEntry is the stored value. The creation time travels with the
// response so max_age can be checked independently of the key TTL.
type redisEntry struct {
	CreatedAt time.Time               `json:"created_at"`
	Response  *models.ReviewsResponse `json:"response"`
}

// Redis is a Store shared by every server replica using the same Redis.
// Redis errors degrade to cache misses.
type Redis struct {
	settings
	client *redis.Client
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, opts ...Option) *Redis {
	return &Redis{settings: newSettings(opts), client: client}
}

// NewRedisFromURL connects to rawURL (redis://[:pass@]host:port/db) and
// checks the connection.
func NewRedisFromURL(ctx context.Context, rawURL string, opts ...Option) (*Redis, error) {
	o, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	client := redis.NewClient(o)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping redis: %w", err)
	}
	return NewRedis(client, opts...), nil
}

// Get returns the cached response for key if it is younger than maxAge.
func (r *Redis) Get(ctx context.Context, key string, maxAge time.Duration) (*models.ReviewsResponse, bool) {
	if maxAge <= 0 {
		return nil, false
	}

	b, err := r.client.Get(ctx, KeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("redis cache lookup failed", "key", key, "error", err)
		}
		r.onEvent("miss")
		return nil, false
	}

	var e redisEntry
	if err := json.Unmarshal(b, &e); err != nil || e.Response == nil {
		slog.Warn("redis cache entry unreadable", "key", key, "error", err)
		r.onEvent("miss")
		return nil, false
	}
	if r.now().Sub(e.CreatedAt) > maxAge {
		r.onEvent("miss")
		return nil, false
	}
	r.onEvent("hit")
	return e.Response, true
}

// Set stores resp under key with the configured TTL.
func (r *Redis) Set(ctx context.Context, key string, resp *models.ReviewsResponse) {
	if resp == nil {
		return
	}
	b, err := json.Marshal(redisEntry{CreatedAt: r.now(), Response: resp})
	if err != nil {
		slog.Warn("redis cache encode failed", "key", key, "error", err)
		return
	}
	if err := r.client.Set(ctx, KeyPrefix+key, b, r.ttl).Err(); err != nil {
		slog.Warn("redis cache store failed", "key", key, "error", err)
		return
	}
	r.onEvent("set")
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
