package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/reviewscope/api/handler"
	"github.com/use-agent/reviewscope/api/middleware"
	"github.com/use-agent/reviewscope/cache"
	"github.com/use-agent/reviewscope/config"
	"github.com/use-agent/reviewscope/metrics"
)

// Deps are the collaborators the routes need. Cache, Metrics and Notifier
// are optional.
type Deps struct {
	Scraper  handler.ReviewScraper
	Batches  *handler.BatchStore
	Cache    cache.Store
	Metrics  *metrics.Recorder
	Notifier handler.Notifier
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → RequestID → Logger → Metrics (if enabled)
//	API:     Auth (if enabled) → RateLimit
//
// Health and /metrics sit outside auth so probes and scrapers always work.
func NewRouter(cfg *config.Config, deps Deps, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(gin.Logger())
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	v1 := r.Group("/api/v1")

	// Health: no auth required.
	v1.GET("/health", handler.Health(deps.Scraper, startTime))

	// Protected group: auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Reviews
	protected.POST("/reviews", handler.Reviews(deps.Scraper, deps.Cache))

	// Batch
	protected.POST("/reviews/batch", handler.PostBatch(deps.Scraper, deps.Batches, deps.Notifier, cfg.Batch.Concurrency))
	protected.GET("/reviews/batch/:id", handler.GetBatch(deps.Batches))

	return r
}
