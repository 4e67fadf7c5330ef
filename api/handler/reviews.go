package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/reviewscope/cache"
	"github.com/use-agent/reviewscope/models"
)

// ReviewScraper is the part of scraper.Scraper the handlers use.
type ReviewScraper interface {
	ScrapeReviews(ctx context.Context, url string) (*models.ExtractionResult, *models.Diagnostics, error)
	Stats() models.SessionStats
}

// Reviews returns a handler for POST /api/v1/reviews.
//
// Flow:
//  1. Parse & validate request, apply defaults.
//  2. Cache lookup when max_age is set.
//  3. ScrapeReviews under the request timeout (records scrape_ms).
//  4. Cache store, fill timing, return 200.
func Reviews(sc ReviewScraper, cc cache.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.ReviewsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ReviewsResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		// ── 2. Cache lookup ─────────────────────────────────────────
		maxAge := time.Duration(req.MaxAge) * time.Millisecond
		cacheKey := cache.Key(req.URL)
		if cc != nil && maxAge > 0 {
			if cached, hit := cc.Get(c.Request.Context(), cacheKey, maxAge); hit {
				cached.CacheStatus = "hit"
				cached.Timing = models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()}
				c.JSON(http.StatusOK, cached)
				return
			}
		}

		// ── 3. Scrape ───────────────────────────────────────────────
		resp := scrapeOne(c.Request.Context(), sc, req.URL, req.Timeout)
		resp.Timing.TotalMs = time.Since(totalStart).Milliseconds()
		if !resp.Success {
			c.JSON(statusFor(resp.Error.Code), resp)
			return
		}

		// ── 4. Cache store ──────────────────────────────────────────
		if cc != nil && maxAge > 0 {
			cc.Set(c.Request.Context(), cacheKey, resp)
			resp.CacheStatus = "miss"
		}

		c.JSON(http.StatusOK, resp)
	}
}

// scrapeOne runs one invocation bounded by timeoutSec and wraps the
// outcome in a response. It never returns nil.
func scrapeOne(ctx context.Context, sc ReviewScraper, url string, timeoutSec int) *models.ReviewsResponse {
	if timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
		defer cancel()
	}

	start := time.Now()
	result, diag, err := sc.ScrapeReviews(ctx, url)
	timing := models.TimingInfo{ScrapeMs: time.Since(start).Milliseconds()}

	if err != nil {
		return &models.ReviewsResponse{
			Success:   false,
			SourceURL: url,
			Error:     models.AsScrapeError(err).ToDetail(),
			Timing:    timing,
		}
	}
	return &models.ReviewsResponse{
		Success:     true,
		SourceURL:   url,
		Data:        result,
		Diagnostics: diag,
		Timing:      timing,
	}
}

// statusFor translates error codes to HTTP status codes.
func statusFor(code string) int {
	switch code {
	case models.ErrCodeTimeout, models.ErrCodeNavigationTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeEvaluation:
		return http.StatusBadGateway // 502
	case models.ErrCodeLaunch:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	default:
		return http.StatusInternalServerError // 500
	}
}

// respondError writes a structured JSON error.
func respondError(c *gin.Context, err error) {
	se := models.AsScrapeError(err)
	c.JSON(statusFor(se.Code), models.ReviewsResponse{
		Success: false,
		Error:   se.ToDetail(),
	})
}
