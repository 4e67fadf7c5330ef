package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPObserver records finished requests. *metrics.Recorder satisfies it.
type HTTPObserver interface {
	ObserveHTTP(route, method string, status int, dur time.Duration)
}

// Metrics reports every request under its route template so that path
// parameters such as job ids do not explode label cardinality.
func Metrics(obs HTTPObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		obs.ObserveHTTP(route, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}
