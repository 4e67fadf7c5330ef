package models

// ReviewsResponse is the response for POST /api/v1/reviews.
type ReviewsResponse struct {
	// Success indicates whether the invocation produced a result. A
	// successful response may still carry zero reviews.
	Success bool `json:"success"`

	// SourceURL echoes the requested page.
	SourceURL string `json:"source_url,omitempty"`

	// Data is the extraction result, present only when Success is true.
	Data *ExtractionResult `json:"data,omitempty"`

	// Diagnostics reports selector hit rates and scroll convergence.
	Diagnostics *Diagnostics `json:"diagnostics,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// CacheStatus is "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent on a request.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// ScrapeMs is the time spent inside the browser pipeline.
	ScrapeMs int64 `json:"scrape_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status       string       `json:"status"` // "healthy" or "degraded"
	Uptime       string       `json:"uptime"`
	SessionStats SessionStats `json:"session_stats"`
	Version      string       `json:"version"`
}

// SessionStats reports browser session utilisation.
type SessionStats struct {
	MaxSessions    int `json:"max_sessions"`
	ActiveSessions int `json:"active_sessions"`
}
