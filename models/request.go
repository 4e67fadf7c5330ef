package models

// ReviewsRequest is the payload for POST /api/v1/reviews.
type ReviewsRequest struct {
	// URL is the business-listing page to scrape. Required.
	URL string `json:"url" binding:"required,url"`

	// Timeout is the maximum duration in seconds for the whole invocation
	// (launch + navigation + scrolling + extraction).
	// Default: 180. Max: 600.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=10,max=600"`

	// MaxAge enables the result cache: a cached result younger than
	// MaxAge milliseconds is returned without launching a browser.
	// Default: 0 (no caching).
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`
}

// Defaults applies default values to unset fields.
func (r *ReviewsRequest) Defaults() {
	if r.Timeout == 0 {
		r.Timeout = 180
	}
}
