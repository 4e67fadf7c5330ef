package models

import "sync"

// BatchRequest is the payload for POST /api/v1/reviews/batch.
type BatchRequest struct {
	// URLs is the list of listing pages to scrape. Required.
	URLs []string `json:"urls" binding:"required,min=1,max=50,dive,url"`

	// Timeout is the per-URL invocation timeout in seconds.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=10,max=600"`

	// WebhookURL receives a signed "batch.completed" event when the job
	// finishes.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`

	// WebhookSecret signs the webhook body with HMAC-SHA256.
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// BatchResponse is the immediate response for POST /api/v1/reviews/batch.
type BatchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// BatchStatusResponse is the response for GET /api/v1/reviews/batch/:id.
type BatchStatusResponse struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"`
	Completed int                `json:"completed"`
	Total     int                `json:"total"`
	Results   []*ReviewsResponse `json:"results,omitempty"`
}

// BatchJob tracks an in-progress batch operation.
type BatchJob struct {
	mu        sync.Mutex
	ID        string
	Status    string // "processing", "completed", "failed", "partial"
	Total     int
	Completed int
	Results   []*ReviewsResponse
	CreatedAt int64 // unix timestamp
}

// Record stores the result for URL index idx and bumps the completed count.
func (j *BatchJob) Record(idx int, resp *ReviewsResponse) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Results[idx] = resp
	j.Completed++
}

// Finish sets the terminal status.
func (j *BatchJob) Finish(status string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
}

// Snapshot returns a consistent copy for serialisation.
func (j *BatchJob) Snapshot() BatchStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()
	results := make([]*ReviewsResponse, len(j.Results))
	copy(results, j.Results)
	return BatchStatusResponse{
		ID:        j.ID,
		Status:    j.Status,
		Completed: j.Completed,
		Total:     j.Total,
		Results:   results,
	}
}
