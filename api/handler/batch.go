package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/use-agent/reviewscope/models"
	"github.com/use-agent/reviewscope/webhook"
	"golang.org/x/sync/errgroup"
)

// Notifier delivers batch events. *webhook.Notifier satisfies it.
type Notifier interface {
	DeliverAsync(url, secret string, event *webhook.Event)
}

// BatchStore holds in-flight and finished batch jobs. Finished jobs are
// dropped after the retention period.
type BatchStore struct {
	jobs      sync.Map // id -> *models.BatchJob
	retention time.Duration
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewBatchStore creates a store and starts its expiry loop.
func NewBatchStore(retention time.Duration) *BatchStore {
	if retention <= 0 {
		retention = time.Hour
	}
	s := &BatchStore{retention: retention, stop: make(chan struct{})}
	go s.expiryLoop()
	return s
}

// Close stops the expiry loop.
func (s *BatchStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *BatchStore) put(job *models.BatchJob) { s.jobs.Store(job.ID, job) }

func (s *BatchStore) get(id string) (*models.BatchJob, bool) {
	v, ok := s.jobs.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*models.BatchJob), true
}

func (s *BatchStore) expire(now time.Time) {
	cutoff := now.Add(-s.retention).Unix()
	s.jobs.Range(func(key, value any) bool {
		if value.(*models.BatchJob).CreatedAt < cutoff {
			s.jobs.Delete(key)
		}
		return true
	})
}

func (s *BatchStore) expiryLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			s.expire(now)
		case <-s.stop:
			return
		}
	}
}

// PostBatch returns a handler for POST /api/v1/reviews/batch.
// It validates the request, registers a job and scrapes its URLs in the
// background with at most concurrency invocations in flight.
func PostBatch(sc ReviewScraper, store *BatchStore, notifier Notifier, concurrency int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
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
		if req.Timeout == 0 {
			req.Timeout = 180
		}

		job := &models.BatchJob{
			ID:        "batch-" + uuid.NewString(),
			Status:    "processing",
			Total:     len(req.URLs),
			Results:   make([]*models.ReviewsResponse, len(req.URLs)),
			CreatedAt: time.Now().Unix(),
		}
		store.put(job)

		limit := concurrency
		if sessions := sc.Stats().MaxSessions; sessions > 0 && (limit <= 0 || limit > sessions) {
			limit = sessions
		}
		go runBatch(sc, notifier, job, req, limit)

		c.JSON(http.StatusAccepted, models.BatchResponse{
			ID:     job.ID,
			Status: "processing",
			Total:  job.Total,
		})
	}
}

// GetBatch returns a handler for GET /api/v1/reviews/batch/:id.
func GetBatch(store *BatchStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := store.get(c.Param("id"))
		if !ok {
			respondError(c, models.NewScrapeError(models.ErrCodeNotFound,
				fmt.Sprintf("batch job %q not found", c.Param("id")), nil))
			return
		}
		c.JSON(http.StatusOK, job.Snapshot())
	}
}

// runBatch scrapes every URL of job and records results by index. A
// failed URL never cancels the others.
func runBatch(sc ReviewScraper, notifier Notifier, job *models.BatchJob, req models.BatchRequest, limit int) {
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	var (
		mu     sync.Mutex
		failed int
	)
	for i, u := range req.URLs {
		g.Go(func() error {
			resp := scrapeOne(context.Background(), sc, u, req.Timeout)
			resp.Timing.TotalMs = resp.Timing.ScrapeMs
			if !resp.Success {
				mu.Lock()
				failed++
				mu.Unlock()
			}
			job.Record(i, resp)
			return nil
		})
	}
	_ = g.Wait()

	status := "completed"
	switch {
	case failed == job.Total:
		status = "failed"
	case failed > 0:
		status = "partial"
	}
	job.Finish(status)

	slog.Info("batch job finished",
		"id", job.ID,
		"status", status,
		"failed", failed,
		"total", job.Total,
	)

	if req.WebhookURL != "" && notifier != nil {
		eventType := webhook.EventBatchCompleted
		if status == "failed" {
			eventType = webhook.EventBatchFailed
		}
		snap := job.Snapshot()
		notifier.DeliverAsync(req.WebhookURL, req.WebhookSecret, &webhook.Event{
			Type:      eventType,
			JobID:     job.ID,
			Timestamp: time.Now().Unix(),
			Data:      snap,
		})
	}
}
