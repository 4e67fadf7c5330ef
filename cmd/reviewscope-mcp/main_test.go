package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/reviewscope/models"
)

func callTool(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func okResponse(url string) models.ReviewsResponse {
	rating := 4.7
	return models.ReviewsResponse{
		Success:   true,
		SourceURL: url,
		Data: &models.ExtractionResult{
			Reviews:     []models.ReviewRecord{{ID: "1-0", Author: models.Author{Name: "Олег"}, Rating: 5, Text: "Отличное место"}},
			Rating:      &rating,
			ReviewCount: 42,
		},
		Diagnostics: &models.Diagnostics{Convergence: "exhausted", ScrollRounds: 40},
	}
}

func TestScrapeReviewsTool(t *testing.T) {
	var gotKey string
	var got models.ReviewsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(okResponse(got.URL))
	}))
	defer srv.Close()

	c := &apiClient{baseURL: srv.URL, apiKey: "k", http: srv.Client(), pollInterval: time.Millisecond}
	res, err := c.handleScrapeReviews(context.Background(), callTool("scrape_reviews", map[string]any{
		"url":     "https://example.com/org/1",
		"timeout": 60,
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	text := resultText(t, res)
	assert.Contains(t, text, "Rating: 4.7")
	assert.Contains(t, text, "Reviews: 1 extracted, 42 declared by the page")
	assert.Contains(t, text, "scrolling exhausted after 40 rounds")
	assert.Contains(t, text, "Отличное место")
	assert.Equal(t, "k", gotKey)
	assert.Equal(t, 60, got.Timeout)
}

func TestScrapeReviewsTool_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
		_ = json.NewEncoder(w).Encode(models.ReviewsResponse{
			Error: &models.ErrorDetail{Code: models.ErrCodeTimeout, Message: "scrape exceeded its deadline"},
		})
	}))
	defer srv.Close()
	c := &apiClient{baseURL: srv.URL, http: srv.Client()}

	res, err := c.handleScrapeReviews(context.Background(), callTool("scrape_reviews", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "url is required", resultText(t, res))

	res, err = c.handleScrapeReviews(context.Background(), callTool("scrape_reviews", map[string]any{"url": "https://example.com"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "[SCRAPE_TIMEOUT] scrape exceeded its deadline", resultText(t, res))
}

func TestBatchScrapeTool(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/reviews/batch", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(models.BatchResponse{ID: "batch-1", Status: "processing", Total: 2})
	})
	mux.HandleFunc("GET /api/v1/reviews/batch/batch-1", func(w http.ResponseWriter, r *http.Request) {
		status := models.BatchStatusResponse{ID: "batch-1", Status: "processing", Total: 2}
		if polls.Add(1) > 1 {
			good := okResponse("https://example.com/a")
			status.Status = "partial"
			status.Completed = 2
			status.Results = []*models.ReviewsResponse{&good, {
				SourceURL: "https://example.com/b",
				Error:     &models.ErrorDetail{Code: models.ErrCodeLaunch, Message: "failed to launch browser"},
			}}
		}
		_ = json.NewEncoder(w).Encode(status)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := &apiClient{baseURL: srv.URL, http: srv.Client(), pollInterval: time.Millisecond}
	res, err := c.handleBatchScrape(context.Background(), callTool("batch_scrape_reviews", map[string]any{
		"urls": []any{"https://example.com/a", "https://example.com/b"},
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	text := resultText(t, res)
	assert.Contains(t, text, "Batch batch-1: partial (2/2 completed)")
	assert.Contains(t, text, "Source: https://example.com/a")
	assert.Contains(t, text, "[2] https://example.com/b FAILED: [BROWSER_LAUNCH_FAILED] failed to launch browser")
	assert.GreaterOrEqual(t, polls.Load(), int32(2))
}
