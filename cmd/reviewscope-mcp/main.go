package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/reviewscope/api/handler"
	"github.com/use-agent/reviewscope/models"
)

// apiClient talks to a running reviewscope HTTP server.
type apiClient struct {
	baseURL      string
	apiKey       string
	http         *http.Client
	pollInterval time.Duration
}

func main() {
	apiURL := os.Getenv("REVIEWSCOPE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("REVIEWSCOPE_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "REVIEWSCOPE_API_KEY is not set; requests will fail if the server requires auth")
	}

	client := &apiClient{
		baseURL:      strings.TrimRight(apiURL, "/"),
		apiKey:       apiKey,
		http:         &http.Client{Timeout: 11 * time.Minute},
		pollInterval: 2 * time.Second,
	}

	if err := server.ServeStdio(newServer(client)); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(client *apiClient) *server.MCPServer {
	s := server.NewMCPServer(
		"reviewscope",
		handler.Version,
		server.WithToolCapabilities(false),
	)

	scrapeTool := mcp.NewTool("scrape_reviews",
		mcp.WithDescription("Open a business-listing page (maps, directories) in a real browser, switch to its reviews tab, scroll until every review is loaded and return the reviews with author, rating, text, date, photos and the owner's reply, plus the page's overall rating and declared review count."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The listing page URL"),
		),
		mcp.WithNumber("timeout",
			mcp.Description("Overall deadline in seconds (default: 180, min: 10, max: 600)"),
		),
		mcp.WithNumber("max_age",
			mcp.Description("Accept a cached result younger than this many milliseconds (default: 0, no cache)"),
		),
	)
	s.AddTool(scrapeTool, client.handleScrapeReviews)

	batchTool := mcp.NewTool("batch_scrape_reviews",
		mcp.WithDescription("Scrape reviews from several listing pages. Pages are processed in parallel up to the server's browser session limit; a failed page does not affect the others."),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description("Listing page URLs (at most 50)"),
		),
		mcp.WithNumber("timeout",
			mcp.Description("Per-page deadline in seconds (default: 180)"),
		),
	)
	s.AddTool(batchTool, client.handleBatchScrape)

	return s
}

// post sends a JSON POST to the API and returns the response body.
func (c *apiClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *apiClient) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.do(req)
}

func (c *apiClient) do(req *http.Request) ([]byte, error) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// pollBatch polls a batch job until it leaves "processing" or ctx ends.
func (c *apiClient) pollBatch(ctx context.Context, id string) (*models.BatchStatusResponse, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			body, err := c.get(ctx, "/api/v1/reviews/batch/"+id)
			if err != nil {
				return nil, err
			}
			var status models.BatchStatusResponse
			if err := json.Unmarshal(body, &status); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}
			if status.Status != "processing" {
				return &status, nil
			}
		}
	}
}

func (c *apiClient) handleScrapeReviews(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url is required"), nil
	}

	payload := models.ReviewsRequest{
		URL:     url,
		Timeout: request.GetInt("timeout", 0),
		MaxAge:  request.GetInt("max_age", 0),
	}
	body, err := c.post(ctx, "/api/v1/reviews", payload)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var resp models.ReviewsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
	}
	if !resp.Success {
		return mcp.NewToolResultError(errorText(resp.Error)), nil
	}

	return mcp.NewToolResultText(formatResult(&resp)), nil
}

func (c *apiClient) handleBatchScrape(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	urls, err := request.RequireStringSlice("urls")
	if err != nil {
		return mcp.NewToolResultError("urls is required and must be an array of strings"), nil
	}

	body, err := c.post(ctx, "/api/v1/reviews/batch", models.BatchRequest{
		URLs:    urls,
		Timeout: request.GetInt("timeout", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("batch request failed: %v", err)), nil
	}

	var created models.BatchResponse
	if err := json.Unmarshal(body, &created); err != nil || created.ID == "" {
		var failed models.ReviewsResponse
		if json.Unmarshal(body, &failed) == nil && failed.Error != nil {
			return mcp.NewToolResultError(errorText(failed.Error)), nil
		}
		return mcp.NewToolResultError("batch job creation failed"), nil
	}

	status, err := c.pollBatch(ctx, created.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("polling batch job failed: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Batch %s: %s (%d/%d completed)\n\n", status.ID, status.Status, status.Completed, status.Total)
	for i, r := range status.Results {
		if r == nil {
			fmt.Fprintf(&sb, "--- [%d] no result ---\n\n", i+1)
			continue
		}
		if !r.Success {
			fmt.Fprintf(&sb, "--- [%d] %s FAILED: %s ---\n\n", i+1, r.SourceURL, errorText(r.Error))
			continue
		}
		fmt.Fprintf(&sb, "--- [%d] ---\n%s\n\n", i+1, formatResult(r))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// formatResult renders a short summary line followed by the reviews JSON.
func formatResult(resp *models.ReviewsResponse) string {
	var sb strings.Builder
	data := resp.Data
	fmt.Fprintf(&sb, "Source: %s\n", resp.SourceURL)
	if data.Rating != nil {
		fmt.Fprintf(&sb, "Rating: %.1f\n", *data.Rating)
	} else {
		sb.WriteString("Rating: unknown\n")
	}
	fmt.Fprintf(&sb, "Reviews: %d extracted, %d declared by the page\n", len(data.Reviews), data.ReviewCount)
	if d := resp.Diagnostics; d != nil && d.Convergence != "" && d.Convergence != "converged" {
		fmt.Fprintf(&sb, "Note: scrolling %s after %d rounds, the list may be incomplete\n", d.Convergence, d.ScrollRounds)
	}

	reviews, err := json.MarshalIndent(data.Reviews, "", "  ")
	if err != nil {
		return sb.String()
	}
	sb.WriteString("\n")
	sb.Write(reviews)
	return sb.String()
}

func errorText(e *models.ErrorDetail) string {
	if e == nil {
		return "scrape failed"
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}
