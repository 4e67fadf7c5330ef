// Package webhook notifies callers when a batch of review scrapes is done.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Event types.
const (
	EventBatchCompleted = "batch.completed"
	EventBatchFailed    = "batch.failed"
)

// SignatureHeader carries "sha256=<hex HMAC of the body>" when a secret
// is configured.
const SignatureHeader = "X-Reviewscope-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string `json:"type"`
	JobID     string `json:"job_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether header is a valid signature of body. Receivers
// can use it as-is.
func Verify(secret string, body []byte, header string) bool {
	if !strings.HasPrefix(header, "sha256=") {
		return false
	}
	return hmac.Equal([]byte(Sign(secret, body)), []byte(header))
}

// Notifier delivers events over HTTP with retries.
type Notifier struct {
	client     *http.Client
	newBackOff func() backoff.BackOff
}

// NewNotifier returns a Notifier with a 10s per-attempt timeout that
// retries three times, roughly 1s, 5s and 25s apart.
func NewNotifier() *Notifier {
	return &Notifier{
		client: &http.Client{Timeout: 10 * time.Second},
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.Multiplier = 5
			b.MaxInterval = 30 * time.Second
			b.RandomizationFactor = 0.1
			b.MaxElapsedTime = 0
			return backoff.WithMaxRetries(b, 3)
		},
	}
}

// Deliver sends event once. Any status >= 400 is an error; client errors
// other than 408 and 429 are permanent.
func (n *Notifier) Deliver(ctx context.Context, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("webhook: marshal event: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("webhook: create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Reviewscope-Webhook/1.0")
	if secret != "" {
		req.Header.Set(SignatureHeader, Sign(secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		err := fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}
	return nil
}

// DeliverWithRetry retries Deliver on the notifier's backoff schedule until
// an attempt succeeds, a permanent error occurs, ctx ends or retries run
// out.
func (n *Notifier) DeliverWithRetry(ctx context.Context, url, secret string, event *Event) error {
	attempt := 0
	op := func() error {
		attempt++
		return n.Deliver(ctx, url, secret, event)
	}
	notify := func(err error, next time.Duration) {
		slog.Warn("webhook delivery failed",
			"url", url,
			"event", event.Type,
			"job_id", event.JobID,
			"attempt", attempt,
			"retry_in", next,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(n.newBackOff(), ctx), notify); err != nil {
		slog.Error("webhook delivery gave up",
			"url", url,
			"event", event.Type,
			"job_id", event.JobID,
			"attempts", attempt,
			"error", err,
		)
		return err
	}
	slog.Info("webhook delivered",
		"url", url,
		"event", event.Type,
		"job_id", event.JobID,
		"attempt", attempt,
	)
	return nil
}

// DeliverAsync runs DeliverWithRetry in the background.
func (n *Notifier) DeliverAsync(url, secret string, event *Event) {
	go func() {
		_ = n.DeliverWithRetry(context.Background(), url, secret, event)
	}()
}
