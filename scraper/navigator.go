package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/reviewscope/config"
	"github.com/use-agent/reviewscope/models"
	"golang.org/x/text/cases"
)

const (
	// idleWindow is how long the network must stay quiet to count as idle.
	idleWindow = 500 * time.Millisecond

	// clickTimeout bounds a single attempt to click the reviews tab.
	clickTimeout = 5 * time.Second

	candidateSelector = `a, button, [role="tab"]`
)

// Long-lived connections never go idle and would hold the wait open
// until the navigation deadline.
var idleExcludedTypes = []proto.NetworkResourceType{
	proto.NetworkResourceTypeWebSocket,
	proto.NetworkResourceTypeEventSource,
	proto.NetworkResourceTypeMedia,
}

// Navigator loads a listing page and brings its reviews section into view.
type Navigator struct {
	cfg      config.ScraperConfig
	keywords []string // case-folded
	pause    func(ctx context.Context, d time.Duration) error
}

// NewNavigator prepares a Navigator for cfg.ReviewKeywords.
func NewNavigator(cfg config.ScraperConfig) *Navigator {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	keywords := cfg.ReviewKeywords
	if len(keywords) == 0 {
		keywords = config.DefaultReviewKeywords
	}
	return &Navigator{
		cfg:      cfg,
		keywords: nonEmpty(foldAll(keywords)),
		pause:    pause,
	}
}

// ValidateURL accepts absolute http(s) URLs only.
func ValidateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "malformed url", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("url must be absolute http(s), got %q", raw), nil)
	}
	return u, nil
}

// Open navigates page to target and waits until the network is idle,
// bounded by NavigationTimeout. Exceeding it is a hard failure.
//
// With request interception active the idle waiter cannot be used, so the
// wait falls back to DOM stability under the same deadline.
func (n *Navigator) Open(ctx context.Context, page *rod.Page, target string, intercepting bool) error {
	navCtx, cancel := context.WithTimeout(ctx, n.cfg.NavigationTimeout)
	defer cancel()

	p := page.Context(navCtx)

	// The idle waiter must be registered before Navigate or requests
	// started during load are missed.
	var waitIdle func()
	if !intercepting {
		waitIdle = p.WaitRequestIdle(idleWindow, nil, nil, idleExcludedTypes)
	}

	if err := p.Navigate(target); err != nil {
		return n.navigationError(ctx, navCtx, err)
	}

	if waitIdle != nil {
		waitIdle()
	} else if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil && navCtx.Err() == nil {
		slog.Debug("DOM did not settle, continuing", "url", target, "error", err)
	}

	if err := navCtx.Err(); err != nil {
		return n.navigationError(ctx, navCtx, err)
	}
	return nil
}

func (n *Navigator) navigationError(parent, navCtx context.Context, err error) error {
	if parent.Err() != nil {
		return categorizeError(parent.Err(), models.ErrCodeTimeout, "invocation ended during navigation")
	}
	if errors.Is(navCtx.Err(), context.DeadlineExceeded) {
		return models.NewScrapeError(models.ErrCodeNavigationTimeout,
			fmt.Sprintf("page did not reach network idle within %s", n.cfg.NavigationTimeout), err)
	}
	return models.NewScrapeError(models.ErrCodeNavigation, "navigation to target URL failed", err)
}

// ActivateReviewsTab waits for client-side rendering, then clicks the first
// interactive element whose label is a reviews keyword.
//
// A missing tab or a failed click is not an error: the page may already
// show reviews. Only the end of ctx is returned.
func (n *Navigator) ActivateReviewsTab(ctx context.Context, page *rod.Page) (bool, error) {
	if err := n.pause(ctx, n.cfg.SettleDelay); err != nil {
		return false, categorizeError(err, models.ErrCodeTimeout, "invocation ended while page settled")
	}

	p := page.Context(ctx)
	dismissConsentBanners(p)

	res, err := p.Eval(`(sel) => Array.from(document.querySelectorAll(sel))
		.map((el) => (el.innerText || el.textContent || '').trim())`, candidateSelector)
	if err != nil {
		if ctx.Err() != nil {
			return false, categorizeError(ctx.Err(), models.ErrCodeTimeout, "invocation ended while looking for reviews tab")
		}
		slog.Warn("could not list tab candidates", "error", err)
		return false, nil
	}

	arr := res.Value.Arr()
	labels := make([]string, len(arr))
	for i, v := range arr {
		labels[i] = v.Str()
	}

	idx := n.matchTab(labels)
	if idx < 0 {
		slog.Info("reviews tab not found, extracting from current view", "candidates", len(labels))
		return false, nil
	}

	if err := clickCandidate(p, idx); err != nil {
		if ctx.Err() != nil {
			return false, categorizeError(ctx.Err(), models.ErrCodeTimeout, "invocation ended while clicking reviews tab")
		}
		slog.Warn("reviews tab click failed", "label", labels[idx], "error", err)
		return false, nil
	}
	slog.Debug("reviews tab activated", "label", labels[idx])

	if err := n.pause(ctx, n.cfg.TabSettleDelay); err != nil {
		return true, categorizeError(err, models.ErrCodeTimeout, "invocation ended after tab activation")
	}
	return true, nil
}

// matchTab returns the index of the first label that starts with a
// keyword, else the first label containing one, else -1. Prefix matches
// win so "Reviews (120)" beats an earlier "Write a review" button.
func (n *Navigator) matchTab(labels []string) int {
	folded := foldAll(labels)
	for i, l := range folded {
		if l == "" {
			continue
		}
		for _, k := range n.keywords {
			if strings.HasPrefix(l, k) {
				return i
			}
		}
	}
	for i, l := range folded {
		for _, k := range n.keywords {
			if strings.Contains(l, k) {
				return i
			}
		}
	}
	return -1
}

func clickCandidate(p *rod.Page, idx int) error {
	el, err := p.ElementByJS(rod.Eval(`(sel, i) => document.querySelectorAll(sel)[i]`, candidateSelector, idx))
	if err != nil {
		return fmt.Errorf("locate candidate %d: %w", idx, err)
	}
	clickErr := el.Timeout(clickTimeout).Click(proto.InputMouseButtonLeft, 1)
	if clickErr == nil {
		return nil
	}
	slog.Debug("mouse click failed, falling back to element.click()", "error", clickErr)
	if _, err := el.Eval(`() => this.click()`); err != nil {
		return fmt.Errorf("script click: %w", err)
	}
	return nil
}

// dismissConsentBanners removes fixed cookie and consent overlays that
// would swallow the tab click.
func dismissConsentBanners(p *rod.Page) {
	const js = `() => {
		const selectors = [
			'[class*="cookie"]', '[id*="cookie"]',
			'[class*="consent"]', '[id*="consent"]',
			'[class*="gdpr"]', '[id*="gdpr"]',
		];
		let removed = 0;
		for (const sel of selectors) {
			document.querySelectorAll(sel).forEach((el) => {
				const pos = getComputedStyle(el).position;
				if (pos === 'fixed' || pos === 'sticky') {
					el.remove();
					removed++;
				}
			});
		}
		return removed;
	}`
	if res, err := p.Eval(js); err == nil && res.Value.Int() > 0 {
		slog.Debug("consent overlays removed", "count", res.Value.Int())
	}
}

func foldAll(in []string) []string {
	c := cases.Fold()
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(c.String(s))
	}
	return out
}

func nonEmpty(in []string) []string {
	out := in[:0:0]
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// pause sleeps for d or until ctx ends.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
