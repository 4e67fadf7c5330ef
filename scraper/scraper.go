package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/use-agent/reviewscope/config"
	"github.com/use-agent/reviewscope/extract"
	"github.com/use-agent/reviewscope/models"
	"github.com/use-agent/reviewscope/simhash"
)

// Observer receives the outcome of every invocation. outcome is "success"
// or an error code.
type Observer interface {
	ObserveScrape(outcome string, elapsed time.Duration, reviews int, convergence string)
}

// Scraper runs review extractions. Each invocation owns a fresh browser
// session on its own profile slot; at most MaxSessions run at once.
// It is safe for concurrent use.
type Scraper struct {
	browserCfg config.BrowserConfig
	scraperCfg config.ScraperConfig

	extractor  *extract.Extractor
	containers []string
	navigator  *Navigator
	blocker    *blocker
	stealth    StealthProfile
	layouts    *simhash.Tracker
	observer   Observer

	slots     chan int
	active    atomic.Int32
	startTime time.Time
}

// Option customises a Scraper.
type Option func(*Scraper)

// WithObserver reports invocation outcomes to o.
func WithObserver(o Observer) Option {
	return func(s *Scraper) { s.observer = o }
}

// WithStealthProfile replaces DefaultStealthProfile.
func WithStealthProfile(p StealthProfile) Option {
	return func(s *Scraper) { s.stealth = p }
}

// NewScraper compiles the selector chains and prepares the profile slots.
// No browser is started until the first invocation.
func NewScraper(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig, selectors extract.Selectors, opts ...Option) (*Scraper, error) {
	ex, err := extract.New(selectors)
	if err != nil {
		return nil, fmt.Errorf("scraper: %w", err)
	}

	if browserCfg.MaxSessions <= 0 {
		browserCfg.MaxSessions = 1
	}
	slots := make(chan int, browserCfg.MaxSessions)
	for i := 0; i < browserCfg.MaxSessions; i++ {
		slots <- i
	}

	s := &Scraper{
		browserCfg: browserCfg,
		scraperCfg: scraperCfg,
		extractor:  ex,
		containers: selectors.ContainerSelectors(),
		navigator:  NewNavigator(scraperCfg),
		blocker:    newBlocker(scraperCfg.BlockedResourceTypes, scraperCfg.BlockAds),
		stealth:    DefaultStealthProfile(),
		layouts:    simhash.NewTracker(simhash.DefaultDriftThreshold),
		slots:      slots,
		startTime:  time.Now(),
	}
	for _, o := range opts {
		o(s)
	}

	slog.Info("scraper ready",
		"maxSessions", browserCfg.MaxSessions,
		"profileDir", browserCfg.ProfileDir,
		"headless", browserCfg.Headless,
	)
	return s, nil
}

// Stats returns a snapshot of session usage.
func (s *Scraper) Stats() models.SessionStats {
	return models.SessionStats{
		MaxSessions:    s.browserCfg.MaxSessions,
		ActiveSessions: int(s.active.Load()),
	}
}

// Uptime reports how long the scraper has existed.
func (s *Scraper) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// Shutdown waits until every running invocation has released its session,
// or ctx ends. Invocations arriving meanwhile wait for it to return.
func (s *Scraper) Shutdown(ctx context.Context) error {
	slog.Info("scraper shutting down: waiting for active sessions", "active", s.active.Load())
	held := make([]int, 0, cap(s.slots))
	defer func() {
		for _, slot := range held {
			s.slots <- slot
		}
	}()
	for len(held) < cap(s.slots) {
		select {
		case slot := <-s.slots:
			held = append(held, slot)
		case <-ctx.Done():
			return fmt.Errorf("scraper: %d sessions still active: %w", cap(s.slots)-len(held), ctx.Err())
		}
	}
	slog.Info("scraper shutdown complete")
	return nil
}

// acquire takes a free profile slot, waiting until one is released or ctx
// ends.
func (s *Scraper) acquire(ctx context.Context) (int, error) {
	select {
	case slot := <-s.slots:
		s.active.Add(1)
		return slot, nil
	case <-ctx.Done():
		return 0, categorizeError(ctx.Err(), models.ErrCodeTimeout, "no browser session became available")
	}
}

func (s *Scraper) release(slot int) {
	s.active.Add(-1)
	s.slots <- slot
}

func (s *Scraper) profilePath(slot int) string {
	return filepath.Join(s.browserCfg.ProfileDir, fmt.Sprintf("slot-%d", slot))
}
