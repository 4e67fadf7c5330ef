package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/use-agent/reviewscope/extract"
	"github.com/use-agent/reviewscope/models"
	"github.com/use-agent/reviewscope/simhash"
)

// ScrapeReviews extracts every review loaded on the listing page at rawURL.
//
// Lifecycle (numbered steps match the inline comments):
//
//  1. Validate      – absolute http(s) URL only
//  2. Deadline      – InvocationTimeout over everything below
//  3. Slot          – one profile directory per concurrent session
//  4. Launch        – fresh browser; DEFER teardown on every exit path
//  5. Stealth       – fingerprint overrides, before any navigation
//  6. Interception  – block fonts, media and trackers
//  7. Navigate      – wait for network idle, hard fail on timeout
//  8. Reviews tab   – best effort
//  9. Scroll        – until the review count converges or budget ends
//  10. Snapshot     – rendered DOM
//  11. Extract      – fallback chains, then dedup
//
// The outcome is binary: a complete result (possibly with zero reviews)
// or an error whose code names the stage that failed.
func (s *Scraper) ScrapeReviews(ctx context.Context, rawURL string) (*models.ExtractionResult, *models.Diagnostics, error) {
	start := time.Now()

	// ── 1. Validate ───────────────────────────────────────────────────
	target, err := ValidateURL(rawURL)
	if err != nil {
		s.observe(err, start, nil, nil)
		return nil, nil, err
	}

	// ── 2. Overall deadline ───────────────────────────────────────────
	if s.scraperCfg.InvocationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.scraperCfg.InvocationTimeout)
		defer cancel()
	}

	// ── 3. Acquire a profile slot ─────────────────────────────────────
	slot, err := s.acquire(ctx)
	if err != nil {
		s.observe(err, start, nil, nil)
		return nil, nil, err
	}
	defer s.release(slot)

	var (
		result *models.ExtractionResult
		diag   models.Diagnostics
	)

	// ── 4. Launch; teardown is guaranteed by WithSession ──────────────
	err = WithSession(ctx, s.browserCfg, s.profilePath(slot), func(sess *Session) error {
		page := sess.Page()

		// ── 5. Stealth before the first navigation ────────────────────
		if serr := sess.ApplyStealth(s.stealth); serr != nil {
			slog.Warn("stealth profile not applied, continuing without it", "error", serr)
		}

		// ── 6. Request interception ───────────────────────────────────
		router := s.blocker.install(page)
		if router != nil {
			defer func() { _ = router.Stop() }()
		}

		// ── 7. Navigate ───────────────────────────────────────────────
		if err := s.navigator.Open(ctx, page, target.String(), router != nil); err != nil {
			return err
		}

		// ── 8. Reviews tab ────────────────────────────────────────────
		activated, err := s.navigator.ActivateReviewsTab(ctx, page)
		if err != nil {
			return err
		}

		// ── 9. Scroll until convergence ───────────────────────────────
		outcome := scrollToConvergence(ctx, page, s.scraperCfg, s.containers)
		slog.Debug("scroll finished",
			"url", target.String(),
			"state", outcome.State.String(),
			"rounds", outcome.Rounds,
			"samples", outcome.Samples,
		)
		if outcome.Err != nil {
			return categorizeError(outcome.Err, models.ErrCodeTimeout, "invocation ended while scrolling")
		}
		if err := pause(ctx, s.scraperCfg.FinalSettleDelay); err != nil {
			return categorizeError(err, models.ErrCodeTimeout, "invocation ended before extraction")
		}

		// ── 10. Snapshot ──────────────────────────────────────────────
		rawHTML, err := snapshot(ctx, page)
		if err != nil {
			return err
		}

		// ── 11. Extract and assemble ──────────────────────────────────
		ex, err := s.extractor.Extract(rawHTML, target.String())
		if err != nil {
			return models.NewScrapeError(models.ErrCodeEvaluation, "failed to parse page snapshot", err)
		}
		result = extract.Assemble(ex)

		diag = ex.Diagnostics
		diag.TabActivated = activated
		diag.Convergence = outcome.State.String()
		diag.ScrollRounds = outcome.Rounds
		if router != nil {
			slog.Debug("requests blocked", "total", s.blocker.blocked.Load())
		}
		return nil
	})
	if err != nil {
		// Whatever stage noticed it, an expired invocation is a timeout.
		if ctxErr := ctx.Err(); ctxErr != nil && models.ErrorCode(err) != models.ErrCodeTimeout {
			err = categorizeError(ctxErr, models.ErrCodeTimeout, "invocation deadline exceeded")
		}
		slog.Warn("review scrape failed",
			"url", target.String(),
			"code", models.ErrorCode(err),
			"elapsed", time.Since(start),
			"error", err,
		)
		s.observe(err, start, nil, nil)
		return nil, nil, err
	}

	s.checkLayout(target.Hostname(), diag.LayoutFingerprint)

	slog.Info("reviews scraped",
		"url", target.String(),
		"reviews", len(result.Reviews),
		"containers", diag.Containers,
		"duplicates", diag.Duplicates,
		"defaultedRatings", diag.DefaultedRatings,
		"convergence", diag.Convergence,
		"rounds", diag.ScrollRounds,
		"tab", diag.TabActivated,
		"elapsed", time.Since(start),
	)
	s.observe(nil, start, result, &diag)
	return result, &diag, nil
}

// snapshot returns the rendered DOM.
func snapshot(ctx context.Context, page *rod.Page) (string, error) {
	html, err := page.Context(ctx).HTML()
	if err != nil {
		if ctx.Err() != nil {
			return "", categorizeError(ctx.Err(), models.ErrCodeTimeout, "invocation ended during snapshot")
		}
		return "", models.NewScrapeError(models.ErrCodeEvaluation, "failed to read rendered page", err)
	}
	return html, nil
}

// checkLayout warns when the review markup of host moved far from the
// previous run, which usually means the site changed its classes.
func (s *Scraper) checkLayout(host, hexFP string) {
	if hexFP == "" {
		return
	}
	fp, err := simhash.ParseHex(hexFP)
	if err != nil {
		return
	}
	if dist, drifted := s.layouts.Observe(host, fp); drifted {
		slog.Warn("review markup changed since last run, selectors may need updating",
			"host", host,
			"distance", dist,
			"fingerprint", hexFP,
		)
	}
}

func (s *Scraper) observe(err error, start time.Time, res *models.ExtractionResult, diag *models.Diagnostics) {
	if s.observer == nil {
		return
	}
	outcome, reviews, convergence := "success", 0, ""
	if err != nil {
		outcome = models.ErrorCode(err)
		if outcome == "" {
			outcome = models.ErrCodeInternal
		}
	}
	if res != nil {
		reviews = len(res.Reviews)
	}
	if diag != nil {
		convergence = diag.Convergence
	}
	s.observer.ObserveScrape(outcome, time.Since(start), reviews, convergence)
}

// categorizeError maps context errors to a timeout and wraps anything
// else with fallback. Existing ScrapeErrors pass through unchanged.
func categorizeError(err error, fallback, msg string) *models.ScrapeError {
	var se *models.ScrapeError
	switch {
	case errors.As(err, &se):
		return se
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(fallback, msg, err)
	}
}
