package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/reviewscope/config"
	"github.com/use-agent/reviewscope/models"
)

// Session is one running browser process bound to a profile directory,
// with a single page. A Session is used by one invocation at a time.
type Session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	profileDir string

	stealthMu      sync.Mutex
	stealthVersion string

	closeOnce sync.Once
	closeErr  error
}

// Launch starts a browser bound to profileDir and opens its page.
//
// Launch is bounded by cfg.LaunchTimeout. Every failure is reported as
// BROWSER_LAUNCH_FAILED and is not retried; partially started processes
// are killed before returning.
func Launch(ctx context.Context, cfg config.BrowserConfig, profileDir string) (*Session, error) {
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeLaunch, "failed to create profile directory", err)
	}

	l := launcher.New().
		Context(ctx).
		UserDataDir(profileDir).
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox).
		Leakless(true)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.DefaultProxy != "" {
		l = l.Proxy(cfg.DefaultProxy)
	}

	// ── Automation fingerprint flags ─────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("start-maximized"))
	l.Set(flags.Flag("window-size"), "1920,1080")
	l.Set(flags.Flag("disable-features"), "TranslateUI")
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("no-default-browser-check"))

	timeout := cfg.LaunchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	launchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type launched struct {
		url string
		err error
	}
	done := make(chan launched, 1)
	go func() {
		u, err := l.Launch()
		done <- launched{u, err}
	}()

	var controlURL string
	select {
	case res := <-done:
		if res.err != nil {
			kill(l)
			return nil, models.NewScrapeError(models.ErrCodeLaunch, "failed to launch browser", res.err)
		}
		controlURL = res.url
	case <-launchCtx.Done():
		kill(l)
		// The process may still come up after the deadline.
		go func() {
			if res := <-done; res.err == nil {
				kill(l)
			}
		}()
		return nil, models.NewScrapeError(models.ErrCodeLaunch,
			fmt.Sprintf("browser did not start within %s", timeout), launchCtx.Err())
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		kill(l)
		return nil, models.NewScrapeError(models.ErrCodeLaunch, "failed to connect to browser", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		if cerr := browser.Close(); cerr != nil {
			kill(l)
		}
		return nil, models.NewScrapeError(models.ErrCodeLaunch, "failed to open page", err)
	}

	slog.Debug("browser session started", "profile", profileDir, "pid", l.PID())

	return &Session{
		launcher:   l,
		browser:    browser,
		page:       page,
		profileDir: profileDir,
	}, nil
}

// Page returns the session's page.
func (s *Session) Page() *rod.Page {
	return s.page
}

// Close terminates the page, the browser and its process. It is safe to
// call more than once; later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.page != nil {
			if err := s.page.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close page: %w", err))
			}
		}
		browserClosed := false
		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close browser: %w", err))
			} else {
				browserClosed = true
			}
		}
		// A browser that refused to close still holds the profile
		// directory; its process is killed instead.
		if !browserClosed && s.launcher != nil {
			kill(s.launcher)
		}
		s.closeErr = errors.Join(errs...)
		if s.closeErr != nil {
			slog.Debug("browser session closed with errors", "profile", s.profileDir, "error", s.closeErr)
		}
	})
	return s.closeErr
}

// kill terminates the launched process. Launcher.Kill always pauses for a
// second first, so it is skipped when no process was ever started.
func kill(l *launcher.Launcher) {
	if l.PID() == 0 {
		return
	}
	l.Kill()
}

// WithSession launches a session, runs fn on it and always closes it,
// whether fn returns normally, fails or panics.
func WithSession(ctx context.Context, cfg config.BrowserConfig, profileDir string, fn func(*Session) error) error {
	sess, err := Launch(ctx, cfg, profileDir)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			slog.Warn("browser session teardown failed", "profile", profileDir, "error", cerr)
		}
	}()
	return fn(sess)
}
