package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/reviewscope/api"
	"github.com/use-agent/reviewscope/api/handler"
	"github.com/use-agent/reviewscope/cache"
	"github.com/use-agent/reviewscope/config"
	"github.com/use-agent/reviewscope/extract"
	"github.com/use-agent/reviewscope/metrics"
	"github.com/use-agent/reviewscope/scraper"
	"github.com/use-agent/reviewscope/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	if err := config.LoadEnvFile(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	config.InitLogger(cfg.Log, os.Stdout)
	slog.Info("reviewscope starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxSessions", cfg.Browser.MaxSessions,
		"profileDir", cfg.Browser.ProfileDir,
	)

	// ── 3. Selector chains ──────────────────────────────────────────
	selectors := extract.DefaultSelectors()
	if cfg.Scraper.SelectorsFile != "" {
		loaded, err := extract.LoadSelectors(cfg.Scraper.SelectorsFile)
		if err != nil {
			slog.Error("failed to load selectors", "file", cfg.Scraper.SelectorsFile, "error", err)
			os.Exit(1)
		}
		selectors = loaded
		slog.Info("selector overrides loaded", "file", cfg.Scraper.SelectorsFile)
	}

	// ── 4. Metrics ──────────────────────────────────────────────────
	var recorder *metrics.Recorder
	var opts []scraper.Option
	var cacheOpts []cache.Option
	if cfg.Metrics.Enabled {
		recorder = metrics.New()
		opts = append(opts, scraper.WithObserver(recorder))
		cacheOpts = append(cacheOpts, cache.WithEventHook(recorder.ObserveCache))
	}

	// ── 5. Scraper (sessions are launched per invocation) ──────────
	sc, err := scraper.NewScraper(cfg.Browser, cfg.Scraper, selectors, opts...)
	if err != nil {
		slog.Error("failed to initialise scraper", "error", err)
		os.Exit(1)
	}

	// ── 6. Cache, batch store, webhooks ─────────────────────────────
	cacheOpts = append(cacheOpts, cache.WithTTL(cfg.Cache.TTL))
	var cc cache.Store
	if cfg.Cache.RedisURL != "" {
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rc, err := cache.NewRedisFromURL(pingCtx, cfg.Cache.RedisURL, cacheOpts...)
		cancel()
		if err != nil {
			slog.Error("failed to connect result cache", "error", err)
			os.Exit(1)
		}
		cc = rc
		slog.Info("result cache: redis")
	} else {
		cc = cache.New(cfg.Cache.MaxEntries, cacheOpts...)
	}
	defer cc.Close()
	batches := handler.NewBatchStore(cfg.Batch.Retention)
	defer batches.Close()

	// ── 7. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(cfg, api.Deps{
		Scraper:  sc,
		Batches:  batches,
		Cache:    cc,
		Metrics:  recorder,
		Notifier: webhook.NewNotifier(),
	}, startTime)

	// ── 8. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 9. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// Browser sessions still running (batch jobs) get their own grace period.
	sessCtx, sessCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer sessCancel()
	if err := sc.Shutdown(sessCtx); err != nil {
		slog.Warn("browser sessions still running at exit", "error", err)
	}

	slog.Info("reviewscope stopped", "uptime", sc.Uptime().Round(time.Second).String())
}
