package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/serpwalk/api"
	"github.com/use-agent/serpwalk/api/handler"
	"github.com/use-agent/serpwalk/app"
	"github.com/use-agent/serpwalk/cache"
	"github.com/use-agent/serpwalk/config"
	"github.com/use-agent/serpwalk/sink"
	"github.com/use-agent/serpwalk/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()
	if path := os.Getenv("SERPWALK_CONFIG"); path != "" {
		if err := config.LoadFile(path, cfg); err != nil {
			fmt.Fprintln(os.Stderr, "serpwalk-api:", err)
			os.Exit(1)
		}
	}
	if os.Getenv("SERPWALK_FORMAT") == "" && os.Getenv("SERPWALK_OUTPUT") == "" {
		cfg.Sink.Format = "sqlite"
		cfg.Sink.Path = "serpwalk.db"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "serpwalk-api:", err)
		os.Exit(1)
	}

	// ── 2. Initialise structured logging ────────────────────────────
	app.InitLogger(cfg.Log, os.Stdout)
	slog.Info("serpwalk-api starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"engine", cfg.Engine.Mode,
		"store", cfg.Sink.Path,
	)
	if cfg.Auth.Enabled && len(cfg.Auth.APIKeys) == 0 {
		slog.Warn("auth enabled without API keys, the API is open")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── 3. Record store ─────────────────────────────────────────────
	store, err := sink.Open(cfg.Sink.Format, cfg.Sink.Path)
	if err != nil {
		slog.Error("failed to open record store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	var lister handler.RecordLister
	if db, ok := store.(*sink.SQLite); ok {
		lister = db
	}

	// ── 4. Session and pipeline (launches browser) ──────────────────
	rt, err := app.Build(ctx, cfg)
	if err != nil {
		slog.Error("failed to start session", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	// ── 5. Batch worker ─────────────────────────────────────────────
	queue := handler.NewJobQueue(rt.Pipeline, store, webhook.New(cfg.Webhook.URL, cfg.Webhook.Secret), cfg.Webhook.Secret, 16)
	queue.Start(ctx)

	// ── 6. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(cfg, api.Deps{
		Runner:        rt.Pipeline,
		Queue:         queue,
		Store:         store,
		Records:       lister,
		Cache:         cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL),
		Authenticated: rt.Authenticated,
		StartTime:     time.Now(),
	})

	// ── 7. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// ── 8. Graceful shutdown ────────────────────────────────────────
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		slog.Error("HTTP server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// rt.Close() and store.Close() run via defer.
	slog.Info("serpwalk-api stopped")
}
