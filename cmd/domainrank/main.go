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

	"github.com/use-agent/domainrank/api"
	"github.com/use-agent/domainrank/config"
	"github.com/use-agent/domainrank/engine"
	"github.com/use-agent/domainrank/pool"
	"github.com/use-agent/domainrank/scheduler"
	"github.com/use-agent/domainrank/scraper"
	"github.com/use-agent/domainrank/store"
	"github.com/use-agent/domainrank/vision"
)

const version = "1.0.0"

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("domainrank starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxActive", cfg.Scheduler.MaxActive,
	)

	// ── 3. Launch browser and build the context pool ────────────────
	session, err := engine.LaunchRodSession(cfg.Browser)
	if err != nil {
		slog.Error("failed to launch browser", "error", err)
		os.Exit(1)
	}
	sessionPool := pool.New(session)
	defer sessionPool.Shutdown()

	// ── 4. Wire workflow, store and scheduler ───────────────────────
	workflow := scraper.New(sessionPool, vision.NewLocator(), cfg.Workflow)
	taskStore := store.New(cfg.Store.TTL)
	sched := scheduler.New(workflow.Run, taskStore, cfg.Scheduler)

	// ── 5. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(sched, sessionPool, taskStore, cfg, startTime, version)

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	httpCtx, cancelHTTP := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelHTTP()
	if err := srv.Shutdown(httpCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// Active scrapes get a generous window; queued ones fail immediately.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancelDrain()
	if err := sched.Drain(drainCtx); err != nil {
		slog.Error("scheduler drain timed out, canceling active tasks", "error", err)
	} else {
		slog.Info("scheduler drained gracefully")
	}

	// sessionPool.Shutdown() runs via defer — closes contexts and Chrome.
	slog.Info("domainrank stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
