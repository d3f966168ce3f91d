package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/use-agent/tgsearch/api"
	"github.com/use-agent/tgsearch/bot"
	"github.com/use-agent/tgsearch/config"
	"github.com/use-agent/tgsearch/engine"
	"github.com/use-agent/tgsearch/render"
	"github.com/use-agent/tgsearch/scraper"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("tgsearch starting",
		"http", cfg.Server.Enabled,
		"bot", cfg.Bot.Enabled,
		"maxConcurrent", cfg.Scraper.MaxConcurrent,
		"searchTimeout", cfg.Scraper.SearchTimeout,
	)

	// ── 3. Initialise scraper (browsers launch per search) ──────────
	sessions := scraper.NewSessionManager(cfg.Browser)
	sc, err := scraper.NewScraper(cfg.Scraper, sessions)
	if err != nil {
		slog.Error("failed to initialise scraper", "error", err)
		os.Exit(1)
	}

	// ── 3b. Initialise multi-engine dispatcher ─────────────────────
	if cfg.Engine.EnableMultiEngine {
		httpEngine, err := engine.NewHTTPEngine(engine.HTTPOptions{
			UserAgent:      cfg.Browser.UserAgent,
			AcceptLanguage: cfg.Browser.AcceptLanguage,
			Proxy:          cfg.Browser.Proxy,
			Timeout:        cfg.Engine.HTTPTimeout,
		})
		if err != nil {
			slog.Error("failed to initialise http engine", "error", err)
			os.Exit(1)
		}
		// sc.Render bypasses the dispatcher; engine/ never imports scraper/.
		rodEngine := engine.NewRodEngine(sc.Render)

		engines := []engine.Engine{httpEngine, rodEngine}
		memory := engine.NewDomainMemory(cfg.Engine.MemoryTTL)
		accept := func(r *engine.FetchResult) bool { return sc.Accepts(r.HTML) }
		sc.SetDispatcher(engine.NewDispatcher(engines, accept, memory))
		slog.Info("multi-engine dispatcher enabled", "engines", len(engines))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 4. Start HTTP server ────────────────────────────────────────
	var srv *http.Server
	if cfg.Server.Enabled {
		router := api.NewRouter(sc, render.New(), cfg, time.Now())
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv = &http.Server{
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
	}

	// ── 5. Start Telegram bot ───────────────────────────────────────
	botDone := make(chan struct{})
	if cfg.Bot.Enabled {
		b, err := bot.NewFromConfig(cfg.Bot, sc)
		if err != nil {
			slog.Error("failed to initialise telegram bot", "error", err)
			os.Exit(1)
		}
		if err := b.RegisterCommands(); err != nil {
			slog.Warn("failed to register bot commands", "error", err)
		}
		go func() {
			defer close(botDone)
			if err := b.Start(ctx); err != nil {
				slog.Error("telegram bot stopped", "error", err)
			}
		}()
	} else {
		close(botDone)
	}

	// ── 6. Graceful shutdown ────────────────────────────────────────
	<-ctx.Done()
	slog.Info("shutdown signal received")

	// Searches in flight see the canceled context and kill their browsers.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server forced shutdown", "error", err)
		} else {
			slog.Info("HTTP server drained gracefully")
		}
	}

	select {
	case <-botDone:
	case <-shutdownCtx.Done():
		slog.Warn("telegram bot did not stop in time")
	}

	slog.Info("tgsearch stopped")
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
