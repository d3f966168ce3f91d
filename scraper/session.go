package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/tgsearch/config"
	"github.com/use-agent/tgsearch/models"
)

// Strategy names, in priority order.
const (
	StrategyResolve  = "resolve"
	StrategyService  = "service"
	StrategyExecPath = "exec-path"
	StrategyDefault  = "default"
)

var errNoBrowser = errors.New("strategy returned no browser")

// Browser is a launched headless browser owned by exactly one Session.
type Browser interface {
	// Render navigates to target, waits according to opts and returns the
	// rendered markup.
	Render(ctx context.Context, target string, opts RenderOptions) (string, error)

	// Close terminates the browser process.
	Close() error
}

// RenderOptions bounds a single page render.
type RenderOptions struct {
	// NavigationTimeout bounds navigation and the load event.
	NavigationTimeout time.Duration

	Wait WaitPolicy
}

// Session is a single-use handle on a browser process. It is created by
// SessionManager.Acquire and must be handed back with SessionManager.Release.
type Session struct {
	// Strategy is the name of the strategy that produced the browser.
	Strategy string

	browser  Browser
	released sync.Once
	created  time.Time
}

// Render renders target in the session's browser.
func (s *Session) Render(ctx context.Context, target string, opts RenderOptions) (string, error) {
	return s.browser.Render(ctx, target, opts)
}

// SessionManager launches browsers using an ordered list of strategies.
// It holds no per-session state and is safe for concurrent use.
type SessionManager struct {
	resolve    Resolver
	strategies []Strategy
}

// NewSessionManager returns a manager backed by go-rod using the standard
// fallback chain: resolve → service → exec-path → default.
func NewSessionManager(cfg config.BrowserConfig) *SessionManager {
	return NewSessionManagerWith(rodResolver(cfg), rodStrategies(cfg)...)
}

// NewSessionManagerWith returns a manager with a custom resolver and strategy
// list. A nil resolver means no binary is ever resolved.
func NewSessionManagerWith(resolve Resolver, strategies ...Strategy) *SessionManager {
	return &SessionManager{resolve: resolve, strategies: strategies}
}

// Acquire launches a browser. If resolution fails, path-based strategies are
// skipped; strategies without a path are always tried. When nothing works the
// returned error is a *models.DriverInitializationError listing every attempt.
func (m *SessionManager) Acquire(ctx context.Context) (*Session, error) {
	var failures []models.StrategyFailure

	var bin string
	if m.resolve != nil {
		path, err := m.resolve(ctx)
		switch {
		case err != nil:
			slog.Warn("browser binary resolution failed, skipping path-based strategies", "error", err)
			failures = append(failures, models.StrategyFailure{Strategy: StrategyResolve, Err: err})
		case path == "":
			failures = append(failures, models.StrategyFailure{
				Strategy: StrategyResolve,
				Err:      fmt.Errorf("resolver returned an empty path"),
			})
		default:
			slog.Debug("browser binary resolved", "bin", path)
			bin = path
		}
	}

	name, browser, attempts := runStrategies(ctx, bin, m.strategies)
	failures = append(failures, attempts...)
	if browser == nil {
		return nil, &models.DriverInitializationError{Attempts: failures}
	}

	slog.Info("browser session acquired", "strategy", name, "failed_attempts", len(failures))
	return &Session{Strategy: name, browser: browser, created: time.Now()}, nil
}

// Release closes the session's browser. It is safe to call more than once and
// from several goroutines; only the first call does anything. Teardown errors
// and panics are logged and swallowed so they never mask a caller's error.
func (m *SessionManager) Release(s *Session) {
	if s == nil {
		return
	}
	s.released.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Warn("browser teardown panicked", "strategy", s.Strategy, "panic", r)
			}
		}()
		if err := s.browser.Close(); err != nil {
			slog.Warn("browser teardown failed", "strategy", s.Strategy, "error", err)
			return
		}
		slog.Debug("browser session released",
			"strategy", s.Strategy,
			"lifetime", time.Since(s.created).Round(time.Millisecond),
		)
	})
}
