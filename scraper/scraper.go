package scraper

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/andybalholm/cascadia"
	"github.com/use-agent/tgsearch/config"
	"github.com/use-agent/tgsearch/engine"
	"github.com/use-agent/tgsearch/models"
	"golang.org/x/sync/semaphore"
)

// Scraper runs searches against the aggregator site. Every search launches
// and tears down its own browser; the only shared state is the semaphore that
// bounds how many browsers run at once. It is safe for concurrent use.
type Scraper struct {
	sessions   *SessionManager
	cfg        config.ScraperConfig
	selector   cascadia.Selector
	slots      *semaphore.Weighted
	active     atomic.Int32
	dispatcher *engine.Dispatcher
}

// NewScraper validates the selector and returns a Scraper using sessions.
func NewScraper(cfg config.ScraperConfig, sessions *SessionManager) (*Scraper, error) {
	sel, err := CompileSelector(cfg.ResultSelector)
	if err != nil {
		return nil, fmt.Errorf("scraper: invalid result selector %q: %w", cfg.ResultSelector, err)
	}
	if cfg.MaxResults <= 0 || cfg.MaxResults > config.MaxResultsCeiling {
		cfg.MaxResults = config.MaxResultsCeiling
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}

	slog.Info("scraper ready",
		"baseURL", cfg.BaseURL,
		"selector", cfg.ResultSelector,
		"waitMode", cfg.WaitMode,
		"maxConcurrent", cfg.MaxConcurrent,
	)
	return &Scraper{
		sessions: sessions,
		cfg:      cfg,
		selector: sel,
		slots:    semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}, nil
}

// SetDispatcher sets the multi-engine dispatcher. When set, pages are fetched
// through it instead of going straight to the browser.
func (s *Scraper) SetDispatcher(d *engine.Dispatcher) {
	s.dispatcher = d
}

// Accepts reports whether markup contains at least one result anchor. It is
// the dispatcher's criterion for keeping a non-browser engine's page.
func (s *Scraper) Accepts(markup string) bool {
	records, err := ParseResults(markup, s.selector, 1)
	return err == nil && len(records) > 0
}

// Stats returns a snapshot of browser usage.
func (s *Scraper) Stats() models.PoolStats {
	return models.PoolStats{
		MaxSessions:    s.cfg.MaxConcurrent,
		ActiveSessions: int(s.active.Load()),
	}
}

func (s *Scraper) renderOptions() RenderOptions {
	return RenderOptions{
		NavigationTimeout: s.cfg.NavigationTimeout,
		Wait: WaitPolicy{
			Mode:     s.cfg.WaitMode,
			Selector: s.cfg.ResultSelector,
			Settle:   s.cfg.SettleTimeout,
			Grace:    s.cfg.SettleGrace,
			Poll:     s.cfg.PollInterval,
		},
	}
}
