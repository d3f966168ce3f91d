package scraper

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/tgsearch/engine"
	"github.com/use-agent/tgsearch/models"
)

// Search returns up to MaxResults deduplicated records for query. page is
// 1-based; values below 1 mean the first page. No matches is an empty slice
// and a nil error. Failures are *models.DriverInitializationError or
// *models.ScrapeError.
func (s *Scraper) Search(ctx context.Context, query string, page int) ([]models.ResultRecord, error) {
	res, err := s.Lookup(ctx, query, page)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

// Lookup is Search with fetch details attached.
//
// Lifecycle:
//
//  1. Validate        – trim, reject empty queries
//  2. Deadline        – one timeout covers queueing, launch, render and parse
//  3. Fetch           – dispatcher if configured, otherwise Render
//  4. Parse           – selector match, dedup by link, truncate
func (s *Scraper) Lookup(ctx context.Context, query string, page int) (*SearchResult, error) {
	start := time.Now()

	// ── 1. Validate ───────────────────────────────────────────────────
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "query must not be empty", nil)
	}
	if page < 1 {
		page = 1
	}

	// ── 2. Deadline ───────────────────────────────────────────────────
	if s.cfg.SearchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SearchTimeout)
		defer cancel()
	}

	target := BuildURL(s.cfg.BaseURL, query, page)
	slog.Info("search started", "query", query, "page", page, "url", target)

	// ── 3. Fetch ──────────────────────────────────────────────────────
	fetched, err := s.fetch(ctx, target)
	if err != nil {
		slog.Warn("search failed", "query", query, "page", page, "error", err,
			"elapsed", time.Since(start).Round(time.Millisecond))
		return nil, err
	}

	// ── 4. Parse ──────────────────────────────────────────────────────
	records, err := ParseResults(fetched.HTML, s.selector, s.cfg.MaxResults)
	if err != nil {
		return nil, err
	}

	slog.Info("search finished",
		"query", query,
		"page", page,
		"results", len(records),
		"engine", fetched.EngineName,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	pageURL := fetched.FinalURL
	if pageURL == "" {
		pageURL = target
	}
	return &SearchResult{
		URL:        pageURL,
		Query:      query,
		Page:       page,
		Records:    records,
		EngineUsed: fetched.EngineName,
	}, nil
}

// fetch returns the page for target. EngineName is empty when the
// dispatcher is off.
func (s *Scraper) fetch(ctx context.Context, target string) (*engine.FetchResult, error) {
	if s.dispatcher == nil {
		markup, err := s.Render(ctx, target)
		if err != nil {
			return nil, err
		}
		return &engine.FetchResult{HTML: markup, FinalURL: target}, nil
	}

	result, err := s.dispatcher.Dispatch(ctx, &engine.FetchRequest{
		URL:     target,
		Timeout: s.cfg.SearchTimeout,
	})
	if err != nil {
		return nil, categorizeError(err, "all fetch engines failed")
	}
	return result, nil
}

// Render fetches target in a fresh browser session and returns the rendered
// markup. It bypasses the dispatcher so the browser engine can call it.
//
// The session is released on every path. If ctx expires while the browser is
// busy, a watchdog releases the session immediately, which kills the process
// and unblocks any pending CDP call.
func (s *Scraper) Render(ctx context.Context, target string) (string, error) {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return "", categorizeError(err, "timed out waiting for a free browser slot")
	}
	defer s.slots.Release(1)

	s.active.Add(1)
	defer s.active.Add(-1)

	sess, err := s.sessions.Acquire(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", models.NewScrapeError(models.ErrCodeTimeout, "search deadline reached while launching browser", err)
		}
		return "", err
	}
	defer s.sessions.Release(sess)

	stop := context.AfterFunc(ctx, func() {
		slog.Warn("search deadline reached, terminating browser session", "strategy", sess.Strategy)
		s.sessions.Release(sess)
	})
	defer stop()

	markup, err := sess.Render(ctx, target, s.renderOptions())
	if err != nil {
		if ctx.Err() != nil {
			return "", models.NewScrapeError(models.ErrCodeTimeout, "search deadline reached while rendering", err)
		}
		return "", categorizeError(err, "rendering search page failed")
	}
	return markup, nil
}
