package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/tgsearch/config"
)

// WaitPolicy decides how long to wait after navigation for the page's
// client-side search widget to render results.
type WaitPolicy struct {
	// Mode is config.WaitModeFixed or config.WaitModeSelector.
	Mode string

	// Selector is polled for in selector mode.
	Selector string

	// Settle is the fixed delay, or the polling deadline in selector mode.
	Settle time.Duration

	// Grace is waited once the selector first matches.
	Grace time.Duration

	// Poll is the selector polling period.
	Poll time.Duration
}

// probeFunc reports whether the awaited element is present.
type probeFunc func() (bool, error)

// settle blocks according to p. Running out of time in selector mode is not
// an error: the page is read as it is. Only context cancellation is returned.
func settle(ctx context.Context, p WaitPolicy, probe probeFunc) error {
	if p.Mode != config.WaitModeSelector || p.Selector == "" || probe == nil {
		return sleepCtx(ctx, p.Settle)
	}

	poll := p.Poll
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	deadline := time.Now().Add(p.Settle)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		found, err := probe()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			slog.Debug("selector probe failed, retrying", "selector", p.Selector, "error", err)
		}
		if found {
			return sleepCtx(ctx, p.Grace)
		}
		if !time.Now().Before(deadline) {
			slog.Debug("selector did not appear before settle deadline",
				"selector", p.Selector,
				"settle", p.Settle,
			)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
