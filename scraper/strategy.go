package scraper

import (
	"context"
	"log/slog"

	"github.com/use-agent/tgsearch/models"
)

// Resolver locates a browser binary, e.g. by asking a driver manager to
// download a known-good revision. It may need the network.
type Resolver func(ctx context.Context) (string, error)

// BuildFunc launches a browser. bin is empty for strategies that do not need
// a resolved path. On error the implementation must not leave a process behind.
type BuildFunc func(ctx context.Context, bin string) (Browser, error)

// Strategy is one way of obtaining a browser.
type Strategy struct {
	Name string

	// NeedsPath strategies are skipped when the resolver produced no binary.
	NeedsPath bool

	Build BuildFunc
}

// runStrategies tries each strategy in order and returns the first browser
// that launches. Every attempted strategy that fails is reported in failures;
// skipped strategies are not.
func runStrategies(ctx context.Context, bin string, strategies []Strategy) (name string, b Browser, failures []models.StrategyFailure) {
	for _, s := range strategies {
		if s.NeedsPath && bin == "" {
			slog.Debug("skipping launch strategy without a resolved binary", "strategy", s.Name)
			continue
		}
		if err := ctx.Err(); err != nil {
			failures = append(failures, models.StrategyFailure{Strategy: s.Name, Err: err})
			return "", nil, failures
		}

		slog.Debug("trying launch strategy", "strategy", s.Name, "bin", bin)
		br, err := s.Build(ctx, bin)
		if err == nil && br != nil {
			return s.Name, br, failures
		}
		if err == nil {
			err = errNoBrowser
		}
		slog.Warn("launch strategy failed", "strategy", s.Name, "error", err)
		failures = append(failures, models.StrategyFailure{Strategy: s.Name, Err: err})
	}
	return "", nil, failures
}
