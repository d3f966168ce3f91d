package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/use-agent/tgsearch/config"
)

func TestSettle_FixedSleepsFullDuration(t *testing.T) {
	probed := false
	p := WaitPolicy{Mode: config.WaitModeFixed, Selector: "div.gs-title a", Settle: 40 * time.Millisecond}

	start := time.Now()
	err := settle(context.Background(), p, func() (bool, error) {
		probed = true
		return true, nil
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("returned after %v, want at least 40ms", elapsed)
	}
	if probed {
		t.Error("fixed mode must not probe")
	}
}

func TestSettle_SelectorFoundReturnsEarly(t *testing.T) {
	calls := 0
	p := WaitPolicy{
		Mode:     config.WaitModeSelector,
		Selector: "div.gs-title a",
		Settle:   5 * time.Second,
		Poll:     5 * time.Millisecond,
	}

	start := time.Now()
	err := settle(context.Background(), p, func() (bool, error) {
		calls++
		return calls >= 3, nil
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if calls != 3 {
		t.Errorf("probe called %d times, want 3", calls)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("selector mode waited %v after the selector matched", elapsed)
	}
}

func TestSettle_SelectorMissingIsNotAnError(t *testing.T) {
	p := WaitPolicy{
		Mode:     config.WaitModeSelector,
		Selector: "div.gs-title a",
		Settle:   30 * time.Millisecond,
		Poll:     5 * time.Millisecond,
	}

	err := settle(context.Background(), p, func() (bool, error) {
		return false, errors.New("node not found")
	})
	if err != nil {
		t.Errorf("settle = %v, want nil when the deadline passes", err)
	}
}

func TestSettle_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	p := WaitPolicy{
		Mode:     config.WaitModeSelector,
		Selector: "div.gs-title a",
		Settle:   10 * time.Second,
		Poll:     5 * time.Millisecond,
	}
	err := settle(ctx, p, func() (bool, error) { return false, nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("settle = %v, want context.DeadlineExceeded", err)
	}
}

func TestSleepCtx_ZeroDuration(t *testing.T) {
	if err := sleepCtx(context.Background(), 0); err != nil {
		t.Errorf("sleepCtx(0) = %v", err)
	}
}
