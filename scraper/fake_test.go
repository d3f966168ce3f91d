package scraper

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/use-agent/tgsearch/config"
)

// fakeBrowser is an in-memory Browser. When hang is set, Render blocks until
// Close is called, like a CDP call on a stuck page.
type fakeBrowser struct {
	html      string
	renderErr error
	hang      bool
	delay     time.Duration

	mu      sync.Mutex
	targets []string

	closes    atomic.Int32
	closeOnce sync.Once
	killed    chan struct{}

	// inflight and peak are shared between browsers to observe concurrency.
	inflight *atomic.Int32
	peak     *atomic.Int32
}

func newFakeBrowser(html string) *fakeBrowser {
	return &fakeBrowser{html: html, killed: make(chan struct{})}
}

func (f *fakeBrowser) Render(ctx context.Context, target string, _ RenderOptions) (string, error) {
	f.mu.Lock()
	f.targets = append(f.targets, target)
	f.mu.Unlock()

	if f.inflight != nil {
		n := f.inflight.Add(1)
		defer f.inflight.Add(-1)
		for {
			p := f.peak.Load()
			if n <= p || f.peak.CompareAndSwap(p, n) {
				break
			}
		}
	}

	if f.hang {
		<-f.killed
		return "", errors.New("browser process killed")
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.renderErr != nil {
		return "", f.renderErr
	}
	return f.html, nil
}

func (f *fakeBrowser) Close() error {
	f.closes.Add(1)
	f.closeOnce.Do(func() { close(f.killed) })
	return nil
}

func (f *fakeBrowser) lastTarget() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.targets) == 0 {
		return ""
	}
	return f.targets[len(f.targets)-1]
}

// staticResolver always resolves to the given path.
func staticResolver(path string) Resolver {
	return func(context.Context) (string, error) { return path, nil }
}

// okStrategy hands out b on every build.
func okStrategy(name string, b Browser) Strategy {
	return Strategy{
		Name: name,
		Build: func(context.Context, string) (Browser, error) {
			return b, nil
		},
	}
}

// failStrategy always fails and counts its calls.
func failStrategy(name string, needsPath bool, calls *atomic.Int32) Strategy {
	return Strategy{
		Name:      name,
		NeedsPath: needsPath,
		Build: func(context.Context, string) (Browser, error) {
			if calls != nil {
				calls.Add(1)
			}
			return nil, errors.New(name + " unavailable")
		},
	}
}

func testScraperConfig() config.ScraperConfig {
	return config.ScraperConfig{
		BaseURL:        "https://telegramsearchengine.com/",
		ResultSelector: "div.gs-title a",
		MaxResults:     config.MaxResultsCeiling,
		WaitMode:       config.WaitModeFixed,
		SearchTimeout:  5 * time.Second,
		MaxConcurrent:  3,
	}
}

func newTestScraper(t *testing.T, cfg config.ScraperConfig, sessions *SessionManager) *Scraper {
	t.Helper()
	s, err := NewScraper(cfg, sessions)
	if err != nil {
		t.Fatalf("NewScraper: %v", err)
	}
	return s
}
