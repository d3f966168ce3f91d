package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/tgsearch/config"
	"github.com/ysmood/gson"
)

// cleanupTimeout bounds the wait for the browser process to exit.
const cleanupTimeout = 5 * time.Second

// rodResolver resolves the browser binary. An explicit BrowserBin wins;
// otherwise rod's driver manager validates or downloads its pinned Chromium.
func rodResolver(cfg config.BrowserConfig) Resolver {
	return func(ctx context.Context) (string, error) {
		if cfg.BrowserBin != "" {
			if _, err := os.Stat(cfg.BrowserBin); err != nil {
				return "", fmt.Errorf("configured browser binary: %w", err)
			}
			return cfg.BrowserBin, nil
		}

		type result struct {
			path string
			err  error
		}
		done := make(chan result, 1)
		go func() {
			b := launcher.NewBrowser()
			b.Context = ctx
			path, err := b.Get()
			done <- result{path, err}
		}()

		select {
		case r := <-done:
			if r.err != nil {
				return "", fmt.Errorf("driver manager: %w", r.err)
			}
			return r.path, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// rodStrategies returns the launch chain used in production.
func rodStrategies(cfg config.BrowserConfig) []Strategy {
	return []Strategy{
		{
			// Managed launch: rod's leakless guard kills the browser if we die.
			Name:      StrategyService,
			NeedsPath: true,
			Build: func(ctx context.Context, bin string) (Browser, error) {
				return launchRod(ctx, newLauncher(cfg).Bin(bin), cfg)
			},
		},
		{
			// Plain exec of the same binary, for hosts where leakless cannot run.
			Name:      StrategyExecPath,
			NeedsPath: true,
			Build: func(ctx context.Context, bin string) (Browser, error) {
				return launchRod(ctx, newLauncher(cfg).Bin(bin).Leakless(false), cfg)
			},
		},
		{
			Name: StrategyDefault,
			Build: func(ctx context.Context, _ string) (Browser, error) {
				l := newLauncher(cfg)
				if path, has := launcher.LookPath(); has {
					slog.Debug("using system browser", "bin", path)
					l = l.Bin(path)
				}
				return launchRod(ctx, l, cfg)
			},
		},
	}
}

// newLauncher returns a launcher with the flags every strategy shares.
func newLauncher(cfg config.BrowserConfig) *launcher.Launcher {
	l := launcher.New().
		Headless(true).
		NoSandbox(true)

	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	l.Set(flags.Flag("user-agent"), ua)
	l.Set(flags.Flag("disable-gpu"))

	// Make the browser look less automated.
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-extensions"))
	return l
}

// launchRod starts the browser and connects to it. On failure nothing is left running.
func launchRod(ctx context.Context, l *launcher.Launcher, cfg config.BrowserConfig) (Browser, error) {
	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		l.Kill()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		rb := &rodBrowser{launcher: l}
		rb.kill()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	slog.Debug("browser launched", "pid", l.PID(), "controlURL", controlURL)
	return &rodBrowser{launcher: l, browser: browser, cfg: cfg}, nil
}

// rodBrowser is a Browser backed by a rod-launched Chromium process.
type rodBrowser struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	cfg      config.BrowserConfig
}

// Render opens a tab, navigates and waits for the search widget.
//
// Order matters: stealth, headers and the request hijack must be installed
// before Navigate or they do not apply to the first document.
func (r *rodBrowser) Render(ctx context.Context, target string, opts RenderOptions) (string, error) {
	page, err := r.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("open tab: %w", err)
	}
	defer func() { _ = page.Close() }()

	if r.cfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}

	if r.cfg.AcceptLanguage != "" {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: proto.NetworkHeaders{"Accept-Language": gson.New(r.cfg.AcceptLanguage)},
		}.Call(page)
	}

	if router := setupHijack(page, r.cfg.BlockedResources, r.cfg.BlockAds); router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)

	nav := p
	if opts.NavigationTimeout > 0 {
		nav = p.Timeout(opts.NavigationTimeout)
		defer nav.CancelTimeout()
	}
	if err := nav.Navigate(target); err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}
	if err := nav.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait for load: %w", err)
	}

	probe := func() (bool, error) {
		has, _, err := p.Has(opts.Wait.Selector)
		return has, err
	}
	if err := settle(ctx, opts.Wait, probe); err != nil {
		return "", fmt.Errorf("wait for results: %w", err)
	}

	html, err := p.HTML()
	if err != nil {
		return "", fmt.Errorf("read page markup: %w", err)
	}
	slog.Debug("page rendered", "url", target, "bytes", len(html))
	return html, nil
}

// Close closes the CDP connection and kills the process. Closing the
// connection may fail when the browser is already gone; the process is
// killed regardless.
func (r *rodBrowser) Close() error {
	var closeErr error
	if r.browser != nil {
		closeErr = r.browser.Close()
	}
	r.kill()
	if closeErr != nil {
		return fmt.Errorf("close browser: %w", closeErr)
	}
	return nil
}

// kill terminates the process and removes its profile directory.
func (r *rodBrowser) kill() {
	if r.launcher.PID() == 0 {
		return
	}
	r.launcher.Kill()

	done := make(chan struct{})
	go func() {
		r.launcher.Cleanup()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(cleanupTimeout):
		slog.Warn("browser process did not exit after kill", "pid", r.launcher.PID())
	}
}
