package scraper

import (
	"strings"
	"testing"

	"github.com/use-agent/tgsearch/config"
)

func hasArg(args []string, want string) bool {
	for _, a := range args {
		if a == want || strings.HasPrefix(a, want+"=") {
			return true
		}
	}
	return false
}

func argValue(args []string, name string) string {
	for _, a := range args {
		if v, ok := strings.CutPrefix(a, name+"="); ok {
			return v
		}
	}
	return ""
}

func TestNewLauncher_Flags(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.BrowserConfig
		wantUA    string
		wantProxy string
	}{
		{
			name:   "defaults",
			cfg:    config.BrowserConfig{},
			wantUA: config.DefaultUserAgent,
		},
		{
			name:      "configured agent and proxy",
			cfg:       config.BrowserConfig{UserAgent: "Mozilla/5.0 (X11; Linux x86_64) Test/1.0", Proxy: "http://proxy.local:3128"},
			wantUA:    "Mozilla/5.0 (X11; Linux x86_64) Test/1.0",
			wantProxy: "http://proxy.local:3128",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := newLauncher(tt.cfg).FormatArgs()

			for _, want := range []string{"--headless", "--no-sandbox", "--disable-gpu"} {
				if !hasArg(args, want) {
					t.Errorf("missing %s in %v", want, args)
				}
			}
			if got := argValue(args, "--user-agent"); got != tt.wantUA {
				t.Errorf("user-agent = %q, want %q", got, tt.wantUA)
			}
			if got := argValue(args, "--proxy-server"); got != tt.wantProxy {
				t.Errorf("proxy-server = %q, want %q", got, tt.wantProxy)
			}
			if got := argValue(args, "--disable-blink-features"); got != "AutomationControlled" {
				t.Errorf("disable-blink-features = %q", got)
			}
			if hasArg(args, "--enable-automation") {
				t.Error("--enable-automation should be removed")
			}
		})
	}
}

func TestRodStrategies_Order(t *testing.T) {
	strategies := rodStrategies(config.BrowserConfig{})

	want := []struct {
		name      string
		needsPath bool
	}{
		{StrategyService, true},
		{StrategyExecPath, true},
		{StrategyDefault, false},
	}
	if len(strategies) != len(want) {
		t.Fatalf("got %d strategies, want %d", len(strategies), len(want))
	}
	for i, w := range want {
		s := strategies[i]
		if s.Name != w.name || s.NeedsPath != w.needsPath {
			t.Errorf("strategy %d = {%s, NeedsPath=%v}, want {%s, NeedsPath=%v}",
				i, s.Name, s.NeedsPath, w.name, w.needsPath)
		}
		if s.Build == nil {
			t.Errorf("strategy %s has no Build func", s.Name)
		}
	}
}
