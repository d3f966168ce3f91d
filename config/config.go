package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
)

// DefaultUserAgent is a desktop Chrome UA; the target site serves nothing to
// clients that do not look like a browser.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// MaxResultsCeiling is the largest result set a search may return.
const MaxResultsCeiling = 20

// Wait modes for the post-navigation settle policy.
const (
	WaitModeFixed    = "fixed"
	WaitModeSelector = "selector"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Bot       BotConfig
	Log       LogConfig
	Engine    EngineConfig
}

// EngineConfig controls the optional multi-engine dispatcher.
type EngineConfig struct {
	// EnableMultiEngine puts a plain HTTP engine in front of the browser.
	EnableMultiEngine bool // default: false

	// HTTPTimeout is the deadline for the pure HTTP engine.
	HTTPTimeout time.Duration // default: 5s

	// MemoryTTL is how long the winning engine is remembered per host.
	MemoryTTL time.Duration // default: 24h
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Enabled bool   // default: true
	Host    string // default: "0.0.0.0"
	Port    int    // default: 8080
	Mode    string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls how browser processes are launched.
type BrowserConfig struct {
	// BrowserBin skips the driver-manager download and uses this binary.
	BrowserBin string

	// UserAgent is sent by every launched browser.
	UserAgent string

	// AcceptLanguage is sent as an extra request header.
	AcceptLanguage string // default: "en-US,en;q=0.9"

	// Stealth injects the go-rod/stealth evasions before navigation.
	Stealth bool // default: true

	// Proxy is an optional proxy URL for the browser and the HTTP engine.
	Proxy string

	// BlockedResources lists resource types the browser never fetches.
	// Valid: "Image", "Stylesheet", "Font", "Media".
	BlockedResources []string // default: ["Image", "Font", "Media"]

	// BlockAds drops requests to known ad and tracking hosts.
	BlockAds bool // default: true
}

// ScraperConfig controls search behavior.
type ScraperConfig struct {
	// BaseURL is the search-aggregator endpoint.
	BaseURL string // default: "https://telegramsearchengine.com/"

	// ResultSelector locates result anchors in the rendered page.
	ResultSelector string // default: "div.gs-title a"

	// MaxResults caps a result set (1..20).
	MaxResults int // default: 20

	// WaitMode is "selector" (poll for ResultSelector) or "fixed" (sleep SettleTimeout).
	WaitMode string // default: "selector"

	// SettleTimeout bounds the post-navigation wait.
	SettleTimeout time.Duration // default: 8s

	// SettleGrace is the extra wait once the selector first matches.
	SettleGrace time.Duration // default: 500ms

	// PollInterval is the selector polling period.
	PollInterval time.Duration // default: 250ms

	// NavigationTimeout is the max time for page.Navigate + load.
	NavigationTimeout time.Duration // default: 20s

	// SearchTimeout bounds one search end to end, including queueing.
	SearchTimeout time.Duration // default: 45s

	// MaxConcurrent bounds the number of live browser processes.
	MaxConcurrent int // default: 3
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 3
}

// BotConfig controls the Telegram bot adapter.
type BotConfig struct {
	Enabled bool // default: true when Token is set
	Token   string

	// ChatRPS and ChatBurst throttle searches per chat.
	ChatRPS   float64 // default: 0.2
	ChatBurst int     // default: 2

	// Debug turns on the bot library's request logging.
	Debug bool
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	token := firstEnv("TGSEARCH_BOT_TOKEN", "BOT_TOKEN")
	return &Config{
		Server: ServerConfig{
			Enabled: envBoolOr("TGSEARCH_HTTP_ENABLED", true),
			Host:    envOr("TGSEARCH_HOST", "0.0.0.0"),
			Port:    envIntOr("TGSEARCH_PORT", 8080),
			Mode:    envOr("TGSEARCH_MODE", "release"),
		},
		Browser: BrowserConfig{
			BrowserBin:       os.Getenv("TGSEARCH_BROWSER_BIN"),
			UserAgent:        envOr("TGSEARCH_USER_AGENT", DefaultUserAgent),
			AcceptLanguage:   envOr("TGSEARCH_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			Stealth:          envBoolOr("TGSEARCH_STEALTH", true),
			Proxy:            os.Getenv("TGSEARCH_PROXY"),
			BlockedResources: envSliceOr("TGSEARCH_BLOCK_RESOURCES", []string{"Image", "Font", "Media"}),
			BlockAds:         envBoolOr("TGSEARCH_BLOCK_ADS", true),
		},
		Scraper: ScraperConfig{
			BaseURL:           envOr("TGSEARCH_BASE_URL", "https://telegramsearchengine.com/"),
			ResultSelector:    envOr("TGSEARCH_RESULT_SELECTOR", "div.gs-title a"),
			MaxResults:        envIntOr("TGSEARCH_MAX_RESULTS", MaxResultsCeiling),
			WaitMode:          envOr("TGSEARCH_WAIT_MODE", WaitModeSelector),
			SettleTimeout:     envDurationOr("TGSEARCH_SETTLE_TIMEOUT", 8*time.Second),
			SettleGrace:       envDurationOr("TGSEARCH_SETTLE_GRACE", 500*time.Millisecond),
			PollInterval:      envDurationOr("TGSEARCH_POLL_INTERVAL", 250*time.Millisecond),
			NavigationTimeout: envDurationOr("TGSEARCH_NAV_TIMEOUT", 20*time.Second),
			SearchTimeout:     envDurationOr("TGSEARCH_SEARCH_TIMEOUT", 45*time.Second),
			MaxConcurrent:     envIntOr("TGSEARCH_MAX_CONCURRENT", 3),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("TGSEARCH_AUTH_ENABLED", false),
			APIKeys: envSliceOr("TGSEARCH_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("TGSEARCH_RATE_RPS", 1.0),
			Burst:             envIntOr("TGSEARCH_RATE_BURST", 3),
		},
		Bot: BotConfig{
			Enabled:   envBoolOr("TGSEARCH_BOT_ENABLED", token != ""),
			Token:     token,
			ChatRPS:   envFloatOr("TGSEARCH_BOT_CHAT_RPS", 0.2),
			ChatBurst: envIntOr("TGSEARCH_BOT_CHAT_BURST", 2),
			Debug:     envBoolOr("TGSEARCH_BOT_DEBUG", false),
		},
		Log: LogConfig{
			Level:  envOr("TGSEARCH_LOG_LEVEL", "info"),
			Format: envOr("TGSEARCH_LOG_FORMAT", "json"),
		},
		Engine: EngineConfig{
			EnableMultiEngine: envBoolOr("TGSEARCH_MULTI_ENGINE", false),
			HTTPTimeout:       envDurationOr("TGSEARCH_HTTP_TIMEOUT", 5*time.Second),
			MemoryTTL:         envDurationOr("TGSEARCH_ENGINE_MEMORY_TTL", 24*time.Hour),
		},
	}
}

// Validate rejects configurations the scraper cannot run with.
func (c *Config) Validate() error {
	if _, err := cascadia.Compile(c.Scraper.ResultSelector); err != nil {
		return fmt.Errorf("config: invalid result selector %q: %w", c.Scraper.ResultSelector, err)
	}
	if c.Scraper.MaxResults < 1 || c.Scraper.MaxResults > MaxResultsCeiling {
		return fmt.Errorf("config: max results must be within 1..%d, got %d", MaxResultsCeiling, c.Scraper.MaxResults)
	}
	switch c.Scraper.WaitMode {
	case WaitModeFixed, WaitModeSelector:
	default:
		return fmt.Errorf("config: unknown wait mode %q", c.Scraper.WaitMode)
	}
	if c.Scraper.MaxConcurrent < 1 {
		return fmt.Errorf("config: max concurrent must be positive, got %d", c.Scraper.MaxConcurrent)
	}
	if c.Scraper.SearchTimeout <= 0 {
		return fmt.Errorf("config: search timeout must be positive")
	}
	if c.Auth.Enabled && len(nonEmpty(c.Auth.APIKeys)) == 0 {
		return fmt.Errorf("config: auth enabled but no API keys set (TGSEARCH_API_KEYS)")
	}
	if c.Bot.Enabled && c.Bot.Token == "" {
		return fmt.Errorf("config: bot enabled but no token set (TGSEARCH_BOT_TOKEN or BOT_TOKEN)")
	}
	if !c.Bot.Enabled && !c.Server.Enabled {
		return fmt.Errorf("config: neither the bot nor the HTTP server is enabled")
	}
	return nil
}

// --- helper functions ---

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
