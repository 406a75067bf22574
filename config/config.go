package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/serpwalk/models"
)

// Config holds all application configuration.
type Config struct {
	Browser   BrowserConfig   `yaml:"browser"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	Search    SearchConfig    `yaml:"search"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Engine    EngineConfig    `yaml:"engine"`
	Sink      SinkConfig      `yaml:"sink"`
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       LogConfig       `yaml:"log"`
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool `yaml:"headless"` // default: true

	// ProfileDir is a persistent Chromium user-data directory. Empty means a
	// throwaway profile that is removed when the session closes.
	ProfileDir string `yaml:"profile_dir"`

	// Username and Password, when both set, trigger a login at session open.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// LoginURL is the page the login sequence starts from.
	LoginURL string `yaml:"login_url"` // default: instagram login

	// Proxy is the proxy URL for all browser traffic.
	Proxy string `yaml:"proxy"`

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool `yaml:"no_sandbox"` // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string `yaml:"browser_bin"`

	// Stealth injects go-rod/stealth evasions into the working tab.
	Stealth bool `yaml:"stealth"` // default: true

	// UserAgent overrides the browser user agent when non-empty.
	UserAgent string `yaml:"user_agent"`
}

// HasCredentials reports whether a login should be attempted.
func (b BrowserConfig) HasCredentials() bool {
	return b.Username != "" && b.Password != ""
}

// ScraperConfig controls page loading behaviour.
type ScraperConfig struct {
	// NavigationTimeout is the max time for a single page load.
	NavigationTimeout time.Duration `yaml:"navigation_timeout"` // default: 30s

	// ElementTimeout bounds every element wait (actions, result render).
	ElementTimeout time.Duration `yaml:"element_timeout"` // default: 8s

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string `yaml:"blocked_resource_types"`

	// BlockAds drops requests to known ad and tracking hosts.
	BlockAds bool `yaml:"block_ads"` // default: true

	// PageActions run after every browser page load, before the snapshot.
	// Meant for consent banners and similar interstitials; set from the
	// config file only.
	PageActions []models.Action `yaml:"page_actions"`
}

// SearchConfig controls how queries become search pages and which result is taken.
type SearchConfig struct {
	// URLTemplate is the search URL; "{query}" is replaced with the escaped query.
	URLTemplate string `yaml:"url_template"` // default: DuckDuckGo

	// Prefer lists target domains whose links win over other results.
	Prefer []string `yaml:"prefer"` // default: ["instagram.com"]

	// Strict rejects results outside Prefer instead of falling back to the
	// first organic result.
	Strict bool `yaml:"strict"` // default: true
}

// PipelineConfig controls the per-query state machine.
type PipelineConfig struct {
	// Follow navigates to the located result and extracts fields. When false
	// only the result URL is recorded.
	Follow bool `yaml:"follow"` // default: true

	// InterQueryDelay is the minimum spacing between query starts.
	InterQueryDelay time.Duration `yaml:"inter_query_delay"` // default: 2s

	// InterQueryJitter adds up to this much random extra delay.
	InterQueryJitter time.Duration `yaml:"inter_query_jitter"` // default: 1s

	// DumpDir receives HTML + Markdown snapshots of pages that were not ok.
	DumpDir string `yaml:"dump_dir"`
}

// EngineConfig controls which fetch engines load pages.
type EngineConfig struct {
	// Mode is "browser", "http" or "auto" (http first, browser on failure).
	Mode string `yaml:"mode"` // default: "browser"

	// EscalationDelays is the pause before each engine tier is tried.
	EscalationDelays []time.Duration `yaml:"escalation_delays"` // default: [0s, 1s]

	// HTTPTimeout is the deadline for the pure HTTP engine.
	HTTPTimeout time.Duration `yaml:"http_timeout"` // default: 10s

	// MemoryTTL is how long a host remembers the engine that worked for it.
	MemoryTTL time.Duration `yaml:"memory_ttl"` // default: 1h
}

// SinkConfig selects the record output.
type SinkConfig struct {
	// Format is one of "tsv", "csv", "jsonl", "sqlite".
	Format string `yaml:"format"` // default: "tsv"

	// Path is the output file (or SQLite database for the API server).
	Path string `yaml:"path"` // default: "output.txt"
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	Host string `yaml:"host"` // default: "127.0.0.1"
	Port int    `yaml:"port"` // default: 8080
	Mode string `yaml:"mode"` // "debug", "release", "test"; default: "release"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool `yaml:"enabled"` // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string `yaml:"api_keys"`
}

// RateLimitConfig controls per-key rate limiting of the API.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"` // default: 1
	Burst             int     `yaml:"burst"`               // default: 3
}

// WebhookConfig controls batch completion notifications.
type WebhookConfig struct {
	URL    string `yaml:"url"`
	Secret string `yaml:"secret"`
}

// CacheConfig controls the API's in-memory record cache.
type CacheConfig struct {
	MaxEntries int           `yaml:"max_entries"` // default: 1000; 0 disables
	TTL        time.Duration `yaml:"ttl"`         // default: 24h
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // default: "info"
	Format string `yaml:"format"` // "json" or "text"; default: "text"
}

const (
	defaultSearchURL = "https://duckduckgo.com/?q={query}"
	defaultLoginURL  = "https://www.instagram.com/accounts/login/"
)

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:   envBoolOr("SERPWALK_HEADLESS", true),
			ProfileDir: os.Getenv("SERPWALK_PROFILE_DIR"),
			Username:   os.Getenv("SERPWALK_USERNAME"),
			Password:   os.Getenv("SERPWALK_PASSWORD"),
			LoginURL:   envOr("SERPWALK_LOGIN_URL", defaultLoginURL),
			Proxy:      os.Getenv("SERPWALK_PROXY"),
			NoSandbox:  envBoolOr("SERPWALK_NO_SANDBOX", false),
			BrowserBin: os.Getenv("SERPWALK_BROWSER_BIN"),
			Stealth:    envBoolOr("SERPWALK_STEALTH", true),
			UserAgent:  os.Getenv("SERPWALK_USER_AGENT"),
		},
		Scraper: ScraperConfig{
			NavigationTimeout: envDurationOr("SERPWALK_NAV_TIMEOUT", 30*time.Second),
			ElementTimeout:    envDurationOr("SERPWALK_ELEMENT_TIMEOUT", 8*time.Second),
			BlockedResourceTypes: envSliceOr("SERPWALK_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			BlockAds: envBoolOr("SERPWALK_BLOCK_ADS", true),
		},
		Search: SearchConfig{
			URLTemplate: envOr("SERPWALK_SEARCH_URL", defaultSearchURL),
			Prefer:      envSliceOr("SERPWALK_PREFER", []string{"instagram.com"}),
			Strict:      envBoolOr("SERPWALK_STRICT", true),
		},
		Pipeline: PipelineConfig{
			Follow:           envBoolOr("SERPWALK_FOLLOW", true),
			InterQueryDelay:  envDurationOr("SERPWALK_DELAY", 2*time.Second),
			InterQueryJitter: envDurationOr("SERPWALK_JITTER", 1*time.Second),
			DumpDir:          os.Getenv("SERPWALK_DUMP_DIR"),
		},
		Engine: EngineConfig{
			Mode:             envOr("SERPWALK_FETCH_MODE", "browser"),
			EscalationDelays: envDurationSliceOr("SERPWALK_ESCALATION_DELAYS", []time.Duration{0, 1 * time.Second}),
			HTTPTimeout:      envDurationOr("SERPWALK_HTTP_TIMEOUT", 10*time.Second),
			MemoryTTL:        envDurationOr("SERPWALK_MEMORY_TTL", 1*time.Hour),
		},
		Sink: SinkConfig{
			Format: envOr("SERPWALK_FORMAT", "tsv"),
			Path:   envOr("SERPWALK_OUTPUT", "output.txt"),
		},
		Server: ServerConfig{
			Host: envOr("SERPWALK_HOST", "127.0.0.1"),
			Port: envIntOr("SERPWALK_PORT", 8080),
			Mode: envOr("SERPWALK_MODE", "release"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SERPWALK_AUTH_ENABLED", true),
			APIKeys: envSliceOr("SERPWALK_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SERPWALK_RATE_RPS", 1.0),
			Burst:             envIntOr("SERPWALK_RATE_BURST", 3),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("SERPWALK_WEBHOOK_URL"),
			Secret: os.Getenv("SERPWALK_WEBHOOK_SECRET"),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("SERPWALK_CACHE_MAX_ENTRIES", 1000),
			TTL:        envDurationOr("SERPWALK_CACHE_TTL", 24*time.Hour),
		},
		Log: LogConfig{
			Level:  envOr("SERPWALK_LOG_LEVEL", "info"),
			Format: envOr("SERPWALK_LOG_FORMAT", "text"),
		},
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Engine.Mode {
	case "browser", "http", "auto":
	default:
		return fmt.Errorf("config: unknown fetch mode %q (want browser, http or auto)", c.Engine.Mode)
	}
	switch c.Sink.Format {
	case "tsv", "csv", "jsonl", "sqlite":
	default:
		return fmt.Errorf("config: unknown sink format %q (want tsv, csv, jsonl or sqlite)", c.Sink.Format)
	}
	if c.Scraper.NavigationTimeout <= 0 {
		return fmt.Errorf("config: navigation timeout must be positive, got %s", c.Scraper.NavigationTimeout)
	}
	if c.Pipeline.InterQueryDelay < 0 || c.Pipeline.InterQueryJitter < 0 {
		return fmt.Errorf("config: inter-query delay and jitter must not be negative")
	}
	if !strings.Contains(c.Search.URLTemplate, "{query}") {
		return fmt.Errorf("config: search URL template %q has no {query} placeholder", c.Search.URLTemplate)
	}
	return nil
}

// NeedsBrowser reports whether the configured fetch mode requires a Session.
func (c *Config) NeedsBrowser() bool {
	return c.Engine.Mode != "http"
}

func envDurationSliceOr(key string, fallback []time.Duration) []time.Duration {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]time.Duration, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				if d, err := time.ParseDuration(trimmed); err == nil {
					result = append(result, d)
				}
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// --- helper functions ---

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

// SplitList parses a comma-separated flag or env value into trimmed entries.
func SplitList(v string) []string {
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		return SplitList(v)
	}
	return fallback
}
