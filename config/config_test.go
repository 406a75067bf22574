package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.True(t, cfg.Browser.Headless)
	assert.True(t, cfg.Browser.Stealth)
	assert.False(t, cfg.Browser.HasCredentials())
	assert.Equal(t, "https://duckduckgo.com/?q={query}", cfg.Search.URLTemplate)
	assert.Equal(t, []string{"instagram.com"}, cfg.Search.Prefer)
	assert.True(t, cfg.Search.Strict)
	assert.True(t, cfg.Pipeline.Follow)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.InterQueryDelay)
	assert.Equal(t, "browser", cfg.Engine.Mode)
	assert.Equal(t, []time.Duration{0, time.Second}, cfg.Engine.EscalationDelays)
	assert.Equal(t, "tsv", cfg.Sink.Format)
	assert.Equal(t, "output.txt", cfg.Sink.Path)
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.NeedsBrowser())
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("SERPWALK_HEADLESS", "false")
	t.Setenv("SERPWALK_USERNAME", "user")
	t.Setenv("SERPWALK_PASSWORD", "pass")
	t.Setenv("SERPWALK_PREFER", " instagram.com , ,tiktok.com")
	t.Setenv("SERPWALK_DELAY", "750ms")
	t.Setenv("SERPWALK_FETCH_MODE", "http")
	t.Setenv("SERPWALK_ESCALATION_DELAYS", "0s, bogus, 3s")
	t.Setenv("SERPWALK_PORT", "not-a-number")
	t.Setenv("SERPWALK_RATE_RPS", "2.5")

	cfg := Load()
	assert.False(t, cfg.Browser.Headless)
	assert.True(t, cfg.Browser.HasCredentials())
	assert.Equal(t, []string{"instagram.com", "tiktok.com"}, cfg.Search.Prefer)
	assert.Equal(t, 750*time.Millisecond, cfg.Pipeline.InterQueryDelay)
	assert.False(t, cfg.NeedsBrowser())
	assert.Equal(t, []time.Duration{0, 3 * time.Second}, cfg.Engine.EscalationDelays)
	assert.Equal(t, 8080, cfg.Server.Port, "unparseable values fall back")
	assert.Equal(t, 2.5, cfg.RateLimit.RequestsPerSecond)
}

func TestLoadFile_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serpwalk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
browser:
  profile_dir: /tmp/profile
search:
  strict: false
  prefer: [tiktok.com]
pipeline:
  inter_query_jitter: 250ms
sink:
  format: jsonl
`), 0o644))

	cfg := Load()
	require.NoError(t, LoadFile(path, cfg))

	assert.Equal(t, "/tmp/profile", cfg.Browser.ProfileDir)
	assert.False(t, cfg.Search.Strict)
	assert.Equal(t, []string{"tiktok.com"}, cfg.Search.Prefer)
	assert.Equal(t, 250*time.Millisecond, cfg.Pipeline.InterQueryJitter)
	assert.Equal(t, "jsonl", cfg.Sink.Format)
	assert.Equal(t, "output.txt", cfg.Sink.Path, "absent keys keep their values")
	assert.Equal(t, 2*time.Second, cfg.Pipeline.InterQueryDelay)
}

func TestLoadFile_PageActions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serpwalk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scraper:
  page_actions:
    - type: click
      selector: "button#accept-cookies"
    - type: press
      key: Escape
`), 0o644))

	cfg := Load()
	require.NoError(t, LoadFile(path, cfg))

	require.Len(t, cfg.Scraper.PageActions, 2)
	assert.Equal(t, "click", cfg.Scraper.PageActions[0].Type)
	assert.Equal(t, "button#accept-cookies", cfg.Scraper.PageActions[0].Selector)
	assert.Equal(t, "Escape", cfg.Scraper.PageActions[1].Key)
	assert.Equal(t, 8*time.Second, cfg.Scraper.ElementTimeout)
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, LoadFile(filepath.Join(dir, "missing.yaml"), Load()))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("search: [unclosed"), 0o644))
	assert.ErrorContains(t, LoadFile(bad, Load()), "config: parse")
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"fetch mode":  func(c *Config) { c.Engine.Mode = "telnet" },
		"sink format": func(c *Config) { c.Sink.Format = "xml" },
		"nav timeout": func(c *Config) { c.Scraper.NavigationTimeout = 0 },
		"delay":       func(c *Config) { c.Pipeline.InterQueryDelay = -time.Second },
		"jitter":      func(c *Config) { c.Pipeline.InterQueryJitter = -time.Second },
		"placeholder": func(c *Config) { c.Search.URLTemplate = "https://example.org/search" },
	}
	for name, mutate := range cases {
		cfg := Load()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitList(" a,,b ,"))
	assert.Empty(t, SplitList(""))
}
