package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/serpwalk/config"
	"github.com/use-agent/serpwalk/models"
)

// Credentials trigger a login sequence when a session opens.
type Credentials struct {
	Username string
	Password string
	LoginURL string
}

// Session owns one browser and the single working tab every query runs in.
// Methods serialize on a mutex; callers still must not share a Session
// across goroutines that expect independent page state.
type Session struct {
	mu sync.Mutex

	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	router   *rod.HijackRouter

	browserCfg config.BrowserConfig
	scraperCfg config.ScraperConfig

	authenticated bool

	closeOnce sync.Once
	closeErr  error
}

// Open launches Chromium, prepares the working tab and optionally logs in.
// A failed login is logged and leaves the session unauthenticated.
func Open(ctx context.Context, browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig, creds *Credentials) (*Session, error) {
	if err := ValidateActions(scraperCfg.PageActions); err != nil {
		return nil, err
	}
	l := newLauncher(browserCfg)

	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched",
		"controlURL", controlURL,
		"headless", browserCfg.Headless,
		"profileDir", browserCfg.ProfileDir,
	)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	s := &Session{
		launcher:   l,
		browser:    browser,
		browserCfg: browserCfg,
		scraperCfg: scraperCfg,
	}

	if err := s.preparePage(); err != nil {
		_ = s.Close()
		return nil, err
	}

	switch {
	case creds != nil && creds.Username != "" && creds.Password != "":
		if err := s.login(ctx, *creds); err != nil {
			slog.Warn("login failed, continuing unauthenticated", "error", err)
		}
	case browserCfg.ProfileDir != "":
		s.authenticated = s.probeAuthCookie()
	}
	slog.Info("session ready", "authenticated", s.authenticated)

	return s, nil
}

// newLauncher builds the Chromium launcher with the stealth flag set.
func newLauncher(cfg config.BrowserConfig) *launcher.Launcher {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.ProfileDir != "" {
		l = l.UserDataDir(cfg.ProfileDir)
	}
	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("no-default-browser-check"))

	return l
}

// preparePage opens the working tab. Stealth JS and the hijack router must
// be installed before the first navigation to take effect.
func (s *Session) preparePage() error {
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to open working tab",
			err,
		)
	}
	s.page = page

	if s.browserCfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	if s.browserCfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      s.browserCfg.UserAgent,
			AcceptLanguage: defaultAcceptLanguage,
		}); err != nil {
			slog.Warn("user agent override failed", "error", err)
		}
	}

	// Count summaries in meta descriptions are parsed as English.
	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{"Accept-Language": defaultAcceptLanguage}),
	}.Call(page)

	s.router = setupHijack(page, s.scraperCfg.BlockedResourceTypes, s.scraperCfg.BlockAds)
	return nil
}

const defaultAcceptLanguage = "en-US,en;q=0.9"

// Authenticated reports whether the session carries a logged-in cookie.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// Close stops request interception and shuts the browser down. It is safe to
// call more than once. A persistent profile directory is left on disk.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		slog.Info("session shutting down")
		if s.router != nil {
			_ = s.router.Stop()
		}
		if s.page != nil {
			_ = s.page.Close()
		}
		if s.browser != nil {
			s.closeErr = s.browser.Close()
		}
		switch {
		case s.launcher == nil:
		case s.browserCfg.ProfileDir == "":
			s.launcher.Cleanup()
		default:
			s.launcher.Kill()
		}
		slog.Info("session shutdown complete")
	})
	return s.closeErr
}
