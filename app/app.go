// Package app assembles the session, fetch engines and pipeline from config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/use-agent/serpwalk/config"
	"github.com/use-agent/serpwalk/detect"
	"github.com/use-agent/serpwalk/engine"
	"github.com/use-agent/serpwalk/locator"
	"github.com/use-agent/serpwalk/models"
	"github.com/use-agent/serpwalk/pipeline"
	"github.com/use-agent/serpwalk/session"
)

// Runtime owns everything a run needs. Close releases the browser.
type Runtime struct {
	Pipeline *pipeline.Pipeline

	session *session.Session
	memory  *engine.DomainMemory
}

// Build opens the browser session when the engine mode needs one and wires
// the pipeline around it.
func Build(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{}

	// ── 1. Browser session ──────────────────────────────────────────
	if cfg.NeedsBrowser() {
		var creds *session.Credentials
		if cfg.Browser.HasCredentials() {
			creds = &session.Credentials{
				Username: cfg.Browser.Username,
				Password: cfg.Browser.Password,
				LoginURL: cfg.Browser.LoginURL,
			}
		}
		sess, err := session.Open(ctx, cfg.Browser, cfg.Scraper, creds)
		if err != nil {
			return nil, err
		}
		rt.session = sess
	}

	// ── 2. Navigator ────────────────────────────────────────────────
	det := detect.New()
	nav := rt.navigator(cfg, det)

	// ── 3. Pipeline ─────────────────────────────────────────────────
	p := pipeline.New(pipeline.Options{
		SearchURL:         cfg.Search.URLTemplate,
		Follow:            cfg.Pipeline.Follow,
		NavigationTimeout: cfg.Scraper.NavigationTimeout,
		Delay:             cfg.Pipeline.InterQueryDelay,
		Jitter:            cfg.Pipeline.InterQueryJitter,
	}, nav)
	p.SetLocator(locator.New(locator.NewDomainFilter(cfg.Search.Prefer, cfg.Search.Strict)))
	p.SetClassifier(det)
	if rt.session != nil {
		p.SetAuthenticated(rt.session.Authenticated)
	}

	dumper, err := pipeline.NewDumper(cfg.Pipeline.DumpDir)
	if err != nil {
		rt.Close()
		return nil, err
	}
	p.SetDumper(dumper)

	rt.Pipeline = p
	return rt, nil
}

// navigator picks the page loader for the engine mode.
func (rt *Runtime) navigator(cfg *config.Config, det *detect.Detector) pipeline.Navigator {
	switch cfg.Engine.Mode {
	case "http":
		httpEngine := engine.NewHTTPEngine(cfg.Browser.Proxy, cfg.Engine.HTTPTimeout)
		slog.Info("fetch engines ready", "mode", "http")
		return engine.NewDispatcher([]engine.Engine{httpEngine}, nil, nil)

	case "auto":
		httpEngine := engine.NewHTTPEngine(cfg.Browser.Proxy, cfg.Engine.HTTPTimeout)
		rodEngine := engine.NewRodEngine(rt.session.Navigate)
		rt.memory = engine.NewDomainMemory(cfg.Engine.MemoryTTL)

		d := engine.NewDispatcher([]engine.Engine{httpEngine, rodEngine}, cfg.Engine.EscalationDelays, rt.memory)
		d.SetAccept(AcceptPage(det))
		slog.Info("fetch engines ready",
			"mode", "auto",
			"delays", cfg.Engine.EscalationDelays,
		)
		return d
	}

	slog.Info("fetch engines ready", "mode", "browser")
	return rt.session
}

// AcceptPage rejects HTTP-engine pages that need a real browser: JavaScript
// shells and challenge pages. Browser pages are always accepted and left to
// the pipeline's classifier.
func AcceptPage(det *detect.Detector) engine.AcceptFunc {
	return func(page *models.Page) error {
		if page.Engine != "http" {
			return nil
		}
		if engine.NeedsBrowser(page.HTML) {
			return errors.New("page needs JavaScript")
		}
		if state, reason := det.Inspect(page, nil); state == models.PageBlocked {
			return fmt.Errorf("blocked: %s", reason)
		}
		return nil
	}
}

// Authenticated reports whether the browser session is logged in.
func (rt *Runtime) Authenticated() bool {
	return rt.session != nil && rt.session.Authenticated()
}

// Close stops the domain memory and shuts the browser down.
func (rt *Runtime) Close() error {
	if rt.memory != nil {
		rt.memory.Stop()
	}
	if rt.session != nil {
		return rt.session.Close()
	}
	return nil
}
