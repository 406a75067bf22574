package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/serpwalk/models"
	"github.com/ysmood/gson"
)

// Name identifies pages loaded by the session.
const Name = "rod"

// Navigate loads url in the working tab and snapshots the rendered page.
// A zero timeout falls back to the configured navigation timeout.
//
// Steps:
//
//  1. Deadline      – bound every Rod call of this load
//  2. Navigate      – triggers page load
//  3. Wait          – DOM stable, best effort
//  4. Page actions  – configured actions such as consent clicks, best effort
//  5. Render wait   – LoadOptions.WaitSelector, bounded by the element timeout
//  6. Status        – navigation timing entry, best effort
//  7. Snapshot      – rendered HTML, title and final URL
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) (*models.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page == nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "session is closed", nil)
	}

	// ── 1. Deadline ───────────────────────────────────────────────────
	if timeout <= 0 {
		timeout = s.scraperCfg.NavigationTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	p := s.page.Context(ctx)

	// ── 2. Navigate ───────────────────────────────────────────────────
	if err := p.Navigate(url); err != nil {
		return nil, categorizeError(err, "navigation failed")
	}

	// ── 3. Wait ───────────────────────────────────────────────────────
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		if ctx.Err() != nil {
			return nil, categorizeError(ctx.Err(), "page did not settle before deadline")
		}
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"url", url,
			"error", err,
		)
	}

	// ── 4. Page actions ───────────────────────────────────────────────
	s.runPageActions(ctx, url)

	// ── 5. Render wait ────────────────────────────────────────────────
	if sel := models.LoadOptionsFrom(ctx).WaitSelector; sel != "" {
		if err := s.waitRendered(ctx, sel); err != nil {
			if ctx.Err() != nil {
				return nil, categorizeError(ctx.Err(), "results did not render before deadline")
			}
			slog.Debug("wait selector did not match, proceeding with current DOM",
				"url", url,
				"selector", sel,
				"error", err,
			)
		}
	}

	// ── 6. Status ─────────────────────────────────────────────────────
	statusCode := 0
	if res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`); err == nil {
		statusCode = res.Value.Int()
	}

	// ── 7. Snapshot ───────────────────────────────────────────────────
	html, err := p.HTML()
	if err != nil {
		return nil, categorizeError(err, "failed to read page HTML")
	}
	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = url
	}

	return &models.Page{
		RequestURL: url,
		FinalURL:   finalURL,
		StatusCode: statusCode,
		Title:      evalStringOrEmpty(p, `() => document.title`),
		HTML:       html,
		Engine:     Name,
	}, nil
}

// waitRendered waits for sel to match at least one element.
func (s *Session) waitRendered(ctx context.Context, sel string) error {
	waitCtx, cancel := context.WithTimeout(ctx, s.elementTimeout())
	defer cancel()
	return s.page.Context(waitCtx).WaitElementsMoreThan(sel, 0)
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors.
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to proto.NetworkHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw Rod errors into typed ScrapeErrors.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
