package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/use-agent/serpwalk/models"
)

// Dispatcher tries engines one after another, cheapest first, until one
// returns a page that Accept approves. Engines run sequentially because the
// rod engine drives a single browser tab.
type Dispatcher struct {
	engines          []Engine
	escalationDelays []time.Duration
	memory           *DomainMemory
	accept           AcceptFunc
}

// NewDispatcher creates a Dispatcher. engines[i] is tried after pausing
// escalationDelays[i]; missing delays are zero. memory may be nil.
func NewDispatcher(engines []Engine, escalationDelays []time.Duration, memory *DomainMemory) *Dispatcher {
	delays := make([]time.Duration, len(engines))
	copy(delays, escalationDelays)
	return &Dispatcher{
		engines:          engines,
		escalationDelays: delays,
		memory:           memory,
	}
}

// SetAccept installs the page vetting hook.
func (d *Dispatcher) SetAccept(accept AcceptFunc) {
	d.accept = accept
}

// Navigate loads url through the engine chain. When every engine either
// fails or is rejected, the last rejected page is returned so the caller can
// still classify it; with no page at all the last error is returned.
func (d *Dispatcher) Navigate(ctx context.Context, rawURL string, timeout time.Duration) (*models.Page, error) {
	req := &FetchRequest{URL: rawURL, Timeout: timeout}
	host := extractHost(rawURL)

	var (
		lastPage *models.Page
		lastErr  error
	)
	for i, eng := range d.order(host) {
		if i > 0 {
			if err := d.pause(ctx, eng); err != nil {
				return nil, models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
			}
		}

		page, err := eng.Fetch(ctx, req)
		if err != nil {
			slog.Debug("engine failed", "engine", eng.Name(), "url", rawURL, "error", err)
			lastErr = err
			continue
		}
		if d.accept != nil {
			if reason := d.accept(page); reason != nil {
				slog.Debug("engine page rejected", "engine", eng.Name(), "url", rawURL, "reason", reason)
				lastPage = page
				continue
			}
		}

		if d.memory != nil {
			d.memory.Set(host, eng.Name())
		}
		return page, nil
	}

	if d.memory != nil {
		d.memory.Delete(host)
	}
	if lastPage != nil {
		return lastPage, nil
	}
	if lastErr == nil {
		lastErr = models.NewScrapeError(
			models.ErrCodeNavigation,
			fmt.Sprintf("dispatcher: all engines failed for %s", rawURL),
			nil,
		)
	}
	return nil, lastErr
}

// order puts the remembered engine for host first.
func (d *Dispatcher) order(host string) []Engine {
	if d.memory == nil {
		return d.engines
	}
	remembered := d.memory.Get(host)
	if remembered == "" {
		return d.engines
	}
	ordered := make([]Engine, 0, len(d.engines))
	for _, eng := range d.engines {
		if eng.Name() == remembered {
			ordered = append(ordered, eng)
		}
	}
	for _, eng := range d.engines {
		if eng.Name() != remembered {
			ordered = append(ordered, eng)
		}
	}
	slog.Debug("domain memory hit", "host", host, "engine", remembered)
	return ordered
}

// pause waits out the escalation delay configured for eng.
func (d *Dispatcher) pause(ctx context.Context, eng Engine) error {
	var delay time.Duration
	for i, e := range d.engines {
		if e == eng {
			delay = d.escalationDelays[i]
		}
	}
	if delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// extractHost parses the hostname from a URL string.
func extractHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
