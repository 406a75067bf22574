// Package pipeline runs each query through search, result location,
// navigation, classification and extraction, producing one record per query.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/use-agent/serpwalk/detect"
	"github.com/use-agent/serpwalk/extract"
	"github.com/use-agent/serpwalk/locator"
	"github.com/use-agent/serpwalk/models"
)

// Navigator loads pages. The session and the engine dispatcher implement it.
type Navigator interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) (*models.Page, error)
}

// Locator picks the result to follow on a search page.
type Locator interface {
	Locate(page *models.Page) (models.Candidate, bool)
	HasCandidates(page *models.Page) bool

	// WaitSelector matches rendered results; "" loads without waiting.
	WaitSelector() string
}

// Classifier tells usable pages from blocked, empty and broken ones.
type Classifier interface {
	Inspect(page *models.Page, probe detect.Probe) (models.PageState, string)
}

// Extractor reads profile fields from a target page.
type Extractor interface {
	Extract(page *models.Page, authenticated bool) models.Fields
	HasContent(page *models.Page) bool
}

// RecordWriter receives every finished record.
type RecordWriter interface {
	Write(rec models.Record) error
}

// Options configure a Pipeline.
type Options struct {
	// SearchURL is the search URL template with a {query} placeholder.
	SearchURL string

	// Follow navigates to the located result. When false the result URL is
	// recorded without visiting it.
	Follow bool

	NavigationTimeout time.Duration
	Delay             time.Duration
	Jitter            time.Duration
}

// Pipeline processes queries strictly one at a time.
type Pipeline struct {
	mu sync.Mutex

	opts          Options
	nav           Navigator
	locator       Locator
	classifier    Classifier
	extractor     Extractor
	authenticated func() bool
	dumper        *Dumper
	pacer         *pacer
}

// New creates a Pipeline with the default locator, detector and extractor.
func New(opts Options, nav Navigator) *Pipeline {
	return &Pipeline{
		opts:          opts,
		nav:           nav,
		locator:       locator.New(nil),
		classifier:    detect.New(),
		extractor:     extract.New(),
		authenticated: func() bool { return false },
		pacer:         newPacer(opts.Delay, opts.Jitter),
	}
}

func (p *Pipeline) SetLocator(l Locator)           { p.locator = l }
func (p *Pipeline) SetClassifier(c Classifier)     { p.classifier = c }
func (p *Pipeline) SetExtractor(e Extractor)       { p.extractor = e }
func (p *Pipeline) SetDumper(d *Dumper)            { p.dumper = d }
func (p *Pipeline) SetAuthenticated(f func() bool) { p.authenticated = f }

// Run processes every query in order and writes one record per query. A
// cancelled context stops the batch after the in-flight query is recorded.
// Only a failing RecordWriter aborts with an error.
func (p *Pipeline) Run(ctx context.Context, queries []string, w RecordWriter) (*models.Summary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	summary := models.NewSummary(uuid.NewString())
	slog.Info("batch started", "run", summary.RunID, "queries", len(queries))

	for _, q := range queries {
		if err := p.pacer.Wait(ctx); err != nil {
			summary.Interrupted = true
			break
		}

		start := time.Now()
		rec := p.process(ctx, q)
		if err := w.Write(rec); err != nil {
			summary.Finished = time.Now()
			return summary, fmt.Errorf("pipeline: write record for %q: %w", q, err)
		}
		summary.Add(rec)

		slog.Info("query processed",
			"query", q,
			"status", rec.Status,
			"strategy", rec.Strategy,
			"engine", rec.Engine,
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
		if ctx.Err() != nil {
			summary.Interrupted = summary.Total < len(queries)
			break
		}
	}

	summary.Finished = time.Now()
	slog.Info("batch finished",
		"run", summary.RunID,
		"total", summary.Total,
		"interrupted", summary.Interrupted,
		"by_status", summary.ByStatus,
	)
	return summary, nil
}

// Process runs a single query outside of a batch. It shares the batch
// pacing, so back to back calls are spaced like queries of one run.
func (p *Pipeline) Process(ctx context.Context, query string) models.Record {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.pacer.Wait(ctx); err != nil {
		rec := fail(models.Record{Query: query}, models.StatusError, "query not started: %v", err)
		rec.ProcessedAt = time.Now()
		return rec
	}
	return p.process(ctx, query)
}

// process is the per-query state machine. Panics become error records.
func (p *Pipeline) process(ctx context.Context, query string) (rec models.Record) {
	rec = models.Record{Query: query}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("query panic recovered", "query", query, "panic", r)
			rec.Status = models.StatusError
			rec.Error = fmt.Sprintf("%s: internal error: %v", models.ErrCodeInternal, r)
		}
		rec.ProcessedAt = time.Now()
	}()

	// ── 1. Searching ─────────────────────────────────────────────────
	searchCtx := models.WithLoadOptions(ctx, models.LoadOptions{WaitSelector: p.locator.WaitSelector()})
	searchPage, err := p.nav.Navigate(searchCtx, BuildSearchURL(p.opts.SearchURL, query), p.opts.NavigationTimeout)
	if err != nil {
		return fail(rec, models.StatusError, "could not load search page: %v", err)
	}
	rec.Engine = searchPage.Engine

	state, reason := p.classifier.Inspect(searchPage, p.locator.HasCandidates)
	if state != models.PageOK {
		p.dumper.Dump(query, "search", searchPage)
	}
	switch state {
	case models.PageLoadError:
		return fail(rec, models.StatusError, "could not load search page: %s", reason)
	case models.PageBlocked:
		return fail(rec, models.StatusBlocked, "search page blocked: %s", reason)
	case models.PageEmpty:
		return fail(rec, models.StatusNotFound, "search returned no results")
	}

	// ── 2. Locating ──────────────────────────────────────────────────
	cand, ok := p.locator.Locate(searchPage)
	if !ok {
		p.dumper.Dump(query, "search", searchPage)
		return fail(rec, models.StatusNotFound, "no suitable link found")
	}
	rec.URL = cand.URL
	rec.Strategy = cand.StrategyName

	if !p.opts.Follow {
		rec.Status = models.StatusSuccess
		return rec
	}

	// ── 3. Navigating ────────────────────────────────────────────────
	target, err := p.nav.Navigate(ctx, cand.URL, p.opts.NavigationTimeout)
	if err != nil {
		return fail(rec, models.StatusError, "could not load result page: %v", err)
	}
	rec.Engine = target.Engine

	// ── 4. Classifying ───────────────────────────────────────────────
	state, reason = p.classifier.Inspect(target, p.extractor.HasContent)
	if state != models.PageOK {
		p.dumper.Dump(query, "target", target)
	}
	switch state {
	case models.PageLoadError:
		return fail(rec, models.StatusError, "could not load result page: %s", reason)
	case models.PageBlocked:
		return fail(rec, models.StatusBlocked, "result page blocked: %s", reason)
	case models.PageEmpty:
		return fail(rec, models.StatusNotFound, "result page has no profile content")
	}
	if target.FinalURL != "" {
		rec.URL = target.FinalURL
	}

	// ── 5. Extracting ────────────────────────────────────────────────
	rec.Fields = p.extractor.Extract(target, p.authenticated())
	rec.Status = rec.Fields.Status()
	switch rec.Status {
	case models.StatusExtractionPartial:
		rec.Error = "missing fields: " + strings.Join(rec.Fields.Missing(), ", ")
	case models.StatusError:
		rec.Error = "no fields extracted"
		p.dumper.Dump(query, "target", target)
	}
	return rec
}

func fail(rec models.Record, status models.Status, format string, args ...any) models.Record {
	rec.Status = status
	rec.Error = fmt.Sprintf(format, args...)
	return rec
}
