package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/serpwalk/extract"
	"github.com/use-agent/serpwalk/locator"
	"github.com/use-agent/serpwalk/models"
)

const searchTemplate = "https://duckduckgo.com/?q={query}"

// fakeNavigator serves canned HTML keyed by URL.
type fakeNavigator struct {
	pages     map[string]string
	errs      map[string]error
	panics    map[string]bool
	redirects map[string]string
	visits    []string
	waits     []string
}

func newFakeNavigator() *fakeNavigator {
	return &fakeNavigator{
		pages:     map[string]string{},
		errs:      map[string]error{},
		panics:    map[string]bool{},
		redirects: map[string]string{},
	}
}

func (f *fakeNavigator) Navigate(ctx context.Context, url string, _ time.Duration) (*models.Page, error) {
	f.visits = append(f.visits, url)
	f.waits = append(f.waits, models.LoadOptionsFrom(ctx).WaitSelector)
	if f.panics[url] {
		panic("renderer crashed")
	}
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	html, ok := f.pages[url]
	if !ok {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "unknown url "+url, nil)
	}
	final := url
	if to, ok := f.redirects[url]; ok {
		final = to
	}
	return &models.Page{RequestURL: url, FinalURL: final, StatusCode: 200, HTML: html, Engine: "fake"}, nil
}

func (f *fakeNavigator) search(query, body string) {
	f.pages[BuildSearchURL(searchTemplate, query)] = "<html><body>" + body + "</body></html>"
}

// spyExtractor records whether extraction was attempted.
type spyExtractor struct {
	inner *extract.Extractor
	calls int
}

func (s *spyExtractor) Extract(page *models.Page, authenticated bool) models.Fields {
	s.calls++
	return s.inner.Extract(page, authenticated)
}

func (s *spyExtractor) HasContent(page *models.Page) bool { return s.inner.HasContent(page) }

type memWriter struct {
	records []models.Record
	failOn  int
}

func (m *memWriter) Write(rec models.Record) error {
	if m.failOn > 0 && len(m.records)+1 == m.failOn {
		return errors.New("disk full")
	}
	m.records = append(m.records, rec)
	return nil
}

const fullProfile = `<html><head>
	<meta property="og:description" content="2,048 Followers, 311 Following, 87 Posts - Alice (@alice_travel) on Instagram: &quot;Wandering the world one photo at a time&quot;">
</head><body><main></main></body></html>`

const captchaPage = `<form id="captcha-form"><div class="g-recaptcha"></div></form>`

func newTestPipeline(nav Navigator, follow bool) (*Pipeline, *spyExtractor) {
	p := New(Options{SearchURL: searchTemplate, Follow: follow, NavigationTimeout: time.Second}, nav)
	p.SetLocator(locator.New(locator.NewDomainFilter([]string{"instagram.com"}, true)))
	spy := &spyExtractor{inner: extract.New()}
	p.SetExtractor(spy)
	return p, spy
}

func TestScenarioA_Success(t *testing.T) {
	nav := newFakeNavigator()
	nav.search("alice_travel", `<div id="links"><h2><a class="result__a" href="https://www.instagram.com/alice_travel/">Alice</a></h2></div>`)
	nav.pages["https://www.instagram.com/alice_travel/"] = fullProfile

	p, _ := newTestPipeline(nav, true)
	w := &memWriter{}
	summary, err := p.Run(context.Background(), []string{"alice_travel"}, w)
	require.NoError(t, err)

	require.Len(t, w.records, 1)
	rec := w.records[0]
	assert.Equal(t, models.StatusSuccess, rec.Status)
	assert.Equal(t, "https://www.instagram.com/alice_travel/", rec.URL)
	assert.Equal(t, "heading-anchor", rec.Strategy)
	assert.Equal(t, "2048", rec.Fields.Followers)
	assert.Equal(t, "311", rec.Fields.Following)
	assert.Equal(t, "87", rec.Fields.Posts)
	assert.Equal(t, "Wandering the world one photo at a time", rec.Fields.Bio)
	assert.False(t, rec.ProcessedAt.IsZero())
	assert.Equal(t, 1, summary.ByStatus[models.StatusSuccess])
	assert.NotEmpty(t, summary.RunID)
}

func TestScenarioB_NotFoundWithoutNavigation(t *testing.T) {
	nav := newFakeNavigator()
	nav.search("zz_no_such_query_xyz", `<div id="links"><h2><a href="https://example.org/zz">Something else</a></h2></div>`)

	p, spy := newTestPipeline(nav, true)
	w := &memWriter{}
	_, err := p.Run(context.Background(), []string{"zz_no_such_query_xyz"}, w)
	require.NoError(t, err)

	require.Len(t, w.records, 1)
	assert.Equal(t, models.StatusNotFound, w.records[0].Status)
	assert.Empty(t, w.records[0].URL)
	assert.Len(t, nav.visits, 1, "only the search page is loaded")
	assert.Equal(t, 0, spy.calls)
}

func TestScenarioC_BlockedThenContinues(t *testing.T) {
	nav := newFakeNavigator()
	nav.search("q1", captchaPage)
	nav.search("q2", `<div id="links"><h2><a href="https://instagram.com/q2">Q2</a></h2></div>`)
	nav.pages["https://www.instagram.com/q2/"] = fullProfile

	p, spy := newTestPipeline(nav, true)
	w := &memWriter{}
	summary, err := p.Run(context.Background(), []string{"q1", "q2"}, w)
	require.NoError(t, err)

	require.Len(t, w.records, 2)
	assert.Equal(t, "q1", w.records[0].Query)
	assert.Equal(t, models.StatusBlocked, w.records[0].Status)
	assert.Equal(t, "q2", w.records[1].Query)
	assert.Equal(t, models.StatusSuccess, w.records[1].Status)
	assert.Equal(t, 1, spy.calls)
	assert.Equal(t, 2, summary.Total)
}

func TestBlockedTargetNeverExtracted(t *testing.T) {
	nav := newFakeNavigator()
	nav.search("bob", `<a href="https://www.instagram.com/bob/">Bob</a>`)
	nav.pages["https://www.instagram.com/bob/"] = "<html><body>" + captchaPage + "</body></html>"

	p, spy := newTestPipeline(nav, true)
	rec := p.Process(context.Background(), "bob")

	assert.Equal(t, models.StatusBlocked, rec.Status)
	assert.Equal(t, "https://www.instagram.com/bob/", rec.URL)
	assert.Equal(t, 0, spy.calls)
}

func TestMissingFieldIsPartial(t *testing.T) {
	nav := newFakeNavigator()
	nav.search("carol", `<a href="https://www.instagram.com/carol/">Carol</a>`)
	nav.pages["https://www.instagram.com/carol/"] = `<html><head><meta property="og:description" content="10 Followers, 20 Following, 30 Posts - See Instagram photos and videos from Carol (@carol)"></head><body></body></html>`

	p, _ := newTestPipeline(nav, true)
	rec := p.Process(context.Background(), "carol")

	assert.Equal(t, models.StatusExtractionPartial, rec.Status)
	assert.Equal(t, "missing fields: bio", rec.Error)
	assert.Equal(t, "10", rec.Fields.Followers)
}

func TestRecordPerQueryUnderFailures(t *testing.T) {
	nav := newFakeNavigator()
	nav.search("ok", `<a href="https://www.instagram.com/ok/">ok</a>`)
	nav.pages["https://www.instagram.com/ok/"] = fullProfile
	nav.errs[BuildSearchURL(searchTemplate, "down")] = models.NewScrapeError(models.ErrCodeTimeout, "deadline", context.DeadlineExceeded)
	nav.panics[BuildSearchURL(searchTemplate, "boom")] = true
	nav.search("gone", `<a href="https://www.instagram.com/gone/">gone</a>`)
	nav.pages["https://www.instagram.com/gone/"] = `<html><body><h2>Sorry, this page isn't available.</h2></body></html>`
	nav.search("empty", `<p>No results.</p>`)

	queries := []string{"ok", "down", "boom", "gone", "empty", "missing-target"}
	nav.search("missing-target", `<a href="https://www.instagram.com/missing_target/">x</a>`)

	p, _ := newTestPipeline(nav, true)
	w := &memWriter{}
	summary, err := p.Run(context.Background(), queries, w)
	require.NoError(t, err)

	require.Len(t, w.records, len(queries))
	want := []models.Status{
		models.StatusSuccess,
		models.StatusError,
		models.StatusError,
		models.StatusNotFound,
		models.StatusNotFound,
		models.StatusError,
	}
	for i, rec := range w.records {
		assert.Equal(t, queries[i], rec.Query)
		assert.Equal(t, want[i], rec.Status, rec.Query)
	}
	assert.Contains(t, w.records[2].Error, "internal error")
	assert.Equal(t, len(queries), summary.Total)
	assert.False(t, summary.Interrupted)
}

func TestNoFollowRecordsCandidateOnly(t *testing.T) {
	nav := newFakeNavigator()
	nav.search("dave", `<a class="result__a" href="https://www.instagram.com/dave/">Dave</a>`)

	p, spy := newTestPipeline(nav, false)
	rec := p.Process(context.Background(), "dave")

	assert.Equal(t, models.StatusSuccess, rec.Status)
	assert.Equal(t, "https://www.instagram.com/dave/", rec.URL)
	assert.Equal(t, "ddg-result-link", rec.Strategy)
	assert.Len(t, nav.visits, 1)
	assert.Equal(t, 0, spy.calls)
}

func TestWriterFailureAborts(t *testing.T) {
	nav := newFakeNavigator()
	nav.search("a", `<p>none</p>`)
	nav.search("b", `<p>none</p>`)

	p, _ := newTestPipeline(nav, true)
	_, err := p.Run(context.Background(), []string{"a", "b"}, &memWriter{failOn: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Len(t, nav.visits, 1)
}

func TestCancelStopsAfterInFlightQuery(t *testing.T) {
	nav := newFakeNavigator()
	nav.search("first", `<p>none</p>`)
	nav.search("second", `<p>none</p>`)

	ctx, cancel := context.WithCancel(context.Background())
	w := &cancelingWriter{cancel: cancel}

	p, _ := newTestPipeline(nav, true)
	summary, err := p.Run(ctx, []string{"first", "second"}, w)
	require.NoError(t, err)
	assert.Equal(t, 1, w.n)
	assert.True(t, summary.Interrupted)
}

type cancelingWriter struct {
	cancel context.CancelFunc
	n      int
}

func (c *cancelingWriter) Write(models.Record) error {
	c.n++
	c.cancel()
	return nil
}

func TestPacerSpacesQueries(t *testing.T) {
	p := newPacer(40*time.Millisecond, 0)
	ctx := context.Background()
	start := time.Now()
	require.NoError(t, p.Wait(ctx))
	require.NoError(t, p.Wait(ctx))
	require.NoError(t, p.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)

	disabled := newPacer(0, 0)
	start = time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, disabled.Wait(ctx))
	}
	assert.Less(t, time.Since(start), 20*time.Millisecond)
}

func TestReadQueries(t *testing.T) {
	qs, err := ReadQueries(strings.NewReader("\ufeffalice\n\n  bob smith  \r\n\t\ncarol"))
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob smith", "carol"}, qs)
}

func TestBuildSearchURL(t *testing.T) {
	assert.Equal(t, "https://duckduckgo.com/?q=alice+travel+%26+co", BuildSearchURL(searchTemplate, "alice travel & co"))
}

func TestDumperWritesHTMLAndMarkdown(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDumper(filepath.Join(dir, "dumps"))
	require.NoError(t, err)

	d.Dump("Alice Travel!", "search", &models.Page{
		FinalURL:   "https://duckduckgo.com/?q=alice",
		StatusCode: 200,
		HTML:       `<html><body><h1>Blocked</h1><p>Please <a href="/help">verify</a></p></body></html>`,
		Engine:     "rod",
	})

	html, err := os.ReadFile(filepath.Join(dir, "dumps", "alice-travel-search.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "<h1>Blocked</h1>")

	md, err := os.ReadFile(filepath.Join(dir, "dumps", "alice-travel-search.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Blocked")
	assert.Contains(t, string(md), "https://duckduckgo.com/help")

	none, err := NewDumper("")
	require.NoError(t, err)
	assert.Nil(t, none)
	none.Dump("x", "search", &models.Page{HTML: "<p>x</p>"})
}

func TestChallengeWordingInContentIsNotABlock(t *testing.T) {
	nav := newFakeNavigator()
	nav.search("maker", `<div id="links">
		<h2><a href="https://www.instagram.com/maker/">Maker</a></h2>
		<p>Are you a robot? A maker's guide to home automation.</p>
	</div>`)
	nav.pages["https://www.instagram.com/maker/"] = `<html><head>
		<meta property="og:description" content="900 Followers, 12 Following, 40 Posts - Maker (@maker) on Instagram: &quot;I'm not a robot, just a maker&quot;">
	</head><body></body></html>`

	p, spy := newTestPipeline(nav, true)
	rec := p.Process(context.Background(), "maker")

	assert.Equal(t, models.StatusSuccess, rec.Status, rec.Error)
	assert.Equal(t, "https://www.instagram.com/maker/", rec.URL)
	assert.Equal(t, "I'm not a robot, just a maker", rec.Fields.Bio)
	assert.Equal(t, 1, spy.calls)
}

func TestProcessRespectsDelay(t *testing.T) {
	nav := newFakeNavigator()
	nav.search("a", `<p>none</p>`)
	nav.search("b", `<p>none</p>`)

	p := New(Options{SearchURL: searchTemplate, Follow: true, NavigationTimeout: time.Second, Delay: 80 * time.Millisecond}, nav)
	start := time.Now()
	p.Process(context.Background(), "a")
	p.Process(context.Background(), "b")
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
	assert.Len(t, nav.visits, 2)
}

func TestProcessCancelledBeforeStart(t *testing.T) {
	nav := newFakeNavigator()
	nav.search("a", `<p>none</p>`)

	p := New(Options{SearchURL: searchTemplate, Follow: true, NavigationTimeout: time.Second, Delay: time.Hour}, nav)
	p.Process(context.Background(), "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := p.Process(ctx, "b")

	assert.Equal(t, "b", rec.Query)
	assert.Equal(t, models.StatusError, rec.Status)
	assert.Contains(t, rec.Error, "query not started")
	assert.False(t, rec.ProcessedAt.IsZero())
	assert.Len(t, nav.visits, 1)
}

func TestSearchLoadWaitsForResults(t *testing.T) {
	nav := newFakeNavigator()
	nav.search("erin", `<a href="https://www.instagram.com/erin/">Erin</a>`)
	nav.pages["https://www.instagram.com/erin/"] = fullProfile

	p, _ := newTestPipeline(nav, true)
	p.Process(context.Background(), "erin")

	require.Len(t, nav.waits, 2)
	assert.Equal(t, locator.ResultSelector, nav.waits[0])
	assert.Empty(t, nav.waits[1], "profile loads do not wait on result links")
}

func TestRecordsRedirectedProfileURL(t *testing.T) {
	nav := newFakeNavigator()
	nav.search("frank", `<a href="https://www.instagram.com/frank/">Frank</a>`)
	nav.pages["https://www.instagram.com/frank/"] = fullProfile
	nav.redirects["https://www.instagram.com/frank/"] = "https://www.instagram.com/frank_photos/"

	p, _ := newTestPipeline(nav, true)
	rec := p.Process(context.Background(), "frank")

	assert.Equal(t, models.StatusSuccess, rec.Status)
	assert.Equal(t, "https://www.instagram.com/frank_photos/", rec.URL)
}
