// Package locator picks the result link to follow on a search results page.
package locator

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/use-agent/serpwalk/models"
)

// Strategy is one way of finding result anchors, tried in order.
type Strategy struct {
	Name     string
	Selector cascadia.Selector

	// ProfileOnly keeps only anchors that look like profile pages.
	ProfileOnly bool
}

// headingContainers hold organic results on the engines we know.
var headingContainers = []string{
	"#links", ".results", "#search", "#rso", "#b_results",
	`[data-testid="mainline"]`, "ol.react-results--main",
}

func headingSelector() string {
	parts := make([]string, 0, len(headingContainers)*4)
	for _, c := range headingContainers {
		parts = append(parts,
			c+" h2 a[href]", c+" h3 a[href]",
			c+" a[href]:has(h2)", c+" a[href]:has(h3)",
		)
	}
	return strings.Join(parts, ", ")
}

// DefaultStrategies are ordered from the most specific to the loosest.
var DefaultStrategies = []Strategy{
	{Name: "heading-anchor", Selector: cascadia.MustCompile(headingSelector())},
	{Name: "ddg-result-link", Selector: cascadia.MustCompile(`a.result__a[href], a[data-testid="result-title-a"][href]`)},
	{Name: "google-organic", Selector: cascadia.MustCompile(`#search a[href]:has(h3), div.g a[href], #rso a[href]`)},
	{Name: "profile-pattern", Selector: cascadia.MustCompile(`a[href]`), ProfileOnly: true},
	{Name: "external-anchor", Selector: cascadia.MustCompile(`a[href]`)},
}

var anyAnchor = Strategy{Name: "any", Selector: cascadia.MustCompile(`a[href]`)}

// ResultSelector matches once a results page has rendered its organic links.
const ResultSelector = `a.result__a[href], a[data-testid="result-title-a"][href], h2 a[href], h3 a[href], a[href] h2, a[href] h3`

// Locator walks the strategies over a search page.
type Locator struct {
	strategies []Strategy
	filter     *DomainFilter
}

// New creates a Locator. filter may be nil to accept any result.
func New(filter *DomainFilter) *Locator {
	return &Locator{strategies: DefaultStrategies, filter: filter}
}

// WithStrategies replaces the strategy chain.
func (l *Locator) WithStrategies(strategies []Strategy) *Locator {
	l.strategies = strategies
	return l
}

// Locate returns the result to follow. The first strategy yielding an
// accepted link wins; with a non-strict filter the first link of the
// earliest productive strategy is the fallback. ok is false only when
// every strategy came up empty.
func (l *Locator) Locate(page *models.Page) (cand models.Candidate, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("locator panic recovered", "url", page.FinalURL, "panic", r)
			cand, ok = models.Candidate{}, false
		}
	}()

	doc, err := page.Document()
	if err != nil || doc == nil {
		return models.Candidate{}, false
	}

	var fallback *models.Candidate
	for i, st := range l.strategies {
		hrefs := l.collect(doc, page, st)
		for _, href := range hrefs {
			if l.filter == nil {
				return models.Candidate{URL: href, Strategy: i + 1, StrategyName: st.Name}, true
			}
			if canon, accepted := l.filter.Accept(href); accepted {
				return models.Candidate{URL: canon, Strategy: i + 1, StrategyName: st.Name}, true
			}
		}
		if fallback == nil && len(hrefs) > 0 {
			fallback = &models.Candidate{URL: hrefs[0], Strategy: i + 1, StrategyName: st.Name}
		}
	}

	if fallback != nil && l.filter != nil && !l.filter.Strict {
		slog.Debug("no preferred result, using first result", "url", fallback.URL, "strategy", fallback.StrategyName)
		return *fallback, true
	}
	return models.Candidate{}, false
}

// WaitSelector is the CSS a browser waits on before the search page is read.
func (l *Locator) WaitSelector() string { return ResultSelector }

// HasCandidates reports whether the page holds any followable link at all.
func (l *Locator) HasCandidates(page *models.Page) bool {
	doc, err := page.Document()
	if err != nil || doc == nil {
		return false
	}
	return len(l.collect(doc, page, anyAnchor)) > 0
}

// collect returns the unique, visible, external hrefs a strategy matches,
// in document order.
func (l *Locator) collect(doc *goquery.Document, page *models.Page, st Strategy) []string {
	base := page.BaseURL()
	seen := make(map[string]struct{})
	var hrefs []string

	doc.FindMatcher(st.Selector).Each(func(_ int, a *goquery.Selection) {
		node := a.Get(0)
		if node == nil || !isVisible(node) {
			return
		}
		href := resolveHref(a.AttrOr("href", ""), base)
		if href == "" || isSelfLink(href, base) {
			return
		}
		if st.ProfileOnly && !matchesProfile(href, l.filter) {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		hrefs = append(hrefs, href)
	})
	return hrefs
}
