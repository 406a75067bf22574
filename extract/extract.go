// Package extract pulls profile fields out of a loaded target page.
package extract

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/use-agent/serpwalk/models"
)

// source is everything a strategy may read, computed once per page.
type source struct {
	page          *models.Page
	doc           *goquery.Document
	meta          []string
	ld            linkedData
	authenticated bool
}

// strategy yields one field value or "".
type strategy struct {
	name      string
	needsAuth bool
	run       func(src *source) string
}

// Extractor runs the per-field strategy chains.
type Extractor struct {
	chains map[string][]strategy
}

// New creates an Extractor with the Instagram profile chains.
func New() *Extractor {
	return &Extractor{chains: map[string][]strategy{
		models.FieldFollowers: countChain(models.FieldFollowers),
		models.FieldFollowing: countChain(models.FieldFollowing),
		models.FieldPosts:     countChain(models.FieldPosts),
		models.FieldBio: {
			{name: "jsonld-description", run: func(src *source) string { return src.ld.Description }},
			{name: "header-bio", needsAuth: true, run: headerBio},
			{name: "meta-quote", run: metaQuote},
			{name: "readability-excerpt", run: readabilityExcerpt},
		},
	}}
}

func countChain(field string) []strategy {
	return []strategy{
		{name: "meta-summary", run: func(src *source) string { return metaCount(src, field) }},
		{name: "jsonld-counter", run: func(src *source) string { return ldCount(src, field) }},
		{name: "header-text", needsAuth: true, run: func(src *source) string { return headerCount(src, field) }},
	}
}

// safeRun contains a panicking strategy so the chain moves on to the next one.
func (st strategy) safeRun(src *source, field string) (v string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("extract strategy panic recovered",
				"field", field,
				"strategy", st.name,
				"url", src.page.FinalURL,
				"panic", r,
			)
			v = ""
		}
	}()
	return st.run(src)
}

// Extract fills every field it can. Fields no strategy produced stay empty.
func (e *Extractor) Extract(page *models.Page, authenticated bool) (fields models.Fields) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("extractor panic recovered", "url", page.FinalURL, "panic", r)
		}
	}()

	doc, err := page.Document()
	if err != nil || doc == nil {
		return models.Fields{}
	}
	src := &source{
		page:          page,
		doc:           doc,
		meta:          metaDescriptions(doc),
		ld:            parseLinkedData(doc),
		authenticated: authenticated,
	}

	for _, name := range models.FieldNames {
		for _, st := range e.chains[name] {
			if st.needsAuth && !authenticated {
				continue
			}
			v := st.safeRun(src, name)
			if name == models.FieldBio {
				v = collapseSpace(v)
			}
			if v != "" {
				fields.Set(name, v)
				slog.Debug("field extracted", "field", name, "strategy", st.name, "url", page.FinalURL)
				break
			}
		}
	}
	return fields
}

// unavailable marks Instagram's missing-profile page.
var unavailable = []string{
	"sorry, this page isn't available",
	"the link you followed may be broken",
	"profile isn't available",
}

// HasContent reports whether the page looks like a profile worth extracting.
func (e *Extractor) HasContent(page *models.Page) bool {
	doc, err := page.Document()
	if err != nil || doc == nil {
		return false
	}
	text := strings.ToLower(doc.Find("body").Text())
	for _, phrase := range unavailable {
		if strings.Contains(text, phrase) {
			return false
		}
	}
	if len(metaDescriptions(doc)) > 0 {
		return true
	}
	return doc.Find(`script[type="application/ld+json"], header`).Length() > 0
}

// metaDescriptions returns og:description then description content.
func metaDescriptions(doc *goquery.Document) []string {
	var out []string
	for _, sel := range []string{`meta[property="og:description"]`, `meta[name="description"]`, `meta[name="twitter:description"]`} {
		if v := strings.TrimSpace(doc.Find(sel).First().AttrOr("content", "")); v != "" {
			out = append(out, v)
		}
	}
	return out
}

const countToken = `([0-9][0-9.,]*(?:\s?(?:[KkMmBb]|mil|mi|mln))?)`

// countLabels are the label words after each count in summaries and headers.
var countLabels = map[string]*regexp.Regexp{
	models.FieldFollowers: regexp.MustCompile(`(?i)` + countToken + `\s+(?:followers|seguidores|follower)\b`),
	models.FieldFollowing: regexp.MustCompile(`(?i)` + countToken + `\s+(?:following|seguidos|seguindo|abonnements)\b`),
	models.FieldPosts:     regexp.MustCompile(`(?i)` + countToken + `\s+(?:posts|post|publicaciones|publicações|publications)\b`),
}

// summary matches "1,234 Followers, 56 Following, 78 Posts - ..." meta text.
var reSummary = regexp.MustCompile(`(?i)^\s*[0-9][0-9.,]*\s?[a-z]*\s+\S+,\s*[0-9]`)

func metaCount(src *source, field string) string {
	for _, m := range src.meta {
		if v := labelledCount(m, field); v != "" {
			return v
		}
	}
	return ""
}

func ldCount(src *source, field string) string {
	switch field {
	case models.FieldFollowers:
		return src.ld.Followers
	case models.FieldFollowing:
		return src.ld.Following
	case models.FieldPosts:
		return src.ld.Posts
	}
	return ""
}

// headerCount reads the logged-in profile header. Exact counts live in the
// title attribute of the followers link when present.
func headerCount(src *source, field string) string {
	if field == models.FieldFollowers {
		if title, ok := src.doc.Find(`a[href$="/followers/"] span[title]`).First().Attr("title"); ok {
			if v := NormalizeCount(title); v != "" {
				return v
			}
		}
	}
	var found string
	src.doc.Find(`header li, a[href$="/followers/"], a[href$="/following/"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		found = labelledCount(collapseSpace(s.Text()), field)
		return found == ""
	})
	return found
}

func labelledCount(text, field string) string {
	re, ok := countLabels[field]
	if !ok {
		return ""
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return NormalizeCount(m[1])
}

var headerBioSelectors = []string{
	`header section h1 ~ span`,
	`header section > div > span`,
	`div.-vDIg span`,
	`header section div[dir="auto"]`,
}

func headerBio(src *source) string {
	for _, sel := range headerBioSelectors {
		if v := collapseSpace(src.doc.Find(sel).First().Text()); v != "" {
			return v
		}
	}
	return ""
}

// reMetaQuote finds the bio quoted after the "Name (@handle) on Instagram:"
// preamble.
var reMetaQuote = regexp.MustCompile(`(?s)\(@[A-Za-z0-9._]+\)[^:"“]*:\s*["“](.+)["”]\s*$`)

func metaQuote(src *source) string {
	for _, m := range src.meta {
		if sub := reMetaQuote.FindStringSubmatch(m); sub != nil {
			return sub[1]
		}
	}
	return ""
}

// readabilityExcerpt is the last resort. Count summaries are not bios.
func readabilityExcerpt(src *source) string {
	article, err := readability.FromReader(strings.NewReader(src.page.HTML), src.page.BaseURL())
	if err != nil {
		return ""
	}
	excerpt := collapseSpace(article.Excerpt)
	if excerpt == "" || reSummary.MatchString(excerpt) {
		return ""
	}
	return excerpt
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
