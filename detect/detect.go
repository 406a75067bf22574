// Package detect classifies loaded pages as usable, blocked, empty or broken.
package detect

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/use-agent/serpwalk/models"
)

// Probe reports whether a page carries the content its stage needs.
type Probe func(page *models.Page) bool

// captchaMarkers are elements only challenge pages render.
var captchaMarkers = cascadia.MustCompile(strings.Join([]string{
	"form#captcha-form",
	"div.g-recaptcha",
	"#recaptcha",
	`iframe[src*="captcha"]`,
	`iframe[src*="challenge"]`,
	"#px-captcha",
	"#challenge-form",
	".cf-turnstile",
	".anomaly-modal__modal",
	"body.captcha",
}, ", "))

// captchaPhrases are matched against lowercased visible text.
var captchaPhrases = []string{
	"unusual traffic",
	"verify you are a human",
	"confirm you are a human",
	"are you a robot",
	"i'm not a robot",
	"bots use duckduckgo too",
	"complete the following challenge",
	"checking your browser before accessing",
	"please wait a few minutes before you try again",
}

// challengePaths mark redirects onto challenge or rate-limit pages.
var challengePaths = []string{"/sorry/", "/challenge/", "/checkpoint/"}

// loginWallPath is where Instagram sends anonymous visitors it refuses.
const loginWallPath = "/accounts/login"

// Detector classifies pages.
type Detector struct {
	phrases []string
}

// New creates a Detector with the built-in phrase list plus extra phrases.
func New(extraPhrases ...string) *Detector {
	phrases := make([]string, 0, len(captchaPhrases)+len(extraPhrases))
	phrases = append(phrases, captchaPhrases...)
	for _, p := range extraPhrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			phrases = append(phrases, p)
		}
	}
	return &Detector{phrases: phrases}
}

// Classify returns the page state. probe may be nil, in which case a page
// is never considered empty.
func (d *Detector) Classify(page *models.Page, probe Probe) models.PageState {
	state, _ := d.Inspect(page, probe)
	return state
}

// Inspect is Classify plus a short human-readable reason. Challenge text
// only counts on pages without the content probe is looking for; a page
// that carries results or a profile may quote those phrases.
func (d *Detector) Inspect(page *models.Page, probe Probe) (models.PageState, string) {
	// ── 1. Load errors ───────────────────────────────────────────────
	if page == nil || strings.TrimSpace(page.HTML) == "" {
		return models.PageLoadError, "no content loaded"
	}
	if page.StatusCode == http.StatusForbidden || page.StatusCode == http.StatusTooManyRequests {
		return models.PageBlocked, fmt.Sprintf("HTTP %d", page.StatusCode)
	}
	if page.StatusCode >= 400 {
		return models.PageLoadError, fmt.Sprintf("HTTP %d", page.StatusCode)
	}

	// ── 2. Blocks ────────────────────────────────────────────────────
	if reason := challengeURL(page); reason != "" {
		return models.PageBlocked, reason
	}
	doc, err := page.Document()
	if err != nil {
		return models.PageLoadError, "unparseable HTML"
	}
	if doc.FindMatcher(captchaMarkers).Length() > 0 {
		return models.PageBlocked, "captcha element present"
	}

	// ── 3. Content ───────────────────────────────────────────────────
	if probe != nil && probe(page) {
		return models.PageOK, ""
	}
	text := strings.ToLower(visibleText(doc) + " " + page.Title)
	for _, phrase := range d.phrases {
		if strings.Contains(text, phrase) {
			return models.PageBlocked, fmt.Sprintf("challenge text %q", phrase)
		}
	}
	if probe != nil {
		return models.PageEmpty, "no expected content"
	}

	return models.PageOK, ""
}

// challengeURL reports a redirect onto a challenge or login wall.
func challengeURL(page *models.Page) string {
	final, err := url.Parse(page.FinalURL)
	if err != nil {
		return ""
	}
	path := strings.ToLower(final.Path)
	for _, p := range challengePaths {
		if strings.Contains(path, p) {
			return "redirected to " + p
		}
	}
	if strings.HasPrefix(path, loginWallPath) {
		requested, err := url.Parse(page.RequestURL)
		if err == nil && !strings.HasPrefix(strings.ToLower(requested.Path), loginWallPath) {
			return "redirected to login wall"
		}
	}
	return ""
}

// visibleText returns body text without script and style contents.
func visibleText(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript, template").Remove()
	return strings.Join(strings.Fields(body.Text()), " ")
}
