package locator

import (
	"net/url"
	"regexp"
	"strings"
)

// ProfileRule canonicalizes a URL on a preferred host, rejecting URLs that
// are not profile pages.
type ProfileRule func(u *url.URL) (string, bool)

// profileRules holds the profile page rules for known hosts.
var profileRules = map[string]ProfileRule{
	"instagram.com": instagramProfile,
}

var instagramHandle = regexp.MustCompile(`^/([A-Za-z0-9._]{1,30})/?$`)

// instagramReserved are first path segments that are not user handles.
var instagramReserved = map[string]struct{}{
	"p":         {},
	"reel":      {},
	"reels":     {},
	"explore":   {},
	"accounts":  {},
	"stories":   {},
	"tv":        {},
	"direct":    {},
	"about":     {},
	"legal":     {},
	"developer": {},
}

// instagramProfile accepts https?://(www.)?instagram.com/<handle>/ and
// returns https://www.instagram.com/<handle>/.
func instagramProfile(u *url.URL) (string, bool) {
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host != "instagram.com" && host != "www.instagram.com" {
		return "", false
	}
	m := instagramHandle.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}
	handle := strings.ToLower(m[1])
	if _, reserved := instagramReserved[handle]; reserved {
		return "", false
	}
	return "https://www.instagram.com/" + handle + "/", true
}

// DomainFilter restricts candidates to preferred hosts. Hosts with a known
// profile rule only accept profile pages.
type DomainFilter struct {
	Hosts []string

	// Strict rejects every result outside Hosts. When false, the first
	// unfiltered result is used if nothing matched.
	Strict bool
}

// NewDomainFilter builds a filter for hosts; it returns nil for no hosts.
func NewDomainFilter(hosts []string, strict bool) *DomainFilter {
	cleaned := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(h)), "www.")
		if h != "" {
			cleaned = append(cleaned, h)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}
	return &DomainFilter{Hosts: cleaned, Strict: strict}
}

// Accept reports whether raw points at a preferred host and returns the
// canonical form of the URL.
func (f *DomainFilter) Accept(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	for _, want := range f.Hosts {
		if host != want && !strings.HasSuffix(host, "."+want) {
			continue
		}
		if rule, ok := profileRules[want]; ok {
			return rule(u)
		}
		u.Fragment = ""
		return u.String(), true
	}
	return "", false
}

// matchesProfile reports whether raw is a profile page on any known host.
func matchesProfile(raw string, f *DomainFilter) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if f != nil {
		_, ok := f.Accept(raw)
		return ok
	}
	for _, rule := range profileRules {
		if _, ok := rule(u); ok {
			return true
		}
	}
	return false
}
