package locator

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/publicsuffix"
)

// redirectParams are the query keys search engines hide targets in, per path.
var redirectParams = map[string][]string{
	"/l/":  {"uddg"},
	"/l":   {"uddg"},
	"/url": {"q", "url"},
}

// resolveHref turns an anchor href into an absolute http(s) URL, unwrapping
// search-engine redirect links. It returns "" for anything else.
func resolveHref(href string, base *url.URL) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	u := base.ResolveReference(ref)

	if keys, ok := redirectParams[u.Path]; ok {
		q := u.Query()
		for _, key := range keys {
			if target := q.Get(key); target != "" {
				if inner, err := url.Parse(target); err == nil && inner.IsAbs() {
					u = inner
					break
				}
			}
		}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if u.Host == "" {
		return ""
	}
	return u.String()
}

// registrableDomain returns the eTLD+1 of host, or host itself when it has
// none (IPs, localhost).
func registrableDomain(host string) string {
	host = strings.ToLower(host)
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return host
}

// isSelfLink reports whether raw points back at the search engine itself.
func isSelfLink(raw string, base *url.URL) bool {
	if base == nil || base.Hostname() == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return true
	}
	return registrableDomain(u.Hostname()) == registrableDomain(base.Hostname())
}

// isVisible walks n and its ancestors looking for markers that hide it.
func isVisible(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		for _, a := range cur.Attr {
			switch strings.ToLower(a.Key) {
			case "hidden":
				return false
			case "aria-hidden":
				if strings.EqualFold(strings.TrimSpace(a.Val), "true") {
					return false
				}
			case "style":
				style := strings.ToLower(strings.ReplaceAll(a.Val, " ", ""))
				if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
					return false
				}
			}
		}
	}
	return true
}
