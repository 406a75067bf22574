package models

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// Page is a snapshot of one page load. The parsed document is built lazily
// and shared by every stage that inspects the page.
type Page struct {
	RequestURL string
	FinalURL   string
	StatusCode int
	Title      string
	HTML       string
	Engine     string

	once   sync.Once
	doc    *goquery.Document
	docErr error
}

// Document returns the parsed DOM of the page.
func (p *Page) Document() (*goquery.Document, error) {
	p.once.Do(func() {
		p.doc, p.docErr = goquery.NewDocumentFromReader(strings.NewReader(p.HTML))
	})
	return p.doc, p.docErr
}

// BaseURL is the URL relative links on the page resolve against.
func (p *Page) BaseURL() *url.URL {
	for _, raw := range []string{p.FinalURL, p.RequestURL} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err == nil {
			return u
		}
	}
	return &url.URL{}
}

// LoadOptions tune a single page load. Navigators without a live DOM
// ignore them.
type LoadOptions struct {
	// WaitSelector delays the snapshot until it matches, bounded by the
	// element timeout. A miss is not an error.
	WaitSelector string
}

type loadOptionsKey struct{}

// WithLoadOptions attaches opts to ctx for the next Navigate call.
func WithLoadOptions(ctx context.Context, opts LoadOptions) context.Context {
	return context.WithValue(ctx, loadOptionsKey{}, opts)
}

// LoadOptionsFrom returns the options attached to ctx, if any.
func LoadOptionsFrom(ctx context.Context) LoadOptions {
	opts, _ := ctx.Value(loadOptionsKey{}).(LoadOptions)
	return opts
}
