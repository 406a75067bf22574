package engine

import (
	"context"
	"time"

	"github.com/use-agent/serpwalk/models"
)

// Engine is the interface that all fetch engines must implement.
type Engine interface {
	// Name returns the engine identifier ("http" or "rod").
	Name() string

	// Fetch loads the page for the given request.
	Fetch(ctx context.Context, req *FetchRequest) (*models.Page, error)
}

// FetchRequest contains everything an engine needs to load a page.
type FetchRequest struct {
	URL     string
	Headers map[string]string
	Timeout time.Duration
}

// AcceptFunc vets a fetched page. A non-nil error makes the dispatcher try
// the next engine.
type AcceptFunc func(page *models.Page) error
