package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/use-agent/serpwalk/models"
)

// RodFetchFunc loads a URL in a real browser. main wires it to
// session.Session.Navigate so engine/ does not import session/.
type RodFetchFunc func(ctx context.Context, url string, timeout time.Duration) (*models.Page, error)

// RodEngine is the browser-backed engine.
type RodEngine struct {
	fetchFunc RodFetchFunc
}

// NewRodEngine creates a RodEngine around the session's navigate callback.
func NewRodEngine(fetchFunc RodFetchFunc) *RodEngine {
	return &RodEngine{fetchFunc: fetchFunc}
}

func (e *RodEngine) Name() string { return "rod" }

func (e *RodEngine) Fetch(ctx context.Context, req *FetchRequest) (*models.Page, error) {
	if e.fetchFunc == nil {
		return nil, fmt.Errorf("rod: fetchFunc not configured")
	}
	page, err := e.fetchFunc(ctx, req.URL, req.Timeout)
	if err != nil {
		return nil, fmt.Errorf("rod: %w", err)
	}
	page.Engine = e.Name()
	return page, nil
}
