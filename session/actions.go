package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/serpwalk/models"
)

// defaultActionTimeout applies when no element timeout is configured.
const defaultActionTimeout = 10 * time.Second

// keyNames maps action key names to Rod keyboard keys.
var keyNames = map[string]input.Key{
	"Enter":     input.Enter,
	"Tab":       input.Tab,
	"Escape":    input.Escape,
	"Backspace": input.Backspace,
	"ArrowDown": input.ArrowDown,
	"ArrowUp":   input.ArrowUp,
}

// Act runs the actions in order against the working tab. The first failing
// action stops the sequence.
func (s *Session) Act(ctx context.Context, actions []models.Action) error {
	if err := ValidateActions(actions); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.act(ctx, actions)
}

// act assumes s.mu is held.
func (s *Session) act(ctx context.Context, actions []models.Action) error {
	if s.page == nil {
		return models.NewScrapeError(models.ErrCodeBrowserCrash, "session is closed", nil)
	}
	for i, action := range actions {
		if err := s.executeSingleAction(ctx, action); err != nil {
			return models.NewScrapeError(
				models.ErrCodeActionFailed,
				fmt.Sprintf("action %d (%s) failed after %d completed", i, action.Type, i),
				err,
			)
		}
	}
	return nil
}

// interactive action types target an element that may not be on every page.
var interactive = map[string]bool{"click": true, "input": true, "press": true}

func (s *Session) elementTimeout() time.Duration {
	if s.scraperCfg.ElementTimeout > 0 {
		return s.scraperCfg.ElementTimeout
	}
	return defaultActionTimeout
}

// runPageActions runs the configured page actions after a load. Clicks,
// inputs and key presses on absent elements are skipped; the first failure
// ends the sequence. Assumes s.mu is held.
func (s *Session) runPageActions(ctx context.Context, url string) {
	for i, action := range s.scraperCfg.PageActions {
		if interactive[action.Type] && action.Selector != "" {
			has, _, err := s.page.Context(ctx).Has(action.Selector)
			if err != nil || !has {
				continue
			}
		}
		if err := s.executeSingleAction(ctx, action); err != nil {
			slog.Debug("page action failed", "url", url, "index", i, "type", action.Type, "error", err)
			return
		}
	}
}

// ValidateActions rejects actions missing the inputs their type needs.
func ValidateActions(actions []models.Action) error {
	for i, a := range actions {
		var problem string
		switch a.Type {
		case "wait":
			if a.Gone && a.Selector == "" {
				problem = "gone wait requires a selector"
			}
		case "click":
			if a.Selector == "" {
				problem = "click requires a selector"
			}
		case "input":
			if a.Selector == "" {
				problem = "input requires a selector"
			}
		case "press":
			if _, ok := keyNames[a.Key]; !ok {
				problem = fmt.Sprintf("unknown key %q", a.Key)
			}
		case "scroll":
		case "execute_js":
			if a.Code == "" {
				problem = "execute_js requires code"
			}
		default:
			problem = fmt.Sprintf("unknown action type %q", a.Type)
		}
		if problem != "" {
			return models.NewScrapeError(
				models.ErrCodeInvalidInput,
				fmt.Sprintf("action %d: %s", i, problem),
				nil,
			)
		}
	}
	return nil
}

// executeSingleAction dispatches a single action with its own timeout.
func (s *Session) executeSingleAction(ctx context.Context, action models.Action) error {
	actionCtx, cancel := context.WithTimeout(ctx, s.elementTimeout())
	defer cancel()

	p := s.page.Context(actionCtx)

	switch action.Type {
	case "wait":
		return execWait(p, action)
	case "click":
		return execClick(p, action)
	case "input":
		return execInput(p, action)
	case "press":
		return execPress(p, action)
	case "scroll":
		return execScroll(p, action)
	case "execute_js":
		_, err := p.Eval(action.Code)
		return err
	default:
		return fmt.Errorf("unknown action type: %s", action.Type)
	}
}

// execWait sleeps, waits for a selector to appear, or waits for it to go away.
func execWait(p *rod.Page, action models.Action) error {
	switch {
	case action.Gone:
		for {
			has, _, err := p.Has(action.Selector)
			if err != nil {
				return err
			}
			if !has {
				return nil
			}
			if err := sleepCtx(p.GetContext(), 250*time.Millisecond); err != nil {
				return err
			}
		}
	case action.Selector != "":
		return p.WaitElementsMoreThan(action.Selector, 0)
	case action.Milliseconds > 0:
		return sleepCtx(p.GetContext(), time.Duration(action.Milliseconds)*time.Millisecond)
	}
	return nil
}

func execClick(p *rod.Page, action models.Action) error {
	el, err := p.Element(action.Selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", action.Selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func execInput(p *rod.Page, action models.Action) error {
	el, err := p.Element(action.Selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", action.Selector, err)
	}
	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	return el.Input(action.Text)
}

func execPress(p *rod.Page, action models.Action) error {
	key := keyNames[action.Key]
	if action.Selector == "" {
		return p.Keyboard.Type(key)
	}
	el, err := p.Element(action.Selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", action.Selector, err)
	}
	return el.Type(key)
}

// execScroll scrolls the page by whole viewports.
func execScroll(p *rod.Page, action models.Action) error {
	amount := action.Amount
	if amount <= 0 {
		amount = 1
	}

	res, err := p.Eval(`() => window.innerHeight`)
	if err != nil {
		return fmt.Errorf("failed to get viewport height: %w", err)
	}
	delta := float64(res.Value.Int())
	if action.Direction == "up" {
		delta = -delta
	}

	for i := 0; i < amount; i++ {
		if err := p.Mouse.Scroll(0, delta, 0); err != nil {
			return fmt.Errorf("scroll step %d failed: %w", i, err)
		}
		// Let lazy-loaded content trigger.
		if err := sleepCtx(p.GetContext(), 100*time.Millisecond); err != nil {
			return err
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
