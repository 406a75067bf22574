package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/use-agent/serpwalk/models"
)

// authCookie is the cookie a logged-in Instagram session carries.
const authCookie = "sessionid"

// loginActions is the form sequence for the Instagram login page.
func loginActions(creds Credentials) []models.Action {
	return []models.Action{
		{Type: "wait", Selector: `input[name="username"]`},
		{Type: "input", Selector: `input[name="username"]`, Text: creds.Username},
		{Type: "input", Selector: `input[name="password"]`, Text: creds.Password},
		{Type: "click", Selector: `button[type="submit"]`},
		{Type: "wait", Selector: `input[name="password"]`, Gone: true},
	}
}

// login runs the login sequence once and records whether it took.
func (s *Session) login(ctx context.Context, creds Credentials) error {
	loginURL := creds.LoginURL
	if loginURL == "" {
		loginURL = s.browserCfg.LoginURL
	}
	slog.Info("logging in", "url", loginURL, "username", creds.Username)

	if _, err := s.Navigate(ctx, loginURL, 0); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}

	if err := s.Act(ctx, loginActions(creds)); err != nil {
		return fmt.Errorf("submit login form: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = s.probeAuthCookieLocked(loginURL)
	if !s.authenticated {
		return fmt.Errorf("login form submitted but no %s cookie was set", authCookie)
	}
	slog.Info("login succeeded", "username", creds.Username)
	return nil
}

// probeAuthCookie checks the profile for a cookie left by an earlier login.
func (s *Session) probeAuthCookie() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.probeAuthCookieLocked(s.browserCfg.LoginURL)
}

func (s *Session) probeAuthCookieLocked(loginURL string) bool {
	origin := "https://www.instagram.com/"
	if u, err := url.Parse(loginURL); err == nil && u.Host != "" {
		origin = u.Scheme + "://" + u.Host + "/"
	}
	cookies, err := s.page.Cookies([]string{origin})
	if err != nil {
		slog.Debug("cookie probe failed", "error", err)
		return false
	}
	for _, c := range cookies {
		if c.Name == authCookie && c.Value != "" {
			return true
		}
	}
	return false
}
