package session

import (
	"context"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/serpwalk/config"
	"github.com/use-agent/serpwalk/models"
)

func TestIsTrackerHost(t *testing.T) {
	cases := map[string]bool{
		"doubleclick.net":               true,
		"stats.g.doubleclick.net":       true,
		"pagead2.googlesyndication.com": true,
		"WWW.Google-Analytics.com.":     true,
		"www.instagram.com":             false,
		"static.cdninstagram.com":       false,
		"connect.facebook.net":          false,
		"notdoubleclick.net":            false,
		"":                              false,
	}
	for host, want := range cases {
		assert.Equal(t, want, isTrackerHost(host), host)
	}
}

func TestBlockedSet_IgnoresUnknownNames(t *testing.T) {
	set := blockedSet([]string{"Image", "Font", "Bogus"})
	assert.Len(t, set, 2)
	assert.Contains(t, set, proto.NetworkResourceTypeImage)
	assert.Contains(t, set, proto.NetworkResourceTypeFont)
}

func TestValidateActions(t *testing.T) {
	require.NoError(t, ValidateActions(loginActions(Credentials{Username: "u", Password: "p"})))
	require.NoError(t, ValidateActions([]models.Action{
		{Type: "wait", Milliseconds: 100},
		{Type: "scroll", Direction: "down", Amount: 2},
		{Type: "press", Key: "Enter"},
		{Type: "execute_js", Code: "() => 1"},
	}))

	bad := [][]models.Action{
		{{Type: "click"}},
		{{Type: "input", Text: "x"}},
		{{Type: "press", Key: "F13"}},
		{{Type: "execute_js"}},
		{{Type: "wait", Gone: true}},
		{{Type: "teleport"}},
	}
	for _, actions := range bad {
		err := ValidateActions(actions)
		require.Error(t, err, actions[0].Type)
		assert.Equal(t, models.ErrCodeInvalidInput, models.CodeOf(err))
	}
}

func TestLoginActions_FillsCredentials(t *testing.T) {
	actions := loginActions(Credentials{Username: "alice", Password: "s3cret"})
	require.Len(t, actions, 5)
	assert.Equal(t, "alice", actions[1].Text)
	assert.Equal(t, "s3cret", actions[2].Text)
	assert.True(t, actions[4].Gone)
}

func TestCategorizeError(t *testing.T) {
	assert.Equal(t, models.ErrCodeTimeout, categorizeError(context.DeadlineExceeded, "x").Code)
	assert.True(t, models.IsLoadError(categorizeError(assert.AnError, "x")))
	assert.Equal(t, models.ErrCodeNavigation, categorizeError(assert.AnError, "x").Code)
}

func TestClose_Idempotent(t *testing.T) {
	s := &Session{}
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestAct_ClosedSession(t *testing.T) {
	s := &Session{}
	err := s.Act(context.Background(), []models.Action{{Type: "scroll"}})

	var se *models.ScrapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.ErrCodeBrowserCrash, se.Code)
}

func TestOpen_RejectsInvalidPageActions(t *testing.T) {
	scraperCfg := config.ScraperConfig{
		NavigationTimeout: time.Second,
		PageActions:       []models.Action{{Type: "press", Key: "F13"}},
	}
	s, err := Open(context.Background(), config.BrowserConfig{Headless: true}, scraperCfg, nil)
	assert.Nil(t, s)

	var se *models.ScrapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.ErrCodeInvalidInput, se.Code)
}
