package app

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/serpwalk/config"
	"github.com/use-agent/serpwalk/detect"
	"github.com/use-agent/serpwalk/models"
)

func TestAcceptPage(t *testing.T) {
	accept := AcceptPage(detect.New())

	ok := &models.Page{Engine: "http", StatusCode: 200, HTML: `<html><body><main><p>` + strings.Repeat("plenty of real text here ", 40) + `</p></main></body></html>`}
	assert.NoError(t, accept(ok))

	shell := &models.Page{Engine: "http", StatusCode: 200, HTML: `<html><body><div id="root"></div><noscript>You need to enable JavaScript to run this app.</noscript></body></html>`}
	assert.Error(t, accept(shell))

	captcha := &models.Page{Engine: "http", StatusCode: 200, HTML: `<html><body>` + strings.Repeat("<p>filler text for the page body</p>", 30) + `<div class="g-recaptcha"></div></body></html>`}
	err := accept(captcha)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")

	rod := &models.Page{Engine: "rod", StatusCode: 200, HTML: captcha.HTML}
	assert.NoError(t, accept(rod), "browser pages go to the classifier")
}

func TestBuild_HTTPModeNeedsNoBrowser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><p>No results.</p></body></html>`))
	}))
	defer srv.Close()

	cfg := config.Load()
	cfg.Engine.Mode = "http"
	cfg.Search.URLTemplate = srv.URL + "/?q={query}"
	cfg.Pipeline.InterQueryDelay = 0
	cfg.Pipeline.InterQueryJitter = 0
	cfg.Pipeline.DumpDir = t.TempDir()

	rt, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer rt.Close()

	assert.False(t, rt.Authenticated())
	rec := rt.Pipeline.Process(context.Background(), "alice")
	assert.Equal(t, "http", rec.Engine)
	assert.Equal(t, models.StatusNotFound, rec.Status)
}

func TestNewHandler_LevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	h := newHandler(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelWarn))

	slog.New(h).Warn("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	slog.New(newHandler(config.LogConfig{}, &buf)).Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}
