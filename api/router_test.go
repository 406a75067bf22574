package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/serpwalk/api/handler"
	"github.com/use-agent/serpwalk/config"
	"github.com/use-agent/serpwalk/models"
	"github.com/use-agent/serpwalk/pipeline"
)

type stubRunner struct{}

func (stubRunner) Process(_ context.Context, q string) models.Record {
	return models.Record{Query: q, Status: models.StatusNotFound}
}

func (s stubRunner) Run(ctx context.Context, qs []string, w pipeline.RecordWriter) (*models.Summary, error) {
	sum := models.NewSummary("run")
	for _, q := range qs {
		rec := s.Process(ctx, q)
		if err := w.Write(rec); err != nil {
			return sum, err
		}
		sum.Add(rec)
	}
	return sum, nil
}

func testConfig() *config.Config {
	cfg := config.Load()
	cfg.Server.Mode = "test"
	cfg.Auth.Enabled = true
	cfg.Auth.APIKeys = []string{"secret"}
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100}
	return cfg
}

func TestRouter_AuthAndLookup(t *testing.T) {
	r := NewRouter(testConfig(), Deps{Runner: stubRunner{}, StartTime: time.Now()})

	body := []byte(`{"queries":["alice"]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/lookup", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/lookup", bytes.NewReader(body))
	req.Header.Set("X-API-Key", "secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.LookupResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 1)
	assert.Equal(t, models.StatusNotFound, resp.Records[0].Status)
}

func TestRouter_HealthIsPublic(t *testing.T) {
	queue := handler.NewJobQueue(stubRunner{}, nil, nil, "", 4)
	r := NewRouter(testConfig(), Deps{
		Runner:        stubRunner{},
		Queue:         queue,
		Authenticated: func() bool { return true },
		StartTime:     time.Now(),
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.True(t, resp.Authenticated)
}

func TestRouter_RecordsRouteOnlyWithStore(t *testing.T) {
	r := NewRouter(testConfig(), Deps{Runner: stubRunner{}, StartTime: time.Now()})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/records", nil)
	req.Header.Set("X-API-Key", "secret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
