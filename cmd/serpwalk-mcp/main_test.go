package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/serpwalk/models"
)

var alice = models.Record{
	Query:  "alice_travel",
	URL:    "https://www.instagram.com/alice_travel/",
	Status: models.StatusSuccess,
	Fields: models.Fields{Followers: "2048", Following: "311", Posts: "87", Bio: "Wandering"},
}

func callTool(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestFormatRecord(t *testing.T) {
	out := formatRecord(alice)
	assert.Contains(t, out, "Query: alice_travel")
	assert.Contains(t, out, "Profile: https://www.instagram.com/alice_travel/")
	assert.Contains(t, out, "Followers: 2048")
	assert.Contains(t, out, "Bio: Wandering")

	miss := formatRecord(models.Record{Query: "x", Status: models.StatusNotFound, Error: "no suitable link found"})
	assert.NotContains(t, miss, "Profile:")
	assert.Contains(t, miss, "Error: no suitable link found")
}

func TestHandleLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/lookup", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("X-API-Key"))
		var req models.LookupRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"alice_travel"}, req.Queries)
		_ = json.NewEncoder(w).Encode(models.LookupResponse{Success: true, Records: []models.Record{alice}})
	}))
	defer srv.Close()

	res, err := handleLookup(srv.URL, "key")(context.Background(), callTool(map[string]any{"query": "alice_travel"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "Following: 311")
}

func TestHandleLookup_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(models.LookupResponse{Error: &models.ErrorDetail{Code: models.ErrCodeUnauthorized, Message: "invalid API key"}})
	}))
	defer srv.Close()

	res, err := handleLookup(srv.URL, "bad")(context.Background(), callTool(map[string]any{"query": "alice"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "UNAUTHORIZED")
}

func TestHandleBatchLookup_PollsUntilDone(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/batch":
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(models.BatchResponse{ID: "batch-1", Status: models.JobQueued, Total: 2})
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/batch/batch-1":
			if polls.Add(1) < 2 {
				_ = json.NewEncoder(w).Encode(models.BatchStatusResponse{ID: "batch-1", Status: models.JobProcessing, Total: 2})
				return
			}
			_ = json.NewEncoder(w).Encode(models.BatchStatusResponse{
				ID: "batch-1", Status: models.JobCompleted, Completed: 2, Total: 2,
				Records: []models.Record{alice, {Query: "q1", Status: models.StatusBlocked, Error: "search page blocked: captcha element present"}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	handler := handleBatchLookup(srv.URL, "key", 5*time.Millisecond)
	res, err := handler(context.Background(), callTool(map[string]any{"queries": []any{"alice_travel", "q1"}}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	text := resultText(t, res)
	assert.Contains(t, text, "Batch batch-1: completed (2/2 queries)")
	assert.Contains(t, text, "Status: blocked")
	assert.GreaterOrEqual(t, polls.Load(), int32(2))
}

func TestHandleBatchLookup_RequiresQueries(t *testing.T) {
	res, err := handleBatchLookup("http://127.0.0.1:1", "key", time.Millisecond)(context.Background(), callTool(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestNewServer(t *testing.T) {
	assert.NotNil(t, newServer("http://127.0.0.1:8080", "key", time.Second))
}
