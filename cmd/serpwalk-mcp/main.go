package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/serpwalk/models"
)

func main() {
	apiURL := os.Getenv("SERPWALK_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("SERPWALK_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "SERPWALK_API_KEY is required")
		os.Exit(1)
	}

	s := newServer(apiURL, apiKey, 2*time.Second)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(apiURL, apiKey string, pollEvery time.Duration) *server.MCPServer {
	s := server.NewMCPServer(
		"serpwalk",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	lookupTool := mcp.NewTool("lookup_profile",
		mcp.WithDescription("Search the web for a query, follow the best matching profile result and return its URL, follower, following and post counts and bio."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Name or handle to look up"),
		),
	)
	s.AddTool(lookupTool, handleLookup(apiURL, apiKey))

	batchTool := mcp.NewTool("batch_lookup",
		mcp.WithDescription("Look up many queries one after another and return one record per query. Slower than lookup_profile because queries are spaced out to avoid blocks."),
		mcp.WithArray("queries",
			mcp.Required(),
			mcp.Description("Names or handles to look up"),
		),
	)
	s.AddTool(batchTool, handleBatchLookup(apiURL, apiKey, pollEvery))

	return s
}

// apiDo sends a request to the serpwalk API and returns the response body.
func apiDo(ctx context.Context, client *http.Client, method, url, apiKey string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// pollJobCompletion polls a job until it leaves the queued and processing
// states or ctx is cancelled.
func pollJobCompletion(ctx context.Context, client *http.Client, url, apiKey string, every time.Duration) (*models.BatchStatusResponse, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			body, err := apiDo(ctx, client, http.MethodGet, url, apiKey, nil)
			if err != nil {
				return nil, err
			}
			var status models.BatchStatusResponse
			if err := json.Unmarshal(body, &status); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}
			if status.Status != models.JobQueued && status.Status != models.JobProcessing {
				return &status, nil
			}
		}
	}
}

func handleLookup(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 180 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || strings.TrimSpace(query) == "" {
			return mcp.NewToolResultError("query is required"), nil
		}

		respBody, err := apiDo(ctx, client, http.MethodPost, apiURL+"/api/v1/lookup", apiKey,
			models.LookupRequest{Queries: []string{query}})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("lookup request failed: %v", err)), nil
		}

		var resp models.LookupResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if !resp.Success {
			errMsg := "lookup failed"
			if resp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", resp.Error.Code, resp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}
		if len(resp.Records) == 0 {
			return mcp.NewToolResultError("lookup returned no record"), nil
		}

		return mcp.NewToolResultText(formatRecord(resp.Records[0])), nil
	}
}

func handleBatchLookup(apiURL, apiKey string, pollEvery time.Duration) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		queries, err := request.RequireStringSlice("queries")
		if err != nil || len(queries) == 0 {
			return mcp.NewToolResultError("queries is required and must be an array of strings"), nil
		}

		respBody, err := apiDo(ctx, client, http.MethodPost, apiURL+"/api/v1/batch", apiKey,
			models.BatchRequest{Queries: queries})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("batch request failed: %v", err)), nil
		}

		var created models.BatchResponse
		if err := json.Unmarshal(respBody, &created); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse batch response: %v", err)), nil
		}
		if created.ID == "" {
			return mcp.NewToolResultError("batch job creation failed: " + strings.TrimSpace(string(respBody))), nil
		}

		status, err := pollJobCompletion(ctx, client, apiURL+"/api/v1/batch/"+created.ID, apiKey, pollEvery)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling batch job failed: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Batch %s: %s (%d/%d queries)\n\n", status.ID, status.Status, status.Completed, status.Total)
		if status.Error != nil {
			fmt.Fprintf(&sb, "Error: [%s] %s\n\n", status.Error.Code, status.Error.Message)
		}
		for i, rec := range status.Records {
			fmt.Fprintf(&sb, "--- [%d] ---\n%s\n\n", i+1, formatRecord(rec))
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// formatRecord renders a record as short labelled lines.
func formatRecord(rec models.Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Query: %s\nStatus: %s\n", rec.Query, rec.Status)
	if rec.URL != "" {
		fmt.Fprintf(&sb, "Profile: %s\n", rec.URL)
	}
	for _, name := range models.FieldNames {
		if v := rec.Fields.Get(name); v != "" {
			fmt.Fprintf(&sb, "%s: %s\n", strings.ToUpper(name[:1])+name[1:], v)
		}
	}
	if rec.Error != "" {
		fmt.Fprintf(&sb, "Error: %s\n", rec.Error)
	}
	return strings.TrimRight(sb.String(), "\n")
}
