// Package webhook notifies an external endpoint when a batch finishes.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// EventBatchCompleted is sent once per finished batch job.
const EventBatchCompleted = "batch.completed"

// SignatureHeader carries "sha256=<hex>" when a secret is configured.
const SignatureHeader = "X-Serpwalk-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string `json:"type"`
	JobID     string `json:"job_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType, jobID string, data any) *Event {
	return &Event{Type: eventType, JobID: jobID, Timestamp: time.Now().Unix(), Data: data}
}

// Client delivers events to one URL.
type Client struct {
	URL    string
	Secret string

	// Delays are waited before each attempt; the first is usually zero.
	Delays []time.Duration

	http *http.Client
}

// New returns a Client with the default retry schedule, or nil when url is
// empty. A nil Client drops every event.
func New(url, secret string) *Client {
	if url == "" {
		return nil
	}
	return &Client{
		URL:    url,
		Secret: secret,
		Delays: []time.Duration{0, time.Second, 5 * time.Second, 30 * time.Second},
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Deliver makes a single delivery attempt.
func (c *Client) Deliver(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Serpwalk-Webhook/1.0")
	if c.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(c.Secret, body))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Send retries Deliver over the delay schedule and returns the last error.
func (c *Client) Send(ctx context.Context, event *Event) error {
	if c == nil {
		return nil
	}
	var err error
	for attempt, delay := range c.Delays {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if err = c.Deliver(ctx, event); err == nil {
			slog.Info("webhook delivered",
				"url", c.URL,
				"event", event.Type,
				"job_id", event.JobID,
				"attempt", attempt+1,
			)
			return nil
		}
		slog.Warn("webhook delivery failed",
			"url", c.URL,
			"event", event.Type,
			"job_id", event.JobID,
			"attempt", attempt+1,
			"error", err,
		)
	}
	slog.Error("webhook delivery exhausted all retries",
		"url", c.URL,
		"event", event.Type,
		"job_id", event.JobID,
	)
	return err
}

// SendAsync runs Send in the background.
func (c *Client) SendAsync(event *Event) {
	if c == nil {
		return
	}
	go func() { _ = c.Send(context.Background(), event) }()
}
