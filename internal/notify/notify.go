// Package notify posts a short summary of each received message to an
// optional webhook. The channel is best-effort: delivery of the forward
// never depends on it unless the operator opts in.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// requestTimeout bounds a single webhook POST.
const requestTimeout = 10 * time.Second

// payload is the webhook request body.
type payload struct {
	Content string `json:"content"`
}

// Webhook posts JSON summaries to a fixed URL.
type Webhook struct {
	url    string
	client *http.Client
}

// New creates a Webhook for the given URL. An empty URL yields a disabled
// notifier whose Post is never called by the pipeline.
func New(url string) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: requestTimeout},
	}
}

// NewWithClient creates a Webhook with a custom HTTP client, used for testing.
func NewWithClient(url string, client *http.Client) *Webhook {
	return &Webhook{url: url, client: client}
}

// Enabled reports whether a webhook URL is configured.
func (w *Webhook) Enabled() bool {
	return w.url != ""
}

// Post sends `{"content": ...}` to the webhook. A non-2xx response is an
// error; the caller decides whether that aborts the pipeline.
func (w *Webhook) Post(ctx context.Context, content string) error {
	body, err := json.Marshal(payload{Content: content})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("notification request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification rejected with status %d", resp.StatusCode)
	}
	return nil
}
