// Package notify delivers review items to human reviewers: Tier-2 drafts
// awaiting approval and Tier-3 escalations.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-triage/internal/resilience"
)

// EventType identifies a review notification.
type EventType string

const (
	EventApprovalRequested EventType = "approval_requested"
	EventEscalation        EventType = "escalation"
)

// Event is the JSON envelope posted to a webhook.
type Event struct {
	Type      EventType `json:"type"`
	LeadID    string    `json:"lead_id"`
	ReplyID   string    `json:"reply_id"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Webhook posts events to one URL.
type Webhook struct {
	url    string
	client *http.Client
	policy *resilience.Policy
}

// WebhookOption configures a Webhook.
type WebhookOption func(*Webhook)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(w *Webhook) { w.client = c }
}

// WithPolicy retries transient failures under p.
func WithPolicy(p *resilience.Policy) WebhookOption {
	return func(w *Webhook) { w.policy = p }
}

// NewWebhook creates a Webhook. An empty url yields a nil Webhook, which
// drops every event.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	if url == "" {
		return nil
	}
	w := &Webhook{url: url, client: &http.Client{Timeout: 10 * time.Second}}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Post delivers ev. 5xx and 429 responses are retried under the policy.
func (w *Webhook) Post(ctx context.Context, ev Event) error {
	if w == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "notify: marshal event")
	}
	return w.policy.Call(ctx, "webhook", string(ev.Type), func(ctx context.Context) error {
		return w.post(ctx, payload)
	})
}

func (w *Webhook) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resilience.StatusError("webhook", resp.StatusCode, string(body))
	}
	return nil
}
