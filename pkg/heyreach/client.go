// Package heyreach is a client for the HeyReach LinkedIn automation API.
package heyreach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.heyreach.io/api/public"

	// MaxMessageLength is the longest message HeyReach accepts.
	MaxMessageLength = 8000
)

var (
	// ErrInvalidConversation is returned for a missing or malformed conversation id.
	ErrInvalidConversation = eris.New("heyreach: invalid conversation id")
	// ErrInvalidContent is returned when a message is empty or too long.
	ErrInvalidContent = eris.New("heyreach: message content must be 1-8000 characters")
)

// Client sends LinkedIn messages through HeyReach.
type Client interface {
	SendMessage(ctx context.Context, conversationID, content string) (*SendResult, error)
}

// SendResult confirms a sent message.
type SendResult struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	Success        bool   `json:"success"`
}

// APIError is a non-2xx response from HeyReach.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("heyreach: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed if sent again.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps requests per second. Zero disables the limiter.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a HeyReach API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(5, 5),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ValidateMessage checks a conversation id and message body before sending.
func ValidateMessage(conversationID, content string) error {
	if len(strings.TrimSpace(conversationID)) < 5 {
		return ErrInvalidConversation
	}
	n := utf8.RuneCountInString(content)
	if strings.TrimSpace(content) == "" || n > MaxMessageLength {
		return ErrInvalidContent
	}
	return nil
}

func (c *httpClient) SendMessage(ctx context.Context, conversationID, content string) (*SendResult, error) {
	if err := ValidateMessage(conversationID, content); err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return nil, eris.Wrap(err, "heyreach: marshal request")
	}

	path := "/conversations/" + url.PathEscape(strings.TrimSpace(conversationID)) + "/messages"
	var result SendResult
	if err := c.do(ctx, http.MethodPost, path, body, &result); err != nil {
		return nil, eris.Wrapf(err, "heyreach: send message to %s", conversationID)
	}
	if result.ConversationID == "" {
		result.ConversationID = conversationID
	}
	return &result, nil
}

func (c *httpClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "heyreach: rate limit")
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "heyreach: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "heyreach: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "heyreach: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(respBody)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return &APIError{StatusCode: resp.StatusCode, Body: msg}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "heyreach: unmarshal response")
	}
	return nil
}
