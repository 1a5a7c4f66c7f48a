// Package qdrant provides a REST client for the Qdrant vector database.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultScrollLimit = 256

// Client reads points from Qdrant collections.
type Client interface {
	Scroll(ctx context.Context, req ScrollRequest) (*ScrollPage, error)
	Search(ctx context.Context, collection string, req SearchRequest) ([]ScoredPoint, error)
}

// Point is a stored point with its payload.
type Point struct {
	ID      any            `json:"id"`
	Payload map[string]any `json:"payload"`
}

// ScoredPoint is a single similarity search hit.
type ScoredPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Filter is a Qdrant payload filter. Only must-match clauses are used.
type Filter struct {
	Must []FieldCondition `json:"must,omitempty"`
}

// FieldCondition matches a payload key against an exact value.
type FieldCondition struct {
	Key   string     `json:"key"`
	Match MatchValue `json:"match"`
}

// MatchValue is the exact-match clause of a FieldCondition.
type MatchValue struct {
	Value any `json:"value"`
}

// ScrollRequest pages through a collection.
type ScrollRequest struct {
	Collection  string  `json:"-"`
	Limit       int     `json:"limit"`
	Offset      any     `json:"offset,omitempty"`
	Filter      *Filter `json:"filter,omitempty"`
	WithPayload bool    `json:"with_payload"`
}

// ScrollPage is one page of scroll results. NextOffset is nil on the last page.
type ScrollPage struct {
	Points     []Point `json:"points"`
	NextOffset any     `json:"next_page_offset"`
}

// SearchRequest is the request body for a vector search.
type SearchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	Filter      *Filter   `json:"filter,omitempty"`
	WithPayload bool      `json:"with_payload"`
}

// Option configures the client.
type Option func(*httpClient)

// WithAPIKey sets the api-key header sent on every request.
func WithAPIKey(key string) Option {
	return func(c *httpClient) {
		c.apiKey = key
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets a requests-per-second ceiling. Zero disables limiting.
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
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Qdrant REST client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(10, 10),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Scroll(ctx context.Context, req ScrollRequest) (*ScrollPage, error) {
	if req.Collection == "" {
		return nil, eris.New("qdrant: collection is required")
	}
	if req.Limit <= 0 {
		req.Limit = defaultScrollLimit
	}
	req.WithPayload = true

	var page ScrollPage
	path := fmt.Sprintf("/collections/%s/points/scroll", url.PathEscape(req.Collection))
	if err := c.post(ctx, path, req, &page); err != nil {
		return nil, eris.Wrapf(err, "qdrant: scroll %s", req.Collection)
	}
	return &page, nil
}

func (c *httpClient) Search(ctx context.Context, collection string, req SearchRequest) ([]ScoredPoint, error) {
	if req.Limit <= 0 {
		req.Limit = 5
	}
	req.WithPayload = true

	var hits []ScoredPoint
	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(collection))
	if err := c.post(ctx, path, req, &hits); err != nil {
		return nil, eris.Wrapf(err, "qdrant: search %s", collection)
	}
	return hits, nil
}

// post sends body as JSON and decodes the "result" field of the response into out.
func (c *httpClient) post(ctx context.Context, path string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limit wait")
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return eris.Wrap(err, "send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	envelope := struct {
		Result json.RawMessage `json:"result"`
	}{}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return eris.Wrap(err, "unmarshal response")
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return eris.Wrap(err, "unmarshal result")
	}
	return nil
}

// ScrollAll pages through a whole collection and returns every point.
func ScrollAll(ctx context.Context, c Client, collection string, filter *Filter) ([]Point, error) {
	var all []Point
	var offset any
	for {
		page, err := c.Scroll(ctx, ScrollRequest{Collection: collection, Offset: offset, Filter: filter})
		if err != nil {
			return nil, err
		}
		all = append(all, page.Points...)
		if page.NextOffset == nil || len(page.Points) == 0 {
			return all, nil
		}
		offset = page.NextOffset
	}
}
