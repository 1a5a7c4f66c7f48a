package heyreach

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantErr       string
		wantRetryable bool
		wantID        string
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body:   `{"messageId": "msg-1", "success": true}`,
			wantID: "msg-1",
		},
		{
			name:   "no content",
			status: http.StatusNoContent,
		},
		{
			name:          "rate limited",
			status:        http.StatusTooManyRequests,
			body:          `{"error": "slow down"}`,
			wantErr:       "unexpected status 429",
			wantRetryable: true,
		},
		{
			name:    "unauthorized",
			status:  http.StatusUnauthorized,
			body:    `{"error": "bad key"}`,
			wantErr: "unexpected status 401",
		},
		{
			name:    "malformed response",
			status:  http.StatusOK,
			body:    `{not json`,
			wantErr: "unmarshal response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/conversations/conv-12345/messages", r.URL.Path)
				assert.Equal(t, "test-key", r.Header.Get("X-API-KEY"))

				var req map[string]string
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "Thanks Jane!", req["content"])

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient("test-key", WithBaseURL(srv.URL+"/"), WithRateLimit(0))
			res, err := c.SendMessage(context.Background(), "conv-12345", "Thanks Jane!")

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				var apiErr *APIError
				if errors.As(err, &apiErr) {
					assert.Equal(t, tt.wantRetryable, apiErr.Retryable())
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, res.MessageID)
			assert.Equal(t, "conv-12345", res.ConversationID)
		})
	}
}

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name    string
		convID  string
		content string
		want    error
	}{
		{"ok", "conv-1", "hello", nil},
		{"short conversation", "c1", "hello", ErrInvalidConversation},
		{"blank conversation", "     ", "hello", ErrInvalidConversation},
		{"empty content", "conv-1", "   ", ErrInvalidContent},
		{"max length", "conv-1", strings.Repeat("a", MaxMessageLength), nil},
		{"too long", "conv-1", strings.Repeat("a", MaxMessageLength+1), ErrInvalidContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessage(tt.convID, tt.content)
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestSendMessage_InvalidInputMakesNoRequest(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.SendMessage(context.Background(), "conv-1", "")
	assert.ErrorIs(t, err, ErrInvalidContent)
	assert.Zero(t, calls)
}

func TestSendMessage_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient("k", WithBaseURL("http://127.0.0.1:1"))
	_, err := c.SendMessage(ctx, "conv-12345", "hi")
	assert.Error(t, err)
}

func TestAPIError_Retryable(t *testing.T) {
	assert.True(t, (&APIError{StatusCode: 503}).Retryable())
	assert.True(t, (&APIError{StatusCode: 429}).Retryable())
	assert.False(t, (&APIError{StatusCode: 400}).Retryable())
}
