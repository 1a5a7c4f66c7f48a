package triage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-triage/internal/cost"
	"github.com/sells-group/lead-triage/internal/model"
	"github.com/sells-group/lead-triage/internal/resilience"
	"github.com/sells-group/lead-triage/pkg/anthropic"
)

func TestKeywordClassifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text      string
		intent    model.Intent
		sentiment model.Sentiment
	}{
		{"Please remove me from your mailing list. Unsubscribe.", model.IntentUnsubscribe, model.SentimentNeutral},
		{"I am out of the office until Monday.", model.IntentOutOfOffice, model.SentimentNeutral},
		{"We don't have budget this quarter", model.IntentObjection, model.SentimentNeutral},
		{"Not interested, thanks.", model.IntentNotInterested, model.SentimentPositive},
		{"Sounds great, happy to chat next week", model.IntentPositiveInterest, model.SentimentPositive},
		{"You should reach out to our COO instead", model.IntentReferral, model.SentimentNeutral},
		{"How does pricing work for small teams", model.IntentObjection, model.SentimentNeutral},
		{"Does it integrate with Okta?", model.IntentQuestion, model.SentimentNeutral},
		{"ok", model.IntentUnclear, model.SentimentNeutral},
		{"Not currently interested.", model.IntentNotInterested, model.SentimentNeutral},
		{"I am not that interested, thanks.", model.IntentNotInterested, model.SentimentPositive},
		{"Honestly we're not really interested right now.", model.IntentNotInterested, model.SentimentNeutral},
		{"We aren't all that interested at the moment", model.IntentNotInterested, model.SentimentNeutral},
		{"We are no longer interested", model.IntentNotInterested, model.SentimentNeutral},
		{"Very interested, what are next steps", model.IntentPositiveInterest, model.SentimentNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			c, err := KeywordClassifier{}.Classify(context.Background(), tt.text, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.intent, c.Intent)
			assert.Equal(t, tt.sentiment, c.Sentiment)
			assert.NotEmpty(t, c.Reasoning)
		})
	}
}

func TestKeywordClassifier_PositiveBelowTier1(t *testing.T) {
	t.Parallel()

	c, err := KeywordClassifier{}.Classify(context.Background(), "Sounds great, let's talk", nil)
	require.NoError(t, err)
	assert.Equal(t, model.IntentPositiveInterest, c.Intent)
	assert.Less(t, c.Confidence, DefaultRouterConfig().Tier1Confidence)
}

type mockAnthropic struct {
	mock.Mock
}

func (m *mockAnthropic) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*anthropic.MessageResponse)
	return resp, args.Error(1)
}

func textResponse(s string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: s}}}
}

func TestLLMClassifier_Classify(t *testing.T) {
	t.Parallel()

	client := &mockAnthropic{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-haiku" && len(req.System) == 1 && req.System[0].Cached &&
			len(req.Messages) == 1 && req.Messages[0].Role == "user"
	})).Return(textResponse("```json\n{\"intent\":\"Objection\",\"confidence\":1.4,\"sentiment\":\"meh\",\"reasoning\":\"budget\"}\n```"), nil)

	c, err := NewLLMClassifier(client, LLMConfig{Model: "claude-haiku"}, nil).
		Classify(context.Background(), "no budget", []model.ThreadMessage{{Direction: "outbound", Content: "Hi Ann"}})
	require.NoError(t, err)
	assert.Equal(t, model.IntentObjection, c.Intent)
	assert.Equal(t, 1.0, c.Confidence)
	assert.Equal(t, model.SentimentNeutral, c.Sentiment)
	assert.Equal(t, "budget", c.Reasoning)
	client.AssertExpectations(t)
}

func TestLLMClassifier_TracksCost(t *testing.T) {
	t.Parallel()

	resp := textResponse(`{"intent":"question","confidence":0.9,"sentiment":"neutral","reasoning":"asks price"}`)
	resp.Usage = anthropic.TokenUsage{InputTokens: 1000000, OutputTokens: 100000}
	client := &mockAnthropic{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(resp, nil)

	tracker := cost.NewTracker(cost.NewCalculator(cost.Rates{Anthropic: map[string]cost.ModelRate{
		"claude-haiku": {Input: 1, Output: 5},
	}}))
	l := NewLLMClassifier(client, LLMConfig{Model: "claude-haiku", Costs: tracker}, nil)
	for range 2 {
		_, err := l.Classify(context.Background(), "how much?", nil)
		require.NoError(t, err)
	}

	calls, total := tracker.Total()
	assert.Equal(t, 2, calls)
	assert.InDelta(t, 3.0, total, 1e-9)
}

func TestLLMClassifier_Errors(t *testing.T) {
	t.Parallel()

	t.Run("unparseable", func(t *testing.T) {
		t.Parallel()
		client := &mockAnthropic{}
		client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("I think it is an objection"), nil)

		_, err := NewLLMClassifier(client, LLMConfig{}, nil).Classify(context.Background(), "x", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse classification")
	})

	t.Run("non-retryable not retried", func(t *testing.T) {
		t.Parallel()
		client := &mockAnthropic{}
		client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("bad request")).Once()

		policy := resilience.NewPolicy(3, 0, 0, 5, 0)
		_, err := NewLLMClassifier(client, LLMConfig{}, policy).Classify(context.Background(), "x", nil)
		require.Error(t, err)
		client.AssertNumberOfCalls(t, "CreateMessage", 1)
	})
}

func TestBuildClassifyPrompt(t *testing.T) {
	t.Parallel()

	thread := make([]model.ThreadMessage, 8)
	for i := range thread {
		thread[i] = model.ThreadMessage{Direction: "outbound", Content: string(rune('a' + i))}
	}
	p := buildClassifyPrompt("  thanks  ", thread)
	assert.NotContains(t, p, "[outbound] a\n")
	assert.NotContains(t, p, "[outbound] b\n")
	assert.Contains(t, p, "[outbound] c\n")
	assert.Contains(t, p, "[outbound] h\n")
	assert.Contains(t, p, "Reply to classify:\nthanks")
}

func TestCleanJSON(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `{"a":1}`, cleanJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanJSON("Here you go: {\"a\":1} done"))
	assert.Equal(t, "plain", cleanJSON(" plain "))
}
