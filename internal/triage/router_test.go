package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/lead-triage/internal/model"
)

func score(v int) *int { return &v }

func TestRouter_Route(t *testing.T) {
	t.Parallel()
	r := NewRouter(RouterConfig{})

	cls := func(intent model.Intent, conf float64, s model.Sentiment) model.Classification {
		return model.Classification{Intent: intent, Confidence: conf, Sentiment: s}
	}

	tests := []struct {
		name string
		c    model.Classification
		lead LeadContext
		want model.ReplyTier
	}{
		{"low confidence escalates any intent", cls(model.IntentUnsubscribe, 0.4, model.SentimentNeutral), LeadContext{}, model.RouteTier3},
		{"out of office", cls(model.IntentOutOfOffice, 0.9, model.SentimentNeutral), LeadContext{}, model.RouteAutoHandled},
		{"unsubscribe", cls(model.IntentUnsubscribe, 0.5, model.SentimentNegative), LeadContext{}, model.RouteAutoHandled},
		{"not interested", cls(model.IntentNotInterested, 0.8, model.SentimentNeutral), LeadContext{Score: score(30)}, model.RouteCategoryB},
		{"not interested high score", cls(model.IntentNotInterested, 0.8, model.SentimentNeutral), LeadContext{Score: score(70)}, model.RouteTier3},
		{"not interested c-suite", cls(model.IntentNotInterested, 0.8, model.SentimentNeutral), LeadContext{Title: "Chief Revenue Officer"}, model.RouteTier3},
		{"confident positive", cls(model.IntentPositiveInterest, 0.85, model.SentimentPositive), LeadContext{}, model.RouteTier1},
		{"confident positive neutral sentiment", cls(model.IntentPositiveInterest, 0.9, model.SentimentNeutral), LeadContext{}, model.RouteTier1},
		{"positive below tier1", cls(model.IntentPositiveInterest, 0.84, model.SentimentPositive), LeadContext{}, model.RouteTier2},
		{"positive negative sentiment", cls(model.IntentPositiveInterest, 0.95, model.SentimentNegative), LeadContext{}, model.RouteTier2},
		{"objection", cls(model.IntentObjection, 0.6, model.SentimentNeutral), LeadContext{}, model.RouteTier2},
		{"question", cls(model.IntentQuestion, 0.99, model.SentimentPositive), LeadContext{}, model.RouteTier2},
		{"referral", cls(model.IntentReferral, 0.9, model.SentimentNeutral), LeadContext{}, model.RouteTier3},
		{"unclear", cls(model.IntentUnclear, 0.9, model.SentimentNeutral), LeadContext{}, model.RouteTier3},
		{"unknown intent", cls("meeting_request", 0.9, model.SentimentNeutral), LeadContext{}, model.RouteTier3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := r.Route(tt.c, tt.lead)
			assert.Equal(t, tt.want, d.Route)
			assert.NotEmpty(t, d.Reason)
		})
	}
}

func TestRouter_HighValue(t *testing.T) {
	t.Parallel()
	r := NewRouter(RouterConfig{MinConfidence: 0.5, Tier1Confidence: 0.85, HighValueScore: 80})

	assert.True(t, r.HighValue(LeadContext{Score: score(80)}))
	assert.False(t, r.HighValue(LeadContext{Score: score(79)}))
	assert.True(t, r.HighValue(LeadContext{Title: "CEO & Founder"}))
	assert.False(t, r.HighValue(LeadContext{Title: "Director of Operations"}))
	assert.False(t, r.HighValue(LeadContext{}))
}

func TestRouterConfig_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultRouterConfig().Validate())
	assert.Error(t, RouterConfig{MinConfidence: 1.2, Tier1Confidence: 1}.Validate())
	assert.Error(t, RouterConfig{MinConfidence: 0.6, Tier1Confidence: 0.5}.Validate())
}
