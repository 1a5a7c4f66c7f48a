package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-triage/internal/cost"
	"github.com/sells-group/lead-triage/internal/model"
	"github.com/sells-group/lead-triage/internal/resilience"
	"github.com/sells-group/lead-triage/internal/textutil"
	"github.com/sells-group/lead-triage/pkg/anthropic"
)

// Classifier labels a reply with an intent, confidence and sentiment.
type Classifier interface {
	Classify(ctx context.Context, text string, thread []model.ThreadMessage) (model.Classification, error)
}

// KeywordClassifier is a deterministic classifier over fixed phrase lists.
// It is used when no LLM key is configured and in tests.
type KeywordClassifier struct{}

type intentRule struct {
	intent     model.Intent
	confidence float64
	phrases    []string
	pattern    *regexp.Regexp
}

func (r intentRule) match(text string) string {
	if m := textutil.MatchKeywords(r.phrases, text); len(m) > 0 {
		return m[0]
	}
	if r.pattern != nil {
		return r.pattern.FindString(text)
	}
	return ""
}

// negatedInterest catches declines such as "not really interested" or
// "aren't that interested" that the plain phrase lists miss.
var negatedInterest = regexp.MustCompile(`(?i)(?:\b(?:not|never|no longer)|n't|n’t)(?:\s+[\p{L}'’]+){0,3}?\s+interested\b`)

// keywordPositiveConfidence stays below the default Tier-1 threshold so a
// bare phrase hit is drafted for approval instead of auto-sent.
const keywordPositiveConfidence = 0.8

// Ordered: the first rule with a match wins.
var keywordRules = []intentRule{
	{model.IntentUnsubscribe, 0.95, []string{"unsubscribe", "remove me", "stop emailing", "opt out", "take me off", "do not contact"}, nil},
	{model.IntentOutOfOffice, 0.95, []string{"out of office", "out of the office", "on vacation", "on leave", "limited access to email", "auto-reply", "automatic reply"}, nil},
	{model.IntentReferral, 0.75, []string{"reach out to", "better person", "right person", "contact my colleague", "cc'ing", "looping in", "forwarding this to"}, nil},
	{model.IntentNotInterested, 0.8, []string{"not interested", "no thanks", "no thank you", "not a fit", "not a priority", "pass on this", "we're all set", "we are all set"}, negatedInterest},
	{model.IntentObjection, 0.7, []string{"budget", "too expensive", "pricing", "already use", "already have", "not the right time", "next quarter", "contract with"}, nil},
	{model.IntentPositiveInterest, keywordPositiveConfidence, []string{"interested", "let's talk", "lets talk", "book a call", "schedule a call", "happy to chat", "send me more", "sounds great", "set up a time"}, nil},
	{model.IntentQuestion, 0.7, []string{"how does", "how much", "what is", "can you", "do you", "?"}, nil},
}

var (
	negativeWords = []string{"annoyed", "spam", "stop", "never", "waste", "angry", "harass"}
	positiveWords = []string{"thanks", "thank you", "great", "love", "appreciate", "excited", "sounds good"}
)

// Classify implements Classifier.
func (KeywordClassifier) Classify(_ context.Context, text string, _ []model.ThreadMessage) (model.Classification, error) {
	c := model.Classification{Intent: model.IntentUnclear, Confidence: 0.3, Sentiment: sentimentOf(text)}
	for _, r := range keywordRules {
		if m := r.match(text); m != "" {
			c.Intent = r.intent
			c.Confidence = r.confidence
			c.Reasoning = fmt.Sprintf("matched %q", m)
			return c, nil
		}
	}
	c.Reasoning = "no keyword matched"
	return c, nil
}

func sentimentOf(text string) model.Sentiment {
	switch {
	case len(textutil.MatchKeywords(negativeWords, text)) > 0:
		return model.SentimentNegative
	case len(textutil.MatchKeywords(positiveWords, text)) > 0:
		return model.SentimentPositive
	default:
		return model.SentimentNeutral
	}
}

// LLMConfig configures the Anthropic-backed classifier.
type LLMConfig struct {
	Model     string
	MaxTokens int64
	// Costs accumulates classifier spend. Optional.
	Costs *cost.Tracker
}

// LLMClassifier asks Claude for a JSON classification.
type LLMClassifier struct {
	client anthropic.Client
	cfg    LLMConfig
	policy *resilience.Policy
}

// NewLLMClassifier creates an LLMClassifier. policy may be nil.
func NewLLMClassifier(client anthropic.Client, cfg LLMConfig, policy *resilience.Policy) *LLMClassifier {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	return &LLMClassifier{client: client, cfg: cfg, policy: policy}
}

const classifySystemPrompt = `You classify replies to B2B sales outreach.
Return only a JSON object with these keys:
  "intent": one of positive_interest, question, objection, referral, not_interested, out_of_office, unsubscribe, unclear
  "confidence": number between 0 and 1
  "sentiment": one of positive, neutral, negative
  "reasoning": one short sentence
Use unclear when the reply does not fit another intent.`

const maxThreadMessages = 6

type llmVerdict struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Sentiment  string  `json:"sentiment"`
	Reasoning  string  `json:"reasoning"`
}

// Classify implements Classifier. Rate limits and server errors are retried
// under the policy; malformed output is an error.
func (l *LLMClassifier) Classify(ctx context.Context, text string, thread []model.ThreadMessage) (model.Classification, error) {
	req := anthropic.MessageRequest{
		Model:     l.cfg.Model,
		MaxTokens: l.cfg.MaxTokens,
		System:    []anthropic.SystemBlock{{Text: classifySystemPrompt, Cached: true}},
		Messages:  []anthropic.Message{{Role: "user", Content: buildClassifyPrompt(text, thread)}},
	}

	resp, err := resilience.CallVal(ctx, l.policy, "anthropic", "classify", func(ctx context.Context) (*anthropic.MessageResponse, error) {
		resp, err := l.client.CreateMessage(ctx, req)
		if err != nil && anthropic.IsRetryable(err) {
			return nil, resilience.NewTransientError(err, 0)
		}
		return resp, err
	})
	if err != nil {
		return model.Classification{}, eris.Wrap(err, "triage: llm classify")
	}
	resp.Usage.Log(l.cfg.Model, "classify")
	if l.cfg.Costs != nil {
		spend := l.cfg.Costs.Add(l.cfg.Model, resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Usage.CacheReadInputTokens)
		calls, total := l.cfg.Costs.Total()
		zap.L().Debug("triage: classification cost",
			zap.Float64("cost_usd", spend),
			zap.Int("calls", calls),
			zap.Float64("total_usd", total),
		)
	}

	var v llmVerdict
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &v); err != nil {
		zap.L().Warn("triage: unparseable classification", zap.String("text", textutil.Truncate(resp.Text(), 200)))
		return model.Classification{}, eris.Wrap(err, "triage: parse classification")
	}
	return v.toClassification(), nil
}

func (v llmVerdict) toClassification() model.Classification {
	c := model.Classification{
		Intent:     model.Intent(strings.ToLower(strings.TrimSpace(v.Intent))),
		Confidence: min(max(v.Confidence, 0), 1),
		Sentiment:  model.Sentiment(strings.ToLower(strings.TrimSpace(v.Sentiment))),
		Reasoning:  v.Reasoning,
	}
	switch c.Sentiment {
	case model.SentimentPositive, model.SentimentNeutral, model.SentimentNegative:
	default:
		c.Sentiment = model.SentimentNeutral
	}
	return c
}

func buildClassifyPrompt(text string, thread []model.ThreadMessage) string {
	var b strings.Builder
	if len(thread) > 0 {
		b.WriteString("Earlier messages in the thread, oldest first:\n")
		start := max(len(thread)-maxThreadMessages, 0)
		for _, m := range thread[start:] {
			dir := m.Direction
			if dir == "" {
				dir = "message"
			}
			fmt.Fprintf(&b, "[%s] %s\n", dir, textutil.Truncate(strings.TrimSpace(m.Content), 1000))
		}
		b.WriteString("\n")
	}
	b.WriteString("Reply to classify:\n")
	b.WriteString(strings.TrimSpace(text))
	return b.String()
}

// cleanJSON extracts a JSON object from text that may carry markdown
// fences or surrounding prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	if i := strings.LastIndex(text, "```"); i >= 0 {
		text = text[:i]
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}
