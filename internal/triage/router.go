// Package triage classifies inbound replies and routes them to
// auto-handling, auto-response, human approval, escalation or the
// not-interested workflow.
package triage

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-triage/internal/model"
	"github.com/sells-group/lead-triage/internal/textutil"
)

// RouterConfig holds the routing thresholds.
type RouterConfig struct {
	MinConfidence   float64  `mapstructure:"min_confidence" yaml:"min_confidence"`
	Tier1Confidence float64  `mapstructure:"tier1_confidence" yaml:"tier1_confidence"`
	HighValueScore  int      `mapstructure:"high_value_score" yaml:"high_value_score"`
	ExecutiveTitles []string `mapstructure:"executive_titles" yaml:"executive_titles"`
}

// DefaultExecutiveTitles mark a lead as high-value regardless of score.
var DefaultExecutiveTitles = []string{
	"ceo", "cfo", "coo", "cto", "cmo", "cro", "cio", "ciso", "cpo",
	"chief", "founder", "co-founder", "president", "owner", "managing partner",
}

// DefaultRouterConfig returns the 0.5 / 0.85 / 70 defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		MinConfidence:   0.5,
		Tier1Confidence: 0.85,
		HighValueScore:  70,
		ExecutiveTitles: DefaultExecutiveTitles,
	}
}

// Validate checks the thresholds are ordered probabilities.
func (c RouterConfig) Validate() error {
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return eris.Errorf("triage: min_confidence %.2f outside [0,1]", c.MinConfidence)
	}
	if c.Tier1Confidence < c.MinConfidence || c.Tier1Confidence > 1 {
		return eris.Errorf("triage: tier1_confidence %.2f must be in [min_confidence,1]", c.Tier1Confidence)
	}
	return nil
}

// LeadContext is what the router knows about the lead behind a reply.
type LeadContext struct {
	Score *int
	Title string
}

// Router maps a classification onto a reply tier.
type Router struct {
	cfg RouterConfig
}

// NewRouter creates a Router. A zero config gets the defaults.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.MinConfidence == 0 && cfg.Tier1Confidence == 0 && cfg.HighValueScore == 0 {
		cfg = DefaultRouterConfig()
	}
	if cfg.ExecutiveTitles == nil {
		cfg.ExecutiveTitles = DefaultExecutiveTitles
	}
	return &Router{cfg: cfg}
}

// Config returns the router's thresholds.
func (r *Router) Config() RouterConfig {
	return r.cfg
}

// HighValue reports whether the lead's stored score or title marks it as
// worth a human touch.
func (r *Router) HighValue(lead LeadContext) bool {
	if lead.Score != nil && *lead.Score >= r.cfg.HighValueScore {
		return true
	}
	for _, t := range r.cfg.ExecutiveTitles {
		if textutil.ContainsPhrase(lead.Title, t) {
			return true
		}
	}
	return false
}

// Route decides the tier for a classified reply.
func (r *Router) Route(c model.Classification, lead LeadContext) model.RouteDecision {
	d := model.RouteDecision{HighValue: r.HighValue(lead)}

	if c.Confidence < r.cfg.MinConfidence {
		d.Route = model.RouteTier3
		d.Reason = fmt.Sprintf("confidence %.2f below %.2f", c.Confidence, r.cfg.MinConfidence)
		return d
	}

	switch c.Intent {
	case model.IntentOutOfOffice, model.IntentUnsubscribe:
		d.Route = model.RouteAutoHandled
		d.Reason = string(c.Intent)
	case model.IntentNotInterested:
		if d.HighValue {
			d.Route = model.RouteTier3
			d.Reason = "high-value lead declined"
		} else {
			d.Route = model.RouteCategoryB
			d.Reason = "not interested"
		}
	case model.IntentPositiveInterest:
		switch {
		case c.Confidence < r.cfg.Tier1Confidence:
			d.Route = model.RouteTier2
			d.Reason = fmt.Sprintf("positive interest at confidence %.2f below %.2f", c.Confidence, r.cfg.Tier1Confidence)
		case c.Sentiment == model.SentimentNegative:
			d.Route = model.RouteTier2
			d.Reason = "positive interest with negative sentiment"
		default:
			d.Route = model.RouteTier1
			d.Reason = "confident positive interest"
		}
	case model.IntentObjection, model.IntentQuestion:
		d.Route = model.RouteTier2
		d.Reason = string(c.Intent) + " needs an approved draft"
	case model.IntentReferral, model.IntentUnclear:
		d.Route = model.RouteTier3
		d.Reason = string(c.Intent) + " needs human review"
	default:
		d.Route = model.RouteTier3
		d.Reason = fmt.Sprintf("unknown intent %q", c.Intent)
	}
	return d
}
