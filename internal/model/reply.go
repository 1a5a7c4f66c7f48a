package model

import (
	"strings"
	"time"
)

// Intent is the classified purpose of an inbound reply.
type Intent string

const (
	IntentPositiveInterest Intent = "positive_interest"
	IntentQuestion         Intent = "question"
	IntentObjection        Intent = "objection"
	IntentReferral         Intent = "referral"
	IntentNotInterested    Intent = "not_interested"
	IntentOutOfOffice      Intent = "out_of_office"
	IntentUnsubscribe      Intent = "unsubscribe"
	IntentUnclear          Intent = "unclear"
)

// Sentiment is the tone of a reply as reported by the classifier.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Classification is the external classifier's verdict on a reply.
type Classification struct {
	Intent     Intent    `json:"intent"`
	Confidence float64   `json:"confidence"`
	Sentiment  Sentiment `json:"sentiment"`
	Reasoning  string    `json:"reasoning"`
}

// Channel is an outbound messaging channel.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelLinkedIn Channel = "linkedin"
)

// ThreadMessage is one prior message in a reply thread.
type ThreadMessage struct {
	Direction string    `json:"direction"`
	Content   string    `json:"content"`
	SentAt    time.Time `json:"sent_at,omitempty"`
}

// ReplyPayload is an inbound reply handed to the triage pipeline.
type ReplyPayload struct {
	ReplyID        string          `json:"reply_id" validate:"required"`
	Source         string          `json:"source" validate:"required,oneof=email linkedin instantly heyreach"`
	ReceivedAt     time.Time       `json:"received_at" validate:"required"`
	ReplyText      string          `json:"reply_text" validate:"required"`
	ThreadID       string          `json:"thread_id" validate:"required"`
	ThreadMessages []ThreadMessage `json:"thread_messages"`
	MessageCount   int             `json:"message_count" validate:"gte=0"`
	LeadID         string          `json:"lead_id" validate:"required"`
	LeadEmail      string          `json:"lead_email" validate:"required,email"`
	LeadName       string          `json:"lead_name,omitempty"`
	LeadCompany    string          `json:"lead_company,omitempty"`
	LeadTitle      string          `json:"lead_title,omitempty"`
	CampaignID     string          `json:"campaign_id,omitempty"`
	SequenceStep   int             `json:"sequence_step,omitempty" validate:"gte=0"`
	BrainID        string          `json:"brain_id" validate:"required"`
}

// Channel returns the channel a response to this reply should use.
func (p ReplyPayload) Channel() Channel {
	switch strings.ToLower(p.Source) {
	case "linkedin", "heyreach":
		return ChannelLinkedIn
	default:
		return ChannelEmail
	}
}

// Recipient returns the channel-specific address for a response.
// LinkedIn messages are posted into the existing conversation.
func (p ReplyPayload) Recipient() string {
	if p.Channel() == ChannelLinkedIn {
		return p.ThreadID
	}
	return p.LeadEmail
}

// FirstName returns the first word of the lead's name, or "there".
func (p ReplyPayload) FirstName() string {
	fields := strings.Fields(p.LeadName)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}

// ReplyTier is the routing bucket for a classified reply.
type ReplyTier string

const (
	RouteAutoHandled ReplyTier = "auto_handled"
	RouteTier1       ReplyTier = "tier_1"
	RouteTier2       ReplyTier = "tier_2"
	RouteTier3       ReplyTier = "tier_3"
	RouteCategoryB   ReplyTier = "category_b"
)

// RouteDecision is the router's verdict and the reason for it.
type RouteDecision struct {
	Route     ReplyTier `json:"route"`
	Reason    string    `json:"reason"`
	HighValue bool      `json:"high_value"`
}

// LeadStatus values pushed to the external status store.
const (
	StatusScored           = "scored"
	StatusReplied          = "replied"
	StatusAwaitingApproval = "awaiting_approval"
	StatusEscalated        = "escalated"
	StatusOutOfOffice      = "out_of_office"
	StatusUnsubscribed     = "unsubscribed"
	StatusNotInterested    = "not_interested"
	StatusReferralFollowUp = "referral_follow_up"
)

// ApprovalItem is a Tier-2 draft waiting for a human decision.
type ApprovalItem struct {
	ID             string         `json:"id"`
	ReplyID        string         `json:"reply_id"`
	LeadID         string         `json:"lead_id"`
	Channel        Channel        `json:"channel"`
	Recipient      string         `json:"recipient"`
	Draft          string         `json:"draft"`
	TemplateID     string         `json:"template_id,omitempty"`
	Classification Classification `json:"classification"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Escalation is a Tier-3 hand-off to a human review channel.
type Escalation struct {
	ID             string         `json:"id"`
	ReplyID        string         `json:"reply_id"`
	LeadID         string         `json:"lead_id"`
	Reason         string         `json:"reason"`
	Classification Classification `json:"classification"`
	Payload        ReplyPayload   `json:"payload"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ReplyOutcome summarizes what the triage pipeline did with a reply.
type ReplyOutcome struct {
	ReplyID        string           `json:"reply_id"`
	LeadID         string           `json:"lead_id"`
	Classification Classification   `json:"classification"`
	Decision       RouteDecision    `json:"decision"`
	StatusUpdated  bool             `json:"status_updated"`
	ResponseSent   bool             `json:"response_sent"`
	DraftQueued    bool             `json:"draft_queued"`
	Escalated      bool             `json:"escalated"`
	Draft          string           `json:"draft,omitempty"`
	CategoryB      *CategoryBOutput `json:"category_b,omitempty"`
	Errors         []string         `json:"errors,omitempty"`
	ProcessedAt    time.Time        `json:"processed_at"`
}
