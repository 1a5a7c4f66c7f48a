package model

import "time"

// DeclineTone is the tone of a not-interested reply.
type DeclineTone string

const (
	TonePolite  DeclineTone = "polite"
	ToneNeutral DeclineTone = "neutral"
	ToneHostile DeclineTone = "hostile"
)

// NetworkFit estimates how well a lead's network matches the target market.
type NetworkFit string

const (
	FitAligned    NetworkFit = "aligned"
	FitPartial    NetworkFit = "partial"
	FitMisaligned NetworkFit = "misaligned"
)

// ReferralEvaluation decides whether a declining lead should be asked for a referral.
type ReferralEvaluation struct {
	IsVPPlus          bool        `json:"is_vp_plus"`
	DeclineTone       DeclineTone `json:"decline_tone"`
	NetworkFit        NetworkFit  `json:"network_fit"`
	ReferralPotential bool        `json:"referral_potential"`
	AutoSendReferral  bool        `json:"auto_send_referral"`
}

// CategoryBOutput aggregates the step outcomes of the not-interested workflow.
type CategoryBOutput struct {
	Success                 bool               `json:"success"`
	LeadStatusUpdated       bool               `json:"lead_status_updated"`
	NewStatus               string             `json:"new_status"`
	ProfileSummaryGenerated bool               `json:"profile_summary_generated"`
	ProfileSummary          string             `json:"profile_summary,omitempty"`
	ReferralEvaluation      ReferralEvaluation `json:"referral_evaluation"`
	ReferralSent            bool               `json:"referral_sent"`
	ReferralSentAt          *time.Time         `json:"referral_sent_at,omitempty"`
	ReferralScheduled       bool               `json:"referral_scheduled,omitempty"`
	ManualFollowUp          bool               `json:"manual_follow_up,omitempty"`
	AirtableUpdated         bool               `json:"airtable_updated"`
	Errors                  []string           `json:"errors,omitempty"`
}
