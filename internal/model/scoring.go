package model

import "time"

// DetectionMethod records which signal resolved a lead's vertical.
type DetectionMethod string

const (
	DetectionExplicit DetectionMethod = "explicit"
	DetectionIndustry DetectionMethod = "industry"
	DetectionTitle    DetectionMethod = "title"
	DetectionCampaign DetectionMethod = "campaign"
	DetectionAlias    DetectionMethod = "alias"
	DetectionDefault  DetectionMethod = "default"
)

// BreakdownEntry is one matched rule's contribution to a score.
type BreakdownEntry struct {
	RuleID    string `json:"rule_id"`
	Attribute string `json:"attribute"`
	Score     int    `json:"score"`
	MaxScore  int    `json:"max_score"`
	Reasoning string `json:"reasoning"`
}

// ScoringResult is the immutable outcome of one scoring call.
type ScoringResult struct {
	LeadID               string           `json:"lead_id"`
	Score                int              `json:"score"`
	Tier                 LeadTier         `json:"tier"`
	VerticalDetected     string           `json:"vertical_detected"`
	DetectionMethod      DetectionMethod  `json:"detection_method"`
	DetectionConfidence  float64          `json:"detection_confidence"`
	NeedsManualClassify  bool             `json:"needs_manual_classification,omitempty"`
	BrainUsed            string           `json:"brain_used"`
	ScoringBreakdown     []BreakdownEntry `json:"scoring_breakdown"`
	RecommendedAngle     Angle            `json:"recommended_angle"`
	PersonalizationHints []string         `json:"personalization_hints"`
	KnockoutRule         string           `json:"knockout_rule,omitempty"`
	RulesEvaluated       int              `json:"rules_evaluated"`
	RulesVersion         string           `json:"rules_version,omitempty"`
	ProcessingTimeMs     int64            `json:"processing_time_ms"`
	Timestamp            time.Time        `json:"timestamp"`
	Error                string           `json:"error,omitempty"`
}

// DuplicateReason explains a duplicate-check decision.
type DuplicateReason string

const (
	DuplicateNotFound     DuplicateReason = "not_found"
	DuplicateForceRescore DuplicateReason = "force_rescore"
	DuplicateDataChanged  DuplicateReason = "data_changed"
	DuplicateUnchanged    DuplicateReason = "unchanged"
)

// DuplicateCheckResult decides whether a lead needs rescoring.
type DuplicateCheckResult struct {
	IsDuplicate   bool            `json:"is_duplicate"`
	ShouldRescore bool            `json:"should_rescore"`
	Reason        DuplicateReason `json:"reason"`
	Hash          string          `json:"hash,omitempty"`
}

// LeadOutcome is the result of a full agent run over one lead.
type LeadOutcome struct {
	LeadID     string               `json:"lead_id"`
	Skipped    bool                 `json:"skipped"`
	Duplicate  DuplicateCheckResult `json:"duplicate"`
	Enrichment EnrichmentCheck      `json:"enrichment"`
	Result     *ScoringResult       `json:"result,omitempty"`
	Errors     []string             `json:"errors,omitempty"`
}
