package model

import "strings"

// LeadTier is the scoring outcome bucket for a lead.
type LeadTier string

const (
	TierPriority     LeadTier = "priority"
	TierQualified    LeadTier = "qualified"
	TierNurture      LeadTier = "nurture"
	TierDisqualified LeadTier = "disqualified"
)

// Valid reports whether t is one of the four lead tiers.
func (t LeadTier) Valid() bool {
	switch t {
	case TierPriority, TierQualified, TierNurture, TierDisqualified:
		return true
	}
	return false
}

// Angle is the recommended messaging angle for outreach.
type Angle string

const (
	AngleTechnical   Angle = "technical"
	AngleROI         Angle = "roi"
	AngleCompliance  Angle = "compliance"
	AngleSpeed       Angle = "speed"
	AngleIntegration Angle = "integration"
)

// Valid reports whether a is a known messaging angle.
func (a Angle) Valid() bool {
	switch a {
	case AngleTechnical, AngleROI, AngleCompliance, AngleSpeed, AngleIntegration:
		return true
	}
	return false
}

// Lead is the input to a scoring call. It is never mutated by the scorer.
type Lead struct {
	LeadID  string `json:"lead_id" yaml:"lead_id" validate:"required"`
	Email   string `json:"email" yaml:"email" validate:"required,email"`
	Company string `json:"company" yaml:"company" validate:"required"`
	Source  string `json:"source,omitempty" yaml:"source"`

	FirstName   string `json:"first_name,omitempty" yaml:"first_name"`
	LastName    string `json:"last_name,omitempty" yaml:"last_name"`
	LinkedInURL string `json:"linkedin_url,omitempty" yaml:"linkedin_url"`

	Title         string   `json:"title,omitempty" yaml:"title"`
	CompanySize   *int     `json:"company_size,omitempty" yaml:"company_size"`
	Industry      string   `json:"industry,omitempty" yaml:"industry"`
	Vertical      string   `json:"vertical,omitempty" yaml:"vertical"`
	SubVertical   string   `json:"sub_vertical,omitempty" yaml:"sub_vertical"`
	Revenue       *float64 `json:"revenue,omitempty" yaml:"revenue"`
	FundingStage  string   `json:"funding_stage,omitempty" yaml:"funding_stage"`
	FundingAmount *float64 `json:"funding_amount,omitempty" yaml:"funding_amount"`
	FoundedYear   *int     `json:"founded_year,omitempty" yaml:"founded_year"`
	Location      string   `json:"location,omitempty" yaml:"location"`
	Country       string   `json:"country,omitempty" yaml:"country"`

	TechStack     []string `json:"tech_stack,omitempty" yaml:"tech_stack"`
	Tools         []string `json:"tools,omitempty" yaml:"tools"`
	HiringSignals []string `json:"hiring_signals,omitempty" yaml:"hiring_signals"`
	RecentNews    []string `json:"recent_news,omitempty" yaml:"recent_news"`
	GrowthSignals []string `json:"growth_signals,omitempty" yaml:"growth_signals"`

	OptedOut bool `json:"opted_out,omitempty" yaml:"opted_out"`

	CampaignID string `json:"campaign_id,omitempty" yaml:"campaign_id"`
	BatchID    string `json:"batch_id,omitempty" yaml:"batch_id"`

	EnrichmentData map[string]any `json:"enrichment_data,omitempty" yaml:"enrichment_data"`
}

// Sanitized returns a copy with out-of-range optional values cleared, so
// they read as missing instead of rejecting the lead. Only identity fields
// are validated.
func (l Lead) Sanitized() Lead {
	if l.CompanySize != nil && *l.CompanySize < 0 {
		l.CompanySize = nil
	}
	if l.Revenue != nil && *l.Revenue < 0 {
		l.Revenue = nil
	}
	if l.FundingAmount != nil && *l.FundingAmount < 0 {
		l.FundingAmount = nil
	}
	if l.FoundedYear != nil && *l.FoundedYear <= 0 {
		l.FoundedYear = nil
	}
	return l
}

// DisplayName returns the best available human name for the lead.
func (l Lead) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(l.FirstName) + " " + strings.TrimSpace(l.LastName))
	if name != "" {
		return name
	}
	return l.Email
}

// EnrichmentCheck reports which watched fields a lead is missing.
type EnrichmentCheck struct {
	MissingFields   []string `json:"missing_fields"`
	MissingCount    int      `json:"missing_count"`
	NeedsEnrichment bool     `json:"needs_enrichment"`
}
