package scorer

import (
	"strings"

	"github.com/sells-group/lead-triage/internal/model"
)

// EnrichmentWatchList are the fields whose absence triggers enrichment.
var EnrichmentWatchList = []string{"company_size", "industry", "title", "funding_stage", "tech_stack"}

// maxMissingBeforeEnrichment is the number of missing watched fields that is
// still acceptable.
const maxMissingBeforeEnrichment = 3

// CheckEnrichment counts missing watched fields. A lead needs enrichment
// when more than three are missing.
func CheckEnrichment(lead model.Lead) model.EnrichmentCheck {
	var missing []string
	if lead.CompanySize == nil {
		missing = append(missing, "company_size")
	}
	if strings.TrimSpace(lead.Industry) == "" {
		missing = append(missing, "industry")
	}
	if strings.TrimSpace(lead.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(lead.FundingStage) == "" {
		missing = append(missing, "funding_stage")
	}
	if !listValue(lead.TechStack).present {
		missing = append(missing, "tech_stack")
	}

	return model.EnrichmentCheck{
		MissingFields:   missing,
		MissingCount:    len(missing),
		NeedsEnrichment: len(missing) > maxMissingBeforeEnrichment,
	}
}
