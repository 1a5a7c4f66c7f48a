package scorer

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-triage/internal/model"
)

// Thresholds are the inclusive lower bounds of each lead tier.
type Thresholds struct {
	Priority  int `yaml:"priority" mapstructure:"priority" json:"priority"`
	Qualified int `yaml:"qualified" mapstructure:"qualified" json:"qualified"`
	Nurture   int `yaml:"nurture" mapstructure:"nurture" json:"nurture"`
}

// DefaultThresholds returns the 70/40/15 tier boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{Priority: 70, Qualified: 40, Nurture: 15}
}

// Validate checks the thresholds are ordered and within the score range.
func (t Thresholds) Validate() error {
	var errs []string
	if t.Priority > MaxScore {
		errs = append(errs, fmt.Sprintf("priority threshold must be <= %d", MaxScore))
	}
	if t.Nurture < 0 {
		errs = append(errs, "nurture threshold must be >= 0")
	}
	if !(t.Priority > t.Qualified && t.Qualified > t.Nurture) {
		errs = append(errs, "thresholds must satisfy priority > qualified > nurture")
	}
	if len(errs) > 0 {
		return eris.Errorf("scorer: invalid thresholds: %s", strings.Join(errs, "; "))
	}
	return nil
}

// AssignTier maps a score onto a tier. A fired knockout always disqualifies.
func AssignTier(score int, knockout bool, t Thresholds) model.LeadTier {
	switch {
	case knockout:
		return model.TierDisqualified
	case score >= t.Priority:
		return model.TierPriority
	case score >= t.Qualified:
		return model.TierQualified
	case score >= t.Nurture:
		return model.TierNurture
	default:
		return model.TierDisqualified
	}
}
