// Package scorer evaluates weighted ICP rules against a lead and maps the
// resulting score onto lead tiers.
package scorer

import (
	"regexp"

	"github.com/sells-group/lead-triage/internal/model"
)

// Operator is a rule condition form.
type Operator string

const (
	OpExists   Operator = "exists"
	OpAbsent   Operator = "absent"
	OpEquals   Operator = "equals"
	OpRange    Operator = "range"
	OpIn       Operator = "in"
	OpContains Operator = "contains"
	OpMatches  Operator = "matches"
)

// Category groups rules by the kind of signal they read.
type Category string

const (
	CategoryFirmographic  Category = "firmographic"
	CategoryTechnographic Category = "technographic"
	CategoryBehavioral    Category = "behavioral"
	CategoryIntent        Category = "intent"
)

// Condition is the predicate a rule applies to its attribute.
type Condition struct {
	Operator Operator `yaml:"operator" json:"operator"`
	Value    any      `yaml:"value,omitempty" json:"value,omitempty"`
	Values   []string `yaml:"values,omitempty" json:"values,omitempty"`
	Min      *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max      *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Pattern  string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`

	re *regexp.Regexp
}

// Rule is one weighted ICP criterion. A matching rule contributes
// round(Weight * MaxScore) points; a matching knockout rule disqualifies.
type Rule struct {
	ID          string      `yaml:"id" json:"id"`
	Attribute   string      `yaml:"attribute" json:"attribute"`
	DisplayName string      `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	Category    Category    `yaml:"category,omitempty" json:"category,omitempty"`
	Condition   Condition   `yaml:"condition" json:"condition"`
	Weight      float64     `yaml:"weight" json:"weight"`
	MaxScore    int         `yaml:"max_score" json:"max_score"`
	Angle       model.Angle `yaml:"angle,omitempty" json:"angle,omitempty"`
	Hint        string      `yaml:"hint,omitempty" json:"hint,omitempty"`
	Knockout    bool        `yaml:"is_knockout,omitempty" json:"is_knockout,omitempty"`
	Reasoning   string      `yaml:"reasoning,omitempty" json:"reasoning,omitempty"`
}

// Points returns the contribution of the rule when it matches.
func (r Rule) Points() int {
	if r.Knockout {
		return 0
	}
	p := int(r.Weight*float64(r.MaxScore) + 0.5)
	if p > r.MaxScore {
		return r.MaxScore
	}
	return p
}

// RuleSet is the vertical-scoped list of rules a brain scores with.
type RuleSet struct {
	BrainID  string `yaml:"brain_id" json:"brain_id"`
	Vertical string `yaml:"vertical" json:"vertical"`
	Rules    []Rule `yaml:"rules" json:"rules"`
}

// Prepare validates the rule set and compiles pattern conditions. It must
// be called before the rule set is shared between goroutines.
func (rs *RuleSet) Prepare() error {
	if err := ValidateRuleSet(*rs); err != nil {
		return err
	}
	for i := range rs.Rules {
		c := &rs.Rules[i].Condition
		if c.Operator == OpMatches {
			c.re = regexp.MustCompile("(?i)" + c.Pattern)
		}
	}
	return nil
}
