package scorer

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// ValidateRuleSet checks that a rule set is internally consistent.
func ValidateRuleSet(rs RuleSet) error {
	var errs []string
	seen := make(map[string]bool, len(rs.Rules))

	for i, r := range rs.Rules {
		label := r.ID
		if label == "" {
			label = fmt.Sprintf("rule[%d]", i)
			errs = append(errs, fmt.Sprintf("%s: id is required", label))
		} else if seen[r.ID] {
			errs = append(errs, fmt.Sprintf("%s: duplicate id", label))
		}
		seen[r.ID] = true

		if strings.TrimSpace(r.Attribute) == "" {
			errs = append(errs, fmt.Sprintf("%s: attribute is required", label))
		}
		if r.MaxScore < 0 || r.MaxScore > MaxScore {
			errs = append(errs, fmt.Sprintf("%s: max_score must be between 0 and %d", label, MaxScore))
		}
		if !r.Knockout && (r.Weight <= 0 || r.Weight > 1) {
			errs = append(errs, fmt.Sprintf("%s: weight must be in (0, 1]", label))
		}
		if r.Angle != "" && !r.Angle.Valid() {
			errs = append(errs, fmt.Sprintf("%s: unknown angle %q", label, r.Angle))
		}

		c := r.Condition
		switch c.Operator {
		case OpExists, OpAbsent:
		case OpEquals:
			if c.Value == nil {
				errs = append(errs, fmt.Sprintf("%s: equals requires value", label))
			}
		case OpRange:
			if c.Min == nil && c.Max == nil {
				errs = append(errs, fmt.Sprintf("%s: range requires min or max", label))
			}
			if c.Min != nil && c.Max != nil && *c.Max < *c.Min {
				errs = append(errs, fmt.Sprintf("%s: range max must be >= min", label))
			}
		case OpIn, OpContains:
			if len(c.Values) == 0 {
				errs = append(errs, fmt.Sprintf("%s: %s requires values", label, c.Operator))
			}
		case OpMatches:
			if _, err := regexp.Compile("(?i)" + c.Pattern); err != nil || c.Pattern == "" {
				errs = append(errs, fmt.Sprintf("%s: invalid pattern %q", label, c.Pattern))
			}
		default:
			errs = append(errs, fmt.Sprintf("%s: unknown operator %q", label, c.Operator))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: rule set %s validation failed: %s", rs.BrainID, strings.Join(errs, "; "))
	}
	return nil
}

// RuleSetHash returns a short SHA-256 of the rule set so results can be
// traced to the exact rules that produced them.
func RuleSetHash(rs RuleSet) string {
	data, err := json.Marshal(rs)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:16])
}
