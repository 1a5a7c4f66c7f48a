package scorer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/lead-triage/internal/model"
	"github.com/sells-group/lead-triage/internal/textutil"
)

// MaxScore caps the summed rule contributions.
const MaxScore = 100

// Evaluation is the raw outcome of running a rule set against a lead.
type Evaluation struct {
	Score          int
	Breakdown      []model.BreakdownEntry
	Angle          model.Angle
	Hints          []string
	RulesEvaluated int
	KnockoutRule   string
}

// Disqualified reports whether a knockout rule fired.
func (e Evaluation) Disqualified() bool {
	return e.KnockoutRule != ""
}

// Evaluate runs every rule in rs against lead. Rules are independent; a
// missing attribute simply fails its condition.
func Evaluate(lead model.Lead, rs RuleSet) Evaluation {
	ev := Evaluation{
		Breakdown: []model.BreakdownEntry{},
		Hints:     []string{},
		Angle:     model.AngleROI,
	}
	seenHints := make(map[string]bool)
	bestAngleWeight := -1.0
	total := 0

	for _, r := range rs.Rules {
		ev.RulesEvaluated++
		v := resolve(lead, r.Attribute)
		if !r.Condition.holds(v) {
			continue
		}

		if r.Knockout {
			if ev.KnockoutRule == "" {
				ev.KnockoutRule = r.ID
			}
			ev.Breakdown = append(ev.Breakdown, model.BreakdownEntry{
				RuleID:    r.ID,
				Attribute: r.Attribute,
				Score:     0,
				MaxScore:  r.MaxScore,
				Reasoning: "disqualified: " + reasoning(r, v),
			})
			continue
		}

		pts := r.Points()
		total += pts
		ev.Breakdown = append(ev.Breakdown, model.BreakdownEntry{
			RuleID:    r.ID,
			Attribute: r.Attribute,
			Score:     pts,
			MaxScore:  r.MaxScore,
			Reasoning: reasoning(r, v),
		})

		if r.Angle != "" && r.Weight > bestAngleWeight {
			bestAngleWeight = r.Weight
			ev.Angle = r.Angle
		}
		if h := strings.TrimSpace(r.Hint); h != "" && !seenHints[h] {
			seenHints[h] = true
			ev.Hints = append(ev.Hints, h)
		}
	}

	if total > MaxScore {
		total = MaxScore
	}
	if total < 0 {
		total = 0
	}
	ev.Score = total
	return ev
}

func (c Condition) holds(v value) bool {
	switch c.Operator {
	case OpExists:
		return v.present
	case OpAbsent:
		return !v.present
	case OpEquals:
		return v.present && c.equals(v)
	case OpRange:
		return v.present && v.isNum && c.inRange(v.num)
	case OpIn:
		return v.present && c.in(v)
	case OpContains:
		return v.present && c.contains(v)
	case OpMatches:
		return v.present && c.matches(v)
	default:
		return false
	}
}

func (c Condition) equals(v value) bool {
	if v.isNum {
		if want, ok := toFloat(c.Value); ok {
			return v.num == want
		}
	}
	want := textutil.Normalize(fmt.Sprint(c.Value))
	if v.isList {
		for _, item := range v.list {
			if item == want {
				return true
			}
		}
		return false
	}
	return v.text == want
}

func (c Condition) inRange(n float64) bool {
	if c.Min != nil && n < *c.Min {
		return false
	}
	if c.Max != nil && n > *c.Max {
		return false
	}
	return true
}

func (c Condition) in(v value) bool {
	candidates := v.list
	if !v.isList {
		candidates = []string{v.text}
	}
	for _, item := range candidates {
		for _, want := range c.Values {
			if item == textutil.Normalize(want) {
				return true
			}
		}
	}
	return false
}

func (c Condition) contains(v value) bool {
	candidates := v.list
	if !v.isList {
		candidates = []string{v.text}
	}
	for _, item := range candidates {
		for _, want := range c.Values {
			if w := textutil.Normalize(want); w != "" && strings.Contains(item, w) {
				return true
			}
		}
	}
	return false
}

func (c Condition) matches(v value) bool {
	re := c.re
	if re == nil {
		var err error
		re, err = regexp.Compile("(?i)" + c.Pattern)
		if err != nil {
			return false
		}
	}
	candidates := v.list
	if !v.isList {
		candidates = []string{v.text}
	}
	for _, item := range candidates {
		if re.MatchString(item) {
			return true
		}
	}
	return false
}

func toFloat(x any) (float64, bool) {
	switch n := x.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func reasoning(r Rule, v value) string {
	if r.Reasoning != "" {
		return r.Reasoning
	}
	name := r.DisplayName
	if name == "" {
		name = r.Attribute
	}
	observed := v.text
	if v.isList {
		observed = strings.Join(v.list, ", ")
	}

	c := r.Condition
	switch c.Operator {
	case OpExists:
		return fmt.Sprintf("%s present (%s)", name, observed)
	case OpAbsent:
		return fmt.Sprintf("%s not provided", name)
	case OpRange:
		return fmt.Sprintf("%s %s within %s", name, observed, describeRange(c))
	case OpIn, OpContains:
		return fmt.Sprintf("%s %s matches %s", name, observed, strings.Join(c.Values, "/"))
	case OpMatches:
		return fmt.Sprintf("%s %s matches pattern", name, observed)
	default:
		return fmt.Sprintf("%s is %s", name, observed)
	}
}

func describeRange(c Condition) string {
	fmtNum := func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
	switch {
	case c.Min != nil && c.Max != nil:
		return fmtNum(*c.Min) + "-" + fmtNum(*c.Max)
	case c.Min != nil:
		return ">= " + fmtNum(*c.Min)
	case c.Max != nil:
		return "<= " + fmtNum(*c.Max)
	default:
		return "any"
	}
}
