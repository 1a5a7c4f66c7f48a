package vertical

import (
	"sort"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-triage/internal/model"
	"github.com/sells-group/lead-triage/internal/textutil"
)

// Detection confidences per method.
const (
	ConfidenceExplicit = 1.0
	ConfidenceIndustry = 0.9
	ConfidenceCampaign = 0.7
	ConfidenceTitle    = 0.5
	ConfidenceAlias    = 0.4
)

// Detection is the outcome of a vertical lookup. Vertical is empty when
// nothing matched.
type Detection struct {
	Vertical       string                `json:"vertical"`
	Method         model.DetectionMethod `json:"method"`
	Confidence     float64               `json:"confidence"`
	Attribute      string                `json:"attribute,omitempty"`
	MatchedKeyword string                `json:"matched_keyword,omitempty"`
}

// Known reports whether a vertical was resolved.
func (d Detection) Known() bool {
	return d.Vertical != ""
}

// Detector resolves a lead's vertical. Implementations must be safe for
// concurrent use.
type Detector interface {
	Detect(lead model.Lead) Detection
}

type entry struct {
	keyword  string
	vertical string
}

type campaignEntry struct {
	pattern  string
	matcher  glob.Glob
	vertical string
}

// Index is an immutable keyword index over vertical definitions.
type Index struct {
	industry   []entry
	title      []entry
	campaign   []campaignEntry
	aliases    map[string]string
	exclusions map[string][]string
	defs       map[string]Definition
	order      []string
	builtAt    time.Time
}

var _ Detector = (*Index)(nil)

// Build compiles definitions into an Index. Inactive definitions are
// skipped. When two verticals claim the same keyword the earlier
// definition wins.
func Build(defs []Definition) (*Index, error) {
	if err := ValidateDefinitions(defs); err != nil {
		return nil, err
	}

	ix := &Index{
		aliases:    make(map[string]string),
		exclusions: make(map[string][]string),
		defs:       make(map[string]Definition, len(defs)),
		builtAt:    time.Now().UTC(),
	}
	seenIndustry := make(map[string]bool)
	seenTitle := make(map[string]bool)

	for _, d := range defs {
		if !d.IsActive() {
			continue
		}
		slug := textutil.Normalize(d.Slug)
		ix.defs[slug] = d
		ix.order = append(ix.order, slug)

		for _, kw := range d.IndustryKeywords {
			k := textutil.Normalize(kw)
			if k != "" && !seenIndustry[k] {
				seenIndustry[k] = true
				ix.industry = append(ix.industry, entry{keyword: k, vertical: slug})
			}
		}
		for _, kw := range d.TitleKeywords {
			k := textutil.Normalize(kw)
			if k != "" && !seenTitle[k] {
				seenTitle[k] = true
				ix.title = append(ix.title, entry{keyword: k, vertical: slug})
			}
		}
		for _, p := range d.CampaignPatterns {
			pat := textutil.Normalize(p)
			if pat == "" {
				continue
			}
			g, err := glob.Compile(pat)
			if err != nil {
				return nil, eris.Wrapf(err, "vertical: compile campaign pattern %q for %s", p, slug)
			}
			ix.campaign = append(ix.campaign, campaignEntry{pattern: pat, matcher: g, vertical: slug})
		}
		for _, a := range d.Aliases {
			k := textutil.Normalize(a)
			if _, ok := ix.aliases[k]; k != "" && !ok {
				ix.aliases[k] = slug
			}
		}
		for _, ex := range d.ExclusionKeywords {
			if k := textutil.Normalize(ex); k != "" {
				ix.exclusions[slug] = append(ix.exclusions[slug], k)
			}
		}
	}

	// Longest keyword first so the most specific term wins.
	byLength := func(entries []entry) {
		sort.SliceStable(entries, func(i, j int) bool {
			return len(entries[i].keyword) > len(entries[j].keyword)
		})
	}
	byLength(ix.industry)
	byLength(ix.title)

	return ix, nil
}

// BuiltAt returns when the index was built.
func (ix *Index) BuiltAt() time.Time {
	return ix.builtAt
}

// Verticals returns the active vertical slugs in definition order.
func (ix *Index) Verticals() []string {
	out := make([]string, len(ix.order))
	copy(out, ix.order)
	return out
}

// Definition returns the definition for a slug.
func (ix *Index) Definition(slug string) (Definition, bool) {
	d, ok := ix.defs[textutil.Normalize(slug)]
	return d, ok
}

// Canonical resolves an alias or slug to its vertical slug. Unknown values
// are returned normalized.
func (ix *Index) Canonical(v string) string {
	n := textutil.Normalize(v)
	if slug, ok := ix.aliases[n]; ok {
		return slug
	}
	return n
}

// Detect resolves the vertical for a lead. Priority: explicit vertical,
// industry, title, campaign pattern, alias. Exclusion keywords of a
// candidate vertical suppress that candidate.
func (ix *Index) Detect(lead model.Lead) Detection {
	if v := strings.TrimSpace(lead.Vertical); v != "" {
		return Detection{
			Vertical:       ix.Canonical(v),
			Method:         model.DetectionExplicit,
			Confidence:     ConfidenceExplicit,
			Attribute:      "vertical",
			MatchedKeyword: textutil.Normalize(v),
		}
	}

	if d, ok := ix.matchIndustry(textutil.Normalize(lead.Industry)); ok {
		return d
	}
	if d, ok := ix.matchTitle(lead.Title); ok {
		return d
	}
	if d, ok := ix.matchCampaign(textutil.Normalize(lead.CampaignID)); ok {
		return d
	}
	if d, ok := ix.matchAlias(lead); ok {
		return d
	}

	return Detection{Method: model.DetectionDefault}
}

func (ix *Index) matchIndustry(industry string) (Detection, bool) {
	if industry == "" {
		return Detection{}, false
	}
	hit := func(e entry) Detection {
		return Detection{
			Vertical:       e.vertical,
			Method:         model.DetectionIndustry,
			Confidence:     ConfidenceIndustry,
			Attribute:      "industry",
			MatchedKeyword: e.keyword,
		}
	}

	// Exact, then keyword inside industry, then industry inside keyword.
	for _, e := range ix.industry {
		if e.keyword == industry && !ix.excluded(e.vertical, industry) {
			return hit(e), true
		}
	}
	for _, e := range ix.industry {
		if strings.Contains(industry, e.keyword) && !ix.excluded(e.vertical, industry) {
			return hit(e), true
		}
	}
	if len(industry) >= 3 {
		for _, e := range ix.industry {
			if strings.Contains(e.keyword, industry) && !ix.excluded(e.vertical, industry) {
				return hit(e), true
			}
		}
	}
	return Detection{}, false
}

func (ix *Index) matchTitle(title string) (Detection, bool) {
	norm := textutil.Normalize(title)
	if norm == "" {
		return Detection{}, false
	}
	for _, e := range ix.title {
		if textutil.ContainsPhrase(norm, e.keyword) && !ix.excluded(e.vertical, norm) {
			return Detection{
				Vertical:       e.vertical,
				Method:         model.DetectionTitle,
				Confidence:     ConfidenceTitle,
				Attribute:      "title",
				MatchedKeyword: e.keyword,
			}, true
		}
	}
	return Detection{}, false
}

func (ix *Index) matchCampaign(campaignID string) (Detection, bool) {
	if campaignID == "" {
		return Detection{}, false
	}
	for _, c := range ix.campaign {
		if c.matcher.Match(campaignID) && !ix.excluded(c.vertical, campaignID) {
			return Detection{
				Vertical:       c.vertical,
				Method:         model.DetectionCampaign,
				Confidence:     ConfidenceCampaign,
				Attribute:      "campaign_id",
				MatchedKeyword: c.pattern,
			}, true
		}
	}
	return Detection{}, false
}

func (ix *Index) matchAlias(lead model.Lead) (Detection, bool) {
	hit := func(attr, alias, slug string) Detection {
		return Detection{
			Vertical:       slug,
			Method:         model.DetectionAlias,
			Confidence:     ConfidenceAlias,
			Attribute:      attr,
			MatchedKeyword: alias,
		}
	}

	for _, f := range []struct{ attr, value string }{
		{"industry", lead.Industry},
		{"sub_vertical", lead.SubVertical},
	} {
		n := textutil.Normalize(f.value)
		if slug, ok := ix.aliases[n]; ok && n != "" && !ix.excluded(slug, n) {
			return hit(f.attr, n, slug), true
		}
	}

	title := textutil.Normalize(lead.Title)
	for _, word := range textutil.Tokens(title) {
		if slug, ok := ix.aliases[word]; ok && !ix.excluded(slug, title) {
			return hit("title", word, slug), true
		}
	}
	return Detection{}, false
}

func (ix *Index) excluded(vertical, text string) bool {
	for _, ex := range ix.exclusions[vertical] {
		if strings.Contains(text, ex) {
			return true
		}
	}
	return false
}
