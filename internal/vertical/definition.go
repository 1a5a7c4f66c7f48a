// Package vertical resolves a lead's industry vertical from a read-only
// keyword index built once from vertical definitions.
package vertical

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Definition describes one vertical and the terms that identify it.
type Definition struct {
	Slug              string   `yaml:"slug" json:"slug"`
	Name              string   `yaml:"name" json:"name"`
	Description       string   `yaml:"description" json:"description"`
	ParentSlug        string   `yaml:"parent_slug,omitempty" json:"parent_slug,omitempty"`
	BrainID           string   `yaml:"brain_id" json:"brain_id"`
	IndustryKeywords  []string `yaml:"industry_keywords" json:"industry_keywords"`
	TitleKeywords     []string `yaml:"title_keywords" json:"title_keywords"`
	CampaignPatterns  []string `yaml:"campaign_patterns" json:"campaign_patterns"`
	Aliases           []string `yaml:"aliases" json:"aliases"`
	ExclusionKeywords []string `yaml:"exclusion_keywords" json:"exclusion_keywords"`
	Active            *bool    `yaml:"is_active,omitempty" json:"is_active,omitempty"`
}

// IsActive reports whether the vertical participates in detection.
// Definitions are active unless explicitly disabled.
func (d Definition) IsActive() bool {
	return d.Active == nil || *d.Active
}

// ValidateDefinitions checks slugs are present and unique.
func ValidateDefinitions(defs []Definition) error {
	var errs []string
	seen := make(map[string]bool, len(defs))
	for i, d := range defs {
		slug := strings.TrimSpace(d.Slug)
		if slug == "" {
			errs = append(errs, fmt.Sprintf("definition %d: slug is required", i))
			continue
		}
		if seen[slug] {
			errs = append(errs, fmt.Sprintf("duplicate slug %q", slug))
		}
		seen[slug] = true
	}
	if len(errs) > 0 {
		return eris.Errorf("vertical: invalid definitions: %s", strings.Join(errs, "; "))
	}
	return nil
}
