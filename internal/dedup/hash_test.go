package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/lead-triage/internal/model"
)

func intp(v int) *int { return &v }

func TestContentHash_Stable(t *testing.T) {
	t.Parallel()

	a := model.Lead{
		LeadID:      "l1",
		Email:       "ann@acme.com",
		Company:     "Acme",
		Title:       "VP  Engineering",
		CompanySize: intp(250),
		TechStack:   []string{"Stripe", "plaid", "stripe"},
		EnrichmentData: map[string]any{
			"intent_score": 0.8,
			"tags":         []any{"B", "a"},
		},
	}
	b := model.Lead{
		LeadID:      "l2",
		Email:       "other@acme.com",
		Company:     " acme ",
		Title:       "vp engineering",
		CompanySize: intp(250),
		TechStack:   []string{"PLAID", "Stripe"},
		Industry:    "  ",
		EnrichmentData: map[string]any{
			"tags":         []any{"a", "b"},
			"intent_score": 0.80,
			"empty":        "",
		},
	}

	ha := ContentHash(a)
	assert.Len(t, ha, 64)
	assert.Equal(t, ha, ContentHash(a))
	assert.Equal(t, ha, ContentHash(b), "identity and formatting differences must not change the hash")
}

func TestContentHash_Sensitive(t *testing.T) {
	t.Parallel()

	base := model.Lead{LeadID: "l1", Company: "Acme", CompanySize: intp(250)}
	h := ContentHash(base)

	changed := base
	changed.CompanySize = intp(251)
	assert.NotEqual(t, h, ContentHash(changed), "company_size change")

	changed = base
	changed.OptedOut = true
	assert.NotEqual(t, h, ContentHash(changed), "opt out change")

	changed = base
	changed.EnrichmentData = map[string]any{"is_public": true}
	assert.NotEqual(t, h, ContentHash(changed), "enrichment change")

	changed = base
	changed.CompanySize = nil
	assert.NotEqual(t, h, ContentHash(changed), "company_size removed")
}
