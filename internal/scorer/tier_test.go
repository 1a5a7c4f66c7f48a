package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/lead-triage/internal/model"
)

func TestAssignTier(t *testing.T) {
	t.Parallel()

	th := DefaultThresholds()
	tests := []struct {
		score    int
		knockout bool
		want     model.LeadTier
	}{
		{100, false, model.TierPriority},
		{70, false, model.TierPriority},
		{69, false, model.TierQualified},
		{40, false, model.TierQualified},
		{39, false, model.TierNurture},
		{15, false, model.TierNurture},
		{14, false, model.TierDisqualified},
		{0, false, model.TierDisqualified},
		{95, true, model.TierDisqualified},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, AssignTier(tt.score, tt.knockout, th), "score=%d knockout=%v", tt.score, tt.knockout)
	}
}

func TestThresholds_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultThresholds().Validate())
	assert.NoError(t, Thresholds{Priority: 80, Qualified: 50, Nurture: 0}.Validate())

	err := Thresholds{Priority: 40, Qualified: 40, Nurture: 15}.Validate()
	assert.ErrorContains(t, err, "priority > qualified > nurture")

	err = Thresholds{Priority: 120, Qualified: 40, Nurture: 15}.Validate()
	assert.ErrorContains(t, err, "priority threshold must be <= 100")

	err = Thresholds{Priority: 70, Qualified: 40, Nurture: -1}.Validate()
	assert.ErrorContains(t, err, "nurture threshold must be >= 0")
}

func TestCheckEnrichment(t *testing.T) {
	t.Parallel()

	// Three missing fields is still acceptable.
	check := CheckEnrichment(model.Lead{CompanySize: intp(10), Industry: "fintech"})
	assert.Equal(t, 3, check.MissingCount)
	assert.False(t, check.NeedsEnrichment)
	assert.Equal(t, []string{"title", "funding_stage", "tech_stack"}, check.MissingFields)

	check = CheckEnrichment(model.Lead{Industry: "fintech"})
	assert.Equal(t, 4, check.MissingCount)
	assert.True(t, check.NeedsEnrichment)

	check = CheckEnrichment(model.Lead{TechStack: []string{" ", ""}})
	assert.Equal(t, 5, check.MissingCount)
	assert.True(t, check.NeedsEnrichment)

	check = CheckEnrichment(model.Lead{
		CompanySize: intp(10), Industry: "x", Title: "y", FundingStage: "seed", TechStack: []string{"go"},
	})
	assert.Zero(t, check.MissingCount)
	assert.Empty(t, check.MissingFields)
}
