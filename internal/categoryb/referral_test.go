package categoryb

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/lead-triage/internal/model"
)

func TestEvaluate_AutoSendTruthTable(t *testing.T) {
	t.Parallel()

	const (
		polite  = "Thanks for reaching out, not for us. Best of luck!"
		neutral = "Not interested."
		hostile = "Thanks, but stop emailing me. This is spam."
	)

	tests := []struct {
		name      string
		title     string
		company   string
		text      string
		potential bool
		autoSend  bool
	}{
		{"all three hold", "VP of Finance", "Blue Harbor Capital", polite, true, true},
		{"not vp", "Finance Manager", "Blue Harbor Capital", polite, false, false},
		{"neutral tone", "VP of Finance", "Blue Harbor Capital", neutral, true, false},
		{"hostile tone", "VP of Finance", "Blue Harbor Capital", hostile, false, false},
		{"partial fit", "VP of Finance", "Acme Widgets", polite, true, false},
		{"director is not vp", "Director of IR", "Blue Harbor Capital", polite, false, false},
		{"c-suite", "Chief Financial Officer", "Northwind Partners", polite, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev := Evaluate(model.ReplyPayload{LeadTitle: tt.title, LeadCompany: tt.company, ReplyText: tt.text})
			assert.Equal(t, tt.potential, ev.ReferralPotential, "potential")
			assert.Equal(t, tt.autoSend, ev.AutoSendReferral, "auto send")
			if ev.AutoSendReferral {
				assert.True(t, ev.IsVPPlus)
				assert.Equal(t, model.TonePolite, ev.DeclineTone)
				assert.Equal(t, model.FitAligned, ev.NetworkFit)
			}
		})
	}
}

func TestDeclineTone(t *testing.T) {
	t.Parallel()

	assert.Equal(t, model.ToneHostile, DeclineTone("Thank you, but please STOP EMAILING me"))
	assert.Equal(t, model.TonePolite, DeclineTone("Appreciate it, we're set."))
	assert.Equal(t, model.ToneNeutral, DeclineTone("No."))
	assert.Equal(t, model.ToneNeutral, DeclineTone(""))
}

func TestNetworkFit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, model.FitAligned, NetworkFit("Granite Ventures", "Managing Director"))
	assert.Equal(t, model.FitPartial, NetworkFit("Granite Ventures", "Analyst"))
	assert.Equal(t, model.FitPartial, NetworkFit("Acme", "Head of Sales"))
	assert.Equal(t, model.FitMisaligned, NetworkFit("Acme", "Analyst"))
}

func TestIsVPPlus(t *testing.T) {
	t.Parallel()

	for _, title := range []string{"SVP Sales", "Vice President, IR", "CTO", "Co-Founder", "Managing Director"} {
		assert.True(t, IsVPPlus(title), title)
	}
	for _, title := range []string{"Director", "Senior Manager", "Victor's assistant", ""} {
		assert.False(t, IsVPPlus(title), title)
	}
}

func TestBuildSummary(t *testing.T) {
	t.Parallel()

	reply := model.ReplyPayload{
		LeadName:    "Ann Lee",
		LeadTitle:   "VP Finance",
		LeadCompany: "Blue Harbor Capital",
		LeadEmail:   "ann@bh.com",
		ThreadID:    "t-9",
		ReceivedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		ReplyText:   strings.Repeat("nope", 100),
	}
	c := model.Classification{Reasoning: "Polite decline"}

	s := BuildSummary(reply, c)
	assert.Equal(t, s, BuildSummary(reply, c))
	assert.Contains(t, s, "Name: Ann Lee\n")
	assert.Contains(t, s, "Company: Blue Harbor Capital\n")
	assert.Contains(t, s, "Thread: t-9\n")
	assert.Contains(t, s, "Declined: 2026-01-02\n")
	assert.True(t, strings.HasSuffix(s, "Reasoning: Polite decline"))

	for _, line := range strings.Split(s, "\n") {
		if excerpt, ok := strings.CutPrefix(line, "Reply: "); ok {
			assert.Len(t, []rune(excerpt), MaxExcerptRunes)
		}
	}

	assert.NotContains(t, BuildSummary(model.ReplyPayload{LeadEmail: "x@y.z", ReplyText: "no"}, model.Classification{}), "Name:")
}

func TestExcerpt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a b c", Excerpt("  a \n b\tc "))
	assert.Len(t, []rune(Excerpt(strings.Repeat("é", 500))), MaxExcerptRunes)
}
