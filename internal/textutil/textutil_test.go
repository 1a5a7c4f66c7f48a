package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "investor relations", Normalize("  Investor   RELATIONS \n"))
	assert.Equal(t, "", Normalize("   "))
	assert.Equal(t, "strasse", Normalize("STRASSE"))
}

func TestTokens(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"vp", "sales", "emea"}, Tokens("VP, Sales (EMEA)"))
	assert.Empty(t, Tokens(""))
}

func TestContainsPhrase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text, phrase string
		want         bool
	}{
		{"CTO, Acme", "cto", true},
		{"Director of Engineering", "cto", false},
		{"Director of Investor Relations", "investor relations", true},
		{"Investor", "investor relations", false},
		{"anything", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ContainsPhrase(tt.text, tt.phrase), "%q in %q", tt.phrase, tt.text)
	}
}

func TestMatchKeywords(t *testing.T) {
	t.Parallel()

	got := MatchKeywords([]string{"Thanks", "spam", "appreciate"}, "Thanks, I appreciate it", "")
	assert.Equal(t, []string{"Thanks", "appreciate"}, got)
	assert.Nil(t, MatchKeywords([]string{"x"}, "", " "))
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "hi", Truncate("hi", 10))
	assert.Equal(t, "", Truncate("hi", 0))
}
