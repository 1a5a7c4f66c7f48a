package categoryb

import (
	"fmt"
	"strings"

	"github.com/sells-group/lead-triage/internal/model"
	"github.com/sells-group/lead-triage/internal/textutil"
)

// MaxExcerptRunes bounds the decline excerpt in a profile summary.
const MaxExcerptRunes = 200

// BuildSummary renders the lead profile recorded against a declined lead.
// Empty fields are omitted; the output is deterministic.
func BuildSummary(reply model.ReplyPayload, c model.Classification) string {
	var b strings.Builder
	line := func(label, value string) {
		if v := strings.TrimSpace(value); v != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, v)
		}
	}

	line("Name", reply.LeadName)
	line("Title", reply.LeadTitle)
	line("Company", reply.LeadCompany)
	line("Email", reply.LeadEmail)
	line("Thread", reply.ThreadID)
	if !reply.ReceivedAt.IsZero() {
		line("Declined", reply.ReceivedAt.UTC().Format("2006-01-02"))
	}

	line("Reply", Excerpt(reply.ReplyText))
	line("Reasoning", c.Reasoning)

	return strings.TrimRight(b.String(), "\n")
}

// Excerpt collapses whitespace in text and keeps at most MaxExcerptRunes
// runes.
func Excerpt(text string) string {
	return textutil.Truncate(strings.Join(strings.Fields(text), " "), MaxExcerptRunes)
}
