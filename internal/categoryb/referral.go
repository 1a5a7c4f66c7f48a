// Package categoryb handles not-interested replies: status update, profile
// summary, referral evaluation and the optional delayed referral request.
package categoryb

import (
	"github.com/sells-group/lead-triage/internal/model"
	"github.com/sells-group/lead-triage/internal/textutil"
)

var (
	vpPlusTitles = []string{
		"vp", "vice president", "svp", "evp", "avp", "chief", "ceo", "cfo", "coo", "cto",
		"cmo", "cro", "cio", "president", "founder", "co-founder", "owner", "partner",
		"managing director", "general manager",
	}

	hostileIndicators = []string{
		"stop emailing", "stop contacting", "leave me alone", "spam", "harass", "never contact",
		"don't contact", "do not contact", "reported", "annoying", "waste of my time", "go away",
	}

	politeIndicators = []string{
		"thank you", "thanks", "appreciate", "best of luck", "good luck", "wish you",
		"kind regards", "all the best", "no worries", "sorry",
	}

	alignedCompanyKeywords = []string{
		"capital", "partners", "ventures", "holdings", "investments", "advisors", "advisory",
		"financial", "bank", "securities", "asset", "equity", "group", "consulting",
	}

	seniorityKeywords = []string{
		"vp", "vice president", "director", "head", "chief", "partner", "principal",
		"managing", "founder", "president", "lead",
	}
)

// IsVPPlus reports whether the title is vice-president level or above.
func IsVPPlus(title string) bool {
	return phraseIn(title, vpPlusTitles)
}

// DeclineTone scans reply text for tone indicators. Hostile wins over polite.
func DeclineTone(text string) model.DeclineTone {
	switch {
	case len(textutil.MatchKeywords(hostileIndicators, text)) > 0:
		return model.ToneHostile
	case len(textutil.MatchKeywords(politeIndicators, text)) > 0:
		return model.TonePolite
	default:
		return model.ToneNeutral
	}
}

// NetworkFit combines company-name alignment with title seniority.
func NetworkFit(company, title string) model.NetworkFit {
	aligned := phraseIn(company, alignedCompanyKeywords)
	senior := phraseIn(title, seniorityKeywords)
	switch {
	case aligned && senior:
		return model.FitAligned
	case aligned || senior:
		return model.FitPartial
	default:
		return model.FitMisaligned
	}
}

// Evaluate decides whether a declining lead is worth asking for a referral,
// and whether that ask can go out without a human.
func Evaluate(reply model.ReplyPayload) model.ReferralEvaluation {
	ev := model.ReferralEvaluation{
		IsVPPlus:    IsVPPlus(reply.LeadTitle),
		DeclineTone: DeclineTone(reply.ReplyText),
		NetworkFit:  NetworkFit(reply.LeadCompany, reply.LeadTitle),
	}
	ev.ReferralPotential = ev.IsVPPlus && ev.DeclineTone != model.ToneHostile && ev.NetworkFit != model.FitMisaligned
	ev.AutoSendReferral = ev.IsVPPlus && ev.DeclineTone == model.TonePolite && ev.NetworkFit == model.FitAligned
	return ev
}

// phraseIn matches whole words so "cto" does not fire on "director".
func phraseIn(text string, phrases []string) bool {
	for _, p := range phrases {
		if textutil.ContainsPhrase(text, p) {
			return true
		}
	}
	return false
}
