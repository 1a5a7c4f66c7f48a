package scorer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sells-group/lead-triage/internal/model"
	"github.com/sells-group/lead-triage/internal/textutil"
)

// value is a lead attribute resolved for condition evaluation.
type value struct {
	present bool
	text    string
	num     float64
	isNum   bool
	list    []string
	isList  bool
}

// Attributes lists the lead fields rules can read directly. Anything else
// is looked up in enrichment_data, optionally with an "enrichment_data."
// prefix.
var Attributes = []string{
	"title", "company_size", "industry", "vertical", "sub_vertical",
	"revenue", "funding_stage", "funding_amount", "founded_year",
	"location", "country", "tech_stack", "tools", "hiring_signals",
	"recent_news", "growth_signals", "opted_out", "source", "campaign_id",
}

func textValue(s string) value {
	n := textutil.Normalize(s)
	return value{present: n != "", text: n}
}

func intValue(p *int) value {
	if p == nil {
		return value{}
	}
	return value{present: true, num: float64(*p), isNum: true, text: strconv.Itoa(*p)}
}

func floatValue(p *float64) value {
	if p == nil {
		return value{}
	}
	return value{present: true, num: *p, isNum: true, text: strconv.FormatFloat(*p, 'f', -1, 64)}
}

func listValue(items []string) value {
	var out []string
	for _, it := range items {
		if n := textutil.Normalize(it); n != "" {
			out = append(out, n)
		}
	}
	return value{present: len(out) > 0, list: out, isList: true}
}

func resolve(lead model.Lead, attribute string) value {
	switch strings.ToLower(strings.TrimSpace(attribute)) {
	case "title":
		return textValue(lead.Title)
	case "company_size":
		return intValue(lead.CompanySize)
	case "industry":
		return textValue(lead.Industry)
	case "vertical":
		return textValue(lead.Vertical)
	case "sub_vertical":
		return textValue(lead.SubVertical)
	case "revenue":
		return floatValue(lead.Revenue)
	case "funding_stage":
		return textValue(lead.FundingStage)
	case "funding_amount":
		return floatValue(lead.FundingAmount)
	case "founded_year":
		return intValue(lead.FoundedYear)
	case "location":
		return textValue(lead.Location)
	case "country":
		return textValue(lead.Country)
	case "tech_stack":
		return listValue(lead.TechStack)
	case "tools":
		return listValue(lead.Tools)
	case "hiring_signals":
		return listValue(lead.HiringSignals)
	case "recent_news":
		return listValue(lead.RecentNews)
	case "growth_signals":
		return listValue(lead.GrowthSignals)
	case "opted_out":
		if lead.OptedOut {
			return value{present: true, text: "true"}
		}
		return value{}
	case "source":
		return textValue(lead.Source)
	case "campaign_id":
		return textValue(lead.CampaignID)
	}

	key := strings.TrimPrefix(strings.TrimSpace(attribute), "enrichment_data.")
	raw, ok := lead.EnrichmentData[key]
	if !ok || raw == nil {
		return value{}
	}
	return anyValue(raw)
}

func anyValue(raw any) value {
	switch v := raw.(type) {
	case string:
		return textValue(v)
	case bool:
		if !v {
			return value{}
		}
		return value{present: true, text: "true"}
	case int:
		return value{present: true, num: float64(v), isNum: true, text: strconv.Itoa(v)}
	case int64:
		return value{present: true, num: float64(v), isNum: true, text: strconv.FormatInt(v, 10)}
	case float64:
		f := v
		return floatValue(&f)
	case []string:
		return listValue(v)
	case []any:
		items := make([]string, 0, len(v))
		for _, it := range v {
			items = append(items, fmt.Sprint(it))
		}
		return listValue(items)
	default:
		return textValue(fmt.Sprint(v))
	}
}
