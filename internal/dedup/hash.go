// Package dedup decides whether a lead needs rescoring by comparing a
// canonical content hash against the last hash recorded for it.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/sells-group/lead-triage/internal/model"
	"github.com/sells-group/lead-triage/internal/textutil"
)

// ContentHash returns the hex SHA-256 of the lead's scoring-relevant
// fields in canonical form. Identity fields (lead_id, email, batch_id)
// are excluded, so the same data submitted twice hashes identically.
func ContentHash(lead model.Lead) string {
	doc := map[string]any{}

	putString := func(k, v string) {
		if n := textutil.Normalize(v); n != "" {
			doc[k] = n
		}
	}
	putInt := func(k string, v *int) {
		if v != nil {
			doc[k] = json.Number(strconv.Itoa(*v))
		}
	}
	putFloat := func(k string, v *float64) {
		if v != nil {
			doc[k] = json.Number(strconv.FormatFloat(*v, 'f', -1, 64))
		}
	}
	putList := func(k string, v []string) {
		if l := canonicalList(v); len(l) > 0 {
			doc[k] = l
		}
	}

	putString("company", lead.Company)
	putString("title", lead.Title)
	putString("industry", lead.Industry)
	putString("vertical", lead.Vertical)
	putString("sub_vertical", lead.SubVertical)
	putString("funding_stage", lead.FundingStage)
	putString("location", lead.Location)
	putString("country", lead.Country)
	putString("source", lead.Source)
	putString("campaign_id", lead.CampaignID)
	putInt("company_size", lead.CompanySize)
	putInt("founded_year", lead.FoundedYear)
	putFloat("revenue", lead.Revenue)
	putFloat("funding_amount", lead.FundingAmount)
	putList("tech_stack", lead.TechStack)
	putList("tools", lead.Tools)
	putList("hiring_signals", lead.HiringSignals)
	putList("recent_news", lead.RecentNews)
	putList("growth_signals", lead.GrowthSignals)
	if lead.OptedOut {
		doc["opted_out"] = true
	}
	if len(lead.EnrichmentData) > 0 {
		if v := canonical(lead.EnrichmentData); v != nil {
			doc["enrichment_data"] = v
		}
	}

	// encoding/json sorts map keys, which makes the output canonical.
	data, err := json.Marshal(doc)
	if err != nil {
		data = []byte(fmt.Sprint(doc))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func canonicalList(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		n := textutil.Normalize(it)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// canonical normalizes free-form enrichment values. Empty values return nil
// and are dropped by the caller.
func canonical(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		if n := textutil.Normalize(x); n != "" {
			return n
		}
		return nil
	case bool:
		return x
	case int:
		return json.Number(strconv.Itoa(x))
	case int64:
		return json.Number(strconv.FormatInt(x, 10))
	case float64:
		return json.Number(strconv.FormatFloat(x, 'f', -1, 64))
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return json.Number(strconv.FormatFloat(f, 'f', -1, 64))
		}
		return x
	case []string:
		if l := canonicalList(x); len(l) > 0 {
			return l
		}
		return nil
	case []any:
		var strs []string
		var rest []string
		for _, it := range x {
			c := canonical(it)
			if c == nil {
				continue
			}
			if s, ok := c.(string); ok {
				strs = append(strs, s)
				continue
			}
			b, _ := json.Marshal(c)
			rest = append(rest, string(b))
		}
		all := append(canonicalList(strs), rest...)
		sort.Strings(all)
		if len(all) == 0 {
			return nil
		}
		return all
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			if c := canonical(val); c != nil {
				out[k] = c
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return canonical(fmt.Sprint(x))
	}
}
