package notion

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// maxRichText is the Notion limit for a single rich-text object.
const maxRichText = 2000

var titleCaser = cases.Title(language.English)

// PropertyName converts a snake_case field key into a Notion column name,
// e.g. "profile_summary" -> "Profile Summary", "lead_id" -> "Lead ID".
func PropertyName(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		switch strings.ToLower(w) {
		case "id", "url", "ai":
			words[i] = strings.ToUpper(w)
		default:
			words[i] = titleCaser.String(w)
		}
	}
	return strings.Join(words, " ")
}

// Text builds a rich-text value, split into Notion-sized chunks.
func Text(s string) []notionapi.RichText {
	runes := []rune(s)
	var out []notionapi.RichText
	for len(runes) > 0 {
		n := min(len(runes), maxRichText)
		out = append(out, notionapi.RichText{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: string(runes[:n])},
		})
		runes = runes[n:]
	}
	return out
}

// Title builds a title property.
func Title(s string) notionapi.TitleProperty {
	return notionapi.TitleProperty{Type: notionapi.PropertyTypeTitle, Title: Text(s)}
}

// Properties maps a flat field set onto Notion properties. The "status" key
// becomes a status property; other values are typed by their Go kind.
func Properties(fields map[string]any) notionapi.Properties {
	props := make(notionapi.Properties, len(fields))
	for k, v := range fields {
		if k == "status" {
			if s, ok := v.(string); ok && s != "" {
				props["Status"] = notionapi.StatusProperty{Status: notionapi.Status{Name: s}}
			}
			continue
		}
		if p := property(v); p != nil {
			props[PropertyName(k)] = p
		}
	}
	return props
}

func property(v any) notionapi.Property {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: Text(t)}
	case bool:
		return notionapi.CheckboxProperty{Type: notionapi.PropertyTypeCheckbox, Checkbox: t}
	case int:
		return notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: float64(t)}
	case int64:
		return notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: float64(t)}
	case float64:
		return notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: t}
	case time.Time:
		d := notionapi.Date(t)
		return notionapi.DateProperty{Type: notionapi.PropertyTypeDate, Date: &notionapi.DateObject{Start: &d}}
	case []string:
		return notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: Text(strings.Join(t, ", "))}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %v", k, t[k]))
		}
		return notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: Text(strings.Join(parts, "\n"))}
	default:
		return notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: Text(fmt.Sprint(t))}
	}
}
