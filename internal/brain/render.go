package brain

import (
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Render substitutes {{name}} placeholders from vars. Placeholders with no
// value, or an empty one, are left in place and reported as missing.
func Render(text string, vars map[string]string) (string, []string) {
	var missing []string
	seen := make(map[string]bool)
	out := placeholder.ReplaceAllStringFunc(text, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if v := strings.TrimSpace(vars[name]); v != "" {
			return v
		}
		if !seen[name] {
			seen[name] = true
			missing = append(missing, name)
		}
		return m
	})
	return out, missing
}
