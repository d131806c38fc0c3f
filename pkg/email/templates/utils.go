package templates

import (
	"html"
	"strings"
)

// ReplaceVariables substitutes {{name}} placeholders with their values.
// Unknown placeholders are left untouched.
func ReplaceVariables(template string, variables map[string]string) string {
	if len(variables) == 0 {
		return template
	}
	pairs := make([]string, 0, len(variables)*2)
	for name, value := range variables {
		pairs = append(pairs, "{{"+name+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// StripHTML removes all tags from an HTML fragment and collapses the
// leftover whitespace, producing the plain-text fallback used when a message
// has no explicit text body.
func StripHTML(fragment string) string {
	stripped := strictPolicy.Sanitize(fragment)
	stripped = html.UnescapeString(stripped)
	return strings.Join(strings.Fields(stripped), " ")
}
