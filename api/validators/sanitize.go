package validators

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// SanitizeString strips markup, trims and truncates to maxLen runes.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(input)))
	if maxLen > 0 {
		if runes := []rune(cleaned); len(runes) > maxLen {
			return strings.TrimSpace(string(runes[:maxLen]))
		}
	}
	return cleaned
}
