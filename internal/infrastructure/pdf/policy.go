package pdf

import (
	"regexp"
	"strings"

	"github.com/kestrelhq/portal/internal/domain"
)

// Divider replaces markdown horizontal rules
var Divider = strings.Repeat("_", 40)

var (
	boldPattern    = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicPattern  = regexp.MustCompile(`\*(\S(?:.*?\S)?)\*`)
	headingPattern = regexp.MustCompile(`^#{1,6}\s+`)
)

// PolicyText turns policy markdown into the plain text printed in the PDF and
// substitutes the effective date.
func PolicyText(content, effectiveDate string) string {
	content = domain.SubstituteEffectiveDate(content, effectiveDate)
	content = strings.ReplaceAll(content, "\r\n", "\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "---":
			lines[i] = Divider
			continue
		case headingPattern.MatchString(trimmed):
			line = headingPattern.ReplaceAllString(trimmed, "")
		case strings.HasPrefix(trimmed, "- "):
			line = "• " + strings.TrimPrefix(trimmed, "- ")
		}
		line = boldPattern.ReplaceAllString(line, "$1")
		line = italicPattern.ReplaceAllString(line, "$1")
		lines[i] = line
	}

	return strings.Join(lines, "\n")
}
