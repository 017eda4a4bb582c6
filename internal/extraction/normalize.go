package extraction

import (
	"regexp"
	"strings"
)

var reWhitespace = regexp.MustCompile(`\s+`)

// NormalizeText flattens OCR output to a single line: every whitespace run,
// line breaks included, becomes one space.
func NormalizeText(raw string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(raw, " "))
}
