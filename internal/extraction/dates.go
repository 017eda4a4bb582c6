package extraction

import (
	"regexp"
	"strings"
)

var (
	reISODate   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	reLocalDate = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{2,4})$`)
)

// IsISODate reports whether s has the YYYY-MM-DD shape.
func IsISODate(s string) bool {
	return reISODate.MatchString(s)
}

// NormalizeDate converts D/M/Y style dates (separators '/', '-' or '.',
// two or four digit years) to YYYY-MM-DD. ISO input is returned as is, and so
// is anything it does not recognise; callers must treat a non-ISO result as
// "not found".
func NormalizeDate(s string) string {
	if IsISODate(s) {
		return s
	}
	m := reLocalDate.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return s
	}
	day, month, year := m[1], m[2], m[3]
	if len(year) == 2 {
		year = "20" + year
	}
	return year + "-" + pad2(month) + "-" + pad2(day)
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
