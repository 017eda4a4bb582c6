package extraction

import (
	"regexp"
	"strings"

	"github.com/Lllllllleong/ppsverify/internal/models"
)

// Latin letter classes, accented forms included. × and ÷ sit inside the
// Latin-1 ranges and are left out.
const (
	upperClass  = `A-ZÀ-ÖØ-Þ`
	lowerClass  = `a-zß-öø-ÿ`
	letterClass = upperClass + lowerClass

	upperRun   = `[` + upperClass + `]{2,}(?:[ '\-]+[` + upperClass + `]{2,})*`
	datePart   = `(\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4})`
	givenLabel = `Pr[ée]nom(?:s|\(s\))?`
)

// Pattern is one tier of a field strategy. Lower tiers are stricter.
type Pattern struct {
	Tier int
	Expr *regexp.Regexp
	// Accept optionally rejects a capture this tier is known to over-match.
	Accept func(string) bool
}

// Strategy is the ordered list of patterns for one field plus the clean-up
// applied to the winning capture.
type Strategy struct {
	Field    models.Field
	Patterns []Pattern
	// Clean turns the raw capture into the stored value; false drops it.
	Clean func(string) (string, bool)
}

// Match runs the tiers in order against single-line text and returns the
// first cleaned, non-empty capture and the tier it came from.
func (s Strategy) Match(text string) (string, int, bool) {
	for _, p := range s.Patterns {
		m := p.Expr.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		capture := strings.TrimSpace(m[1])
		if capture == "" {
			continue
		}
		if p.Accept != nil && !p.Accept(capture) {
			continue
		}
		value := capture
		if s.Clean != nil {
			var ok bool
			if value, ok = s.Clean(capture); !ok {
				continue
			}
		}
		return value, p.Tier, true
	}
	return "", 0, false
}

func tiers(exprs ...string) []Pattern {
	out := make([]Pattern, len(exprs))
	for i, e := range exprs {
		out[i] = Pattern{Tier: i + 1, Expr: regexp.MustCompile(e)}
	}
	return out
}

var (
	surnameStrategy = Strategy{
		Field: models.FieldSurname,
		Patterns: tiers(
			`\bNom\b[^`+upperClass+`]*(`+upperRun+`)`,
			`\bNom\b.*?(`+upperRun+`)`,
			`(?:^|[^`+letterClass+`])NOM\b[^`+upperClass+`]*(`+upperRun+`)`,
		),
		Clean: cleanSurname,
	}

	givenNameStrategy = Strategy{
		Field: models.FieldGivenName,
		Patterns: tiers(
			givenLabel+`\s*[:.]?\s*([`+upperClass+`][`+lowerClass+`]+(?:-[`+upperClass+`][`+lowerClass+`]+)*)`,
			givenLabel+`[^`+letterClass+`]*([`+upperClass+`]+[`+lowerClass+`]+(?:-[`+upperClass+`]+[`+lowerClass+`]+)*)`,
			`(?i:PR[ÉE]NOM)(?:S|\(S\))?[^`+letterClass+`]*([`+upperClass+`]{2,}(?:-[`+upperClass+`]{2,})*)`,
			`(?i)pr\S{0,2}n[o0]m\S*?\s*[:.]?\s*(\pL[\pL'\-]+)`,
		),
		Clean: cleanName,
	}

	birthDateStrategy = Strategy{
		Field: models.FieldBirthDate,
		Patterns: tiers(
			`Date de naissance\s*:?\s*`+datePart,
			`(?i)date\s*de\s*naissance.{0,30}?`+datePart,
			`(?i)n[ée]e?\s*(?:\(e\))?\s+le\s*:?\s*`+datePart,
		),
		Clean: cleanDate,
	}

	ppsNumberStrategy = Strategy{
		Field: models.FieldPPSNumber,
		Patterns: func() []Pattern {
			p := tiers(
				`Num[ée]ro\s+de\s+PPS\s*:?\s*([A-Z0-9]{6,})`,
				`(?i:num[ée]ro)\s*PPS\s*:?\s*([A-Z0-9]{6,})`,
				`\bPPS\b[^A-Z0-9]*([A-Z0-9]{6,})`,
			)
			// A bare "PPS" anchor also precedes all-caps words such as VALABLE.
			p[2].Accept = hasDigit
			return p
		}(),
	}

	ppsValidityStrategy = Strategy{
		Field: models.FieldPPSValidity,
		Patterns: tiers(
			`Valable\s+jusqu['’]?\s*au\s*:?\s*`+datePart,
			`(?i)valable.{0,40}?`+datePart,
		),
		Clean: cleanDate,
	}
)

// DefaultStrategies returns the field strategies in reporting order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		surnameStrategy,
		givenNameStrategy,
		birthDateStrategy,
		ppsNumberStrategy,
		ppsValidityStrategy,
	}
}

// Label words an all-caps scan can run into the surname capture.
var labelWords = map[string]bool{
	"PRENOM": true, "PRÉNOM": true, "PRENOMS": true, "PRÉNOMS": true,
	"DATE": true, "NE": true, "NÉ": true, "NEE": true, "NÉE": true,
	"NUMERO": true, "NUMÉRO": true, "PPS": true, "VALABLE": true, "SEXE": true,
}

func cleanSurname(s string) (string, bool) {
	var kept []string
	for _, tok := range strings.Fields(strings.ToUpper(s)) {
		if labelWords[tok] {
			break
		}
		kept = append(kept, tok)
	}
	if len(kept) == 0 {
		return "", false
	}
	return strings.Join(kept, " "), true
}

func cleanName(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	return s, s != ""
}

func cleanDate(s string) (string, bool) {
	d := NormalizeDate(s)
	return d, IsISODate(d)
}

func hasDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}
