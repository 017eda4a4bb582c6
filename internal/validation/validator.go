// Package validation decides whether an attestation can back a race
// registration by cross-checking extracted fields against declared identity.
package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/Lllllllleong/ppsverify/internal/models"
)

// IssueKind classifies a validation issue.
type IssueKind string

const (
	IssueMissing  IssueKind = "missing"
	IssueMismatch IssueKind = "mismatch"
)

// Issue is a field-level diagnostic.
type Issue struct {
	Field   models.Field `json:"field"`
	Kind    IssueKind    `json:"kind"`
	Message string       `json:"message"`
}

// Outcome is the accept/reject decision for one attempt.
type Outcome struct {
	Accepted bool                           `json:"accepted"`
	Errors   []string                       `json:"errors"`
	Issues   []Issue                        `json:"issues"`
	Fields   models.ExtractedDocumentFields `json:"fields"`
}

// Validate runs the completeness gate, then the identity comparisons.
// Comparisons only run once all five fields are present, and every mismatch
// is reported, not just the first.
func Validate(fields models.ExtractedDocumentFields, declared models.DeclaredIdentity) Outcome {
	out := Outcome{Fields: fields}

	for _, f := range fields.Missing() {
		out.add(f, IssueMissing, missingMessage(f))
	}
	if len(out.Issues) > 0 {
		return out
	}

	surname, _ := fields.Value(models.FieldSurname)
	if !IsNameMatch(surname, declared.Surname) {
		out.add(models.FieldSurname, IssueMismatch, mismatchMessage(models.FieldSurname, surname, declared.Surname))
	}

	givenName, _ := fields.Value(models.FieldGivenName)
	if !IsNameMatch(givenName, declared.GivenName) {
		out.add(models.FieldGivenName, IssueMismatch, mismatchMessage(models.FieldGivenName, givenName, declared.GivenName))
	}

	birthDate, _ := fields.Value(models.FieldBirthDate)
	if birthDate != declared.BirthDate {
		out.add(models.FieldBirthDate, IssueMismatch,
			mismatchMessage(models.FieldBirthDate, FormatDisplayDate(birthDate), FormatDisplayDate(declared.BirthDate)))
	}

	out.Accepted = len(out.Issues) == 0
	return out
}

func (o *Outcome) add(f models.Field, kind IssueKind, msg string) {
	o.Issues = append(o.Issues, Issue{Field: f, Kind: kind, Message: msg})
	o.Errors = append(o.Errors, msg)
}

// NormalizeName lower-cases s and keeps only Latin letters, so case, spaces,
// punctuation and hyphens do not count as differences.
func NormalizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) && unicode.Is(unicode.Latin, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsNameMatch compares two names after NormalizeName.
func IsNameMatch(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}

// FormatDisplayDate renders an ISO date as DD/MM/YYYY. Other input is
// returned unchanged.
func FormatDisplayDate(iso string) string {
	parts := strings.Split(iso, "-")
	if len(parts) != 3 || len(parts[0]) != 4 {
		return iso
	}
	return parts[2] + "/" + parts[1] + "/" + parts[0]
}

func missingMessage(f models.Field) string {
	return fmt.Sprintf("%s could not be read from your document, please check legibility and re-scan it more clearly.", f.Label())
}

func mismatchMessage(f models.Field, extracted, declared string) string {
	return fmt.Sprintf("%s on your document (%s) does not match the one you entered (%s).", f.Label(), extracted, declared)
}
