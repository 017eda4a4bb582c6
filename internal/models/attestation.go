package models

// Field identifies one of the five values read from a PPS attestation.
// The declaration order is the order in which diagnostics are reported.
type Field int

const (
	FieldSurname Field = iota
	FieldGivenName
	FieldBirthDate
	FieldPPSNumber
	FieldPPSValidity
)

// AllFields lists every required field in reporting order.
var AllFields = []Field{FieldSurname, FieldGivenName, FieldBirthDate, FieldPPSNumber, FieldPPSValidity}

// String returns the JSON key used for the field.
func (f Field) String() string {
	switch f {
	case FieldSurname:
		return "surname"
	case FieldGivenName:
		return "givenName"
	case FieldBirthDate:
		return "birthDate"
	case FieldPPSNumber:
		return "ppsNumber"
	case FieldPPSValidity:
		return "ppsValidity"
	default:
		return "unknown"
	}
}

// Label is the user-facing name of the field.
func (f Field) Label() string {
	switch f {
	case FieldSurname:
		return "Surname"
	case FieldGivenName:
		return "Given name"
	case FieldBirthDate:
		return "Birth date"
	case FieldPPSNumber:
		return "PPS number"
	case FieldPPSValidity:
		return "PPS validity date"
	default:
		return "Unknown field"
	}
}

// ExtractedDocumentFields holds what was read from one attestation.
// A nil field means the extractor found nothing for it; dates are ISO once set.
type ExtractedDocumentFields struct {
	Surname     *string `json:"surname,omitempty" firestore:"surname,omitempty"`
	GivenName   *string `json:"givenName,omitempty" firestore:"givenName,omitempty"`
	BirthDate   *string `json:"birthDate,omitempty" firestore:"birthDate,omitempty"`
	PPSNumber   *string `json:"ppsNumber,omitempty" firestore:"ppsNumber,omitempty"`
	PPSValidity *string `json:"ppsValidity,omitempty" firestore:"ppsValidity,omitempty"`
}

// Value returns the field value and whether it is present and non-empty.
func (e ExtractedDocumentFields) Value(f Field) (string, bool) {
	var p *string
	switch f {
	case FieldSurname:
		p = e.Surname
	case FieldGivenName:
		p = e.GivenName
	case FieldBirthDate:
		p = e.BirthDate
	case FieldPPSNumber:
		p = e.PPSNumber
	case FieldPPSValidity:
		p = e.PPSValidity
	}
	if p == nil || *p == "" {
		return "", false
	}
	return *p, true
}

// Set stores v for field f.
func (e *ExtractedDocumentFields) Set(f Field, v string) {
	p := &v
	switch f {
	case FieldSurname:
		e.Surname = p
	case FieldGivenName:
		e.GivenName = p
	case FieldBirthDate:
		e.BirthDate = p
	case FieldPPSNumber:
		e.PPSNumber = p
	case FieldPPSValidity:
		e.PPSValidity = p
	}
}

// Clear marks field f as absent.
func (e *ExtractedDocumentFields) Clear(f Field) {
	switch f {
	case FieldSurname:
		e.Surname = nil
	case FieldGivenName:
		e.GivenName = nil
	case FieldBirthDate:
		e.BirthDate = nil
	case FieldPPSNumber:
		e.PPSNumber = nil
	case FieldPPSValidity:
		e.PPSValidity = nil
	}
}

// Missing returns the absent or empty fields in reporting order.
func (e ExtractedDocumentFields) Missing() []Field {
	var missing []Field
	for _, f := range AllFields {
		if _, ok := e.Value(f); !ok {
			missing = append(missing, f)
		}
	}
	return missing
}

// DeclaredIdentity is what the participant typed in the registration form.
type DeclaredIdentity struct {
	Surname   string `json:"surname" firestore:"surname"`
	GivenName string `json:"givenName" firestore:"givenName"`
	BirthDate string `json:"birthDate" firestore:"birthDate"` // ISO YYYY-MM-DD
}

// IsZero reports whether no identity value was supplied at all.
func (d DeclaredIdentity) IsZero() bool {
	return d.Surname == "" && d.GivenName == "" && d.BirthDate == ""
}

// UploadResult is the outcome of the object storage step.
type UploadResult struct {
	Success bool   `json:"success"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
}
