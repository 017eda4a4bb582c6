package extraction

import "github.com/Lllllllleong/ppsverify/internal/models"

// Trace records which tier produced each extracted field. Fields that were not
// found are absent from the map.
type Trace map[models.Field]int

// Extract reads the five attestation fields from raw OCR text. Each field is
// matched independently; a field with no matching tier stays nil.
func Extract(raw string) models.ExtractedDocumentFields {
	fields, _ := ExtractWithTrace(raw)
	return fields
}

// ExtractWithTrace is Extract plus the winning tier per field.
func ExtractWithTrace(raw string) (models.ExtractedDocumentFields, Trace) {
	return ExtractWith(DefaultStrategies(), raw)
}

// ExtractWith runs the given strategies over raw OCR text.
func ExtractWith(strategies []Strategy, raw string) (models.ExtractedDocumentFields, Trace) {
	text := NormalizeText(raw)
	var fields models.ExtractedDocumentFields
	trace := make(Trace, len(strategies))
	if text == "" {
		return fields, trace
	}
	for _, s := range strategies {
		value, tier, ok := s.Match(text)
		if !ok {
			continue
		}
		fields.Set(s.Field, value)
		trace[s.Field] = tier
	}
	return fields, trace
}
