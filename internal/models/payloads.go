package models

// These structs define the JSON payloads exchanged with the registration form
// and the storage event delivered to the OCR trigger function.

// VerifyRequest is the input of validateAndUpload.
type VerifyRequest struct {
	RegistrationID string
	Filename       string
	ContentType    string
	File           []byte
	Declared       DeclaredIdentity
	// PreExtracted is set when the client already ran extraction; the pipeline
	// then starts at validation.
	PreExtracted *ExtractedDocumentFields
}

// VerifyResponse is the uniform result returned to the registration form.
type VerifyResponse struct {
	Success       bool                     `json:"success"`
	Error         string                   `json:"error,omitempty"`
	Errors        []string                 `json:"errors,omitempty"`
	ExtractedData *ExtractedDocumentFields `json:"extractedData,omitempty"`
	StorageURL    string                   `json:"storageUrl,omitempty"`
	State         string                   `json:"state"`
	AttemptID     string                   `json:"attemptId,omitempty"`
}

// StorageEvent is the payload of a GCS object finalize CloudEvent.
type StorageEvent struct {
	Bucket      string            `json:"bucket"`
	Name        string            `json:"name"`
	ContentType string            `json:"contentType"`
	Size        string            `json:"size"`
	Metadata    map[string]string `json:"metadata"`
}

// Object metadata keys the registration form sets on direct uploads.
const (
	MetadataRegistrationID = "registration-id"
	MetadataSurname        = "declared-surname"
	MetadataGivenName      = "declared-given-name"
	MetadataBirthDate      = "declared-birth-date"
	// MetadataAttemptID marks objects the verifier stored after validating them.
	MetadataAttemptID = "attempt-id"
)

// DeclaredFromMetadata reads a declared identity from object metadata.
func DeclaredFromMetadata(md map[string]string) DeclaredIdentity {
	return DeclaredIdentity{
		Surname:   md[MetadataSurname],
		GivenName: md[MetadataGivenName],
		BirthDate: md[MetadataBirthDate],
	}
}

// WorkflowPayload is the argument of the post-acceptance workflow execution.
type WorkflowPayload struct {
	AttemptID      string `json:"attemptId"`
	RegistrationID string `json:"registrationId,omitempty"`
	StorageURL     string `json:"storageUrl"`
	PPSNumber      string `json:"ppsNumber"`
	PPSValidity    string `json:"ppsValidity"`
}
