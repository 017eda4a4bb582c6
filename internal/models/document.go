package models

import "time"

// VerificationRecord is the Firestore record of one verification attempt.
// Form attempts are written once, at their terminal state. Trigger attempts
// are created PROCESSING and updated when recognition finishes.
type VerificationRecord struct {
	AttemptID      string                  `firestore:"attemptId"`
	RegistrationID string                  `firestore:"registrationId,omitempty"`
	FileHash       string                  `firestore:"fileHash,omitempty"`
	ContentType    string                  `firestore:"contentType,omitempty"`
	Source         string                  `firestore:"source"`
	Status         string                  `firestore:"status"`
	Errors         []string                `firestore:"errors,omitempty"`
	ErrorDetails   string                  `firestore:"errorDetails,omitempty"`
	Fields         ExtractedDocumentFields `firestore:"fields"`
	StorageURL     string                  `firestore:"storageUrl,omitempty"`
	ObjectName     string                  `firestore:"objectName,omitempty"`
	CreatedAt      time.Time               `firestore:"createdAt"`
}

// Record sources.
const (
	SourceForm    = "form"
	SourceTrigger = "trigger"
)

// Record statuses.
const (
	StatusProcessing = "PROCESSING"
	StatusSucceeded  = "SUCCEEDED"
	StatusFailed     = "FAILED"
	// StatusRejected: fields were read but did not match the declared identity.
	StatusRejected = "REJECTED"
	// StatusExtracted: fields were read and there was no declared identity to check.
	StatusExtracted = "EXTRACTED"
)
