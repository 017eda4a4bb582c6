package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/ppsverify/internal/models"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// RecordStore persists verification attempts in one Firestore collection,
// keyed by attempt ID.
type RecordStore struct {
	client     *firestore.Client
	collection string
}

// NewRecordStore returns a store writing to collection.
func NewRecordStore(client *firestore.Client, collection string) *RecordStore {
	return &RecordStore{client: client, collection: collection}
}

func (s *RecordStore) doc(id string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(id)
}

// SaveAttempt writes rec under its attempt ID, replacing any previous version.
func (s *RecordStore) SaveAttempt(ctx context.Context, rec models.VerificationRecord) error {
	if rec.AttemptID == "" {
		return fmt.Errorf("attempt record has no attempt ID")
	}
	if _, err := s.doc(rec.AttemptID).Set(ctx, rec); err != nil {
		return fmt.Errorf("failed to save attempt record %s: %w", rec.AttemptID, err)
	}
	return nil
}

// FindByHash returns the attempt ID of a record with the given file hash.
func (s *RecordStore) FindByHash(ctx context.Context, fileHash string) (string, bool, error) {
	docs, err := s.client.Collection(s.collection).Where("fileHash", "==", fileHash).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return "", false, fmt.Errorf("failed to query for duplicates: %w", err)
	}
	if len(docs) > 0 {
		return docs[0].Ref.ID, true, nil
	}
	return "", false, nil
}

// SaveExtraction completes a PROCESSING record with the recognition result.
func (s *RecordStore) SaveExtraction(ctx context.Context, attemptID, status string, fields models.ExtractedDocumentFields, messages []string) error {
	updates := []firestore.Update{
		{Path: "status", Value: status},
		{Path: "fields", Value: fields},
	}
	if len(messages) > 0 {
		updates = append(updates, firestore.Update{Path: "errors", Value: messages})
	}
	if _, err := s.doc(attemptID).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to save extraction for %s: %w", attemptID, err)
	}
	return nil
}

// UpdateStatus sets the status of a record and, when given, its error details.
func (s *RecordStore) UpdateStatus(ctx context.Context, attemptID, status, errDetails string) error {
	updates := []firestore.Update{
		{Path: "status", Value: status},
	}
	if errDetails != "" {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: errDetails})
	}
	if _, err := s.doc(attemptID).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update status of %s: %w", attemptID, err)
	}
	return nil
}
