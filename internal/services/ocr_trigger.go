package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Lllllllleong/ppsverify/internal/config"
	"github.com/Lllllllleong/ppsverify/internal/document"
	"github.com/Lllllllleong/ppsverify/internal/extraction"
	"github.com/Lllllllleong/ppsverify/internal/gcp"
	"github.com/Lllllllleong/ppsverify/internal/metrics"
	"github.com/Lllllllleong/ppsverify/internal/models"
	"github.com/Lllllllleong/ppsverify/internal/validation"
	"github.com/google/uuid"
)

// ObjectReader fetches uploaded objects.
type ObjectReader interface {
	Get(ctx context.Context, bucket, key string, maxSize int64) ([]byte, error)
}

// ExtractionRecorder persists server-side extractions.
type ExtractionRecorder interface {
	FindByHash(ctx context.Context, fileHash string) (string, bool, error)
	SaveAttempt(ctx context.Context, rec models.VerificationRecord) error
	SaveExtraction(ctx context.Context, attemptID, status string, fields models.ExtractedDocumentFields, messages []string) error
	UpdateStatus(ctx context.Context, attemptID, status, errDetails string) error
}

// OCRTriggerConfig holds the settings of the storage trigger.
type OCRTriggerConfig struct {
	ObjectPrefix string
	MaxFileSize  int64
}

// OCRTrigger recognizes attestations uploaded straight to the bucket and
// records what was read from them.
type OCRTrigger struct {
	config    OCRTriggerConfig
	reader    ObjectReader
	records   ExtractionRecorder
	inspector *Inspector
	metrics   *metrics.Metrics
	newID     func() string
	now       func() time.Time
	closers   []io.Closer
}

// NewOCRTrigger builds an OCRTrigger with real GCP collaborators.
func NewOCRTrigger(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*OCRTrigger, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	if cfg.FirestoreCollection == "" {
		return nil, fmt.Errorf("FIRESTORE_COLLECTION environment variable must be set")
	}

	inspector, closers, err := NewInspectorFromConfig(ctx, cfg, m)
	if err != nil {
		return nil, err
	}
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	store, err := gcp.NewObjectStore(ctx, cfg.PublicBaseURL, gcp.DefaultRetryPolicy())
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to create object store: %w", err)
	}
	closers = append(closers, store)

	fsClient, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	closers = append(closers, fsClient)

	t := NewOCRTriggerWithDeps(
		OCRTriggerConfig{ObjectPrefix: cfg.ObjectPrefix, MaxFileSize: cfg.MaxFileSize},
		store,
		gcp.NewRecordStore(fsClient, cfg.FirestoreCollection),
		inspector,
		m,
	)
	t.closers = closers
	slog.Info("OCR trigger initialized.", "ocrEngine", cfg.OCREngine, "collection", cfg.FirestoreCollection)
	return t, nil
}

// NewOCRTriggerWithDeps builds an OCRTrigger around injected collaborators.
func NewOCRTriggerWithDeps(cfg OCRTriggerConfig, reader ObjectReader, records ExtractionRecorder, inspector *Inspector, m *metrics.Metrics) *OCRTrigger {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = document.DefaultMaxSize
	}
	cfg.ObjectPrefix = strings.Trim(cfg.ObjectPrefix, "/")
	return &OCRTrigger{
		config:    cfg,
		reader:    reader,
		records:   records,
		inspector: inspector,
		metrics:   m,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// Process handles one object finalize event.
func (t *OCRTrigger) Process(ctx context.Context, e models.StorageEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)

	if reason := t.skipReason(e); reason != "" {
		logCtx.Info("Skipping object.", "reason", reason)
		return nil
	}
	logCtx.Info("Processing new GCS object.")

	data, err := t.reader.Get(ctx, e.Bucket, e.Name, t.config.MaxFileSize)
	if err != nil {
		logCtx.Error("Failed to download object", "error", err)
		return err
	}
	contentType, err := document.DetectContentType(e.ContentType, e.Name, data)
	if err != nil {
		logCtx.Warn("Object is not an attestation document. Skipping.", "error", err)
		return nil
	}

	hash := fileHash(data)
	logCtx = logCtx.With("fileHash", hash)
	existing, dup, err := t.records.FindByHash(ctx, hash)
	if err != nil {
		logCtx.Error("Failed to check for duplicate", "error", err)
		return err
	}
	if dup {
		logCtx.Info("Duplicate file detected. Skipping.", "existingAttemptId", existing)
		return nil
	}

	id := t.newID()
	logCtx = logCtx.With("attemptId", id)
	rec := models.VerificationRecord{
		AttemptID:      id,
		RegistrationID: e.Metadata[models.MetadataRegistrationID],
		FileHash:       hash,
		ContentType:    contentType,
		Source:         models.SourceTrigger,
		Status:         models.StatusProcessing,
		ObjectName:     e.Name,
		CreatedAt:      t.now().UTC(),
	}
	if err := t.records.SaveAttempt(ctx, rec); err != nil {
		logCtx.Error("Failed to create attempt record", "error", err)
		return err
	}

	a := newAttempt(id, logCtx)
	inspection, err := t.inspector.run(ctx, a, data, contentType)
	if err != nil {
		return t.handleError(ctx, logCtx, id, "failed to read attestation", err)
	}

	status := models.StatusExtracted
	var messages []string
	if declared, ok := declaredIdentity(e.Metadata); ok {
		outcome := validation.Validate(inspection.Fields, declared)
		messages = outcome.Errors
		status = models.StatusSucceeded
		if !outcome.Accepted {
			status = models.StatusRejected
		}
	}

	if err := t.records.SaveExtraction(ctx, id, status, inspection.Fields, messages); err != nil {
		return t.handleError(ctx, logCtx, id, "failed to save extraction", err)
	}
	t.metrics.IncrementAttempt(strings.ToLower(status), models.SourceTrigger)
	logCtx.Info("Extraction recorded.", "status", status, "source", inspection.TextSource)
	return nil
}

// declaredIdentity reads the identity the registration form attached to the
// object. Only a complete identity with a readable birth date is checked.
func declaredIdentity(md map[string]string) (models.DeclaredIdentity, bool) {
	d := models.DeclaredFromMetadata(md)
	d.Surname = strings.TrimSpace(d.Surname)
	d.GivenName = strings.TrimSpace(d.GivenName)
	d.BirthDate = extraction.NormalizeDate(strings.TrimSpace(d.BirthDate))
	if d.Surname == "" || d.GivenName == "" || !extraction.IsISODate(d.BirthDate) {
		return d, false
	}
	return d, true
}

func (t *OCRTrigger) skipReason(e models.StorageEvent) string {
	switch {
	case t.config.ObjectPrefix != "" && !strings.HasPrefix(e.Name, t.config.ObjectPrefix+"/"):
		return "outside attestation prefix"
	case strings.HasSuffix(e.Name, "/"):
		return "folder placeholder"
	case e.Metadata[models.MetadataAttemptID] != "":
		return "already verified by the registration form"
	}
	// Size is a decimal string in GCS events; an unparseable one is left to Get.
	if n, err := strconv.ParseInt(e.Size, 10, 64); err == nil {
		switch {
		case n == 0:
			return "empty object"
		case n > t.config.MaxFileSize:
			return "larger than the size limit"
		}
	}
	return ""
}

func (t *OCRTrigger) handleError(ctx context.Context, logCtx *slog.Logger, id, message string, originalErr error) error {
	fullError := fmt.Sprintf("%s: %v", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	t.metrics.IncrementAttempt(outcomeFailed, models.SourceTrigger)
	if err := t.records.UpdateStatus(ctx, id, models.StatusFailed, fullError); err != nil {
		logCtx.Error("Failed to mark attempt record as failed.", "updateError", err)
	}
	// Unreadable documents will not get better on redelivery.
	var conv *ConversionError
	var recog *RecognitionError
	if errors.As(originalErr, &conv) || errors.As(originalErr, &recog) {
		return nil
	}
	return errors.New(fullError)
}

// Close releases the clients created by NewOCRTrigger.
func (t *OCRTrigger) Close() error {
	var errs []error
	for _, c := range t.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
