package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Lllllllleong/ppsverify/internal/config"
	"github.com/Lllllllleong/ppsverify/internal/document"
	"github.com/Lllllllleong/ppsverify/internal/extraction"
	"github.com/Lllllllleong/ppsverify/internal/gcp"
	"github.com/Lllllllleong/ppsverify/internal/metrics"
	"github.com/Lllllllleong/ppsverify/internal/models"
	"github.com/Lllllllleong/ppsverify/internal/ocr"
	"github.com/Lllllllleong/ppsverify/internal/validation"
	"github.com/google/uuid"
)

// User-facing messages for failures that are not validation diagnostics.
const (
	msgUnsupportedType = "Unsupported file type. Please upload a PDF, JPEG or PNG document."
	msgEmptyFile       = "The uploaded document is empty."
	msgTooLarge        = "The document is too large. The maximum size is %d MB."
	msgConversion      = "Could not process the document. Please upload a clearer scan or a photo of the attestation."
	msgRecognition     = "An error occurred while reading the document. Please try again."
	msgUpload          = "Your document is valid but could not be saved. Please submit it again."
	msgInternal        = "An unexpected error occurred while processing the document."
)

// Outcome labels for metrics.
const (
	outcomeSucceeded = "succeeded"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)

// ObjectStore is the put/delete contract of remote object storage.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string, metadata map[string]string) (gcp.StoredObject, error)
	Delete(ctx context.Context, bucket, key string) error
}

// AttemptRecorder persists terminated attempts.
type AttemptRecorder interface {
	SaveAttempt(ctx context.Context, rec models.VerificationRecord) error
}

// Notifier hands an accepted attestation to downstream processing.
type Notifier interface {
	Trigger(ctx context.Context, payload models.WorkflowPayload) (string, error)
}

// VerifierConfig holds the settings of the upload orchestrator.
type VerifierConfig struct {
	Bucket        string
	ObjectPrefix  string
	PublicBaseURL string
	MaxFileSize   int64
}

// VerifierDeps are the collaborators of a Verifier. Records, Notifier and
// Metrics are optional.
type VerifierDeps struct {
	Store     ObjectStore
	Inspector *Inspector
	Records   AttemptRecorder
	Notifier  Notifier
	Metrics   *metrics.Metrics
	NewID     func() string
	Now       func() time.Time
}

// Verifier is the upload orchestrator behind validateAndUpload.
type Verifier struct {
	config  VerifierConfig
	deps    VerifierDeps
	closers []io.Closer
}

// NewVerifier builds a Verifier with real GCP collaborators.
func NewVerifier(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*Verifier, error) {
	if err := cfg.RequireCloud(); err != nil {
		return nil, err
	}

	var closers []io.Closer
	fail := func(err error) (*Verifier, error) {
		for _, c := range closers {
			_ = c.Close()
		}
		return nil, err
	}

	store, err := gcp.NewObjectStore(ctx, cfg.PublicBaseURL, uploadRetryPolicy(cfg))
	if err != nil {
		return fail(fmt.Errorf("failed to create object store: %w", err))
	}
	closers = append(closers, store)

	inspector, inspectorClosers, err := NewInspectorOrTextOnly(ctx, cfg, m)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, inspectorClosers...)

	deps := VerifierDeps{Store: store, Inspector: inspector, Metrics: m}

	if cfg.FirestoreCollection != "" {
		fsClient, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
		if err != nil {
			return fail(fmt.Errorf("failed to create firestore client: %w", err))
		}
		closers = append(closers, fsClient)
		deps.Records = gcp.NewRecordStore(fsClient, cfg.FirestoreCollection)
	}
	if cfg.WorkflowID != "" {
		trigger, err := gcp.NewWorkflowTrigger(ctx, cfg.ProjectID, cfg.WorkflowLocation, cfg.WorkflowID)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, trigger)
		deps.Notifier = trigger
	}

	v := NewVerifierWithDeps(VerifierConfig{
		Bucket:        cfg.Bucket,
		ObjectPrefix:  cfg.ObjectPrefix,
		PublicBaseURL: cfg.PublicBaseURL,
		MaxFileSize:   cfg.MaxFileSize,
	}, deps)
	v.closers = closers
	slog.Info("Verifier initialized.", "bucket", cfg.Bucket, "ocrEngine", cfg.OCREngine, "records", deps.Records != nil, "workflow", cfg.WorkflowID)
	return v, nil
}

// NewInspectorFromConfig builds the OCR engine and Inspector selected by cfg.
// The returned closers own the engine and any Vertex client.
func NewInspectorFromConfig(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*Inspector, []io.Closer, error) {
	var closers []io.Closer
	var gen ocr.ContentGenerator
	if cfg.OCREngine == config.EngineVertex {
		vc, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexAIRegion, cfg.VertexOCRModel)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create vertex client: %w", err)
		}
		closers = append(closers, vc)
		gen = vc.OCRModel
	}
	rec, err := ocr.New(cfg.OCREngine, gen)
	if err != nil {
		for _, c := range closers {
			_ = c.Close()
		}
		return nil, nil, fmt.Errorf("failed to create OCR engine: %w", err)
	}
	inspector := NewInspector(
		document.NewRasterizer(cfg.RasterScale),
		rec,
		ocrOptions(cfg),
		cfg.PreferTextLayer,
		m,
	)
	return inspector, append(closers, inspector), nil
}

// NewInspectorOrTextOnly is NewInspectorFromConfig, except that an OCR engine
// missing from this build yields an Inspector without a recognizer. It can
// still read PDF text layers when cfg.PreferTextLayer is set.
func NewInspectorOrTextOnly(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*Inspector, []io.Closer, error) {
	inspector, closers, err := NewInspectorFromConfig(ctx, cfg, m)
	if errors.Is(err, ocr.ErrEngineUnavailable) {
		slog.Warn("OCR engine unavailable, only pre-extracted submissions and PDF text layers can be read.",
			"ocrEngine", cfg.OCREngine, "preferTextLayer", cfg.PreferTextLayer, "error", err)
		return NewInspector(document.NewRasterizer(cfg.RasterScale), nil, ocrOptions(cfg), cfg.PreferTextLayer, m), nil, nil
	}
	return inspector, closers, err
}

func ocrOptions(cfg *config.Config) ocr.Options {
	return ocr.Options{Languages: cfg.OCRLanguages, SegmentationMode: cfg.OCRSegmentationMode}
}

func uploadRetryPolicy(cfg *config.Config) gcp.RetryPolicy {
	p := gcp.DefaultRetryPolicy()
	p.MaxAttempts = cfg.UploadMaxRetries
	return p
}

// NewVerifierWithDeps builds a Verifier around injected collaborators.
func NewVerifierWithDeps(cfg VerifierConfig, deps VerifierDeps) *Verifier {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = document.DefaultMaxSize
	}
	cfg.ObjectPrefix = strings.Trim(cfg.ObjectPrefix, "/")
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Verifier{config: cfg, deps: deps}
}

// Process runs one validateAndUpload attempt. It never returns an error:
// every failure is reported as a response with Success false.
func (v *Verifier) Process(ctx context.Context, req *models.VerifyRequest) *models.VerifyResponse {
	id := v.deps.NewID()
	logCtx := slog.With("attemptId", id, "registrationId", req.RegistrationID)
	logCtx.Info("Processing verification attempt.", "filename", req.Filename, "size", len(req.File), "preExtracted", req.PreExtracted != nil)

	a := newAttempt(id, logCtx)
	resp := &models.VerifyResponse{AttemptID: id}
	rec := models.VerificationRecord{
		AttemptID:      id,
		RegistrationID: req.RegistrationID,
		FileHash:       fileHash(req.File),
		Source:         models.SourceForm,
		CreatedAt:      v.deps.Now().UTC(),
	}

	err := v.process(ctx, a, req, resp, &rec)
	resp.State = string(a.state)
	rec.Status = recordStatus(a.state, err)
	rec.Errors = resp.Errors
	if resp.ExtractedData != nil {
		rec.Fields = *resp.ExtractedData
	}
	if err != nil {
		v.handleError(a, resp, &rec, err)
	}

	v.deps.Metrics.IncrementAttempt(outcomeLabel(a.state, err), models.SourceForm)
	v.saveRecord(ctx, logCtx, rec)
	if resp.Success {
		v.notify(ctx, logCtx, id, req.RegistrationID, resp)
	}
	logCtx.Info("Verification attempt finished.", "state", resp.State, "success", resp.Success)
	return resp
}

func (v *Verifier) process(ctx context.Context, a *attempt, req *models.VerifyRequest, resp *models.VerifyResponse, rec *models.VerificationRecord) error {
	contentType, err := v.checkInput(req)
	if err != nil {
		return err
	}
	rec.ContentType = contentType

	var fields models.ExtractedDocumentFields
	if req.PreExtracted != nil {
		if err := a.advance(StateValidating); err != nil {
			return err
		}
		fields = normalizePreExtracted(*req.PreExtracted)
	} else {
		if v.deps.Inspector == nil {
			return &RecognitionError{Op: "inspect", Err: ocr.ErrEngineUnavailable}
		}
		inspection, err := v.deps.Inspector.run(ctx, a, req.File, contentType)
		if err != nil {
			return err
		}
		fields = inspection.Fields
		if err := a.advance(StateValidating); err != nil {
			return err
		}
	}
	resp.ExtractedData = &fields

	outcome := validation.Validate(fields, req.Declared)
	if !outcome.Accepted {
		a.log.Info("Document rejected by validation.", "errors", len(outcome.Errors))
		resp.Errors = outcome.Errors
		resp.Error = strings.Join(outcome.Errors, "\n")
		a.fail()
		return nil
	}

	if err := a.advance(StateUploading); err != nil {
		return err
	}
	start := time.Now()
	key := v.objectKey(a.id, contentType)
	obj, err := v.deps.Store.Put(ctx, v.config.Bucket, key, req.File, contentType, map[string]string{
		models.MetadataAttemptID:      a.id,
		models.MetadataRegistrationID: req.RegistrationID,
	})
	v.deps.Metrics.ObserveStage("uploading", time.Since(start))
	if err != nil {
		return &UploadError{Op: "put " + key, Err: err}
	}
	rec.ObjectName = obj.Path
	rec.StorageURL = obj.PublicURL
	a.log.Info("Attestation stored.", "gcsUri", obj.GSURI())

	if err := a.advance(StateSucceeded); err != nil {
		return err
	}
	resp.Success = true
	resp.StorageURL = obj.PublicURL
	return nil
}

func (v *Verifier) checkInput(req *models.VerifyRequest) (string, error) {
	if err := document.CheckSize(int64(len(req.File)), v.config.MaxFileSize); err != nil {
		return "", &InputError{Op: "size", Err: err}
	}
	contentType, err := document.DetectContentType(req.ContentType, req.Filename, req.File)
	if err != nil {
		return "", &InputError{Op: "content type", Err: err}
	}
	return contentType, nil
}

func (v *Verifier) objectKey(id, contentType string) string {
	name := id + "." + document.Extension(contentType)
	if v.config.ObjectPrefix == "" {
		return name
	}
	return v.config.ObjectPrefix + "/" + name
}

// handleError logs a pipeline failure and turns it into the user message.
func (v *Verifier) handleError(a *attempt, resp *models.VerifyResponse, rec *models.VerificationRecord, err error) {
	a.fail()
	resp.State = string(a.state)
	resp.Success = false
	resp.Error = v.userMessage(err)
	rec.ErrorDetails = err.Error()
	a.log.Error("Verification attempt failed.", "error", err)
}

func (v *Verifier) userMessage(err error) string {
	var (
		inputErr       *InputError
		conversionErr  *ConversionError
		recognitionErr *RecognitionError
		uploadErr      *UploadError
	)
	switch {
	case errors.As(err, &inputErr):
		switch {
		case errors.Is(err, document.ErrTooLarge):
			return fmt.Sprintf(msgTooLarge, v.config.MaxFileSize>>20)
		case errors.Is(err, document.ErrEmpty):
			return msgEmptyFile
		default:
			return msgUnsupportedType
		}
	case errors.As(err, &conversionErr):
		return msgConversion
	case errors.As(err, &recognitionErr):
		return msgRecognition
	case errors.As(err, &uploadErr):
		return msgUpload
	default:
		return msgInternal
	}
}

func (v *Verifier) saveRecord(ctx context.Context, logCtx *slog.Logger, rec models.VerificationRecord) {
	if v.deps.Records == nil {
		return
	}
	if err := v.deps.Records.SaveAttempt(ctx, rec); err != nil {
		logCtx.Error("Failed to save attempt record.", "error", err)
	}
}

func (v *Verifier) notify(ctx context.Context, logCtx *slog.Logger, id, registrationID string, resp *models.VerifyResponse) {
	if v.deps.Notifier == nil {
		return
	}
	payload := models.WorkflowPayload{
		AttemptID:      id,
		RegistrationID: registrationID,
		StorageURL:     resp.StorageURL,
	}
	payload.PPSNumber, _ = resp.ExtractedData.Value(models.FieldPPSNumber)
	payload.PPSValidity, _ = resp.ExtractedData.Value(models.FieldPPSValidity)

	execution, err := v.deps.Notifier.Trigger(ctx, payload)
	if err != nil {
		logCtx.Error("Failed to trigger workflow.", "error", err)
		return
	}
	logCtx.Info("Hand-off to workflow complete.", "execution", execution)
}

// Inspect reads the fields of a document without validating or storing it.
func (v *Verifier) Inspect(ctx context.Context, data []byte, contentType string) (*Inspection, error) {
	if v.deps.Inspector == nil {
		return nil, &RecognitionError{Op: "inspect", Err: ocr.ErrEngineUnavailable}
	}
	ct, err := v.checkInput(&models.VerifyRequest{File: data, ContentType: contentType})
	if err != nil {
		return nil, err
	}
	return v.deps.Inspector.Inspect(ctx, data, ct)
}

// Discard deletes a stored attestation given its object key or public URL.
// Keys outside the attestation prefix are refused.
func (v *Verifier) Discard(ctx context.Context, ref string) error {
	key, err := gcp.KeyFromPublicURL(v.config.PublicBaseURL, v.config.Bucket, ref)
	if err != nil {
		return &InputError{Op: "discard", Err: err}
	}
	if key == "" || strings.Contains(key, "..") ||
		(v.config.ObjectPrefix != "" && !strings.HasPrefix(key, v.config.ObjectPrefix+"/")) {
		return &InputError{Op: "discard", Err: fmt.Errorf("object %q is not a stored attestation", key)}
	}
	if err := v.deps.Store.Delete(ctx, v.config.Bucket, key); err != nil {
		return &UploadError{Op: "delete " + key, Err: err}
	}
	slog.Info("Attestation discarded.", "gcsObject", key)
	return nil
}

// Close releases the clients created by NewVerifier.
func (v *Verifier) Close() error {
	var errs []error
	for _, c := range v.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// normalizePreExtracted applies the extractor's date rules to client-supplied
// fields: a date that does not normalize to ISO counts as not read.
func normalizePreExtracted(f models.ExtractedDocumentFields) models.ExtractedDocumentFields {
	for _, field := range []models.Field{models.FieldBirthDate, models.FieldPPSValidity} {
		val, ok := f.Value(field)
		if !ok {
			continue
		}
		if d := extraction.NormalizeDate(strings.TrimSpace(val)); extraction.IsISODate(d) {
			f.Set(field, d)
		} else {
			f.Clear(field)
		}
	}
	return f
}

func recordStatus(s State, err error) string {
	switch {
	case s == StateSucceeded:
		return models.StatusSucceeded
	case err == nil:
		return models.StatusRejected
	default:
		return models.StatusFailed
	}
}

func outcomeLabel(s State, err error) string {
	switch recordStatus(s, err) {
	case models.StatusSucceeded:
		return outcomeSucceeded
	case models.StatusRejected:
		return outcomeRejected
	default:
		return outcomeFailed
	}
}

func fileHash(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
