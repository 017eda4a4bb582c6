package services

import (
	"context"
	"sync"

	"github.com/Lllllllleong/ppsverify/internal/gcp"
	"github.com/Lllllllleong/ppsverify/internal/models"
	"github.com/Lllllllleong/ppsverify/internal/ocr"
	"github.com/stretchr/testify/mock"
)

const scenarioText = "Nom: MARTIN Prénom: Julie Date de naissance: 14/07/1990 " +
	"Numéro de PPS: AB123456 Valable jusqu'au 01/01/2026"

var (
	pdfBytes  = []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\ntrailer\n%%EOF\n")
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x10")
	rasterPNG = []byte("\x89PNG\r\n\x1a\nrendered-page-1")
)

func martin() models.DeclaredIdentity {
	return models.DeclaredIdentity{Surname: "Martin", GivenName: "Julie", BirthDate: "1990-07-14"}
}

type fakeRecognizer struct {
	mu     sync.Mutex
	text   string
	err    error
	calls  int
	images [][]byte
	opts   ocr.Options
	closed bool
}

func (f *fakeRecognizer) Recognize(_ context.Context, image []byte, opts ocr.Options) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.images = append(f.images, image)
	f.opts = opts
	return f.text, f.err
}

func (f *fakeRecognizer) Close() error {
	f.closed = true
	return nil
}

type fakeRasterizer struct {
	out   []byte
	err   error
	calls int
}

func (f *fakeRasterizer) Rasterize(context.Context, []byte) ([]byte, error) {
	f.calls++
	return f.out, f.err
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string, metadata map[string]string) (gcp.StoredObject, error) {
	args := m.Called(ctx, bucket, key, data, contentType, metadata)
	return args.Get(0).(gcp.StoredObject), args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, bucket, key string) error {
	args := m.Called(ctx, bucket, key)
	return args.Error(0)
}

func (m *mockStore) Get(ctx context.Context, bucket, key string, maxSize int64) ([]byte, error) {
	args := m.Called(ctx, bucket, key, maxSize)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

type savedExtraction struct {
	status   string
	fields   models.ExtractedDocumentFields
	messages []string
}

type fakeRecords struct {
	mu          sync.Mutex
	saved       []models.VerificationRecord
	extractions map[string]savedExtraction
	statuses    map[string]string
	hashes      map[string]string
	saveErr     error
	findErr     error
	updateErr   error
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{
		extractions: map[string]savedExtraction{},
		statuses:    map[string]string{},
		hashes:      map[string]string{},
	}
}

func (f *fakeRecords) SaveAttempt(_ context.Context, rec models.VerificationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, rec)
	f.statuses[rec.AttemptID] = rec.Status
	if rec.FileHash != "" {
		f.hashes[rec.FileHash] = rec.AttemptID
	}
	return nil
}

func (f *fakeRecords) FindByHash(_ context.Context, hash string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return "", false, f.findErr
	}
	id, ok := f.hashes[hash]
	return id, ok, nil
}

func (f *fakeRecords) SaveExtraction(_ context.Context, id, status string, fields models.ExtractedDocumentFields, messages []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extractions[id] = savedExtraction{status: status, fields: fields, messages: messages}
	if f.updateErr != nil {
		return f.updateErr
	}
	f.statuses[id] = status
	return nil
}

func (f *fakeRecords) UpdateStatus(_ context.Context, id, status, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
	return nil
}

type fakeNotifier struct {
	payloads []models.WorkflowPayload
	err      error
}

func (f *fakeNotifier) Trigger(_ context.Context, p models.WorkflowPayload) (string, error) {
	f.payloads = append(f.payloads, p)
	if f.err != nil {
		return "", f.err
	}
	return "executions/1", nil
}
