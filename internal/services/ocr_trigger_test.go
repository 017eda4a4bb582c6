package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/Lllllllleong/ppsverify/internal/metrics"
	"github.com/Lllllllleong/ppsverify/internal/models"
	"github.com/Lllllllleong/ppsverify/internal/ocr"
)

type OCRTriggerSuite struct {
	suite.Suite
	ctx        context.Context
	store      *mockStore
	recognizer *fakeRecognizer
	rasterizer *fakeRasterizer
	records    *fakeRecords
	metrics    *metrics.Metrics
	trigger    *OCRTrigger
}

func TestOCRTriggerSuite(t *testing.T) {
	suite.Run(t, new(OCRTriggerSuite))
}

func (s *OCRTriggerSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = &mockStore{}
	s.recognizer = &fakeRecognizer{text: scenarioText}
	s.rasterizer = &fakeRasterizer{out: rasterPNG}
	s.records = newFakeRecords()
	s.metrics = metrics.New(prometheus.NewRegistry())
	inspector := NewInspector(s.rasterizer, s.recognizer, ocr.DefaultOptions(), false, s.metrics)
	s.trigger = NewOCRTriggerWithDeps(OCRTriggerConfig{ObjectPrefix: "pps"}, s.store, s.records, inspector, s.metrics)
	s.trigger.newID = func() string { return attemptID }
	s.trigger.now = func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) }
}

func (s *OCRTriggerSuite) event(name string, md map[string]string) models.StorageEvent {
	return models.StorageEvent{Bucket: "pps-attestations", Name: name, ContentType: "application/pdf", Metadata: md}
}

func (s *OCRTriggerSuite) expectGet(name string, data []byte, err error) {
	s.store.On("Get", mock.Anything, "pps-attestations", name, int64(10<<20)).Return(data, err).Once()
}

func (s *OCRTriggerSuite) TestRecordsValidatedExtraction() {
	s.expectGet("pps/upload.pdf", pdfBytes, nil)
	md := map[string]string{
		models.MetadataRegistrationID: "reg-7",
		models.MetadataSurname:        "Martin",
		models.MetadataGivenName:      "Julie",
		models.MetadataBirthDate:      "1990-07-14",
	}

	s.Require().NoError(s.trigger.Process(s.ctx, s.event("pps/upload.pdf", md)))

	s.Require().Len(s.records.saved, 1)
	initial := s.records.saved[0]
	s.Equal(models.StatusProcessing, initial.Status)
	s.Equal(models.SourceTrigger, initial.Source)
	s.Equal("reg-7", initial.RegistrationID)
	s.Equal("pps/upload.pdf", initial.ObjectName)
	s.Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), initial.CreatedAt)

	got := s.records.extractions[attemptID]
	s.Equal(models.StatusSucceeded, got.status)
	s.Empty(got.messages)
	s.Equal("AB123456", *got.fields.PPSNumber)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Attempts.WithLabelValues("succeeded", models.SourceTrigger)))
}

func (s *OCRTriggerSuite) TestRejectsMismatchingIdentity() {
	s.expectGet("pps/upload.pdf", pdfBytes, nil)
	md := map[string]string{
		models.MetadataSurname:   "Dupond",
		models.MetadataGivenName: "Julie",
		models.MetadataBirthDate: "1990-07-14",
	}

	s.Require().NoError(s.trigger.Process(s.ctx, s.event("pps/upload.pdf", md)))

	got := s.records.extractions[attemptID]
	s.Equal(models.StatusRejected, got.status)
	s.Len(got.messages, 1)
}

func (s *OCRTriggerSuite) TestExtractsWithoutDeclaredIdentity() {
	s.expectGet("pps/upload.pdf", pdfBytes, nil)

	s.Require().NoError(s.trigger.Process(s.ctx, s.event("pps/upload.pdf", nil)))

	s.Equal(models.StatusExtracted, s.records.extractions[attemptID].status)
}

func (s *OCRTriggerSuite) TestDeclaredBirthDateInLocalFormat() {
	s.expectGet("pps/upload.pdf", pdfBytes, nil)
	md := map[string]string{
		models.MetadataSurname:   "Martin",
		models.MetadataGivenName: "Julie",
		models.MetadataBirthDate: "14/07/1990",
	}

	s.Require().NoError(s.trigger.Process(s.ctx, s.event("pps/upload.pdf", md)))

	got := s.records.extractions[attemptID]
	s.Equal(models.StatusSucceeded, got.status)
	s.Empty(got.messages)
}

func (s *OCRTriggerSuite) TestIncompleteDeclaredIdentityIsNotChecked() {
	tests := []struct {
		name string
		md   map[string]string
	}{
		{name: "surname only", md: map[string]string{models.MetadataSurname: "Martin"}},
		{name: "blank given name", md: map[string]string{
			models.MetadataSurname:   "Martin",
			models.MetadataGivenName: "  ",
			models.MetadataBirthDate: "1990-07-14",
		}},
		{name: "unreadable birth date", md: map[string]string{
			models.MetadataSurname:   "Martin",
			models.MetadataGivenName: "Julie",
			models.MetadataBirthDate: "mid July",
		}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()
			s.expectGet("pps/upload.pdf", pdfBytes, nil)

			s.Require().NoError(s.trigger.Process(s.ctx, s.event("pps/upload.pdf", tt.md)))

			got := s.records.extractions[attemptID]
			s.Equal(models.StatusExtracted, got.status)
			s.Empty(got.messages)
		})
	}
}

func (s *OCRTriggerSuite) TestSkips() {
	s.Run("outside prefix", func() {
		s.Require().NoError(s.trigger.Process(s.ctx, s.event("flyers/poster.png", nil)))
	})
	s.Run("folder placeholder", func() {
		s.Require().NoError(s.trigger.Process(s.ctx, s.event("pps/", nil)))
	})
	s.Run("stored by the verifier", func() {
		md := map[string]string{models.MetadataAttemptID: "earlier"}
		s.Require().NoError(s.trigger.Process(s.ctx, s.event("pps/earlier.pdf", md)))
	})
	s.Run("empty object", func() {
		ev := s.event("pps/empty.pdf", nil)
		ev.Size = "0"
		s.Require().NoError(s.trigger.Process(s.ctx, ev))
	})
	s.Run("over the size limit", func() {
		ev := s.event("pps/huge.pdf", nil)
		ev.Size = "10485761"
		s.Require().NoError(s.trigger.Process(s.ctx, ev))
	})
	s.Run("not a document", func() {
		s.expectGet("pps/notes.txt", []byte("hello"), nil)
		ev := s.event("pps/notes.txt", nil)
		ev.ContentType = "text/plain"
		s.Require().NoError(s.trigger.Process(s.ctx, ev))
	})
	s.Empty(s.records.saved)
	s.Equal(0, s.recognizer.calls)
	s.store.AssertExpectations(s.T())
}

func (s *OCRTriggerSuite) TestSkipsDuplicates() {
	s.expectGet("pps/a.pdf", pdfBytes, nil)
	s.expectGet("pps/b.pdf", pdfBytes, nil)

	s.Require().NoError(s.trigger.Process(s.ctx, s.event("pps/a.pdf", nil)))
	s.Require().NoError(s.trigger.Process(s.ctx, s.event("pps/b.pdf", nil)))

	s.Len(s.records.saved, 1)
	s.Equal(1, s.recognizer.calls)
}

func (s *OCRTriggerSuite) TestUnreadableDocumentIsRecordedNotRetried() {
	s.expectGet("pps/upload.pdf", pdfBytes, nil)
	s.rasterizer.err = errors.New("no pages")

	s.Require().NoError(s.trigger.Process(s.ctx, s.event("pps/upload.pdf", nil)))

	s.Equal(models.StatusFailed, s.records.statuses[attemptID])
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Attempts.WithLabelValues(outcomeFailed, models.SourceTrigger)))
}

func (s *OCRTriggerSuite) TestFailedStatusUpdateIsLoggedNotRetried() {
	s.expectGet("pps/upload.pdf", pdfBytes, nil)
	s.rasterizer.err = errors.New("no pages")
	s.records.updateErr = errors.New("firestore unavailable")

	s.Require().NoError(s.trigger.Process(s.ctx, s.event("pps/upload.pdf", nil)))

	s.Empty(s.records.statuses)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Attempts.WithLabelValues(outcomeFailed, models.SourceTrigger)))
}

func (s *OCRTriggerSuite) TestInfrastructureErrorsAreReturned() {
	s.Run("download", func() {
		s.SetupTest()
		s.expectGet("pps/upload.pdf", nil, errors.New("storage: object doesn't exist"))
		s.Error(s.trigger.Process(s.ctx, s.event("pps/upload.pdf", nil)))
	})
	s.Run("duplicate query", func() {
		s.SetupTest()
		s.expectGet("pps/upload.pdf", pdfBytes, nil)
		s.records.findErr = errors.New("deadline exceeded")
		s.Error(s.trigger.Process(s.ctx, s.event("pps/upload.pdf", nil)))
	})
	s.Run("initial record", func() {
		s.SetupTest()
		s.expectGet("pps/upload.pdf", pdfBytes, nil)
		s.records.saveErr = errors.New("permission denied")
		s.Error(s.trigger.Process(s.ctx, s.event("pps/upload.pdf", nil)))
		s.Equal(0, s.recognizer.calls)
	})
}
