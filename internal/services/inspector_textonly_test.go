//go:build !ocr

package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/ppsverify/internal/config"
	"github.com/Lllllllleong/ppsverify/internal/ocr"
)

func textOnlyConfig(prefer bool) *config.Config {
	return &config.Config{
		OCREngine:           config.EngineTesseract,
		OCRLanguages:        ocr.DefaultLanguages,
		OCRSegmentationMode: ocr.SegmentationUniformBlock,
		RasterScale:         2,
		PreferTextLayer:     prefer,
	}
}

func TestNewInspectorFromConfigNeedsEngine(t *testing.T) {
	_, _, err := NewInspectorFromConfig(context.Background(), textOnlyConfig(true), nil)
	assert.ErrorIs(t, err, ocr.ErrEngineUnavailable)
}

func TestNewInspectorOrTextOnlyReadsTextLayer(t *testing.T) {
	in, closers, err := NewInspectorOrTextOnly(context.Background(), textOnlyConfig(true), nil)
	require.NoError(t, err)
	assert.Empty(t, closers)
	require.NotNil(t, in)
	assert.Nil(t, in.recognizer)
	in.textLayer = func([]byte) (string, error) { return scenarioText, nil }

	got, err := in.Inspect(context.Background(), pdfBytes, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, SourceTextLayer, got.TextSource)
	assert.Empty(t, got.Fields.Missing())

	_, err = in.Inspect(context.Background(), pngBytes, "image/png")
	var recog *RecognitionError
	require.ErrorAs(t, err, &recog)
	assert.ErrorIs(t, err, ocr.ErrEngineUnavailable)
}
