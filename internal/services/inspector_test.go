package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/ppsverify/internal/models"
	"github.com/Lllllllleong/ppsverify/internal/ocr"
)

func TestInspectorTextLayer(t *testing.T) {
	tests := []struct {
		name       string
		prefer     bool
		layerText  string
		layerErr   error
		wantSource string
		wantRaster int
	}{
		{name: "text layer preferred and present", prefer: true, layerText: scenarioText, wantSource: SourceTextLayer, wantRaster: 0},
		{name: "text layer preferred but empty", prefer: true, layerText: "", wantSource: SourceOCR, wantRaster: 1},
		{name: "text layer unreadable", prefer: true, layerErr: errors.New("bad xref"), wantSource: SourceOCR, wantRaster: 1},
		{name: "text layer not preferred", prefer: false, layerText: "ignored", wantSource: SourceOCR, wantRaster: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raster := &fakeRasterizer{out: rasterPNG}
			rec := &fakeRecognizer{text: scenarioText}
			in := NewInspector(raster, rec, ocr.DefaultOptions(), tc.prefer, nil)
			in.textLayer = func([]byte) (string, error) { return tc.layerText, tc.layerErr }

			got, err := in.Inspect(context.Background(), pdfBytes, "application/pdf")
			require.NoError(t, err)
			assert.Equal(t, tc.wantSource, got.TextSource)
			assert.Equal(t, tc.wantRaster, raster.calls)
			assert.Equal(t, tc.wantRaster, rec.calls)
			assert.Empty(t, got.Fields.Missing())
		})
	}
}

func TestInspectorStateSequence(t *testing.T) {
	in := NewInspector(&fakeRasterizer{out: rasterPNG}, &fakeRecognizer{text: scenarioText}, ocr.DefaultOptions(), false, nil)

	pdf := newAttempt("a", slog.Default())
	_, err := in.run(context.Background(), pdf, pdfBytes, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, []State{StateIdle, StateConverting, StateRecognizing, StateExtracting}, pdf.history)

	img := newAttempt("b", slog.Default())
	_, err = in.run(context.Background(), img, pngBytes, "image/png")
	require.NoError(t, err)
	assert.Equal(t, []State{StateIdle, StateRecognizing, StateExtracting}, img.history)
}

func TestInspectorErrors(t *testing.T) {
	convErr := errors.New("zero pages")
	in := NewInspector(&fakeRasterizer{err: convErr}, &fakeRecognizer{}, ocr.DefaultOptions(), false, nil)
	_, err := in.Inspect(context.Background(), pdfBytes, "application/pdf")
	var ce *ConversionError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, convErr)

	ocrErr := errors.New("tesseract not installed")
	in = NewInspector(nil, &fakeRecognizer{err: ocrErr}, ocr.DefaultOptions(), false, nil)
	_, err = in.Inspect(context.Background(), pngBytes, "image/png")
	var re *RecognitionError
	require.ErrorAs(t, err, &re)
	assert.ErrorIs(t, err, ocrErr)
}

func TestInspectorNoTextYieldsAbsentFields(t *testing.T) {
	in := NewInspector(nil, &fakeRecognizer{text: "Fédération Française d'Athlétisme"}, ocr.DefaultOptions(), false, nil)
	got, err := in.Inspect(context.Background(), pngBytes, "image/png")
	require.NoError(t, err)
	assert.Equal(t, models.AllFields, got.Fields.Missing())
	assert.Empty(t, got.Trace)
}

func TestInspectorClose(t *testing.T) {
	rec := &fakeRecognizer{}
	require.NoError(t, NewInspector(nil, rec, ocr.Options{}, false, nil).Close())
	assert.True(t, rec.closed)
	assert.NoError(t, NewInspector(nil, nil, ocr.Options{}, false, nil).Close())
}
