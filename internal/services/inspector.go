package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/ppsverify/internal/document"
	"github.com/Lllllllleong/ppsverify/internal/extraction"
	"github.com/Lllllllleong/ppsverify/internal/metrics"
	"github.com/Lllllllleong/ppsverify/internal/models"
	"github.com/Lllllllleong/ppsverify/internal/ocr"
)

// Text sources of an inspection.
const (
	SourceOCR       = "ocr"
	SourceTextLayer = "text-layer"
)

// Rasterizer renders the first page of a PDF to PNG bytes.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdf []byte) ([]byte, error)
}

// Inspection is what was read from one document.
type Inspection struct {
	ContentType string
	TextSource  string
	Text        string
	Fields      models.ExtractedDocumentFields
	Trace       extraction.Trace
}

// Inspector runs the read-only part of the pipeline: conversion, recognition
// and extraction. It keeps no state between documents.
type Inspector struct {
	rasterizer      Rasterizer
	recognizer      ocr.Recognizer
	opts            ocr.Options
	preferTextLayer bool
	textLayer       func([]byte) (string, error)
	metrics         *metrics.Metrics
}

// NewInspector returns an Inspector. A nil rasterizer renders with the
// default document.Rasterizer at document.DefaultScale.
func NewInspector(r Rasterizer, rec ocr.Recognizer, opts ocr.Options, preferTextLayer bool, m *metrics.Metrics) *Inspector {
	if r == nil {
		r = document.NewRasterizer(document.DefaultScale)
	}
	return &Inspector{
		rasterizer:      r,
		recognizer:      rec,
		opts:            opts,
		preferTextLayer: preferTextLayer,
		textLayer:       document.TextLayer,
		metrics:         m,
	}
}

// Inspect reads the attestation fields from data. contentType must already
// be one of the accepted document types.
func (i *Inspector) Inspect(ctx context.Context, data []byte, contentType string) (*Inspection, error) {
	a := newAttempt("inspect", slog.With("contentType", contentType))
	return i.run(ctx, a, data, contentType)
}

func (i *Inspector) run(ctx context.Context, a *attempt, data []byte, contentType string) (*Inspection, error) {
	result := &Inspection{ContentType: contentType, TextSource: SourceOCR}
	image := data

	if document.IsPDF(contentType) {
		if err := a.advance(StateConverting); err != nil {
			return nil, err
		}
		start := time.Now()
		text, raster, err := i.convert(ctx, a, data)
		i.metrics.ObserveStage("converting", time.Since(start))
		if err != nil {
			return nil, err
		}
		if text != "" {
			result.Text, result.TextSource = text, SourceTextLayer
		}
		image = raster
	}

	if err := a.advance(StateRecognizing); err != nil {
		return nil, err
	}
	if result.TextSource == SourceOCR {
		if i.recognizer == nil {
			return nil, &RecognitionError{Op: "recognize", Err: ocr.ErrEngineUnavailable}
		}
		start := time.Now()
		text, err := i.recognizer.Recognize(ctx, image, i.opts)
		i.metrics.ObserveStage("recognizing", time.Since(start))
		if err != nil {
			return nil, &RecognitionError{Op: "recognize", Err: err}
		}
		result.Text = text
	}

	if err := a.advance(StateExtracting); err != nil {
		return nil, err
	}
	result.Fields, result.Trace = extraction.ExtractWithTrace(result.Text)
	for _, f := range result.Fields.Missing() {
		i.metrics.IncrementFieldMissing(f.String())
	}
	a.log.Info("Fields extracted.", "source", result.TextSource, "tiers", traceAttrs(result.Trace), "missing", len(result.Fields.Missing()))
	return result, nil
}

// convert returns the PDF text layer when it is preferred and present,
// otherwise the first page rendered for OCR.
func (i *Inspector) convert(ctx context.Context, a *attempt, pdf []byte) (string, []byte, error) {
	if i.preferTextLayer {
		text, err := i.textLayer(pdf)
		switch {
		case err != nil:
			a.log.Warn("Could not read PDF text layer, falling back to OCR.", "error", err)
		case text != "":
			return text, nil, nil
		}
	}
	raster, err := i.rasterizer.Rasterize(ctx, pdf)
	if err != nil {
		return "", nil, &ConversionError{Op: "rasterize", Err: err}
	}
	return "", raster, nil
}

// Close releases the recognizer.
func (i *Inspector) Close() error {
	if i.recognizer == nil {
		return nil
	}
	if err := i.recognizer.Close(); err != nil {
		return fmt.Errorf("failed to close recognizer: %w", err)
	}
	return nil
}

func traceAttrs(t extraction.Trace) map[string]int {
	out := make(map[string]int, len(t))
	for f, tier := range t {
		out[f.String()] = tier
	}
	return out
}
