// Package ocr turns attestation images into free text.
//
// Two engines are available: a local Tesseract engine (requires the "ocr"
// build tag and the Tesseract libraries) and a Vertex AI Gemini engine that
// transcribes the image remotely.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Engine names accepted by New.
const (
	EngineTesseract = "tesseract"
	EngineVertex    = "vertex"
)

// Tesseract page segmentation mode "single uniform block of text".
const SegmentationUniformBlock = "6"

// DefaultLanguages is French with an English fallback, in Tesseract notation.
const DefaultLanguages = "fra+eng"

var (
	// ErrEngineUnavailable is returned when the requested engine was not
	// compiled in or is not configured.
	ErrEngineUnavailable = errors.New("ocr engine unavailable")
	// ErrEmptyText is returned when the engine ran but produced no text.
	ErrEmptyText = errors.New("ocr produced no text")
)

// Options tune a single recognition.
type Options struct {
	Languages        string
	SegmentationMode string
}

// DefaultOptions returns the options used for attestations.
func DefaultOptions() Options {
	return Options{Languages: DefaultLanguages, SegmentationMode: SegmentationUniformBlock}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if strings.TrimSpace(o.Languages) == "" {
		o.Languages = d.Languages
	}
	if strings.TrimSpace(o.SegmentationMode) == "" {
		o.SegmentationMode = d.SegmentationMode
	}
	return o
}

// LanguageList splits a "fra+eng" style language string.
func (o Options) LanguageList() []string {
	var out []string
	for _, l := range strings.Split(o.Languages, "+") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// Recognizer extracts free text from a PNG or JPEG image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, opts Options) (string, error)
	Close() error
}

// New returns the recognizer for engine. gen is only used by the vertex engine.
func New(engine string, gen ContentGenerator) (Recognizer, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineTesseract:
		t, err := NewTesseract()
		if err != nil {
			return nil, err
		}
		return t, nil
	case EngineVertex:
		if gen == nil {
			return nil, fmt.Errorf("%w: vertex engine needs a generative model", ErrEngineUnavailable)
		}
		return NewVertex(gen), nil
	default:
		return nil, fmt.Errorf("%w: unknown engine %q", ErrEngineUnavailable, engine)
	}
}
