//go:build !ocr

package ocr

import "context"

// Tesseract is unavailable in builds without the "ocr" tag.
type Tesseract struct{}

// NewTesseract returns ErrEngineUnavailable. Build with -tags ocr to enable it.
func NewTesseract() (*Tesseract, error) {
	return nil, ErrEngineUnavailable
}

func (t *Tesseract) Recognize(context.Context, []byte, Options) (string, error) {
	return "", ErrEngineUnavailable
}

func (t *Tesseract) Close() error { return nil }
