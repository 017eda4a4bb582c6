//go:build ocr

package ocr

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract recognizes text with a local Tesseract installation.
type Tesseract struct{}

// NewTesseract returns the Tesseract engine.
func NewTesseract() (*Tesseract, error) {
	return &Tesseract{}, nil
}

// Recognize runs Tesseract on image. Each call uses its own client so
// concurrent attempts share no engine state.
func (t *Tesseract) Recognize(ctx context.Context, image []byte, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	opts = opts.withDefaults()

	psm, err := strconv.Atoi(opts.SegmentationMode)
	if err != nil {
		return "", fmt.Errorf("invalid segmentation mode %q: %w", opts.SegmentationMode, err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(opts.LanguageList()...); err != nil {
		return "", fmt.Errorf("failed to set OCR languages %q: %w", opts.Languages, err)
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(psm)); err != nil {
		return "", fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("failed to load image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract recognition failed: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	return text, nil
}

func (t *Tesseract) Close() error { return nil }
