package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// TextLayer returns the embedded text of the first page of a PDF. Scanned
// attestations have none, in which case the result is empty and OCR is needed.
func TextLayer(data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("panic while reading PDF text: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	if reader.NumPage() < 1 {
		return "", ErrNoPages
	}

	page := reader.Page(1)
	if page.V.IsNull() {
		return "", nil
	}
	content, err := page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract text from page 1: %w", err)
	}
	return strings.TrimSpace(content), nil
}
