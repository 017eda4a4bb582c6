package document

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

// Accepted attestation content types.
const (
	MIMEPDF  = "application/pdf"
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
)

// DefaultMaxSize is the largest attestation accepted, in bytes.
const DefaultMaxSize = 10 << 20

var (
	ErrUnsupportedType = errors.New("unsupported document type")
	ErrTooLarge        = errors.New("document exceeds the maximum size")
	ErrEmpty           = errors.New("document is empty")
	ErrNoPages         = errors.New("document has no pages")
)

var extensionTypes = map[string]string{
	".pdf":  MIMEPDF,
	".jpg":  MIMEJPEG,
	".jpeg": MIMEJPEG,
	".png":  MIMEPNG,
}

// DetectContentType resolves the content type of an upload. The sniffed type
// wins over what the client declared; the declared type and then the file
// extension are only consulted when sniffing is inconclusive.
func DetectContentType(declared, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}

	sniffed := http.DetectContentType(data)
	if i := strings.Index(sniffed, ";"); i >= 0 {
		sniffed = sniffed[:i]
	}
	switch sniffed {
	case MIMEPDF, MIMEJPEG, MIMEPNG:
		return sniffed, nil
	}
	// Some generators put a BOM or whitespace before the header.
	if bytes.Contains(data[:min(len(data), 1024)], []byte("%PDF-")) {
		return MIMEPDF, nil
	}
	if sniffed != "application/octet-stream" && sniffed != "text/plain" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, sniffed)
	}

	if ct := normalizeMIME(declared); isAccepted(ct) {
		return ct, nil
	}
	if ct, ok := extensionTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedType, declared)
}

// CheckSize rejects documents larger than max bytes. A non-positive max
// falls back to DefaultMaxSize.
func CheckSize(n, max int64) error {
	if max <= 0 {
		max = DefaultMaxSize
	}
	if n == 0 {
		return ErrEmpty
	}
	if n > max {
		return fmt.Errorf("%w: %d bytes > %d", ErrTooLarge, n, max)
	}
	return nil
}

// IsPDF reports whether contentType names a PDF.
func IsPDF(contentType string) bool {
	return normalizeMIME(contentType) == MIMEPDF
}

// Extension returns the object key extension for an accepted content type.
func Extension(contentType string) string {
	switch normalizeMIME(contentType) {
	case MIMEPDF:
		return "pdf"
	case MIMEPNG:
		return "png"
	default:
		return "jpg"
	}
}

func normalizeMIME(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "image/jpg" || ct == "image/pjpeg" {
		return MIMEJPEG
	}
	return ct
}

func isAccepted(ct string) bool {
	return ct == MIMEPDF || ct == MIMEJPEG || ct == MIMEPNG
}
