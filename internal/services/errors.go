package services

import (
	"errors"
	"fmt"
)

// ConversionError means the document could not be rasterized.
type ConversionError struct {
	Op  string
	Err error
}

func (e *ConversionError) Error() string { return fmt.Sprintf("conversion failed: %s: %v", e.Op, e.Err) }
func (e *ConversionError) Unwrap() error { return e.Err }

// RecognitionError means the OCR engine failed or returned nothing.
type RecognitionError struct {
	Op  string
	Err error
}

func (e *RecognitionError) Error() string { return fmt.Sprintf("recognition failed: %s: %v", e.Op, e.Err) }
func (e *RecognitionError) Unwrap() error { return e.Err }

// UploadError means a validated document could not be stored.
type UploadError struct {
	Op  string
	Err error
}

func (e *UploadError) Error() string { return fmt.Sprintf("upload failed: %s: %v", e.Op, e.Err) }
func (e *UploadError) Unwrap() error { return e.Err }

// InputError means the request itself was unusable.
type InputError struct {
	Op  string
	Err error
}

func (e *InputError) Error() string { return fmt.Sprintf("invalid input: %s: %v", e.Op, e.Err) }
func (e *InputError) Unwrap() error { return e.Err }

// IsInputError reports whether err is, or wraps, an *InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
