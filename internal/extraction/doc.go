// Package extraction reads the identity and eligibility fields of a PPS
// attestation out of raw OCR text.
//
// The package is pure: no I/O, no shared state. The same code serves the
// HTTP verifier, the storage trigger and the offline CLI.
package extraction
