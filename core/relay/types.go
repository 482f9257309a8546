// Package relay implements the ingestion pipeline: a decoded upload request
// is sanitized and routed to either the local staging simulator or the real
// SFTP transfer, depending on the mode fixed at startup.
package relay

import "errors"

// Encoding identifies which of the two supported request encodings carried
// the payload. Encoding choice never changes the upload outcome.
type Encoding string

const (
	EncodingForm Encoding = "form-data"
	EncodingJSON Encoding = "json-base64"
)

// UploadRequest is the canonical decoded upload: one filename, one byte
// payload. Downstream components never branch on the original input shape.
type UploadRequest struct {
	Filename string
	Payload  []byte
	Encoding Encoding
}

// Status is the caller-visible outcome class.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// UploadResult is returned uniformly for simulated and real transfers.
type UploadResult struct {
	Status  Status         `json:"status"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

var (
	// ErrUnsupportedEncoding marks a request content type outside the two
	// supported encodings.
	ErrUnsupportedEncoding = errors.New("unsupported_encoding")
	// ErrMalformedPayload marks an empty body, missing fields, or invalid
	// base64.
	ErrMalformedPayload = errors.New("malformed_payload")
	// ErrInternal is the catch-all for unanticipated failures; callers see
	// a generic message, logs carry the detail.
	ErrInternal = errors.New("internal_error")
)
