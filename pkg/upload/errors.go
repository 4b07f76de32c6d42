package upload

import (
	"errors"
	"fmt"
)

// Tagged failure conditions for the ingestion pipeline. The HTTP boundary
// matches these with errors.Is to pick the caller-facing response.
var (
	// ErrPayloadTooLarge means the stream exceeded the byte ceiling. The
	// partial file is guaranteed deleted.
	ErrPayloadTooLarge = errors.New("payload exceeds size ceiling")

	// ErrClientAborted means the transport closed mid-stream. The partial
	// file is guaranteed deleted.
	ErrClientAborted = errors.New("client aborted upload")

	// ErrUnsafePath means the destination resolved outside the managed
	// upload root. Nothing was written.
	ErrUnsafePath = errors.New("unsafe destination path")

	// ErrAlreadyExists means the destination file already exists; uploads
	// never overwrite silently.
	ErrAlreadyExists = errors.New("destination already exists")
)

// IngestError wraps a pipeline failure with the upload it belongs to.
type IngestError struct {
	FileID string
	Op     string
	Err    error
}

// Error implements the error interface.
func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %s (file %s): %v", e.Op, e.FileID, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *IngestError) Unwrap() error {
	return e.Err
}
