// Package upload streams request bodies to disk with a hard byte
// ceiling, then hands the stored file to the processing queue. Memory
// use is bounded by a fixed copy buffer regardless of payload size.
//
// Every failure path removes the partial file before returning, so a
// rejected or aborted upload never leaves an orphan on disk. The
// generated file ID doubles as the queue job ID, which makes repeated
// enqueues of the same stored file idempotent.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/streamgate-io/streamgate/pkg/queue"
)

// DefaultMaxBytes caps payloads at 2 GiB when no explicit ceiling is
// configured.
const DefaultMaxBytes = 2 << 30

// copyBufSize is the fixed chunk size for streaming to disk.
const copyBufSize = 64 * 1024

// Enqueuer accepts a job for background processing after the payload
// is durably on disk. *queue.Queue satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) error
}

// Config controls where payloads land and how large they may be.
type Config struct {
	// Root is the directory incoming files are written to. It is
	// created if missing.
	Root string

	// MaxBytes is the payload ceiling. Zero selects DefaultMaxBytes.
	MaxBytes int64
}

// Receipt describes an accepted upload.
type Receipt struct {
	JobID    string `json:"jobId"`
	FileID   string `json:"fileId"`
	Filename string `json:"filename"`
	StoredAs string `json:"storedAs"`
	ByteSize int64  `json:"byteSize"`
	MimeType string `json:"mimeType"`
}

// Ingestor streams payloads to Config.Root and enqueues a processing
// job per accepted file.
type Ingestor struct {
	cfg    Config
	queue  Enqueuer
	logger zerolog.Logger
	newID  func() string
}

// NewIngestor creates the upload root if needed and returns an
// Ingestor bound to it.
func NewIngestor(cfg Config, q Enqueuer, logger zerolog.Logger) (*Ingestor, error) {
	if q == nil {
		return nil, errors.New("upload: nil enqueuer")
	}
	if cfg.Root == "" {
		return nil, errors.New("upload: empty root directory")
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("upload: resolve root: %w", err)
	}
	cfg.Root = root
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("upload: create root: %w", err)
	}
	return &Ingestor{
		cfg:    cfg,
		queue:  q,
		logger: logger.With().Str("component", "upload").Logger(),
		newID:  uuid.NewString,
	}, nil
}

// Ingest streams r to disk under a fresh file ID and enqueues a
// processing job once the bytes are durable. The returned Receipt's
// JobID equals its FileID.
//
// ErrPayloadTooLarge is returned when r yields more than MaxBytes,
// ErrClientAborted when r fails mid-stream or ctx is cancelled. In
// both cases the partial file has already been removed.
func (ing *Ingestor) Ingest(ctx context.Context, r io.Reader, declaredFilename, mimeType string) (*Receipt, error) {
	fileID := ing.newID()
	safeName := SanitizeFilename(declaredFilename)
	diskName := fileID + "__" + safeName

	path, err := safeJoin(ing.cfg.Root, diskName)
	if err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, &IngestError{FileID: fileID, Op: "resolve", Err: err}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		if os.IsExist(err) {
			return nil, &IngestError{FileID: fileID, Op: "create", Err: ErrAlreadyExists}
		}
		return nil, &IngestError{FileID: fileID, Op: "create", Err: err}
	}

	written, err := ing.stream(ctx, f, r)
	if err != nil {
		ing.discard(f, path, fileID, err)
		switch {
		case errors.Is(err, ErrPayloadTooLarge):
			uploadsTotal.WithLabelValues("too_large").Inc()
		case errors.Is(err, ErrClientAborted):
			uploadsTotal.WithLabelValues("aborted").Inc()
		default:
			uploadsTotal.WithLabelValues("error").Inc()
		}
		return nil, &IngestError{FileID: fileID, Op: "stream", Err: err}
	}

	// The job must never reference bytes the kernel still holds, so
	// sync before enqueueing.
	if err := f.Sync(); err != nil {
		ing.discard(f, path, fileID, err)
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, &IngestError{FileID: fileID, Op: "sync", Err: err}
	}
	if err := f.Close(); err != nil {
		ing.remove(path, fileID, err)
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, &IngestError{FileID: fileID, Op: "close", Err: err}
	}

	job := queue.Job{
		ID:         fileID,
		FileID:     fileID,
		FilePath:   path,
		Filename:   safeName,
		MimeType:   mimeType,
		ByteSize:   written,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := ing.queue.Enqueue(ctx, job); err != nil {
		ing.remove(path, fileID, err)
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, &IngestError{FileID: fileID, Op: "enqueue", Err: err}
	}

	uploadsTotal.WithLabelValues("accepted").Inc()
	uploadBytes.Observe(float64(written))
	ing.logger.Info().
		Str("file_id", fileID).
		Str("filename", safeName).
		Int64("byte_size", written).
		Msg("upload accepted")

	return &Receipt{
		JobID:    fileID,
		FileID:   fileID,
		Filename: safeName,
		StoredAs: diskName,
		ByteSize: written,
		MimeType: mimeType,
	}, nil
}

// stream copies r to dst in fixed-size chunks, enforcing the byte
// ceiling and checking for cancellation between chunks.
func (ing *Ingestor) stream(ctx context.Context, dst *os.File, r io.Reader) (int64, error) {
	buf := make([]byte, copyBufSize)
	var written int64
	for {
		select {
		case <-ctx.Done():
			return written, fmt.Errorf("%w: %v", ErrClientAborted, ctx.Err())
		default:
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			if written+int64(n) > ing.cfg.MaxBytes {
				return written, ErrPayloadTooLarge
			}
			wn, writeErr := dst.Write(buf[:n])
			written += int64(wn)
			if writeErr != nil {
				return written, fmt.Errorf("write payload: %w", writeErr)
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, fmt.Errorf("%w: %v", ErrClientAborted, readErr)
		}
	}
}

// discard closes dst and removes the partial file after a failed
// ingest. Cleanup errors are logged, not returned, so the caller sees
// the original failure.
func (ing *Ingestor) discard(dst *os.File, path, fileID string, cause error) {
	_ = dst.Close()
	ing.remove(path, fileID, cause)
}

func (ing *Ingestor) remove(path, fileID string, cause error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		ing.logger.Error().
			Err(err).
			Str("file_id", fileID).
			Str("path", path).
			Msg("failed to remove partial upload")
		return
	}
	ing.logger.Debug().
		Str("file_id", fileID).
		AnErr("cause", cause).
		Msg("partial upload removed")
}
