package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/streamgate-io/streamgate/pkg/queue"
)

// Processor turns a stored upload into its processed artifact by
// streaming it into the output directory. It copies in fixed-size
// chunks so memory stays flat regardless of file size.
//
// Its Process method matches queue.Handler, so a Processor plugs
// directly into a queue.Worker.
type Processor struct {
	outputDir string
	logger    zerolog.Logger
}

// NewProcessor creates the output directory if needed.
func NewProcessor(outputDir string, logger zerolog.Logger) (*Processor, error) {
	if outputDir == "" {
		return nil, fmt.Errorf("upload: empty output directory")
	}
	abs, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("upload: resolve output directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("upload: create output directory: %w", err)
	}
	return &Processor{
		outputDir: abs,
		logger:    logger.With().Str("component", "processor").Logger(),
	}, nil
}

// OutputPath returns where the processed artifact for fileID lands.
func (p *Processor) OutputPath(fileID string) string {
	return filepath.Join(p.outputDir, fileID+"__processed")
}

// Process streams the job's stored file into the output directory. A
// partial output from a failed run is removed so a retry starts clean.
func (p *Processor) Process(ctx context.Context, job queue.Job) error {
	start := time.Now()

	src, err := os.Open(job.FilePath)
	if err != nil {
		return fmt.Errorf("open stored file: %w", err)
	}
	defer src.Close()

	outPath := p.OutputPath(job.FileID)
	dst, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}

	buf := make([]byte, copyBufSize)
	written, err := io.CopyBuffer(dst, readerWithContext{ctx: ctx, r: src}, buf)
	if err != nil {
		_ = dst.Close()
		_ = os.Remove(outPath)
		return fmt.Errorf("process stream: %w", err)
	}
	if err := dst.Sync(); err != nil {
		_ = dst.Close()
		_ = os.Remove(outPath)
		return fmt.Errorf("sync output file: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(outPath)
		return fmt.Errorf("close output file: %w", err)
	}

	p.logger.Info().
		Str("job_id", job.ID).
		Str("file_id", job.FileID).
		Str("output", outPath).
		Int64("byte_size", written).
		Dur("duration", time.Since(start)).
		Msg("file processed")
	return nil
}

// readerWithContext aborts a copy as soon as ctx is done, checked once
// per chunk.
type readerWithContext struct {
	ctx context.Context
	r   io.Reader
}

func (rc readerWithContext) Read(p []byte) (int, error) {
	select {
	case <-rc.ctx.Done():
		return 0, rc.ctx.Err()
	default:
		return rc.r.Read(p)
	}
}
