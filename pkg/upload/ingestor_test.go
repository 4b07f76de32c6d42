package upload

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/streamgate-io/streamgate/internal/testutil"
	"github.com/streamgate-io/streamgate/pkg/queue"
)

// recordingEnqueuer captures enqueued jobs and can be told to fail.
type recordingEnqueuer struct {
	jobs []queue.Job
	err  error
}

func (e *recordingEnqueuer) Enqueue(ctx context.Context, job queue.Job) error {
	if e.err != nil {
		return e.err
	}
	e.jobs = append(e.jobs, job)
	return nil
}

func testIngestor(t *testing.T, maxBytes int64) (*Ingestor, *recordingEnqueuer, string) {
	t.Helper()
	root := t.TempDir()
	enq := &recordingEnqueuer{}
	ing, err := NewIngestor(Config{Root: root, MaxBytes: maxBytes}, enq, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewIngestor failed: %v", err)
	}
	return ing, enq, root
}

// storedFiles lists the upload root's contents.
func storedFiles(t *testing.T, root string) []string {
	t.Helper()
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir(%s) failed: %v", root, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestIngestStoresFileAndEnqueues(t *testing.T) {
	ing, enq, root := testIngestor(t, 1<<20)

	body := []byte("col1,col2\n1,2\n")
	receipt, err := ing.Ingest(context.Background(), bytes.NewReader(body), "q3 report.csv", "text/csv")
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if receipt.JobID != receipt.FileID {
		t.Errorf("JobID %q != FileID %q, want them equal", receipt.JobID, receipt.FileID)
	}
	if receipt.Filename != "q3_report.csv" {
		t.Errorf("Filename = %q, want sanitized %q", receipt.Filename, "q3_report.csv")
	}
	if receipt.ByteSize != int64(len(body)) {
		t.Errorf("ByteSize = %d, want %d", receipt.ByteSize, len(body))
	}
	if want := receipt.FileID + "__q3_report.csv"; receipt.StoredAs != want {
		t.Errorf("StoredAs = %q, want %q", receipt.StoredAs, want)
	}

	stored, err := os.ReadFile(filepath.Join(root, receipt.StoredAs))
	if err != nil {
		t.Fatalf("reading stored file failed: %v", err)
	}
	if !bytes.Equal(stored, body) {
		t.Errorf("stored bytes differ from the uploaded payload")
	}

	if len(enq.jobs) != 1 {
		t.Fatalf("enqueued %d jobs, want 1", len(enq.jobs))
	}
	job := enq.jobs[0]
	if job.ID != receipt.FileID || job.FileID != receipt.FileID {
		t.Errorf("job IDs = (%q, %q), want both %q", job.ID, job.FileID, receipt.FileID)
	}
	if job.FilePath != filepath.Join(root, receipt.StoredAs) {
		t.Errorf("job FilePath = %q, want the stored path", job.FilePath)
	}
	if job.ByteSize != int64(len(body)) || job.MimeType != "text/csv" {
		t.Errorf("job metadata = (%d, %q), want (%d, %q)", job.ByteSize, job.MimeType, len(body), "text/csv")
	}
}

func TestIngestRejectsOversizedPayload(t *testing.T) {
	ing, enq, root := testIngestor(t, 1024)

	_, err := ing.Ingest(context.Background(), testutil.NewZeroReader(4096), "big.bin", "application/octet-stream")
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("oversized ingest: got %v, want ErrPayloadTooLarge", err)
	}

	var ingErr *IngestError
	if !errors.As(err, &ingErr) {
		t.Fatal("error does not wrap IngestError")
	}
	if ingErr.FileID == "" {
		t.Error("IngestError carries no file ID")
	}

	if files := storedFiles(t, root); len(files) != 0 {
		t.Errorf("partial file left behind after rejection: %v", files)
	}
	if len(enq.jobs) != 0 {
		t.Errorf("rejected payload was enqueued: %+v", enq.jobs)
	}
}

func TestIngestCleansUpOnStreamFailure(t *testing.T) {
	ing, enq, root := testIngestor(t, 1<<20)

	_, err := ing.Ingest(context.Background(), testutil.NewFailingReader(512), "drop.bin", "application/octet-stream")
	if !errors.Is(err, ErrClientAborted) {
		t.Fatalf("failing stream: got %v, want ErrClientAborted", err)
	}

	if files := storedFiles(t, root); len(files) != 0 {
		t.Errorf("partial file left behind after stream failure: %v", files)
	}
	if len(enq.jobs) != 0 {
		t.Errorf("aborted payload was enqueued: %+v", enq.jobs)
	}
}

func TestIngestCleansUpOnContextCancel(t *testing.T) {
	ing, enq, root := testIngestor(t, 1<<30)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ing.Ingest(ctx, testutil.NewZeroReader(1<<20), "cancelled.bin", "application/octet-stream")
	if !errors.Is(err, ErrClientAborted) {
		t.Fatalf("cancelled ingest: got %v, want ErrClientAborted", err)
	}

	if files := storedFiles(t, root); len(files) != 0 {
		t.Errorf("partial file left behind after cancellation: %v", files)
	}
	if len(enq.jobs) != 0 {
		t.Errorf("cancelled payload was enqueued: %+v", enq.jobs)
	}
}

func TestIngestRemovesFileWhenEnqueueFails(t *testing.T) {
	root := t.TempDir()
	enq := &recordingEnqueuer{err: errors.New("store unreachable")}
	ing, err := NewIngestor(Config{Root: root, MaxBytes: 1 << 20}, enq, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewIngestor failed: %v", err)
	}

	_, err = ing.Ingest(context.Background(), strings.NewReader("payload"), "report.pdf", "application/pdf")
	if err == nil {
		t.Fatal("Ingest succeeded with a failing enqueuer")
	}
	if !strings.Contains(err.Error(), "store unreachable") {
		t.Errorf("error %v does not surface the enqueue failure", err)
	}

	// A stored file without a job is unreachable, so it must not survive.
	if files := storedFiles(t, root); len(files) != 0 {
		t.Errorf("orphan file left behind after enqueue failure: %v", files)
	}
}

func TestIngestZeroByteUpload(t *testing.T) {
	ing, enq, root := testIngestor(t, 1<<20)

	receipt, err := ing.Ingest(context.Background(), bytes.NewReader(nil), "empty.txt", "text/plain")
	if err != nil {
		t.Fatalf("zero-byte ingest failed: %v", err)
	}
	if receipt.ByteSize != 0 {
		t.Errorf("ByteSize = %d, want 0", receipt.ByteSize)
	}
	if len(enq.jobs) != 1 {
		t.Errorf("enqueued %d jobs, want 1", len(enq.jobs))
	}
	if files := storedFiles(t, root); len(files) != 1 {
		t.Errorf("stored %d files, want 1", len(files))
	}
}

func TestIngestPayloadAtExactCeiling(t *testing.T) {
	ing, _, _ := testIngestor(t, 1024)

	receipt, err := ing.Ingest(context.Background(), testutil.NewZeroReader(1024), "exact.bin", "application/octet-stream")
	if err != nil {
		t.Fatalf("ingest at exactly the ceiling failed: %v", err)
	}
	if receipt.ByteSize != 1024 {
		t.Errorf("ByteSize = %d, want 1024", receipt.ByteSize)
	}
}

func TestNewIngestorValidation(t *testing.T) {
	if _, err := NewIngestor(Config{Root: ""}, &recordingEnqueuer{}, zerolog.Nop()); err == nil {
		t.Error("NewIngestor accepted an empty root")
	}
	if _, err := NewIngestor(Config{Root: t.TempDir()}, nil, zerolog.Nop()); err == nil {
		t.Error("NewIngestor accepted a nil enqueuer")
	}
}
