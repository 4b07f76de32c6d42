package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/streamgate-io/streamgate/internal/testutil"
)

func testQueue(t *testing.T, opts Options) *Queue {
	t.Helper()
	st := testutil.NewStore(t)
	return New("test-queue", st, opts, zerolog.Nop())
}

func testJob(id string) Job {
	return Job{
		ID:       id,
		FileID:   id,
		FilePath: "/tmp/uploads/" + id + "__report.csv",
		Filename: "report.csv",
		MimeType: "text/csv",
		ByteSize: 1024,
	}
}

func TestEnqueueIsIdempotent(t *testing.T) {
	q := testQueue(t, DefaultOptions())
	ctx := context.Background()

	if err := q.Enqueue(ctx, testJob("job-1")); err != nil {
		t.Fatalf("first enqueue failed: %v", err)
	}
	if err := q.Enqueue(ctx, testJob("job-1")); err != nil {
		t.Fatalf("duplicate enqueue returned error: %v", err)
	}

	depth, err := q.PendingDepth(ctx)
	if err != nil {
		t.Fatalf("PendingDepth failed: %v", err)
	}
	if depth != 1 {
		t.Errorf("pending depth = %d, want 1 after duplicate enqueue", depth)
	}
}

func TestEnqueueRequiresJobID(t *testing.T) {
	q := testQueue(t, DefaultOptions())

	err := q.Enqueue(context.Background(), Job{Filename: "report.csv"})
	if !errors.Is(err, ErrMissingJobID) {
		t.Errorf("Enqueue without ID: got %v, want ErrMissingJobID", err)
	}
}

func TestClaimIsFIFO(t *testing.T) {
	q := testQueue(t, DefaultOptions())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := q.Enqueue(ctx, testJob(fmt.Sprintf("job-%d", i))); err != nil {
			t.Fatalf("enqueue job-%d failed: %v", i, err)
		}
	}

	for i := 0; i < 3; i++ {
		job, err := q.claim(ctx)
		if err != nil {
			t.Fatalf("claim %d failed: %v", i, err)
		}
		if job == nil {
			t.Fatalf("claim %d returned nil with jobs pending", i)
		}
		want := fmt.Sprintf("job-%d", i)
		if job.ID != want {
			t.Errorf("claim %d returned %q, want %q", i, job.ID, want)
		}
		if job.AttemptsMade != 1 {
			t.Errorf("claimed job attempts = %d, want 1", job.AttemptsMade)
		}
	}

	job, err := q.claim(ctx)
	if err != nil {
		t.Fatalf("claim on empty queue failed: %v", err)
	}
	if job != nil {
		t.Errorf("claim on empty queue returned %+v, want nil", job)
	}
}

func TestClaimRoundTripsJobData(t *testing.T) {
	q := testQueue(t, DefaultOptions())
	ctx := context.Background()

	in := testJob("job-rt")
	if err := q.Enqueue(ctx, in); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	out, err := q.claim(ctx)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if out == nil {
		t.Fatal("claim returned nil")
	}
	if out.FileID != in.FileID || out.FilePath != in.FilePath ||
		out.Filename != in.Filename || out.MimeType != in.MimeType ||
		out.ByteSize != in.ByteSize {
		t.Errorf("claimed job = %+v, want fields of %+v", out, in)
	}
	if out.MaxAttempts != DefaultOptions().MaxAttempts {
		t.Errorf("MaxAttempts = %d, want default %d", out.MaxAttempts, DefaultOptions().MaxAttempts)
	}
	if out.EnqueuedAt.IsZero() {
		t.Error("EnqueuedAt not set on claimed job")
	}
}

func TestAckCompletesJob(t *testing.T) {
	q := testQueue(t, DefaultOptions())
	ctx := context.Background()

	if err := q.Enqueue(ctx, testJob("job-ack")); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	job, err := q.claim(ctx)
	if err != nil || job == nil {
		t.Fatalf("claim failed: job=%v err=%v", job, err)
	}

	if err := q.ack(ctx, job.ID); err != nil {
		t.Fatalf("ack failed: %v", err)
	}

	_, state, err := q.Lookup(ctx, job.ID)
	if err != nil {
		t.Fatalf("Lookup after ack failed: %v", err)
	}
	if state != StateCompleted {
		t.Errorf("state after ack = %q, want %q", state, StateCompleted)
	}
}

func TestAckEnforcesCompletedRetention(t *testing.T) {
	opts := DefaultOptions()
	opts.CompletedRetention = 2
	q := testQueue(t, opts)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("job-%d", i)
		if err := q.Enqueue(ctx, testJob(id)); err != nil {
			t.Fatalf("enqueue %s failed: %v", id, err)
		}
		job, err := q.claim(ctx)
		if err != nil || job == nil {
			t.Fatalf("claim %s failed: job=%v err=%v", id, job, err)
		}
		if err := q.ack(ctx, job.ID); err != nil {
			t.Fatalf("ack %s failed: %v", id, err)
		}
	}

	// The two oldest completions fall out of retention and lose their hash.
	for _, id := range []string{"job-0", "job-1"} {
		if _, _, err := q.Lookup(ctx, id); !errors.Is(err, ErrJobNotFound) {
			t.Errorf("Lookup(%s) after eviction: got %v, want ErrJobNotFound", id, err)
		}
	}
	for _, id := range []string{"job-2", "job-3"} {
		if _, state, err := q.Lookup(ctx, id); err != nil || state != StateCompleted {
			t.Errorf("Lookup(%s) = state %q, err %v; want completed, nil", id, state, err)
		}
	}
}

func TestFailSchedulesRetryWithBackoff(t *testing.T) {
	opts := DefaultOptions()
	opts.BackoffBase = 2 * time.Second
	q := testQueue(t, opts)
	ctx := context.Background()

	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return base }

	if err := q.Enqueue(ctx, testJob("job-retry")); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	job, err := q.claim(ctx)
	if err != nil || job == nil {
		t.Fatalf("claim failed: job=%v err=%v", job, err)
	}

	retry, retryAt, err := q.fail(ctx, job, errors.New("parse error"))
	if err != nil {
		t.Fatalf("fail returned error: %v", err)
	}
	if !retry {
		t.Fatal("first failure should schedule a retry")
	}
	// Attempt 1 waits the base delay.
	if want := base.Add(2 * time.Second); !retryAt.Equal(want) {
		t.Errorf("retryAt = %v, want %v", retryAt, want)
	}

	// Not claimable before the retry time.
	if got, err := q.claim(ctx); err != nil || got != nil {
		t.Fatalf("claim before retryAt: job=%v err=%v, want nil, nil", got, err)
	}

	// Claimable once the clock passes it, with the attempt counter bumped.
	q.now = func() time.Time { return base.Add(3 * time.Second) }
	got, err := q.claim(ctx)
	if err != nil || got == nil {
		t.Fatalf("claim after retryAt: job=%v err=%v", got, err)
	}
	if got.AttemptsMade != 2 {
		t.Errorf("retried job attempts = %d, want 2", got.AttemptsMade)
	}
	if got.LastError != "parse error" {
		t.Errorf("retried job LastError = %q, want %q", got.LastError, "parse error")
	}

	// Second failure doubles the delay.
	retry, retryAt, err = q.fail(ctx, got, errors.New("parse error"))
	if err != nil || !retry {
		t.Fatalf("second fail: retry=%v err=%v", retry, err)
	}
	if want := base.Add(3 * time.Second).Add(4 * time.Second); !retryAt.Equal(want) {
		t.Errorf("second retryAt = %v, want %v", retryAt, want)
	}
}

func TestFailDeadLettersAtAttemptCeiling(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxAttempts = 1
	q := testQueue(t, opts)
	ctx := context.Background()

	if err := q.Enqueue(ctx, testJob("job-dead")); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	job, err := q.claim(ctx)
	if err != nil || job == nil {
		t.Fatalf("claim failed: job=%v err=%v", job, err)
	}

	retry, _, err := q.fail(ctx, job, errors.New("corrupt header"))
	if err != nil {
		t.Fatalf("fail returned error: %v", err)
	}
	if retry {
		t.Fatal("exhausted job should not be retried")
	}

	if err := q.submitDeadLetter(ctx, job, "corrupt header"); err != nil {
		t.Fatalf("submitDeadLetter failed: %v", err)
	}

	// The job hash is retired; only the DLQ record remains.
	if _, _, err := q.Lookup(ctx, job.ID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Lookup after dead-letter: got %v, want ErrJobNotFound", err)
	}

	records, err := q.DeadLetters(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("DeadLetters failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("DeadLetters returned %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.OriginalJobID != "job-dead" {
		t.Errorf("OriginalJobID = %q, want %q", rec.OriginalJobID, "job-dead")
	}
	if rec.FailReason != "corrupt header" {
		t.Errorf("FailReason = %q, want %q", rec.FailReason, "corrupt header")
	}
	if rec.FailedAt.IsZero() {
		t.Error("FailedAt not set on dead-letter record")
	}
	if rec.Filename != "report.csv" {
		t.Errorf("record keeps job fields: Filename = %q, want %q", rec.Filename, "report.csv")
	}
}

func TestDeadLettersTimeRange(t *testing.T) {
	q := testQueue(t, DefaultOptions())
	ctx := context.Background()

	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"job-a", "job-b", "job-c"} {
		q.now = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		job := testJob(id)
		if err := q.submitDeadLetter(ctx, &job, "boom"); err != nil {
			t.Fatalf("submitDeadLetter %s failed: %v", id, err)
		}
	}
	q.now = time.Now

	records, err := q.DeadLetters(ctx, base.Add(30*time.Minute), base.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("DeadLetters failed: %v", err)
	}
	if len(records) != 1 || records[0].OriginalJobID != "job-b" {
		t.Errorf("range query returned %+v, want exactly job-b", records)
	}

	byID, err := q.DeadLettersByJobID(ctx, "job-c")
	if err != nil {
		t.Fatalf("DeadLettersByJobID failed: %v", err)
	}
	if len(byID) != 1 || byID[0].OriginalJobID != "job-c" {
		t.Errorf("DeadLettersByJobID returned %+v, want exactly job-c", byID)
	}

	none, err := q.DeadLettersByJobID(ctx, "job-unknown")
	if err != nil {
		t.Fatalf("DeadLettersByJobID for unknown id failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("unknown job id returned %d records, want 0", len(none))
	}
}

func TestRemoveRetiresJobRecord(t *testing.T) {
	q := testQueue(t, DefaultOptions())
	ctx := context.Background()

	if err := q.Enqueue(ctx, testJob("job-gone")); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if err := q.Remove(ctx, "job-gone"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if _, _, err := q.Lookup(ctx, "job-gone"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Lookup after Remove: got %v, want ErrJobNotFound", err)
	}

	// The pending entry is gone too, so the job can never be claimed.
	job, err := q.claim(ctx)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if job != nil {
		t.Errorf("claim returned removed job %+v, want nil", job)
	}

	// Removing an already-removed ID is a no-op.
	if err := q.Remove(ctx, "job-gone"); err != nil {
		t.Errorf("second Remove returned error: %v", err)
	}
}

func TestRemoveCompletedJob(t *testing.T) {
	q := testQueue(t, DefaultOptions())
	ctx := context.Background()

	if err := q.Enqueue(ctx, testJob("job-done")); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	job, err := q.claim(ctx)
	if err != nil || job == nil {
		t.Fatalf("claim failed: job=%v err=%v", job, err)
	}
	if err := q.ack(ctx, job.ID); err != nil {
		t.Fatalf("ack failed: %v", err)
	}

	if err := q.Remove(ctx, "job-done"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, _, err := q.Lookup(ctx, "job-done"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Lookup after Remove: got %v, want ErrJobNotFound", err)
	}
}

func TestLookupUnknownJob(t *testing.T) {
	q := testQueue(t, DefaultOptions())

	_, _, err := q.Lookup(context.Background(), "nope")
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Lookup unknown id: got %v, want ErrJobNotFound", err)
	}
}
