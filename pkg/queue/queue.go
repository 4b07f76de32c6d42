package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/streamgate-io/streamgate/pkg/store"
)

// ErrMissingJobID is returned when a job is enqueued without an ID.
var ErrMissingJobID = errors.New("queue: job ID is required")

// ErrJobNotFound is returned by Lookup when no job hash exists for the ID.
// Dead-lettered and retention-evicted jobs drop their hash, so "not found"
// does not imply the ID was never enqueued.
var ErrJobNotFound = errors.New("queue: job not found")

// Options configure a queue's retry and retention behavior.
type Options struct {
	// MaxAttempts is the processing attempt ceiling before dead-lettering.
	MaxAttempts int

	// BackoffBase is the delay before the first retry; successive retries
	// double it (base, 2*base, 4*base, ...).
	BackoffBase time.Duration

	// CompletedRetention bounds how many completed jobs are kept.
	CompletedRetention int
}

// DefaultOptions returns the default queue configuration.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:        3,
		BackoffBase:        1 * time.Second,
		CompletedRetention: 100,
	}
}

// Queue is a durable, best-effort-FIFO work queue on the shared counter
// store.
type Queue struct {
	name   string
	store  *store.Client
	opts   Options
	logger zerolog.Logger

	// now is injectable for tests.
	now func() time.Time
}

// New creates a queue with the given name on the shared counter store.
func New(name string, st *store.Client, opts Options, logger zerolog.Logger) *Queue {
	if st == nil {
		panic("store client cannot be nil")
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultOptions().MaxAttempts
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultOptions().BackoffBase
	}
	if opts.CompletedRetention <= 0 {
		opts.CompletedRetention = DefaultOptions().CompletedRetention
	}
	return &Queue{
		name:   name,
		store:  st,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// Enqueue submits a job. The job ID is the idempotency key: re-submitting an
// existing ID is a no-op, not an error, and never creates a duplicate.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	if job.ID == "" {
		return ErrMissingJobID
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = q.opts.MaxAttempts
	}
	now := q.now().UTC()
	job.EnqueuedAt = now
	job.AttemptsMade = 0

	payload, err := json.Marshal(&job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	res, err := q.store.Eval(ctx, enqueueScript,
		[]string{jobKey(q.name, job.ID), pendingKey(q.name)},
		job.ID, payload, job.MaxAttempts, now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}

	if admitted, _ := res.(int64); admitted == 0 {
		q.logger.Debug().
			Str("job_id", job.ID).
			Msg("Duplicate enqueue ignored")
		return nil
	}

	jobsEnqueuedTotal.Inc()
	q.logger.Info().
		Str("job_id", job.ID).
		Str("filename", job.Filename).
		Int64("bytes", job.ByteSize).
		Msg("Job enqueued")

	return nil
}

// claim pulls the next processable job, promoting due retries first.
// Returns nil when the queue is empty. The claimed job's attempt counter is
// already incremented.
func (q *Queue) claim(ctx context.Context) (*Job, error) {
	res, err := q.store.Eval(ctx, claimScript,
		[]string{delayedKey(q.name), pendingKey(q.name), activeKey(q.name)},
		q.now().UnixMilli(), jobKeyPrefix(q.name),
	)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim: %w", err)
	}

	arr, ok := res.([]interface{})
	if !ok || len(arr) != 4 {
		return nil, fmt.Errorf("claim script returned %T, want 4-element array", res)
	}

	id, _ := arr[0].(string)
	payload, _ := arr[1].(string)
	attempts, _ := arr[2].(int64)

	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	job.AttemptsMade = int(attempts)
	if maxStr, ok := arr[3].(string); ok {
		if max, err := strconv.Atoi(maxStr); err == nil {
			job.MaxAttempts = max
		}
	}

	q.sampleDepth(ctx)
	return &job, nil
}

// ack marks a claimed job completed and prunes completed jobs beyond the
// retention bound.
func (q *Queue) ack(ctx context.Context, id string) error {
	_, err := q.store.Eval(ctx, ackScript,
		[]string{activeKey(q.name), completedKey(q.name)},
		id, jobKeyPrefix(q.name), q.opts.CompletedRetention,
	)
	if err != nil {
		return fmt.Errorf("ack job %s: %w", id, err)
	}
	return nil
}

// fail records a processing failure for a claimed job. Below the attempt
// ceiling the job is rescheduled with exponential backoff and fail reports
// retry=true; at the ceiling the job hash is retired and the caller must
// dead-letter it.
func (q *Queue) fail(ctx context.Context, job *Job, procErr error) (retry bool, retryAt time.Time, err error) {
	backoff := q.opts.BackoffBase * (1 << (job.AttemptsMade - 1))
	retryAt = q.now().Add(backoff)

	res, err := q.store.Eval(ctx, failScript,
		[]string{activeKey(q.name), delayedKey(q.name)},
		job.ID, jobKeyPrefix(q.name), retryAt.UnixMilli(), procErr.Error(),
	)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("fail job %s: %w", job.ID, err)
	}

	arr, ok := res.([]interface{})
	if !ok || len(arr) != 3 {
		return false, time.Time{}, fmt.Errorf("fail script returned %T, want 3-element array", res)
	}
	outcome, _ := arr[0].(string)
	job.LastError = procErr.Error()

	return outcome == "retry", retryAt, nil
}

// submitDeadLetter clones an exhausted job into the dead-letter queue.
// Dead-letter records are never pruned.
func (q *Queue) submitDeadLetter(ctx context.Context, job *Job, failReason string) error {
	record := DeadLetterRecord{
		Job:           *job,
		OriginalJobID: job.ID,
		FailReason:    failReason,
		FailedAt:      q.now().UTC(),
	}

	payload, err := json.Marshal(&record)
	if err != nil {
		return fmt.Errorf("marshal dead-letter record: %w", err)
	}

	err = q.store.Redis().ZAdd(ctx, deadKey(q.name), redis.Z{
		Score:  float64(record.FailedAt.Unix()),
		Member: payload,
	}).Err()
	if err != nil {
		return fmt.Errorf("submit dead-letter record for job %s: %w", job.ID, err)
	}

	jobsDeadLetteredTotal.Inc()
	return nil
}

// DeadLetters lists dead-letter records whose failure time falls in
// [from, to]. A zero "to" means now. Read-only operator surface.
func (q *Queue) DeadLetters(ctx context.Context, from, to time.Time) ([]DeadLetterRecord, error) {
	if to.IsZero() {
		to = q.now()
	}

	members, err := q.store.Redis().ZRangeByScore(ctx, deadKey(q.name), &redis.ZRangeBy{
		Min: strconv.FormatInt(from.Unix(), 10),
		Max: strconv.FormatInt(to.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}

	records := make([]DeadLetterRecord, 0, len(members))
	for _, member := range members {
		var record DeadLetterRecord
		if err := json.Unmarshal([]byte(member), &record); err != nil {
			q.logger.Warn().Err(err).Msg("Skipping undecodable dead-letter record")
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// DeadLettersByJobID lists dead-letter records for one original job id.
func (q *Queue) DeadLettersByJobID(ctx context.Context, jobID string) ([]DeadLetterRecord, error) {
	all, err := q.DeadLetters(ctx, time.Time{}, q.now())
	if err != nil {
		return nil, err
	}
	matched := all[:0]
	for _, record := range all {
		if record.OriginalJobID == jobID {
			matched = append(matched, record)
		}
	}
	return matched, nil
}

// Remove retires a job record outright: the hash and every list or zset
// entry referencing the ID are deleted, so Lookup reports ErrJobNotFound
// afterwards. Removing an unknown ID is a no-op. Dead-letter records are
// untouched.
func (q *Queue) Remove(ctx context.Context, id string) error {
	_, err := q.store.Eval(ctx, removeScript,
		[]string{jobKey(q.name, id), pendingKey(q.name), activeKey(q.name),
			completedKey(q.name), delayedKey(q.name)},
		id,
	)
	if err != nil {
		return fmt.Errorf("remove job %s: %w", id, err)
	}
	q.logger.Info().Str("job_id", id).Msg("Job record removed")
	return nil
}

// Lookup returns the stored job and its current state. Read-only.
func (q *Queue) Lookup(ctx context.Context, id string) (*Job, State, error) {
	fields, err := q.store.Redis().HGetAll(ctx, jobKey(q.name, id)).Result()
	if err != nil {
		return nil, "", fmt.Errorf("lookup job %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, "", ErrJobNotFound
	}

	var job Job
	if err := json.Unmarshal([]byte(fields["payload"]), &job); err != nil {
		return nil, "", fmt.Errorf("decode job %s: %w", id, err)
	}
	if attempts, err := strconv.Atoi(fields["attempts"]); err == nil {
		job.AttemptsMade = attempts
	}
	if max, err := strconv.Atoi(fields["maxAttempts"]); err == nil {
		job.MaxAttempts = max
	}
	job.LastError = fields["lastError"]

	return &job, State(fields["state"]), nil
}

// PendingDepth returns the number of jobs waiting in the pending list.
func (q *Queue) PendingDepth(ctx context.Context) (int64, error) {
	depth, err := q.store.Redis().LLen(ctx, pendingKey(q.name)).Result()
	if err != nil {
		return 0, fmt.Errorf("pending depth: %w", err)
	}
	return depth, nil
}

// sampleDepth refreshes the pending-depth gauge, best effort.
func (q *Queue) sampleDepth(ctx context.Context) {
	if depth, err := q.PendingDepth(ctx); err == nil {
		queuePendingDepth.Set(float64(depth))
	}
}
