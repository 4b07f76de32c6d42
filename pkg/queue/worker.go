package queue

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Handler processes one claimed job. A nil return completes the job; an
// error schedules a retry or, at the attempt ceiling, dead-letters it.
type Handler func(ctx context.Context, job Job) error

// WorkerOptions configure the worker pool.
type WorkerOptions struct {
	// Concurrency bounds how many jobs are processed at once. Each job
	// pipes a large file stream, so the bound keeps memory and descriptor
	// usage flat.
	Concurrency int

	// PollInterval is the idle wait between claim attempts.
	PollInterval time.Duration
}

// DefaultWorkerOptions returns the default worker configuration.
func DefaultWorkerOptions() WorkerOptions {
	return WorkerOptions{
		Concurrency:  2,
		PollInterval: 250 * time.Millisecond,
	}
}

// Worker pulls jobs from a queue and runs them through a handler with
// bounded concurrency.
type Worker struct {
	queue   *Queue
	handler Handler
	opts    WorkerOptions

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewWorker creates a worker pool for the queue.
func NewWorker(q *Queue, handler Handler, opts WorkerOptions) *Worker {
	if handler == nil {
		panic("worker handler cannot be nil")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultWorkerOptions().Concurrency
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultWorkerOptions().PollInterval
	}
	return &Worker{
		queue:   q,
		handler: handler,
		opts:    opts,
	}
}

// Start launches the worker goroutines. They run until Close is called or
// the given context is cancelled.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	for i := 0; i < w.opts.Concurrency; i++ {
		w.wg.Add(1)
		go func(slot int) {
			defer w.wg.Done()
			w.loop(ctx, slot)
		}(i)
	}

	w.queue.logger.Info().
		Str("queue", w.queue.name).
		Int("concurrency", w.opts.Concurrency).
		Msg("Worker started")
}

// Close stops claiming and waits for in-flight jobs to finish.
func (w *Worker) Close() {
	w.once.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		w.wg.Wait()
		w.queue.logger.Info().
			Str("queue", w.queue.name).
			Msg("Worker stopped")
	})
}

// loop claims and processes jobs until the context ends.
func (w *Worker) loop(ctx context.Context, slot int) {
	logger := w.queue.logger.With().Int("worker", slot).Logger()

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := w.queue.claim(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error().Err(err).Msg("Claim failed")
		}
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.opts.PollInterval):
			}
			continue
		}

		// In-flight jobs drain on shutdown: once claimed, a job runs to
		// completion or failure even while the claim loop is stopping.
		w.process(context.WithoutCancel(ctx), logger, job)
	}
}

// process runs one claimed job through the handler and applies the
// completion, retry, or dead-letter transition.
func (w *Worker) process(ctx context.Context, logger zerolog.Logger, job *Job) {
	logger.Info().
		Str("job_id", job.ID).
		Str("filename", job.Filename).
		Int("attempt", job.AttemptsMade).
		Int("max_attempts", job.MaxAttempts).
		Msg("Processing job")

	start := time.Now()
	procErr := w.handler(ctx, *job)
	jobDurationSeconds.Observe(time.Since(start).Seconds())

	if procErr == nil {
		if err := w.queue.ack(ctx, job.ID); err != nil {
			logger.Error().Err(err).Str("job_id", job.ID).Msg("Ack failed")
			return
		}
		jobsProcessedTotal.WithLabelValues("completed").Inc()
		logger.Info().
			Str("job_id", job.ID).
			Int("attempt", job.AttemptsMade).
			Msg("Job completed")
		return
	}

	retry, retryAt, err := w.queue.fail(ctx, job, procErr)
	if err != nil {
		logger.Error().Err(err).Str("job_id", job.ID).Msg("Failure transition failed")
		return
	}

	if retry {
		jobsProcessedTotal.WithLabelValues("retried").Inc()
		jobRetriesTotal.Inc()
		logger.Warn().
			Str("job_id", job.ID).
			Int("attempt", job.AttemptsMade).
			Int("max_attempts", job.MaxAttempts).
			Str("reason", procErr.Error()).
			Dur("backoff", time.Until(retryAt)).
			Msg("Job failed - retry scheduled")
		return
	}

	// Retries exhausted: clone into the dead-letter queue. A failed submit
	// is logged but never crashes the worker or re-runs the job.
	jobsProcessedTotal.WithLabelValues("dead").Inc()
	logger.Error().
		Str("job_id", job.ID).
		Int("attempt", job.AttemptsMade).
		Int("max_attempts", job.MaxAttempts).
		Str("reason", procErr.Error()).
		Msg("Job exhausted retries - moving to dead-letter queue")

	if err := w.queue.submitDeadLetter(ctx, job, procErr.Error()); err != nil {
		logger.Error().Err(err).
			Str("job_id", job.ID).
			Msg("Dead-letter submission failed")
	}
}

