// Package queue implements the durable job queue, the bounded-concurrency
// worker pipeline, and the dead-letter queue, all on the shared counter
// store.
//
// Per queue the store holds a pending list (FIFO), a delayed zset holding
// retry schedules, an active list, a bounded completed list, a hash per job,
// and a dead-letter zset scored by failure time. Every state transition runs
// as one atomic script, so attempt counts and job states survive process
// restarts and concurrent workers never double-claim a job.
//
// Job lifecycle: queued -> active -> completed, or on failure back to queued
// after an exponential backoff delay, until MaxAttempts is exhausted and the
// job is dead-lettered. Completed jobs are pruned beyond a bounded count;
// dead-lettered records are retained indefinitely for operator inspection.
package queue
