package queue

import "time"

// State is a job's position in its lifecycle.
type State string

const (
	// StateQueued means the job is waiting in the pending list or scheduled
	// for a retry.
	StateQueued State = "queued"

	// StateActive means a worker has claimed the job.
	StateActive State = "active"

	// StateCompleted is terminal: processing succeeded.
	StateCompleted State = "completed"

	// StateDead is terminal: retries are exhausted and the job was moved to
	// the dead-letter queue.
	StateDead State = "dead"
)

// Job is the durable unit of work created once an upload fully reaches disk.
// The ID doubles as the idempotency key: enqueueing the same ID twice never
// creates a second job.
type Job struct {
	// ID is the job identifier, equal to the upload's file ID.
	ID string `json:"id"`

	// FileID is the upload identifier generated at ingestion time.
	FileID string `json:"fileId"`

	// FilePath is the absolute path of the stored file, inside the managed
	// upload root.
	FilePath string `json:"filePath"`

	// Filename is the sanitized, displayable name.
	Filename string `json:"filename"`

	// MimeType is the declared content type.
	MimeType string `json:"mimeType"`

	// ByteSize is the number of bytes durably written.
	ByteSize int64 `json:"byteSize"`

	// EnqueuedAt is when the job was accepted by the queue.
	EnqueuedAt time.Time `json:"enqueuedAt"`

	// AttemptsMade counts processing attempts, including the one in
	// progress. Monotonically non-decreasing, persisted in the store.
	AttemptsMade int `json:"attemptsMade"`

	// MaxAttempts is the retry ceiling the job was enqueued with.
	MaxAttempts int `json:"maxAttempts"`

	// LastError is the most recent processing failure, if any.
	LastError string `json:"lastError,omitempty"`
}

// DeadLetterRecord is the clone of a job that exhausted its retries,
// retained indefinitely for operator inspection.
type DeadLetterRecord struct {
	Job

	// OriginalJobID is the retired job's identifier.
	OriginalJobID string `json:"originalJobId"`

	// FailReason is the final processing error.
	FailReason string `json:"failReason"`

	// FailedAt is when the job was dead-lettered.
	FailedAt time.Time `json:"failedAt"`
}
