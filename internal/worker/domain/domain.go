package domain

import "errors"

// Job is the row a worker claims for execution
type Job struct {
	UUID    string
	UserID  int64
	Kind    string
	Payload []byte // request_payload JSONB
}

// JobMessage is the queue message pairing a job row with its handoff id
type JobMessage struct {
	JobID       string `json:"job_id"`
	TaskID      string `json:"task_id"`
	DeliveryTag uint64 `json:"-"`
}

var (
	// ErrJobNotFound is returned when the referenced job row is absent
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyClaimed is returned when the job is being executed by
	// another worker
	ErrJobAlreadyClaimed = errors.New("job already claimed")

	// ErrJobAlreadyDone is returned when the job reached a terminal state
	// before this delivery. Redeliveries of finished jobs are acked as-is.
	ErrJobAlreadyDone = errors.New("job already in terminal state")

	// ErrInvalidPayload is returned when the stored payload JSON is
	// malformed
	ErrInvalidPayload = errors.New("invalid job payload")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
