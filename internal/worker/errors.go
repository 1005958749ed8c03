package worker

import "errors"

// ErrAlreadyClaimed is returned when a redelivered message arrives for a
// job that is no longer queued. The message is dropped without requeue.
var ErrAlreadyClaimed = errors.New("import job already claimed or not queued")

// RetryableError wraps transient errors that should trigger a requeue.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error.
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
