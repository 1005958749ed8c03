package extract

import (
	"context"
	"errors"

	"github.com/fueltrack/fueltrack-be/internal/filestore"
	"github.com/fueltrack/fueltrack-be/internal/importjob"
)

// Result is the extraction engine's best-effort structured output for a
// stored receipt file.
type Result struct {
	CreationPayload importjob.CreationPayload
	// Confidence in [0,1]; low confidence routes the job to manual review.
	Confidence float64
}

// Engine turns a stored file into a creation payload or fails with a
// classified error.
type Engine interface {
	Extract(ctx context.Context, file filestore.Descriptor) (*Result, error)
}

// Error is a classified extraction failure. Permanent failures move the
// job to failed; everything else is treated as transient and requeued.
type Error struct {
	Permanent bool
	Err       error
}

func (e *Error) Error() string {
	if e.Permanent {
		return "permanent extraction error: " + e.Err.Error()
	}
	return "transient extraction error: " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewPermanentError wraps an unrecoverable extraction failure.
func NewPermanentError(err error) error {
	return &Error{Permanent: true, Err: err}
}

// NewTransientError wraps a retryable extraction failure.
func NewTransientError(err error) error {
	return &Error{Permanent: false, Err: err}
}

// IsPermanent reports whether err is a permanent extraction error.
func IsPermanent(err error) bool {
	var ee *Error
	return errors.As(err, &ee) && ee.Permanent
}
