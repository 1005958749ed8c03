package importjob

import "errors"

var (
	// ErrJobNotFound is returned when a job id is unknown to the repository.
	ErrJobNotFound = errors.New("Import job not found.")

	// ErrStaleStatus is returned by guarded repository updates when the
	// row's status no longer matches the status the caller read. A second
	// concurrent Finalize or Retry observes this instead of succeeding.
	ErrStaleStatus = errors.New("import job status changed concurrently")

	// ErrMissingFields is returned by Finalize when the merged payload is
	// still incomplete.
	ErrMissingFields = errors.New("Missing required fields to finalize this import.")
)

// InvalidStateError signals an operation attempted against a job whose
// status does not permit it. The reason is user-visible.
type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string {
	return e.Reason
}

// IsInvalidState reports whether err is an InvalidStateError.
func IsInvalidState(err error) bool {
	var ise *InvalidStateError
	return errors.As(err, &ise)
}
