package importjob

// Status is the canonical lifecycle state of an import job.
// Stable values (store these exact strings in DB).
type Status string

const (
	StatusQueued      Status = "queued"       // waiting for a worker
	StatusProcessing  Status = "processing"   // claimed by a worker, extraction in flight
	StatusNeedsReview Status = "needs_review" // extraction incomplete, pending human confirmation
	StatusFailed      Status = "failed"       // permanent extraction failure, retryable by hand
	StatusProcessed   Status = "processed"    // terminal: receipt created
	StatusDuplicate   Status = "duplicate"    // terminal: same content already processed for owner
)

// transitions is the single source of truth for the status graph. Guard
// checks in the lifecycle handlers and the worker all go through it, so
// no call site carries its own ad hoc status comparison.
var transitions = map[Status][]Status{
	StatusQueued: {StatusProcessing},
	// processing -> queued is the worker releasing its claim after a
	// transient extraction error, so a redelivered message can reclaim.
	StatusProcessing:  {StatusProcessed, StatusNeedsReview, StatusFailed, StatusDuplicate, StatusQueued},
	StatusNeedsReview: {StatusProcessed},
	StatusFailed:      {StatusQueued},
}

// CanTransition reports whether moving from one status to another is
// permitted by the lifecycle graph.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusNeedsReview, StatusFailed, StatusProcessed, StatusDuplicate:
		return true
	}
	return false
}

// Terminal reports whether no further worker transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusProcessed || s == StatusDuplicate
}

func (s Status) String() string {
	return string(s)
}
