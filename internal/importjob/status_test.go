package importjob

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"queued to processing", StatusQueued, StatusProcessing, true},
		{"processing to processed", StatusProcessing, StatusProcessed, true},
		{"processing to needs_review", StatusProcessing, StatusNeedsReview, true},
		{"processing to failed", StatusProcessing, StatusFailed, true},
		{"processing to duplicate", StatusProcessing, StatusDuplicate, true},
		{"processing released back to queued", StatusProcessing, StatusQueued, true},
		{"needs_review to processed", StatusNeedsReview, StatusProcessed, true},
		{"failed to queued", StatusFailed, StatusQueued, true},

		{"queued straight to processed", StatusQueued, StatusProcessed, false},
		{"queued to failed", StatusQueued, StatusFailed, false},
		{"needs_review to failed", StatusNeedsReview, StatusFailed, false},
		{"needs_review to queued", StatusNeedsReview, StatusQueued, false},
		{"failed to processed", StatusFailed, StatusProcessed, false},
		{"processed is terminal", StatusProcessed, StatusQueued, false},
		{"duplicate is terminal", StatusDuplicate, StatusQueued, false},
		{"self transition", StatusQueued, StatusQueued, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestStatus_Valid(t *testing.T) {
	for _, s := range []Status{StatusQueued, StatusProcessing, StatusNeedsReview, StatusFailed, StatusProcessed, StatusDuplicate} {
		assert.True(t, s.Valid(), "status %s should be valid", s)
	}

	assert.False(t, Status("").Valid())
	assert.False(t, Status("pending").Valid())
	assert.False(t, Status("QUEUED").Valid())
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusProcessed.Terminal())
	assert.True(t, StatusDuplicate.Terminal())

	assert.False(t, StatusQueued.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.False(t, StatusNeedsReview.Terminal())
	assert.False(t, StatusFailed.Terminal())
}

// Terminal statuses must have no outgoing edges at all.
func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	all := []Status{StatusQueued, StatusProcessing, StatusNeedsReview, StatusFailed, StatusProcessed, StatusDuplicate}
	for _, from := range all {
		if !from.Terminal() {
			continue
		}
		for _, to := range all {
			assert.False(t, CanTransition(from, to),
				"terminal status %s must not transition to %s", from, to)
		}
	}
}
