package importjob

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fueltrack/fueltrack-be/internal/receipt"
)

// Repository persists import jobs. Implementation: postgres.Repository.
type Repository interface {
	Create(ctx context.Context, job *ImportJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*ImportJob, error)
	List(ctx context.Context, filter Filter) ([]ImportJob, error)
	// FindProcessedByChecksum returns the owner's processed job holding the
	// same content fingerprint, or ErrJobNotFound. Serves duplicate detection.
	FindProcessedByChecksum(ctx context.Context, ownerID uuid.UUID, checksum string) (*ImportJob, error)
	// UpdateGuarded persists status, payload and timestamps only while the
	// row still holds the expected status; otherwise it returns
	// ErrStaleStatus. This is the read-guard-mutate-persist step every
	// transition relies on.
	UpdateGuarded(ctx context.Context, job *ImportJob, expected Status) error
	// ClaimForProcessing atomically moves a queued job to processing and
	// returns it, or ErrStaleStatus when the job is no longer queued.
	ClaimForProcessing(ctx context.Context, id uuid.UUID) (*ImportJob, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Filter selects jobs for listing, newest first, cursor-paginated.
type Filter struct {
	OwnerID  uuid.UUID
	Status   Status
	PageSize int
	Cursor   *Cursor
}

// Cursor is a (created_at, id) position in the listing order.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Dispatcher signals the asynchronous worker that a job is ready for
// extraction. Implementation: dispatch.Publisher over RabbitMQ.
type Dispatcher interface {
	DispatchProcessJob(ctx context.Context, jobID uuid.UUID) error
}

// ReceiptCreator is the downstream receipt bounded context.
type ReceiptCreator interface {
	Create(ctx context.Context, in receipt.CreationInput) (uuid.UUID, error)
}
