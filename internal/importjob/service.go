package importjob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fueltrack/fueltrack-be/internal/filestore"
	"github.com/fueltrack/fueltrack-be/internal/receipt"
)

// finalizeFallbackPayload is stored when the processed-outcome payload
// cannot be serialized. Finalize must not fail over a serialization
// problem once the receipt has been created.
const finalizeFallbackPayload = `{"kind":"processed_outcome","outcome":{"status":"processed"}}`

// ServiceConfig holds the service's collaborators and policy knobs.
type ServiceConfig struct {
	Logger     *slog.Logger
	Repo       Repository
	Files      filestore.Store
	Dispatcher Dispatcher
	Receipts   ReceiptCreator

	// RetentionWindow sets retention_until relative to creation time.
	RetentionWindow time.Duration
	// IgnoreFileDeleteErrors makes Delete proceed with record removal
	// when the stored file cannot be deleted.
	IgnoreFileDeleteErrors bool

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Service implements the import job lifecycle: Create, Retry, Finalize,
// Delete. Each handler is one guard check, one or two collaborator calls
// and one persist; collaborator errors propagate to the caller.
type Service struct {
	logger     *slog.Logger
	repo       Repository
	files      filestore.Store
	dispatcher Dispatcher
	receipts   ReceiptCreator

	retentionWindow        time.Duration
	ignoreFileDeleteErrors bool
	now                    func() time.Time
}

// NewService creates a new Service instance.
func NewService(cfg *ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logger:                 cfg.Logger,
		repo:                   cfg.Repo,
		files:                  cfg.Files,
		dispatcher:             cfg.Dispatcher,
		receipts:               cfg.Receipts,
		retentionWindow:        cfg.RetentionWindow,
		ignoreFileDeleteErrors: cfg.IgnoreFileDeleteErrors,
		now:                    now,
	}
}

// Create stores the uploaded file, persists a queued job and dispatches a
// processing message. File content is not validated here; that belongs to
// the upload boundary.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, sourcePath, originalFilename string) (*ImportJob, error) {
	desc, err := s.files.Store(ctx, sourcePath, originalFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to store uploaded file: %w", err)
	}

	now := s.now().UTC()
	job := &ImportJob{
		ID:                 uuid.New(),
		OwnerID:            ownerID,
		Status:             StatusQueued,
		Storage:            desc.Storage,
		FilePath:           desc.Path,
		OriginalFilename:   desc.OriginalFilename,
		MimeType:           desc.MimeType,
		FileSizeBytes:      desc.SizeBytes,
		FileChecksumSHA256: desc.ChecksumSHA256,
		CreatedAt:          now,
		UpdatedAt:          now,
		RetentionUntil:     now.Add(s.retentionWindow),
	}

	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist import job: %w", err)
	}

	if err := s.dispatcher.DispatchProcessJob(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("failed to dispatch processing message: %w", err)
	}

	s.logger.Info("Import job created",
		slog.String("job_id", job.ID.String()),
		slog.String("owner_id", ownerID.String()),
		slog.String("checksum", desc.ChecksumSHA256),
		slog.Int64("file_size_bytes", desc.SizeBytes),
	)

	return job, nil
}

// Retry moves a failed job back to queued and re-dispatches it. The worker
// tolerates duplicate messages for the same job id.
func (s *Service) Retry(ctx context.Context, jobID uuid.UUID) (*ImportJob, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	const reason = "Only failed jobs can be retried."
	if job.Status != StatusFailed || !CanTransition(job.Status, StatusQueued) {
		return nil, &InvalidStateError{Reason: reason}
	}

	job.Status = StatusQueued
	job.FailedAt = nil
	job.ClearPayload()
	job.UpdatedAt = s.now().UTC()

	if err := s.repo.UpdateGuarded(ctx, job, StatusFailed); err != nil {
		if errors.Is(err, ErrStaleStatus) {
			return nil, &InvalidStateError{Reason: reason}
		}
		return nil, fmt.Errorf("failed to persist retry: %w", err)
	}

	if err := s.dispatcher.DispatchProcessJob(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("failed to dispatch processing message: %w", err)
	}

	s.logger.Info("Import job requeued",
		slog.String("job_id", job.ID.String()),
	)

	return job, nil
}

// FinalizeInput carries the caller's field overrides. Empty fields fall
// back to the job's stored draft.
type FinalizeInput struct {
	IssuedAt          string
	StationName       string
	StationStreetName string
	StationPostalCode string
	StationCity       string
	Latitude          *float64
	Longitude         *float64
	Lines             []Line
}

// Finalize converts a needs_review job into a receipt and a processed job.
// Caller input takes precedence over the stored draft field by field. The
// receipt is created under the job's original owner even when an admin
// performs the call.
func (s *Service) Finalize(ctx context.Context, jobID uuid.UUID, in FinalizeInput) (*ImportJob, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	const reason = "Only needs_review jobs can be finalized."
	if job.Status != StatusNeedsReview || !CanTransition(job.Status, StatusProcessed) {
		return nil, &InvalidStateError{Reason: reason}
	}

	merged, usedDraft := MergeCreationPayload(in, job.DecodedPayload().Draft())
	merged.Lines = ValidLines(merged.Lines)

	issuedAt, ok := parseIssuedAt(merged.IssuedAt)
	if !ok ||
		merged.StationName == "" ||
		merged.StationStreetName == "" ||
		merged.StationPostalCode == "" ||
		merged.StationCity == "" ||
		len(merged.Lines) == 0 {
		return nil, ErrMissingFields
	}

	receiptID, err := s.receipts.Create(ctx, receipt.CreationInput{
		OwnerID:           job.OwnerID,
		IssuedAt:          issuedAt,
		StationName:       merged.StationName,
		StationStreetName: merged.StationStreetName,
		StationPostalCode: merged.StationPostalCode,
		StationCity:       merged.StationCity,
		Latitude:          merged.Latitude,
		Longitude:         merged.Longitude,
		Lines:             toReceiptLines(merged.Lines),
	})
	if err != nil {
		// The job stays in needs_review; finalize can be retried.
		return nil, fmt.Errorf("failed to create receipt: %w", err)
	}

	now := s.now().UTC()
	encoded, err := OutcomePayload(ProcessedOutcome{
		JobID:               job.ID,
		Status:              string(StatusProcessed),
		FinalizedReceiptID:  receiptID,
		Source:              OutcomeSourceManualReview,
		UsedCreationPayload: usedDraft,
		FinalizedAt:         now,
	}).Encode()
	if err != nil {
		encoded = finalizeFallbackPayload
	}
	job.SetPayload(encoded)

	if err := s.files.Delete(ctx, job.Storage, job.FilePath); err != nil {
		return nil, fmt.Errorf("failed to delete stored file: %w", err)
	}

	job.Status = StatusProcessed
	job.CompletedAt = &now
	job.UpdatedAt = now

	if err := s.repo.UpdateGuarded(ctx, job, StatusNeedsReview); err != nil {
		if errors.Is(err, ErrStaleStatus) {
			return nil, &InvalidStateError{Reason: reason}
		}
		return nil, fmt.Errorf("failed to persist finalized job: %w", err)
	}

	s.logger.Info("Import job finalized",
		slog.String("job_id", job.ID.String()),
		slog.String("receipt_id", receiptID.String()),
		slog.Bool("used_creation_payload", usedDraft),
	)

	return job, nil
}

// Delete removes the stored file and the job record. Deletable from any
// status, including mid-flight processing.
func (s *Service) Delete(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	if err := s.files.Delete(ctx, job.Storage, job.FilePath); err != nil {
		if !s.ignoreFileDeleteErrors {
			return fmt.Errorf("failed to delete stored file: %w", err)
		}
		s.logger.Warn("Stored file could not be deleted, removing record anyway",
			slog.String("job_id", job.ID.String()),
			slog.String("storage", job.Storage),
			slog.String("file_path", job.FilePath),
			slog.Any("error", err),
		)
	}

	if err := s.repo.Delete(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to delete import job: %w", err)
	}

	s.logger.Info("Import job deleted",
		slog.String("job_id", job.ID.String()),
	)

	return nil
}

// MergeCreationPayload applies field-by-field precedence: the caller's
// value when present and non-empty, else the draft's. The second return
// reports whether the draft contributed any field.
func MergeCreationPayload(in FinalizeInput, draft CreationPayload) (CreationPayload, bool) {
	usedDraft := false

	pickString := func(caller, fromDraft string) string {
		if caller != "" {
			return caller
		}
		if fromDraft != "" {
			usedDraft = true
		}
		return fromDraft
	}
	pickFloat := func(caller, fromDraft *float64) *float64 {
		if caller != nil {
			return caller
		}
		if fromDraft != nil {
			usedDraft = true
		}
		return fromDraft
	}

	merged := CreationPayload{
		IssuedAt:          pickString(in.IssuedAt, draft.IssuedAt),
		StationName:       pickString(in.StationName, draft.StationName),
		StationStreetName: pickString(in.StationStreetName, draft.StationStreetName),
		StationPostalCode: pickString(in.StationPostalCode, draft.StationPostalCode),
		StationCity:       pickString(in.StationCity, draft.StationCity),
		Latitude:          pickFloat(in.Latitude, draft.Latitude),
		Longitude:         pickFloat(in.Longitude, draft.Longitude),
	}

	if len(in.Lines) > 0 {
		merged.Lines = in.Lines
	} else {
		if len(draft.Lines) > 0 {
			usedDraft = true
		}
		merged.Lines = draft.Lines
	}

	return merged, usedDraft
}

// ValidLines drops lines that do not independently carry a recognized fuel
// type and sane integer fields.
func ValidLines(lines []Line) []Line {
	valid := make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.Valid() {
			valid = append(valid, l)
		}
	}
	return valid
}

func parseIssuedAt(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Complete reports whether the payload carries everything receipt
// creation requires: a parseable issue date, the station identity fields
// and at least one valid line.
func (cp CreationPayload) Complete() bool {
	_, ok := parseIssuedAt(cp.IssuedAt)
	return ok &&
		cp.StationName != "" &&
		cp.StationStreetName != "" &&
		cp.StationPostalCode != "" &&
		cp.StationCity != "" &&
		len(ValidLines(cp.Lines)) > 0
}

// ReceiptInput converts a complete payload into receipt creation input
// owned by ownerID. ok is false when the payload is incomplete.
func (cp CreationPayload) ReceiptInput(ownerID uuid.UUID) (receipt.CreationInput, bool) {
	issuedAt, ok := parseIssuedAt(cp.IssuedAt)
	if !ok || !cp.Complete() {
		return receipt.CreationInput{}, false
	}
	return receipt.CreationInput{
		OwnerID:           ownerID,
		IssuedAt:          issuedAt,
		StationName:       cp.StationName,
		StationStreetName: cp.StationStreetName,
		StationPostalCode: cp.StationPostalCode,
		StationCity:       cp.StationCity,
		Latitude:          cp.Latitude,
		Longitude:         cp.Longitude,
		Lines:             toReceiptLines(ValidLines(cp.Lines)),
	}, true
}

func toReceiptLines(lines []Line) []receipt.Line {
	out := make([]receipt.Line, len(lines))
	for i, l := range lines {
		out[i] = receipt.Line{
			FuelType:                   l.FuelType,
			QuantityMilliliters:        l.QuantityMilliliters,
			UnitPriceDeciCentsPerLiter: l.UnitPriceDeciCentsPerLiter,
			VATRatePercent:             l.VATRatePercent,
		}
	}
	return out
}
