package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fueltrack/fueltrack-be/internal/extract"
	"github.com/fueltrack/fueltrack-be/internal/filestore"
	"github.com/fueltrack/fueltrack-be/internal/importjob"
	"github.com/fueltrack/fueltrack-be/internal/receipt"
)

// processJob drives one queued job through extraction. A nil return acks
// the message; ErrAlreadyClaimed drops it; RetryableError requeues it.
func (w *Worker) processJob(ctx context.Context, msg *jobMessage) error {
	job, err := w.repo.ClaimForProcessing(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, importjob.ErrStaleStatus) {
			// Redelivered message for a job another worker already took,
			// or one no longer queued.
			w.logger.Warn("Import job not claimable, dropping message",
				slog.String("job_id", msg.JobID.String()),
			)
			return fmt.Errorf("%w: %s", ErrAlreadyClaimed, msg.JobID)
		}
		return NewRetryableError(fmt.Errorf("failed to claim import job: %w", err))
	}

	// Owner-scoped content dedup before spending an extraction call.
	dup, err := w.repo.FindProcessedByChecksum(ctx, job.OwnerID, job.FileChecksumSHA256)
	switch {
	case err == nil:
		return w.markDuplicate(ctx, job, dup)
	case errors.Is(err, importjob.ErrJobNotFound):
		// No duplicate; proceed.
	default:
		w.release(ctx, job)
		return NewRetryableError(fmt.Errorf("failed to check for duplicates: %w", err))
	}

	jobCtx := ctx
	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	result, err := w.engine.Extract(jobCtx, filestore.Descriptor{
		Storage:          job.Storage,
		Path:             job.FilePath,
		OriginalFilename: job.OriginalFilename,
		MimeType:         job.MimeType,
		SizeBytes:        job.FileSizeBytes,
		ChecksumSHA256:   job.FileChecksumSHA256,
	})
	if err != nil {
		if extract.IsPermanent(err) {
			return w.markFailed(ctx, job, err)
		}
		w.release(ctx, job)
		return NewRetryableError(fmt.Errorf("extraction failed transiently: %w", err))
	}

	if result.Confidence >= w.reviewThreshold {
		if in, ok := result.CreationPayload.ReceiptInput(job.OwnerID); ok {
			return w.markProcessed(ctx, job, in)
		}
	}

	return w.markNeedsReview(ctx, job, result.CreationPayload)
}

// markProcessed auto-accepts a complete, confident extraction: receipt
// created, outcome recorded, stored file released.
func (w *Worker) markProcessed(ctx context.Context, job *importjob.ImportJob, in receipt.CreationInput) error {
	receiptID, err := w.receipts.Create(ctx, in)
	if err != nil {
		// The job must not reach processed without its receipt.
		w.release(ctx, job)
		return NewRetryableError(fmt.Errorf("failed to create receipt: %w", err))
	}

	now := time.Now().UTC()
	encoded, err := importjob.OutcomePayload(importjob.ProcessedOutcome{
		JobID:              job.ID,
		Status:             string(importjob.StatusProcessed),
		FinalizedReceiptID: receiptID,
		Source:             importjob.OutcomeSourceAuto,
		FinalizedAt:        now,
	}).Encode()
	if err != nil {
		return NewRetryableError(fmt.Errorf("failed to encode outcome payload: %w", err))
	}

	// The receipt exists; a failed file delete is logged, not retried.
	if err := w.files.Delete(ctx, job.Storage, job.FilePath); err != nil {
		w.logger.Warn("Failed to delete stored file after processing",
			slog.String("job_id", job.ID.String()),
			slog.String("storage", job.Storage),
			slog.String("file_path", job.FilePath),
			slog.Any("error", err),
		)
	}

	job.Status = importjob.StatusProcessed
	job.SetPayload(encoded)
	job.CompletedAt = &now
	job.UpdatedAt = now

	if err := w.persist(ctx, job); err != nil {
		return err
	}

	w.logger.Info("Import job processed automatically",
		slog.String("job_id", job.ID.String()),
		slog.String("receipt_id", receiptID.String()),
	)

	return nil
}

// markNeedsReview stores the draft for human confirmation.
func (w *Worker) markNeedsReview(ctx context.Context, job *importjob.ImportJob, cp importjob.CreationPayload) error {
	encoded, err := importjob.ReviewDraftPayload(cp).Encode()
	if err != nil {
		return NewRetryableError(fmt.Errorf("failed to encode review draft: %w", err))
	}

	now := time.Now().UTC()
	job.Status = importjob.StatusNeedsReview
	job.SetPayload(encoded)
	job.UpdatedAt = now

	if err := w.persist(ctx, job); err != nil {
		return err
	}

	w.logger.Info("Import job routed to manual review",
		slog.String("job_id", job.ID.String()),
	)

	return nil
}

// markFailed records a permanent extraction failure. The message is acked;
// recovery goes through the Retry handler.
func (w *Worker) markFailed(ctx context.Context, job *importjob.ImportJob, cause error) error {
	encoded, err := importjob.ErrorPayload(cause.Error()).Encode()
	if err != nil {
		return NewRetryableError(fmt.Errorf("failed to encode error payload: %w", err))
	}

	now := time.Now().UTC()
	job.Status = importjob.StatusFailed
	job.SetPayload(encoded)
	job.FailedAt = &now
	job.UpdatedAt = now

	if err := w.persist(ctx, job); err != nil {
		return err
	}

	w.logger.Warn("Import job failed permanently",
		slog.String("job_id", job.ID.String()),
		slog.String("error", cause.Error()),
	)

	return nil
}

// markDuplicate short-circuits content the owner already processed.
func (w *Worker) markDuplicate(ctx context.Context, job, original *importjob.ImportJob) error {
	encoded, err := importjob.ErrorPayload(
		fmt.Sprintf("duplicate of import job %s", original.ID),
	).Encode()
	if err != nil {
		return NewRetryableError(fmt.Errorf("failed to encode duplicate payload: %w", err))
	}

	now := time.Now().UTC()
	job.Status = importjob.StatusDuplicate
	job.SetPayload(encoded)
	job.CompletedAt = &now
	job.UpdatedAt = now

	if err := w.persist(ctx, job); err != nil {
		return err
	}

	w.logger.Info("Import job marked as duplicate",
		slog.String("job_id", job.ID.String()),
		slog.String("original_job_id", original.ID.String()),
	)

	return nil
}

// release reverts a claim so a redelivered message can reclaim the job.
func (w *Worker) release(ctx context.Context, job *importjob.ImportJob) {
	job.Status = importjob.StatusQueued
	job.StartedAt = nil
	job.UpdatedAt = time.Now().UTC()

	if err := w.repo.UpdateGuarded(ctx, job, importjob.StatusProcessing); err != nil {
		w.logger.Error("Failed to release import job claim",
			slog.String("job_id", job.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// persist writes the terminal transition guarded on the processing claim.
func (w *Worker) persist(ctx context.Context, job *importjob.ImportJob) error {
	if err := w.repo.UpdateGuarded(ctx, job, importjob.StatusProcessing); err != nil {
		if errors.Is(err, importjob.ErrStaleStatus) {
			// The job was deleted or mutated underneath us; nothing to redo.
			w.logger.Warn("Import job changed during processing, dropping result",
				slog.String("job_id", job.ID.String()),
			)
			return nil
		}
		return NewRetryableError(fmt.Errorf("failed to persist import job: %w", err))
	}
	return nil
}
