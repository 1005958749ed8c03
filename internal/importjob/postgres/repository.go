package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fueltrack/fueltrack-be/internal/importjob"
)

const jobColumns = `
	id, owner_id, status, storage, file_path, original_filename,
	mime_type, file_size_bytes, file_checksum_sha256, error_payload,
	created_at, updated_at, started_at, completed_at, failed_at, retention_until
`

// Repository is the sqlx-backed import job repository.
type Repository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sqlx.DB, logger *slog.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

func (r *Repository) Create(ctx context.Context, job *importjob.ImportJob) error {
	query := `
		INSERT INTO import_jobs (` + jobColumns + `)
		VALUES (
			:id, :owner_id, :status, :storage, :file_path, :original_filename,
			:mime_type, :file_size_bytes, :file_checksum_sha256, :error_payload,
			:created_at, :updated_at, :started_at, :completed_at, :failed_at, :retention_until
		)
	`

	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("failed to create import job: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*importjob.ImportJob, error) {
	query := `SELECT ` + jobColumns + ` FROM import_jobs WHERE id = $1`

	var job importjob.ImportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, importjob.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get import job: %w", err)
	}
	return &job, nil
}

func (r *Repository) List(ctx context.Context, filter importjob.Filter) ([]importjob.ImportJob, error) {
	query := `SELECT ` + jobColumns + ` FROM import_jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.OwnerID != uuid.Nil {
		query += fmt.Sprintf(" AND owner_id = $%d", argIdx)
		args = append(args, filter.OwnerID)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ID)
		argIdx += 2
	}

	// (created_at, id) DESC keeps pagination stable across inserts.
	query += " ORDER BY created_at DESC, id DESC"

	// Fetch one extra row so the caller can tell whether more exist.
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []importjob.ImportJob
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list import jobs: %w", err)
	}
	return jobs, nil
}

func (r *Repository) FindProcessedByChecksum(ctx context.Context, ownerID uuid.UUID, checksum string) (*importjob.ImportJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM import_jobs
		WHERE owner_id = $1 AND file_checksum_sha256 = $2 AND status = $3
		ORDER BY created_at ASC
		LIMIT 1
	`

	var job importjob.ImportJob
	err := r.db.GetContext(ctx, &job, query, ownerID, checksum, importjob.StatusProcessed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, importjob.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to find processed job by checksum: %w", err)
	}
	return &job, nil
}

// UpdateGuarded persists the job's mutable columns only while the row
// still holds the expected status. Zero rows affected means another
// transition won the race.
func (r *Repository) UpdateGuarded(ctx context.Context, job *importjob.ImportJob, expected importjob.Status) error {
	query := `
		UPDATE import_jobs
		SET status = $1,
		    error_payload = $2,
		    updated_at = $3,
		    started_at = $4,
		    completed_at = $5,
		    failed_at = $6
		WHERE id = $7 AND status = $8
	`

	result, err := r.db.ExecContext(ctx, query,
		job.Status,
		job.ErrorPayload,
		job.UpdatedAt,
		job.StartedAt,
		job.CompletedAt,
		job.FailedAt,
		job.ID,
		expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update import job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		r.logger.Warn("Guarded update missed - status changed concurrently",
			slog.String("job_id", job.ID.String()),
			slog.String("expected_status", expected.String()),
		)
		return importjob.ErrStaleStatus
	}

	return nil
}

// ClaimForProcessing atomically moves a queued job to processing, the same
// optimistic claim the worker relies on to tolerate message redelivery.
func (r *Repository) ClaimForProcessing(ctx context.Context, id uuid.UUID) (*importjob.ImportJob, error) {
	query := `
		UPDATE import_jobs
		SET status = $1,
		    started_at = $2,
		    updated_at = $2
		WHERE id = $3 AND status = $4
		RETURNING ` + jobColumns

	now := time.Now().UTC()

	var job importjob.ImportJob
	err := r.db.GetContext(ctx, &job, query, importjob.StatusProcessing, now, id, importjob.StatusQueued)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Warn("Failed to claim import job - not queued or not found",
				slog.String("job_id", id.String()),
			)
			return nil, importjob.ErrStaleStatus
		}
		return nil, fmt.Errorf("failed to claim import job: %w", err)
	}

	r.logger.Info("Import job claimed for processing",
		slog.String("job_id", job.ID.String()),
	)

	return &job, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM import_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete import job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return importjob.ErrJobNotFound
	}

	return nil
}
