package importjob

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fueltrack/fueltrack-be/internal/filestore"
	"github.com/fueltrack/fueltrack-be/internal/receipt"
)

// fakeRepo is an in-memory Repository. UpdateGuarded enforces the same
// expected-status guard the SQL implementation does.
type fakeRepo struct {
	jobs      map[uuid.UUID]*ImportJob
	createErr error
	deleted   []uuid.UUID
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{jobs: make(map[uuid.UUID]*ImportJob)}
}

func (r *fakeRepo) put(job *ImportJob) {
	cp := *job
	r.jobs[job.ID] = &cp
}

func (r *fakeRepo) Create(ctx context.Context, job *ImportJob) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.put(job)
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*ImportJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (r *fakeRepo) List(ctx context.Context, filter Filter) ([]ImportJob, error) {
	var out []ImportJob
	for _, job := range r.jobs {
		out = append(out, *job)
	}
	return out, nil
}

func (r *fakeRepo) FindProcessedByChecksum(ctx context.Context, ownerID uuid.UUID, checksum string) (*ImportJob, error) {
	for _, job := range r.jobs {
		if job.OwnerID == ownerID && job.FileChecksumSHA256 == checksum && job.Status == StatusProcessed {
			cp := *job
			return &cp, nil
		}
	}
	return nil, ErrJobNotFound
}

func (r *fakeRepo) UpdateGuarded(ctx context.Context, job *ImportJob, expected Status) error {
	stored, ok := r.jobs[job.ID]
	if !ok || stored.Status != expected {
		return ErrStaleStatus
	}
	r.put(job)
	return nil
}

func (r *fakeRepo) ClaimForProcessing(ctx context.Context, id uuid.UUID) (*ImportJob, error) {
	stored, ok := r.jobs[id]
	if !ok || stored.Status != StatusQueued {
		return nil, ErrStaleStatus
	}
	now := time.Now().UTC()
	stored.Status = StatusProcessing
	stored.StartedAt = &now
	stored.UpdatedAt = now
	cp := *stored
	return &cp, nil
}

func (r *fakeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.jobs[id]; !ok {
		return ErrJobNotFound
	}
	delete(r.jobs, id)
	r.deleted = append(r.deleted, id)
	return nil
}

type fakeFiles struct {
	stored    []string
	deleted   []string
	storeErr  error
	deleteErr error
}

func (f *fakeFiles) Store(ctx context.Context, sourcePath, originalFilename string) (filestore.Descriptor, error) {
	if f.storeErr != nil {
		return filestore.Descriptor{}, f.storeErr
	}
	f.stored = append(f.stored, sourcePath)
	return filestore.Descriptor{
		Storage:          "local",
		Path:             "imports/ab/" + originalFilename,
		OriginalFilename: originalFilename,
		MimeType:         "image/jpeg",
		SizeBytes:        2048,
		ChecksumSHA256:   "deadbeef",
	}, nil
}

func (f *fakeFiles) Delete(ctx context.Context, storage, path string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, path)
	return nil
}

type fakeDispatcher struct {
	dispatched []uuid.UUID
	err        error
}

func (d *fakeDispatcher) DispatchProcessJob(ctx context.Context, jobID uuid.UUID) error {
	if d.err != nil {
		return d.err
	}
	d.dispatched = append(d.dispatched, jobID)
	return nil
}

type fakeReceipts struct {
	created []receipt.CreationInput
	id      uuid.UUID
	err     error
}

func (c *fakeReceipts) Create(ctx context.Context, in receipt.CreationInput) (uuid.UUID, error) {
	if c.err != nil {
		return uuid.Nil, c.err
	}
	c.created = append(c.created, in)
	return c.id, nil
}

type serviceFixture struct {
	service    *Service
	repo       *fakeRepo
	files      *fakeFiles
	dispatcher *fakeDispatcher
	receipts   *fakeReceipts
	now        time.Time
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		repo:       newFakeRepo(),
		files:      &fakeFiles{},
		dispatcher: &fakeDispatcher{},
		receipts:   &fakeReceipts{id: uuid.New()},
		now:        time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC),
	}
	f.service = NewService(&ServiceConfig{
		Logger:          slog.Default(),
		Repo:            f.repo,
		Files:           f.files,
		Dispatcher:      f.dispatcher,
		Receipts:        f.receipts,
		RetentionWindow: 90 * 24 * time.Hour,
		Now:             func() time.Time { return f.now },
	})
	return f
}

func (f *serviceFixture) seedJob(status Status, payload *string) *ImportJob {
	job := &ImportJob{
		ID:                 uuid.New(),
		OwnerID:            uuid.New(),
		Status:             status,
		Storage:            "local",
		FilePath:           "imports/ab/receipt.jpg",
		OriginalFilename:   "receipt.jpg",
		MimeType:           "image/jpeg",
		FileSizeBytes:      2048,
		FileChecksumSHA256: "deadbeef",
		ErrorPayload:       payload,
		CreatedAt:          f.now.Add(-time.Hour),
		UpdatedAt:          f.now.Add(-time.Hour),
		RetentionUntil:     f.now.Add(90 * 24 * time.Hour),
	}
	f.repo.put(job)
	return job
}

func TestService_Create(t *testing.T) {
	t.Run("creates queued job and dispatches", func(t *testing.T) {
		f := newServiceFixture(t)
		ownerID := uuid.New()

		job, err := f.service.Create(context.Background(), ownerID, "/tmp/upload-1", "receipt.jpg")
		require.NoError(t, err)

		assert.Equal(t, StatusQueued, job.Status)
		assert.Equal(t, ownerID, job.OwnerID)
		assert.Equal(t, "deadbeef", job.FileChecksumSHA256)
		assert.Equal(t, int64(2048), job.FileSizeBytes)
		assert.Nil(t, job.ErrorPayload)
		assert.Equal(t, f.now.Add(90*24*time.Hour), job.RetentionUntil)

		stored, err := f.repo.GetByID(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusQueued, stored.Status)

		require.Len(t, f.dispatcher.dispatched, 1)
		assert.Equal(t, job.ID, f.dispatcher.dispatched[0])
	})

	t.Run("file store failure leaves no job behind", func(t *testing.T) {
		f := newServiceFixture(t)
		f.files.storeErr = fmt.Errorf("disk full")

		_, err := f.service.Create(context.Background(), uuid.New(), "/tmp/upload-1", "receipt.jpg")
		require.Error(t, err)
		assert.Empty(t, f.repo.jobs)
		assert.Empty(t, f.dispatcher.dispatched)
	})

	t.Run("dispatch failure surfaces to caller", func(t *testing.T) {
		f := newServiceFixture(t)
		f.dispatcher.err = fmt.Errorf("broker down")

		_, err := f.service.Create(context.Background(), uuid.New(), "/tmp/upload-1", "receipt.jpg")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to dispatch")
	})
}

func TestService_Retry(t *testing.T) {
	t.Run("requeues failed job", func(t *testing.T) {
		f := newServiceFixture(t)
		failedAt := f.now.Add(-time.Minute)
		payload, err := ErrorPayload("extraction rejected").Encode()
		require.NoError(t, err)
		job := f.seedJob(StatusFailed, &payload)
		f.repo.jobs[job.ID].FailedAt = &failedAt

		updated, err := f.service.Retry(context.Background(), job.ID)
		require.NoError(t, err)

		assert.Equal(t, StatusQueued, updated.Status)
		assert.Nil(t, updated.FailedAt)
		assert.Nil(t, updated.ErrorPayload)

		require.Len(t, f.dispatcher.dispatched, 1)
		assert.Equal(t, job.ID, f.dispatcher.dispatched[0])
	})

	t.Run("rejects non-failed statuses", func(t *testing.T) {
		for _, status := range []Status{StatusQueued, StatusProcessing, StatusNeedsReview, StatusProcessed, StatusDuplicate} {
			t.Run(status.String(), func(t *testing.T) {
				f := newServiceFixture(t)
				job := f.seedJob(status, nil)

				_, err := f.service.Retry(context.Background(), job.ID)
				require.Error(t, err)
				assert.True(t, IsInvalidState(err))
				assert.Equal(t, "Only failed jobs can be retried.", err.Error())
				assert.Empty(t, f.dispatcher.dispatched)
			})
		}
	})

	t.Run("unknown job", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.service.Retry(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ErrJobNotFound)
	})

	t.Run("concurrent transition loses as invalid state", func(t *testing.T) {
		f := newServiceFixture(t)
		job := f.seedJob(StatusFailed, nil)
		// Another actor moves the row between the read and the guarded write.
		f.repo.jobs[job.ID].Status = StatusQueued

		_, err := f.service.Retry(context.Background(), job.ID)
		require.Error(t, err)
		assert.True(t, IsInvalidState(err))
	})
}

func finalizeDraft(t *testing.T) *string {
	t.Helper()
	encoded, err := ReviewDraftPayload(CreationPayload{
		IssuedAt:          "2026-08-15T10:30:00Z",
		StationName:       "Shell Hauptstrasse",
		StationStreetName: "Hauptstrasse 5",
		StationPostalCode: "80331",
		StationCity:       "Muenchen",
		Lines: []Line{
			{FuelType: FuelTypeDiesel, QuantityMilliliters: 45000, UnitPriceDeciCentsPerLiter: 1759, VATRatePercent: 19},
		},
	}).Encode()
	require.NoError(t, err)
	return &encoded
}

func TestService_Finalize(t *testing.T) {
	t.Run("draft alone completes the receipt", func(t *testing.T) {
		f := newServiceFixture(t)
		job := f.seedJob(StatusNeedsReview, finalizeDraft(t))

		updated, err := f.service.Finalize(context.Background(), job.ID, FinalizeInput{})
		require.NoError(t, err)

		assert.Equal(t, StatusProcessed, updated.Status)
		require.NotNil(t, updated.CompletedAt)
		assert.Equal(t, f.now, *updated.CompletedAt)

		require.Len(t, f.receipts.created, 1)
		created := f.receipts.created[0]
		assert.Equal(t, "Shell Hauptstrasse", created.StationName)
		require.Len(t, created.Lines, 1)
		assert.Equal(t, int64(45000), created.Lines[0].QuantityMilliliters)

		// The stored file is gone once the receipt exists.
		assert.Equal(t, []string{job.FilePath}, f.files.deleted)

		outcome := updated.DecodedPayload()
		require.Equal(t, PayloadKindProcessedOutcome, outcome.Kind)
		assert.Equal(t, f.receipts.id, outcome.Outcome.FinalizedReceiptID)
		assert.Equal(t, OutcomeSourceManualReview, outcome.Outcome.Source)
		assert.True(t, outcome.Outcome.UsedCreationPayload)
	})

	t.Run("receipt belongs to the job owner", func(t *testing.T) {
		f := newServiceFixture(t)
		job := f.seedJob(StatusNeedsReview, finalizeDraft(t))

		_, err := f.service.Finalize(context.Background(), job.ID, FinalizeInput{})
		require.NoError(t, err)

		require.Len(t, f.receipts.created, 1)
		assert.Equal(t, job.OwnerID, f.receipts.created[0].OwnerID)
	})

	t.Run("caller overrides win over draft", func(t *testing.T) {
		f := newServiceFixture(t)
		job := f.seedJob(StatusNeedsReview, finalizeDraft(t))

		updated, err := f.service.Finalize(context.Background(), job.ID, FinalizeInput{
			StationName: "Shell Bahnhof",
		})
		require.NoError(t, err)

		require.Len(t, f.receipts.created, 1)
		assert.Equal(t, "Shell Bahnhof", f.receipts.created[0].StationName)
		// The draft still contributed the remaining fields.
		assert.True(t, updated.DecodedPayload().Outcome.UsedCreationPayload)
	})

	t.Run("complete caller input without draft", func(t *testing.T) {
		f := newServiceFixture(t)
		job := f.seedJob(StatusNeedsReview, nil)

		updated, err := f.service.Finalize(context.Background(), job.ID, FinalizeInput{
			IssuedAt:          "2026-08-20T08:00:00Z",
			StationName:       "Esso",
			StationStreetName: "Ring 2",
			StationPostalCode: "10115",
			StationCity:       "Berlin",
			Lines: []Line{
				{FuelType: FuelTypeE10, QuantityMilliliters: 30000, UnitPriceDeciCentsPerLiter: 1689, VATRatePercent: 19},
			},
		})
		require.NoError(t, err)
		assert.False(t, updated.DecodedPayload().Outcome.UsedCreationPayload)
	})

	t.Run("invalid lines are dropped, leaving none fails", func(t *testing.T) {
		f := newServiceFixture(t)
		job := f.seedJob(StatusNeedsReview, nil)

		_, err := f.service.Finalize(context.Background(), job.ID, FinalizeInput{
			IssuedAt:          "2026-08-20T08:00:00Z",
			StationName:       "Esso",
			StationStreetName: "Ring 2",
			StationPostalCode: "10115",
			StationCity:       "Berlin",
			Lines: []Line{
				{FuelType: "kerosene", QuantityMilliliters: 1000, UnitPriceDeciCentsPerLiter: 2000, VATRatePercent: 19},
			},
		})
		assert.ErrorIs(t, err, ErrMissingFields)
		assert.Empty(t, f.receipts.created)
	})

	t.Run("unparseable issue date counts as missing", func(t *testing.T) {
		f := newServiceFixture(t)
		job := f.seedJob(StatusNeedsReview, finalizeDraft(t))

		_, err := f.service.Finalize(context.Background(), job.ID, FinalizeInput{
			IssuedAt: "15.08.2026",
		})
		assert.ErrorIs(t, err, ErrMissingFields)
	})

	t.Run("missing fields leave job untouched", func(t *testing.T) {
		f := newServiceFixture(t)
		job := f.seedJob(StatusNeedsReview, nil)

		_, err := f.service.Finalize(context.Background(), job.ID, FinalizeInput{
			StationName: "Esso",
		})
		assert.ErrorIs(t, err, ErrMissingFields)

		stored, err := f.repo.GetByID(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusNeedsReview, stored.Status)
		assert.Empty(t, f.files.deleted)
	})

	t.Run("rejects non-review statuses", func(t *testing.T) {
		for _, status := range []Status{StatusQueued, StatusProcessing, StatusFailed, StatusProcessed, StatusDuplicate} {
			t.Run(status.String(), func(t *testing.T) {
				f := newServiceFixture(t)
				job := f.seedJob(status, finalizeDraft(t))

				_, err := f.service.Finalize(context.Background(), job.ID, FinalizeInput{})
				require.Error(t, err)
				assert.True(t, IsInvalidState(err))
				assert.Equal(t, "Only needs_review jobs can be finalized.", err.Error())
			})
		}
	})

	t.Run("receipt creation failure keeps job reviewable", func(t *testing.T) {
		f := newServiceFixture(t)
		job := f.seedJob(StatusNeedsReview, finalizeDraft(t))
		f.receipts.err = fmt.Errorf("db down")

		_, err := f.service.Finalize(context.Background(), job.ID, FinalizeInput{})
		require.Error(t, err)

		stored, err := f.repo.GetByID(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusNeedsReview, stored.Status)
	})

	t.Run("concurrent finalize loses as invalid state", func(t *testing.T) {
		f := newServiceFixture(t)
		job := f.seedJob(StatusNeedsReview, finalizeDraft(t))
		// First finalize wins between this caller's read and write.
		f.repo.jobs[job.ID].Status = StatusProcessed

		_, err := f.service.Finalize(context.Background(), job.ID, FinalizeInput{})
		require.Error(t, err)
		assert.True(t, IsInvalidState(err))
	})
}

func TestService_Delete(t *testing.T) {
	t.Run("removes file and record", func(t *testing.T) {
		f := newServiceFixture(t)
		job := f.seedJob(StatusNeedsReview, nil)

		err := f.service.Delete(context.Background(), job.ID)
		require.NoError(t, err)

		assert.Equal(t, []string{job.FilePath}, f.files.deleted)
		assert.Equal(t, []uuid.UUID{job.ID}, f.repo.deleted)
	})

	t.Run("deletable from any status", func(t *testing.T) {
		for _, status := range []Status{StatusQueued, StatusProcessing, StatusNeedsReview, StatusFailed, StatusProcessed, StatusDuplicate} {
			t.Run(status.String(), func(t *testing.T) {
				f := newServiceFixture(t)
				job := f.seedJob(status, nil)
				require.NoError(t, f.service.Delete(context.Background(), job.ID))
			})
		}
	})

	t.Run("file delete failure blocks record removal by default", func(t *testing.T) {
		f := newServiceFixture(t)
		job := f.seedJob(StatusQueued, nil)
		f.files.deleteErr = fmt.Errorf("permission denied")

		err := f.service.Delete(context.Background(), job.ID)
		require.Error(t, err)

		_, err = f.repo.GetByID(context.Background(), job.ID)
		assert.NoError(t, err)
	})

	t.Run("ignore flag removes record despite file error", func(t *testing.T) {
		f := newServiceFixture(t)
		f.service = NewService(&ServiceConfig{
			Logger:                 slog.Default(),
			Repo:                   f.repo,
			Files:                  f.files,
			Dispatcher:             f.dispatcher,
			Receipts:               f.receipts,
			RetentionWindow:        90 * 24 * time.Hour,
			IgnoreFileDeleteErrors: true,
			Now:                    func() time.Time { return f.now },
		})
		job := f.seedJob(StatusQueued, nil)
		f.files.deleteErr = fmt.Errorf("permission denied")

		require.NoError(t, f.service.Delete(context.Background(), job.ID))

		_, err := f.repo.GetByID(context.Background(), job.ID)
		assert.ErrorIs(t, err, ErrJobNotFound)
	})

	t.Run("unknown job", func(t *testing.T) {
		f := newServiceFixture(t)
		err := f.service.Delete(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ErrJobNotFound)
	})
}
