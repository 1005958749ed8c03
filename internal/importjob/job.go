package importjob

import (
	"time"

	"github.com/google/uuid"
)

// ImportJob is the unit of work of the receipt ingestion pipeline. It is
// created by Create, mutated in place by Retry, Finalize and the worker,
// and removed by Delete. No other component touches it.
type ImportJob struct {
	ID                 uuid.UUID  `db:"id"`
	OwnerID            uuid.UUID  `db:"owner_id"`
	Status             Status     `db:"status"`
	Storage            string     `db:"storage"`
	FilePath           string     `db:"file_path"`
	OriginalFilename   string     `db:"original_filename"`
	MimeType           string     `db:"mime_type"`
	FileSizeBytes      int64      `db:"file_size_bytes"`
	FileChecksumSHA256 string     `db:"file_checksum_sha256"`
	ErrorPayload       *string    `db:"error_payload"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
	StartedAt          *time.Time `db:"started_at"`
	CompletedAt        *time.Time `db:"completed_at"`
	FailedAt           *time.Time `db:"failed_at"`
	RetentionUntil     time.Time  `db:"retention_until"`
}

// SetPayload replaces the error payload wholesale. The payload is
// write-once per transition; callers never patch it partially.
func (j *ImportJob) SetPayload(raw string) {
	j.ErrorPayload = &raw
}

// ClearPayload removes the error payload.
func (j *ImportJob) ClearPayload() {
	j.ErrorPayload = nil
}

// DecodedPayload returns the job's payload variant, tolerating absent or
// malformed JSON.
func (j *ImportJob) DecodedPayload() Payload {
	return DecodePayload(j.ErrorPayload)
}
