package dto

import (
	"time"

	"github.com/fueltrack/fueltrack-be/internal/importjob"
)

type FinalizeImportJobRequest struct {
	IssuedAt          string    `json:"issuedAt"`
	StationName       string    `json:"stationName"`
	StationStreetName string    `json:"stationStreetName"`
	StationPostalCode string    `json:"stationPostalCode"`
	StationCity       string    `json:"stationCity"`
	Latitude          *float64  `json:"latitude"`
	Longitude         *float64  `json:"longitude"`
	Lines             []LineDTO `json:"lines"`
}

type LineDTO struct {
	FuelType                   string `json:"fuelType"`
	QuantityMilliliters        int64  `json:"quantityMilliLiters"`
	UnitPriceDeciCentsPerLiter int64  `json:"unitPriceDeciCentsPerLiter"`
	VATRatePercent             int    `json:"vatRatePercent"`
}

// FinalizeInput converts the request into the service's merge input.
func (r FinalizeImportJobRequest) FinalizeInput() importjob.FinalizeInput {
	lines := make([]importjob.Line, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = importjob.Line{
			FuelType:                   l.FuelType,
			QuantityMilliliters:        l.QuantityMilliliters,
			UnitPriceDeciCentsPerLiter: l.UnitPriceDeciCentsPerLiter,
			VATRatePercent:             l.VATRatePercent,
		}
	}
	return importjob.FinalizeInput{
		IssuedAt:          r.IssuedAt,
		StationName:       r.StationName,
		StationStreetName: r.StationStreetName,
		StationPostalCode: r.StationPostalCode,
		StationCity:       r.StationCity,
		Latitude:          r.Latitude,
		Longitude:         r.Longitude,
		Lines:             lines,
	}
}

type ListImportJobsRequest struct {
	OwnerID  string `form:"owner_id"`
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListImportJobsResponse struct {
	ImportJobs []ImportJobDTO `json:"import_jobs"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type ImportJobDTO struct {
	ID                 string  `json:"id"`
	OwnerID            string  `json:"owner_id"`
	Status             string  `json:"status"`
	OriginalFilename   string  `json:"original_filename"`
	MimeType           string  `json:"mime_type"`
	FileSizeBytes      int64   `json:"file_size_bytes"`
	FileChecksumSHA256 string  `json:"file_checksum_sha256"`
	Payload            *string `json:"payload,omitempty"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
	StartedAt          *string `json:"started_at,omitempty"`
	CompletedAt        *string `json:"completed_at,omitempty"`
	FailedAt           *string `json:"failed_at,omitempty"`
	RetentionUntil     string  `json:"retention_until"`
}

// FromImportJob maps the domain entity onto the wire representation.
func FromImportJob(job *importjob.ImportJob) ImportJobDTO {
	return ImportJobDTO{
		ID:                 job.ID.String(),
		OwnerID:            job.OwnerID.String(),
		Status:             job.Status.String(),
		OriginalFilename:   job.OriginalFilename,
		MimeType:           job.MimeType,
		FileSizeBytes:      job.FileSizeBytes,
		FileChecksumSHA256: job.FileChecksumSHA256,
		Payload:            job.ErrorPayload,
		CreatedAt:          job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          job.UpdatedAt.Format(time.RFC3339),
		StartedAt:          formatOptional(job.StartedAt),
		CompletedAt:        formatOptional(job.CompletedAt),
		FailedAt:           formatOptional(job.FailedAt),
		RetentionUntil:     job.RetentionUntil.Format(time.RFC3339),
	}
}

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
