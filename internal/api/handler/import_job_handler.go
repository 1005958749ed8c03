package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fueltrack/fueltrack-be/internal/api/dto"
	"github.com/fueltrack/fueltrack-be/internal/importjob"
)

// CreateImportJob handles POST /api/v1/import-jobs
// Accepts a multipart receipt upload and queues it for extraction.
func (h *ImportJobHandler) CreateImportJob(c *gin.Context) {
	h.logger.Info("CreateImportJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
	)

	ownerID, err := uuid.Parse(c.PostForm("owner_id"))
	if err != nil {
		h.logger.Error("Invalid owner_id", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "owner_id must be a valid UUID",
		})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.logger.Error("Missing file upload", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "file is required",
		})
		return
	}

	// Spool the upload to a temp file so the storage backend can hash and
	// sniff it from disk.
	tmpPath := filepath.Join(os.TempDir(), fmt.Sprintf("upload-%s", uuid.New()))
	if err := c.SaveUploadedFile(fileHeader, tmpPath); err != nil {
		h.logger.Error("Failed to spool upload", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to store uploaded file",
		})
		return
	}
	defer os.Remove(tmpPath)

	job, err := h.service.Create(c.Request.Context(), ownerID, tmpPath, fileHeader.Filename)
	if err != nil {
		h.respondError(c, "Failed to create import job", err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromImportJob(job))
}

// GetImportJob handles GET /api/v1/import-jobs/:job_id
func (h *ImportJobHandler) GetImportJob(c *gin.Context) {
	jobID, ok := h.parseJobID(c)
	if !ok {
		return
	}

	job, err := h.repo.GetByID(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, "Failed to get import job", err)
		return
	}

	c.JSON(http.StatusOK, dto.FromImportJob(job))
}

// ListImportJobs handles GET /api/v1/import-jobs
// Lists jobs newest first with cursor pagination.
func (h *ImportJobHandler) ListImportJobs(c *gin.Context) {
	var req dto.ListImportJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	var ownerID uuid.UUID
	if req.OwnerID != "" {
		var err error
		if ownerID, err = uuid.Parse(req.OwnerID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "owner_id must be a valid UUID",
			})
			return
		}
	}

	status := importjob.Status(req.Status)
	if req.Status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Unknown status filter",
		})
		return
	}

	cursor, err := DecodeCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	jobs, err := h.repo.List(c.Request.Context(), importjob.Filter{
		OwnerID:  ownerID,
		Status:   status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.respondError(c, "Failed to list import jobs", err)
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	items := make([]dto.ImportJobDTO, len(jobs))
	for i := range jobs {
		items[i] = dto.FromImportJob(&jobs[i])
	}

	var nextCursor string
	if hasMore {
		last := jobs[len(jobs)-1]
		nextCursor = EncodeCursor(&importjob.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	c.JSON(http.StatusOK, dto.ListImportJobsResponse{
		ImportJobs: items,
		NextCursor: nextCursor,
	})
}

// RetryImportJob handles POST /api/v1/import-jobs/:job_id/retry
func (h *ImportJobHandler) RetryImportJob(c *gin.Context) {
	jobID, ok := h.parseJobID(c)
	if !ok {
		return
	}

	h.logger.Info("RetryImportJob called",
		slog.String("job_id", jobID.String()),
	)

	job, err := h.service.Retry(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, "Failed to retry import job", err)
		return
	}

	c.JSON(http.StatusOK, dto.FromImportJob(job))
}

// FinalizeImportJob handles POST /api/v1/import-jobs/:job_id/finalize
// Confirms a reviewed draft, creating the receipt.
func (h *ImportJobHandler) FinalizeImportJob(c *gin.Context) {
	jobID, ok := h.parseJobID(c)
	if !ok {
		return
	}

	var req dto.FinalizeImportJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	h.logger.Info("FinalizeImportJob called",
		slog.String("job_id", jobID.String()),
	)

	job, err := h.service.Finalize(c.Request.Context(), jobID, req.FinalizeInput())
	if err != nil {
		h.respondError(c, "Failed to finalize import job", err)
		return
	}

	c.JSON(http.StatusOK, dto.FromImportJob(job))
}

// DeleteImportJob handles DELETE /api/v1/import-jobs/:job_id
// Removes the job record and its stored file. Allowed from any status.
func (h *ImportJobHandler) DeleteImportJob(c *gin.Context) {
	jobID, ok := h.parseJobID(c)
	if !ok {
		return
	}

	h.logger.Info("DeleteImportJob called",
		slog.String("job_id", jobID.String()),
	)

	if err := h.service.Delete(c.Request.Context(), jobID); err != nil {
		h.respondError(c, "Failed to delete import job", err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *ImportJobHandler) parseJobID(c *gin.Context) (uuid.UUID, bool) {
	jobID, err := uuid.Parse(c.Param("job_id"))
	if err != nil {
		h.logger.Error("Invalid job_id format",
			slog.String("job_id", c.Param("job_id")),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return uuid.Nil, false
	}
	return jobID, true
}

// respondError maps domain errors onto HTTP statuses. Unknown errors are
// logged and reported as 500 without detail.
func (h *ImportJobHandler) respondError(c *gin.Context, fallback string, err error) {
	var invalidState *importjob.InvalidStateError

	switch {
	case errors.Is(err, importjob.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": importjob.ErrJobNotFound.Error(),
		})
	case errors.As(err, &invalidState):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": invalidState.Reason,
		})
	case errors.Is(err, importjob.ErrMissingFields):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": importjob.ErrMissingFields.Error(),
		})
	default:
		h.logger.Error(fallback,
			slog.String("path", c.Request.URL.Path),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fallback,
		})
	}
}
