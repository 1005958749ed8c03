package handler

import (
	"log/slog"

	"github.com/fueltrack/fueltrack-be/internal/importjob"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger  *slog.Logger
	Service *importjob.Service
	Repo    importjob.Repository
}

// ImportJobHandler handles import job HTTP requests
type ImportJobHandler struct {
	logger  *slog.Logger
	service *importjob.Service
	repo    importjob.Repository
}

// NewImportJobHandler creates a new ImportJobHandler instance
func NewImportJobHandler(deps *Dependencies) *ImportJobHandler {
	return &ImportJobHandler{
		logger:  deps.Logger,
		service: deps.Service,
		repo:    deps.Repo,
	}
}
