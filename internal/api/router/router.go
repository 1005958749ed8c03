package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fueltrack/fueltrack-be/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "import-api-service",
		})
	})

	importJobHandler := handler.NewImportJobHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/import-jobs")
		{
			// POST /api/v1/import-jobs - Upload a receipt and queue it
			jobs.POST("", importJobHandler.CreateImportJob)

			// GET /api/v1/import-jobs - List jobs with filtering and pagination
			jobs.GET("", importJobHandler.ListImportJobs)

			// GET /api/v1/import-jobs/:job_id - Get job details
			jobs.GET("/:job_id", importJobHandler.GetImportJob)

			// POST /api/v1/import-jobs/:job_id/retry - Requeue a failed job
			jobs.POST("/:job_id/retry", importJobHandler.RetryImportJob)

			// POST /api/v1/import-jobs/:job_id/finalize - Confirm a reviewed draft
			jobs.POST("/:job_id/finalize", importJobHandler.FinalizeImportJob)

			// DELETE /api/v1/import-jobs/:job_id - Delete a job and its file
			jobs.DELETE("/:job_id", importJobHandler.DeleteImportJob)
		}
	}

	return r
}
