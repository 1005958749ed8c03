package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fueltrack/fueltrack-be/internal/extract"
	"github.com/fueltrack/fueltrack-be/internal/filestore"
	"github.com/fueltrack/fueltrack-be/internal/importjob"
	"github.com/fueltrack/fueltrack-be/shared/rabbitmq"
)

// Config holds worker configuration.
type Config struct {
	Logger       *slog.Logger
	Repo         importjob.Repository
	Files        filestore.Store
	Receipts     importjob.ReceiptCreator
	Engine       extract.Engine
	RabbitClient *rabbitmq.Client

	Concurrency   int
	PrefetchCount int
	JobTimeout    time.Duration
	// ReviewConfidenceThreshold routes extractions below it to manual
	// review even when the payload is complete.
	ReviewConfidenceThreshold float64
}

// Worker consumes ProcessImportJob messages and drives queued import jobs
// through extraction.
type Worker struct {
	logger       *slog.Logger
	repo         importjob.Repository
	files        filestore.Store
	receipts     importjob.ReceiptCreator
	engine       extract.Engine
	rabbitClient *rabbitmq.Client

	concurrency     int
	prefetchCount   int
	jobTimeout      time.Duration
	reviewThreshold float64

	workerID string
	jobsChan chan *jobMessage
	wg       sync.WaitGroup
	stopChan chan struct{}
}

// jobMessage pairs a parsed job id with its delivery tag for ack/nack.
type jobMessage struct {
	JobID       uuid.UUID
	DeliveryTag uint64
}

// NewWorker creates a new worker instance.
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:          cfg.Logger,
		repo:            cfg.Repo,
		files:           cfg.Files,
		receipts:        cfg.Receipts,
		engine:          cfg.Engine,
		rabbitClient:    cfg.RabbitClient,
		concurrency:     cfg.Concurrency,
		prefetchCount:   cfg.PrefetchCount,
		jobTimeout:      cfg.JobTimeout,
		reviewThreshold: cfg.ReviewConfidenceThreshold,
		workerID:        fmt.Sprintf("import-worker-%s", uuid.New().String()[:8]),
		jobsChan:        make(chan *jobMessage),
		stopChan:        make(chan struct{}),
	}
}

// Start consumes the queue until the context is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting import worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	return nil
}

// Stop gracefully stops the worker pool.
func (w *Worker) Stop() {
	w.logger.Info("Stopping import worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Import worker stopped")
}
