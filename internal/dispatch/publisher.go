package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fueltrack/fueltrack-be/shared/rabbitmq"
)

// ProcessImportJobMessage is the wire shape of a processing signal. The
// worker re-reads all job state from the repository; the message carries
// only the id.
type ProcessImportJobMessage struct {
	ImportJobID string `json:"import_job_id"`
}

// Publisher emits ProcessImportJob messages over RabbitMQ with
// at-least-once delivery.
type Publisher struct {
	client *rabbitmq.Client
	logger *slog.Logger
}

// NewPublisher creates a new Publisher instance.
func NewPublisher(client *rabbitmq.Client, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

// DispatchProcessJob publishes one processing message for the given job id.
func (p *Publisher) DispatchProcessJob(ctx context.Context, jobID uuid.UUID) error {
	body, err := json.Marshal(ProcessImportJobMessage{ImportJobID: jobID.String()})
	if err != nil {
		return fmt.Errorf("failed to marshal processing message: %w", err)
	}

	if err := p.client.PublishWithRetry(ctx, body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish processing message: %w", err)
	}

	p.logger.Debug("Processing message dispatched",
		slog.String("import_job_id", jobID.String()),
	)

	return nil
}
