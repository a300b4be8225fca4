// Package queue carries translator fan-out work from the API service to the
// notifier service over RabbitMQ.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dtolk/booking-be/shared/rabbitmq"
)

// FanOutMessage is the wire format of one queued translator fan-out.
type FanOutMessage struct {
	JobID               string `json:"job_id"`
	ExcludeTranslatorID string `json:"exclude_translator_id,omitempty"`
}

// Publisher schedules fan-outs by publishing to the notification queue.
type Publisher struct {
	client *rabbitmq.Client
	logger *slog.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(client *rabbitmq.Client, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

// Schedule publishes the fan-out request with retry.
func (p *Publisher) Schedule(ctx context.Context, jobID, excludeTranslatorID string) error {
	body, err := json.Marshal(FanOutMessage{
		JobID:               jobID,
		ExcludeTranslatorID: excludeTranslatorID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal fan-out message: %w", err)
	}

	if err := p.client.PublishWithRetry(ctx, body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish fan-out message: %w", err)
	}

	p.logger.Debug("fan-out scheduled",
		slog.String("job_id", jobID),
	)
	return nil
}
