package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dtolk/booking-be/internal/booking/queue"
)

// fanOutTask is one fan-out message pulled off the queue, paired with the
// delivery tag the worker needs to ack it.
type fanOutTask struct {
	msg         queue.FanOutMessage
	deliveryTag uint64
}

// setupConsumer configures QoS on the RabbitMQ channel and starts consuming
func (n *Notifier) setupConsumer() (<-chan amqp.Delivery, error) {
	channel := n.rabbitClient.GetChannel()
	if channel == nil {
		return nil, fmt.Errorf("rabbitmq channel is nil")
	}

	// Per-consumer prefetch keeps one slow fan-out from starving the pool
	if err := channel.Qos(n.prefetchCount, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	n.logger.Info("RabbitMQ QoS configured",
		slog.Int("prefetch_count", n.prefetchCount),
	)

	deliveries, err := n.rabbitClient.Consume(n.notifierID)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	n.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", n.notifierID),
		slog.String("queue", n.queueName),
	)

	return deliveries, nil
}

// startTaskDispatcher reads RabbitMQ deliveries, parses them and feeds the
// worker pool. Malformed messages are NACKed without requeue so they land in
// the dead letter queue instead of looping.
func (n *Notifier) startTaskDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) {
	n.logger.Info("Task dispatcher started",
		slog.String("notifier_id", n.notifierID),
	)

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("Task dispatcher stopped - context canceled")
			return

		case <-n.stopChan:
			n.logger.Info("Task dispatcher stopped - shutdown requested")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				n.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			var msg queue.FanOutMessage
			if err := json.Unmarshal(delivery.Body, &msg); err != nil {
				n.logger.Error("Failed to parse fan-out message",
					slog.Any("error", err),
					slog.String("body", string(delivery.Body)),
				)
				n.nackDelivery(delivery, false)
				continue
			}

			if _, err := uuid.Parse(msg.JobID); err != nil {
				n.logger.Error("Invalid job_id in fan-out message",
					slog.String("job_id", msg.JobID),
					slog.Any("error", err),
				)
				n.nackDelivery(delivery, false)
				continue
			}

			task := &fanOutTask{
				msg:         msg,
				deliveryTag: delivery.DeliveryTag,
			}

			select {
			case n.tasksChan <- task:
				n.logger.Debug("Fan-out task dispatched to worker pool",
					slog.String("job_id", msg.JobID),
					slog.Uint64("delivery_tag", delivery.DeliveryTag),
				)
			case <-ctx.Done():
				n.logger.Info("Task dispatcher stopped while dispatching")
				// Requeue so another consumer picks it up
				n.nackDelivery(delivery, true)
				return
			case <-n.stopChan:
				n.logger.Info("Task dispatcher stopped while dispatching - shutdown requested")
				n.nackDelivery(delivery, true)
				return
			}
		}
	}
}

func (n *Notifier) nackDelivery(delivery amqp.Delivery, requeue bool) {
	if err := delivery.Nack(false, requeue); err != nil {
		n.logger.Error("Failed to NACK message",
			slog.Uint64("delivery_tag", delivery.DeliveryTag),
			slog.Any("error", err),
		)
	}
}
