package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dtolk/booking-be/internal/booking/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (n *Notifier) spawnWorkerPool(ctx context.Context) {
	n.logger.Info("Spawning worker pool",
		slog.Int("concurrency", n.concurrency),
		slog.String("notifier_id", n.notifierID),
	)

	for i := 0; i < n.concurrency; i++ {
		n.wg.Add(1)
		go n.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (n *Notifier) workerLoop(ctx context.Context, workerNum int) {
	defer n.wg.Done()

	workerName := fmt.Sprintf("%s-%d", n.notifierID, workerNum)
	n.logger.Info("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-n.stopChan:
			n.logger.Info("Worker goroutine stopping - shutdown requested",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			n.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case task, ok := <-n.tasksChan:
			if !ok {
				n.logger.Info("Worker goroutine stopping - task channel closed",
					slog.String("worker_name", workerName),
				)
				return
			}

			err := n.processTask(ctx, task)

			channel := n.rabbitClient.GetChannel()
			if channel == nil {
				n.logger.Error("Failed to get RabbitMQ channel for ACK/NACK",
					slog.String("worker_name", workerName),
					slog.String("job_id", task.msg.JobID),
				)
				continue
			}

			if err != nil {
				requeue := n.shouldRequeueTask(err)
				n.logger.Error("Fan-out task failed",
					slog.String("worker_name", workerName),
					slog.String("job_id", task.msg.JobID),
					slog.Bool("requeue", requeue),
					slog.Any("error", err),
				)

				if nackErr := channel.Nack(task.deliveryTag, false, requeue); nackErr != nil {
					n.logger.Error("Failed to NACK message",
						slog.String("worker_name", workerName),
						slog.String("job_id", task.msg.JobID),
						slog.Any("error", nackErr),
					)
				}
				continue
			}

			if ackErr := channel.Ack(task.deliveryTag, false); ackErr != nil {
				n.logger.Error("Failed to ACK message",
					slog.String("worker_name", workerName),
					slog.String("job_id", task.msg.JobID),
					slog.Any("error", ackErr),
				)
			}
		}
	}
}

// processTask runs one translator fan-out: load the booking, push the
// new-booking notice to every eligible translator, then text them. A booking
// that is no longer pending by the time the message arrives is skipped.
func (n *Notifier) processTask(ctx context.Context, task *fanOutTask) error {
	taskCtx, cancel := context.WithTimeout(ctx, n.taskTimeout)
	defer cancel()

	job, err := n.store.GetJob(taskCtx, task.msg.JobID)
	if err != nil {
		return fmt.Errorf("failed to load booking %s: %w", task.msg.JobID, err)
	}

	if job.Status != domain.StatusPending {
		n.logger.Info("Skipping fan-out - booking no longer pending",
			slog.String("job_id", job.ID),
			slog.String("status", string(job.Status)),
		)
		return nil
	}

	notified, err := n.dispatcher.NotifyTranslators(taskCtx, job, task.msg.ExcludeTranslatorID)
	if err != nil {
		return fmt.Errorf("push fan-out failed for booking %s: %w", job.ID, err)
	}

	texted, err := n.dispatcher.SMSTranslators(taskCtx, job)
	if err != nil {
		return fmt.Errorf("sms fan-out failed for booking %s: %w", job.ID, err)
	}

	n.logger.Info("Fan-out completed",
		slog.String("job_id", job.ID),
		slog.Int("pushed", notified),
		slog.Int("texted", texted),
	)

	return nil
}

// shouldRequeueTask determines if a failed task should be requeued. A booking
// that no longer exists will never succeed; everything else is treated as
// transient (database or provider outage) and retried.
func (n *Notifier) shouldRequeueTask(err error) bool {
	if errors.Is(err, domain.ErrJobNotFound) {
		return false
	}
	return true
}
