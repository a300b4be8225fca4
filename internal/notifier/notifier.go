// Package notifier implements the background notification service. It
// consumes translator fan-out messages from RabbitMQ, runs the eligibility
// matching and push/SMS delivery for each one on a bounded worker pool, and
// sweeps pending bookings past their expiry on a cron schedule.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/dtolk/booking-be/internal/booking"
	"github.com/dtolk/booking-be/internal/booking/domain"
	"github.com/dtolk/booking-be/internal/booking/notify"
	"github.com/dtolk/booking-be/shared/rabbitmq"
)

// JobSource loads bookings for fan-out processing.
type JobSource interface {
	GetJob(ctx context.Context, id string) (*domain.Job, error)
}

// Config holds notifier configuration
type Config struct {
	Logger        *slog.Logger
	RabbitClient  *rabbitmq.Client
	Store         JobSource
	Dispatcher    *notify.Dispatcher
	Orchestrator  *booking.Orchestrator
	Concurrency   int
	MaxTasks      int
	TaskTimeout   time.Duration
	PrefetchCount int
	QueueName     string
	SweepSchedule string
}

// Notifier represents the background notification worker
type Notifier struct {
	logger        *slog.Logger
	rabbitClient  *rabbitmq.Client
	store         JobSource
	dispatcher    *notify.Dispatcher
	orchestrator  *booking.Orchestrator
	concurrency   int
	taskTimeout   time.Duration
	prefetchCount int
	queueName     string
	sweepSchedule string
	notifierID    string
	cron          *cron.Cron
	wg            sync.WaitGroup
	stopChan      chan struct{}
	tasksChan     chan *fanOutTask
}

// New creates a new notifier instance
func New(cfg *Config) *Notifier {
	return &Notifier{
		logger:        cfg.Logger,
		rabbitClient:  cfg.RabbitClient,
		store:         cfg.Store,
		dispatcher:    cfg.Dispatcher,
		orchestrator:  cfg.Orchestrator,
		concurrency:   cfg.Concurrency,
		taskTimeout:   cfg.TaskTimeout,
		prefetchCount: cfg.PrefetchCount,
		queueName:     cfg.QueueName,
		sweepSchedule: cfg.SweepSchedule,
		notifierID:    fmt.Sprintf("notifier-%s", uuid.New().String()[:8]),
		cron:          cron.New(),
		stopChan:      make(chan struct{}),
		tasksChan:     make(chan *fanOutTask, cfg.MaxTasks),
	}
}

// Start begins consuming fan-out messages and schedules the expiry sweep.
// It returns once everything is running; Stop drains it.
func (n *Notifier) Start(ctx context.Context) error {
	n.logger.Info("Starting notifier",
		slog.String("notifier_id", n.notifierID),
		slog.Int("concurrency", n.concurrency),
		slog.Duration("task_timeout", n.taskTimeout),
	)

	deliveries, err := n.setupConsumer()
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	n.spawnWorkerPool(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.startTaskDispatcher(ctx, deliveries)
	}()

	if _, err := n.cron.AddFunc(n.sweepSchedule, n.runExpirySweep); err != nil {
		return fmt.Errorf("invalid expiry sweep schedule %q: %w", n.sweepSchedule, err)
	}
	n.cron.Start()

	n.logger.Info("Notifier started",
		slog.String("notifier_id", n.notifierID),
		slog.String("sweep_schedule", n.sweepSchedule),
	)

	return nil
}

// Stop gracefully stops the notifier. The cron scheduler finishes any
// running sweep, then the worker pool drains.
func (n *Notifier) Stop() {
	n.logger.Info("Stopping notifier...")

	cronCtx := n.cron.Stop()
	<-cronCtx.Done()

	close(n.stopChan)
	n.wg.Wait()

	n.logger.Info("Notifier stopped")
}

// runExpirySweep moves pending bookings past their expiry to timed out and
// pushes the expiry notice to their customers.
func (n *Notifier) runExpirySweep() {
	ctx, cancel := context.WithTimeout(context.Background(), n.taskTimeout)
	defer cancel()

	count, err := n.orchestrator.ExpireOverdue(ctx)
	if err != nil {
		n.logger.Error("Expiry sweep failed",
			slog.Any("error", err),
		)
		return
	}

	if count > 0 {
		n.logger.Info("Expiry sweep completed",
			slog.Int("expired", count),
		)
	}
}
