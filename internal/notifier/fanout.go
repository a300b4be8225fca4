package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dtolk/booking-be/internal/booking/notify"
)

// DirectFanOut runs translator fan-outs inline instead of publishing them
// back to the queue. The notifier service is the queue's consumer, so a
// fan-out effect raised here (a translator cancellation found during
// processing, a reopened booking) must not loop through RabbitMQ again.
type DirectFanOut struct {
	store      JobSource
	dispatcher *notify.Dispatcher
	logger     *slog.Logger
}

// NewDirectFanOut creates a direct fan-out executor. Bind must be called
// with the dispatcher before the first Schedule.
func NewDirectFanOut(store JobSource, logger *slog.Logger) *DirectFanOut {
	return &DirectFanOut{
		store:  store,
		logger: logger,
	}
}

// Bind attaches the dispatcher. The dispatcher and the executor reference
// each other, so the executor is built first and bound after.
func (f *DirectFanOut) Bind(d *notify.Dispatcher) {
	f.dispatcher = d
}

// Schedule runs the fan-out for one booking immediately.
func (f *DirectFanOut) Schedule(ctx context.Context, jobID, excludeTranslatorID string) error {
	if f.dispatcher == nil {
		return fmt.Errorf("direct fan-out not bound to a dispatcher")
	}

	job, err := f.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load booking %s: %w", jobID, err)
	}

	notified, err := f.dispatcher.NotifyTranslators(ctx, job, excludeTranslatorID)
	if err != nil {
		return err
	}

	f.logger.Debug("Direct fan-out executed",
		slog.String("job_id", jobID),
		slog.Int("notified", notified),
	)

	return nil
}
