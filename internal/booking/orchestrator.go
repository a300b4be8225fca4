// Package booking composes the job state machine, eligibility matching,
// assignment management and notification fan-out into the booking use
// cases. Every use case mutates the store first and dispatches side effects
// only after the write has committed; channel failures never fail a use
// case.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dtolk/booking-be/internal/booking/assignment"
	"github.com/dtolk/booking-be/internal/booking/domain"
	"github.com/dtolk/booking-be/internal/booking/state"
)

// CancellationWindow is the threshold separating free customer withdrawal
// from late withdrawal, and gating translator-initiated cancellation.
const CancellationWindow = 24 * time.Hour

// Notifier executes queued side effects. The concrete implementation is the
// notification dispatcher; tests inject a recorder.
type Notifier interface {
	Apply(ctx context.Context, job *domain.Job, effects []state.Effect)
}

// Config carries orchestrator behavior settings.
type Config struct {
	// PhoneCancellationGuidance is returned verbatim when a translator
	// tries to cancel inside the window.
	PhoneCancellationGuidance string
}

// Orchestrator is the top-level entry point for booking use cases.
type Orchestrator struct {
	store       Store
	machine     *state.Machine
	assignments *assignment.Manager
	notifier    Notifier
	clock       domain.Clock
	cfg         Config
	logger      *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(store Store, machine *state.Machine, assignments *assignment.Manager, notifier Notifier, clock domain.Clock, cfg Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:       store,
		machine:     machine,
		assignments: assignments,
		notifier:    notifier,
		clock:       clock,
		cfg:         cfg,
		logger:      logger,
	}
}

// CreateRequest is a new booking submission. Enum fields are already parsed
// at the API boundary.
type CreateRequest struct {
	CustomerID     string
	ConsumerType   string
	FromLanguageID string
	Due            time.Time
	DurationMin    int
	Immediate      bool
	PhoneType      bool
	PhysicalType   bool
	Gender         domain.Gender
	Certification  domain.Certification
	Town           string
	Address        string
	Instructions   string
	CustomerEmail  string
	Reference      string
}

// CreateResult reports the stored booking.
type CreateResult struct {
	JobID     string
	Immediate bool
	Due       time.Time
}

// Create validates and stores a new job, then schedules the translator
// fan-out. Non-immediate jobs must name a language, a future due time and a
// duration; immediate jobs are due a fixed lead time from now and are
// always phone sessions.
func (o *Orchestrator) Create(ctx context.Context, req CreateRequest) (CreateResult, error) {
	now := o.clock.Now()

	if !req.Immediate {
		if req.FromLanguageID == "" {
			return CreateResult{}, domain.NewValidationError("from_language_id", "you must fill in all fields")
		}
		if req.Due.IsZero() {
			return CreateResult{}, domain.NewValidationError("due", "you must fill in all fields")
		}
		if req.DurationMin <= 0 {
			return CreateResult{}, domain.NewValidationError("duration", "you must fill in all fields")
		}
		if !req.Due.After(now) {
			return CreateResult{}, domain.NewValidationError("due", "can't create booking in the past")
		}
	}
	if !req.Immediate && !req.PhoneType && !req.PhysicalType {
		return CreateResult{}, domain.NewValidationError("customer_phone_type", "you must make a choice here")
	}

	due := req.Due
	phone := req.PhoneType
	if req.Immediate {
		due = now.Add(domain.ImmediateLeadTime)
		phone = true
	}

	expires := domain.WillExpireAt(due, now)
	job := &domain.Job{
		ID:             uuid.New().String(),
		CustomerID:     req.CustomerID,
		Status:         domain.StatusPending,
		Due:            due,
		FromLanguageID: req.FromLanguageID,
		Gender:         req.Gender,
		Certification:  req.Certification,
		JobType:        domain.JobTypeForConsumer(req.ConsumerType),
		Immediate:      req.Immediate,
		PhoneType:      phone,
		PhysicalType:   req.PhysicalType,
		DurationMin:    req.DurationMin,
		Town:           req.Town,
		Address:        req.Address,
		Instructions:   req.Instructions,
		CustomerEmail:  req.CustomerEmail,
		Reference:      req.Reference,
		WillExpireAt:   &expires,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := o.store.CreateJob(ctx, job); err != nil {
		return CreateResult{}, fmt.Errorf("failed to create job: %w", err)
	}

	o.logger.Info("booking created",
		slog.String("job_id", job.ID),
		slog.String("customer_id", job.CustomerID),
		slog.Bool("immediate", job.Immediate),
		slog.Time("due", job.Due),
	)

	effects := []state.Effect{{Kind: state.EffectFanOutTranslators}}
	if job.CustomerEmail != "" {
		effects = append(effects, state.Effect{Kind: state.EffectCreatedConfirm})
	}
	o.notifier.Apply(ctx, job, effects)

	return CreateResult{JobID: job.ID, Immediate: job.Immediate, Due: job.Due}, nil
}

// AcceptResult reports a successful acceptance.
type AcceptResult struct {
	JobID  string
	Status domain.Status
}

// Accept books the job for the translator. The status flip and the
// assignment insert are one transaction; concurrent acceptances of the same
// job resolve to exactly one winner, the rest get domain.ErrAlreadyAssigned.
// A translator with an overlapping active assignment gets
// domain.ErrAlreadyBooked.
func (o *Orchestrator) Accept(ctx context.Context, jobID, translatorID string) (AcceptResult, error) {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return AcceptResult{}, err
	}

	if _, err := o.assignments.Assign(ctx, job, translatorID); err != nil {
		return AcceptResult{}, err
	}
	job.Status = domain.StatusAssigned

	o.notifier.Apply(ctx, job, []state.Effect{
		{Kind: state.EffectAcceptConfirm},
		{Kind: state.EffectAcceptedPushCustomer},
	})

	return AcceptResult{JobID: job.ID, Status: job.Status}, nil
}

// UpdateRequest is an admin-side booking update. Zero-valued fields are
// left untouched; TargetStatus empty means no transition was requested.
type UpdateRequest struct {
	Due             *time.Time
	FromLanguageID  string
	TranslatorID    string
	TranslatorEmail string
	TargetStatus    domain.Status
	AdminComments   string
	SessionTime     string
	Reference       string
}

// UpdateResult distinguishes the possible outcomes of an update: applied
// transition, refused transition (reported, not an error), and which
// tracked fields changed.
type UpdateResult struct {
	StatusChanged     bool
	Refused           bool
	RefusedField      string
	TranslatorChanged bool
	DateChanged       bool
	LanguageChanged   bool
}

// Update applies an admin update: translator replacement, due/language
// moves and an optional status transition, persisted as one save. Change
// notifications only go out while the job is still in the future; a
// past-due job saves silently.
func (o *Orchestrator) Update(ctx context.Context, jobID string, req UpdateRequest) (UpdateResult, error) {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return UpdateResult{}, err
	}

	current, err := o.store.GetActiveAssignment(ctx, jobID)
	if err != nil && !errors.Is(err, domain.ErrAssignmentNotFound) {
		return UpdateResult{}, err
	}

	replace, err := o.assignments.Replace(ctx, current, req.TranslatorID, req.TranslatorEmail, job)
	if err != nil {
		return UpdateResult{}, err
	}

	changeEffects := o.machine.DetectChanges(job, state.FieldChanges{
		Due:               req.Due,
		FromLanguageID:    req.FromLanguageID,
		TranslatorChanged: replace.Changed,
		OldTranslatorID:   replace.OldTranslatorID,
		NewTranslatorID:   replace.NewTranslatorID,
	})

	res := UpdateResult{TranslatorChanged: replace.Changed}
	if req.Due != nil && !req.Due.Equal(job.Due) {
		job.Due = *req.Due
		res.DateChanged = true
	}
	if req.FromLanguageID != "" && req.FromLanguageID != job.FromLanguageID {
		job.FromLanguageID = req.FromLanguageID
		res.LanguageChanged = true
	}

	now := o.clock.Now()
	var transitionEffects []state.Effect
	if req.TargetStatus != "" {
		outcome := o.machine.Transition(job, state.Request{
			Target:            req.TargetStatus,
			AdminComments:     req.AdminComments,
			SessionTime:       req.SessionTime,
			TranslatorChanged: replace.Changed,
		})
		switch outcome.Kind {
		case state.Applied:
			res.StatusChanged = true
			job.Status = outcome.Changes.Status
			job.AdminComments = outcome.Changes.AdminComments
			if outcome.Changes.ResetCreatedAt {
				job.CreatedAt = now
				job.Reminder16Sent = false
				job.Reminder48Sent = false
			}
			if outcome.Changes.SetEnd {
				end := now
				job.EndAt = &end
				job.SessionTime = outcome.Changes.SessionTime
			}
			transitionEffects = outcome.Effects
		case state.Refused:
			res.Refused = true
			res.RefusedField = outcome.RefusedField
		}
	}

	if !res.StatusChanged {
		job.AdminComments = req.AdminComments
	}
	if req.Reference != "" {
		job.Reference = req.Reference
	}
	job.UpdatedAt = now

	if err := o.store.SaveJob(ctx, job); err != nil {
		return UpdateResult{}, fmt.Errorf("failed to save job: %w", err)
	}

	effects := transitionEffects
	if job.Due.After(now) {
		effects = append(effects, changeEffects...)
	}
	if len(effects) > 0 {
		o.notifier.Apply(ctx, job, effects)
	}
	return res, nil
}

// CancelResult reports the status the job ended in, or the guidance message
// when a translator's late cancellation was refused.
type CancelResult struct {
	Status  domain.Status
	Message string
}

// Cancel withdraws a booking. Customers may always cancel: at least 24
// hours out the job ends withdrawbefore24, closer than that
// withdrawafter24, and the active translator is notified. Translators may
// only cancel at least 24 hours out, which reopens the job for matching;
// inside the window the request is refused with a phone guidance message
// and no state changes.
func (o *Orchestrator) Cancel(ctx context.Context, jobID, userID string, isCustomer bool) (CancelResult, error) {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return CancelResult{}, err
	}

	active, err := o.store.GetActiveAssignment(ctx, jobID)
	if err != nil && !errors.Is(err, domain.ErrAssignmentNotFound) {
		return CancelResult{}, err
	}

	now := o.clock.Now()
	remaining := job.Due.Sub(now)

	if isCustomer {
		job.WithdrawAt = &now
		if remaining >= CancellationWindow {
			job.Status = domain.StatusWithdrawBefore24
		} else {
			job.Status = domain.StatusWithdrawAfter24
		}
		job.UpdatedAt = now
		if err := o.store.SaveJob(ctx, job); err != nil {
			return CancelResult{}, fmt.Errorf("failed to save job: %w", err)
		}

		o.logger.Info("booking cancelled by customer",
			slog.String("job_id", job.ID),
			slog.String("status", string(job.Status)),
		)

		if active.Active() {
			o.notifier.Apply(ctx, job, []state.Effect{{Kind: state.EffectCancelledPushTranslator}})
		}
		return CancelResult{Status: job.Status}, nil
	}

	if remaining < CancellationWindow {
		return CancelResult{Message: o.cfg.PhoneCancellationGuidance}, domain.ErrCancellationWindowClosed
	}

	// The translator backs out far enough ahead: put the job back on the
	// market, drop the assignment, then tell the customer.
	expires := domain.WillExpireAt(job.Due, now)
	job.Status = domain.StatusPending
	job.CreatedAt = now
	job.UpdatedAt = now
	job.WillExpireAt = &expires
	if err := o.store.SaveJob(ctx, job); err != nil {
		return CancelResult{}, fmt.Errorf("failed to save job: %w", err)
	}

	if active.Active() {
		if err := o.assignments.Cancel(ctx, active, now); err != nil {
			return CancelResult{}, err
		}
	}

	o.logger.Info("booking reopened after translator cancellation",
		slog.String("job_id", job.ID),
		slog.String("translator_id", userID),
	)

	o.notifier.Apply(ctx, job, []state.Effect{
		{Kind: state.EffectTranslatorCancelledPushCustomer},
		{Kind: state.EffectFanOutTranslators, Exclude: userID},
	})
	return CancelResult{Status: job.Status}, nil
}

// EndResult reports whether the session was closed by this call.
type EndResult struct {
	Completed   bool
	SessionTime string
}

// End closes a started session: stamps end_at and the elapsed session time,
// moves the job to completed, mails both parties their session summary and
// completes the active assignment. A job not in started is left untouched.
func (o *Orchestrator) End(ctx context.Context, jobID, byUserID string) (EndResult, error) {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return EndResult{}, err
	}
	if job.Status != domain.StatusStarted {
		return EndResult{}, nil
	}

	now := o.clock.Now()
	interval := domain.SessionInterval(job.Due, now)

	job.Status = domain.StatusCompleted
	job.EndAt = &now
	job.SessionTime = interval
	job.UpdatedAt = now
	if err := o.store.SaveJob(ctx, job); err != nil {
		return EndResult{}, fmt.Errorf("failed to save job: %w", err)
	}

	o.notifier.Apply(ctx, job, []state.Effect{{
		Kind:        state.EffectSessionSummary,
		SessionTime: domain.HumanSessionTime(interval),
	}})

	active, err := o.store.GetActiveAssignment(ctx, jobID)
	if err == nil {
		if err := o.assignments.Complete(ctx, active, byUserID, now); err != nil && !errors.Is(err, domain.ErrAssignmentNotFound) {
			return EndResult{}, err
		}
	} else if !errors.Is(err, domain.ErrAssignmentNotFound) {
		return EndResult{}, err
	}

	o.logger.Info("session ended",
		slog.String("job_id", job.ID),
		slog.String("session_time", interval),
	)
	return EndResult{Completed: true, SessionTime: interval}, nil
}

// NotCarriedOut records a customer no-show: the job ends in
// not_carried_out_customer and the active assignment is completed with the
// translator as the completer.
func (o *Orchestrator) NotCarriedOut(ctx context.Context, jobID string) error {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	now := o.clock.Now()
	job.Status = domain.StatusNotCarriedOutByUser
	job.EndAt = &now
	job.UpdatedAt = now
	if err := o.store.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	active, err := o.store.GetActiveAssignment(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrAssignmentNotFound) {
			return nil
		}
		return err
	}
	if err := o.assignments.Complete(ctx, active, active.TranslatorID, now); err != nil && !errors.Is(err, domain.ErrAssignmentNotFound) {
		return err
	}

	o.logger.Info("session marked not carried out",
		slog.String("job_id", job.ID),
	)
	return nil
}

// Reopen puts a withdrawn or timed-out booking back on the market. A job
// that never timed out is reset in place; a timed-out one is cloned into a
// fresh row referencing the original. Either way the original's active
// assignments are cancelled and the fan-out re-runs, with a will_expire_at
// recomputed from the reopen time.
func (o *Orchestrator) Reopen(ctx context.Context, jobID string) (string, error) {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}

	now := o.clock.Now()
	expires := domain.WillExpireAt(job.Due, now)

	reopened := job
	if job.Status != domain.StatusTimedOut {
		job.Status = domain.StatusPending
		job.CreatedAt = now
		job.UpdatedAt = now
		job.WillExpireAt = &expires
		if err := o.store.SaveJob(ctx, job); err != nil {
			return "", fmt.Errorf("failed to save job: %w", err)
		}
	} else {
		clone := *job
		clone.ID = uuid.New().String()
		clone.Status = domain.StatusPending
		clone.CreatedAt = now
		clone.UpdatedAt = now
		clone.WillExpireAt = &expires
		clone.Reminder16Sent = false
		clone.Reminder48Sent = false
		clone.EndAt = nil
		clone.WithdrawAt = nil
		clone.SessionTime = ""
		clone.AdminComments = fmt.Sprintf("This booking is a reopening of booking #%s", job.ID)
		if err := o.store.CreateJob(ctx, &clone); err != nil {
			return "", fmt.Errorf("failed to create reopened job: %w", err)
		}
		reopened = &clone
	}

	if err := o.store.CancelActiveAssignments(ctx, jobID, now); err != nil {
		return "", fmt.Errorf("failed to cancel assignments: %w", err)
	}

	o.logger.Info("booking reopened",
		slog.String("job_id", jobID),
		slog.String("reopened_job_id", reopened.ID),
	)

	o.notifier.Apply(ctx, reopened, []state.Effect{{Kind: state.EffectFanOutTranslators}})
	return reopened.ID, nil
}

// ExpireOverdue times out every pending job whose acceptance deadline has
// passed and pushes the expiry notice to its customer. Returns the number
// of jobs expired. Run periodically by the notifier service.
func (o *Orchestrator) ExpireOverdue(ctx context.Context) (int, error) {
	now := o.clock.Now()
	jobs, err := o.store.ExpiredPendingJobs(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired jobs: %w", err)
	}

	expired := 0
	for i := range jobs {
		job := &jobs[i]
		job.Status = domain.StatusTimedOut
		job.UpdatedAt = now
		if err := o.store.SaveJob(ctx, job); err != nil {
			o.logger.Error("failed to expire job",
				slog.String("job_id", job.ID),
				slog.Any("error", err),
			)
			continue
		}
		o.notifier.Apply(ctx, job, []state.Effect{{Kind: state.EffectExpiredPush}})
		expired++
	}

	if expired > 0 {
		o.logger.Info("pending bookings expired", slog.Int("count", expired))
	}
	return expired, nil
}
