// Package notify resolves recipients and delivery preferences for booking
// events and drives the email/SMS/push channel ports. Dispatch always runs
// after the triggering store write has committed; a failure on one recipient
// is logged and never cancels the remaining sends.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dtolk/booking-be/internal/booking/domain"
	"github.com/dtolk/booking-be/internal/booking/matching"
	"github.com/dtolk/booking-be/internal/booking/state"
)

// AssignmentSource looks up a job's active assignment.
type AssignmentSource interface {
	GetActiveAssignment(ctx context.Context, jobID string) (*domain.Assignment, error)
}

// Config carries the dispatcher's delivery settings.
type Config struct {
	SMSFromNumber string
	Night         NightWindow
}

// Dispatcher fans booking events out to the affected parties.
type Dispatcher struct {
	mailer      Mailer
	sms         SMSSender
	push        Pusher
	users       Directory
	matcher     *matching.Matcher
	assignments AssignmentSource
	fanout      FanOutScheduler
	clock       domain.Clock
	cfg         Config
	logger      *slog.Logger
}

// NewDispatcher creates a Dispatcher. fanout may be the queue publisher (API
// service) or a direct executor (notifier service).
func NewDispatcher(mailer Mailer, sms SMSSender, push Pusher, users Directory, matcher *matching.Matcher, assignments AssignmentSource, fanout FanOutScheduler, clock domain.Clock, cfg Config, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		mailer:      mailer,
		sms:         sms,
		push:        push,
		users:       users,
		matcher:     matcher,
		assignments: assignments,
		fanout:      fanout,
		clock:       clock,
		cfg:         cfg,
		logger:      logger,
	}
}

// NotifyTranslators pushes the new-booking notice to every eligible
// translator except excludeID. Recipients are partitioned by preference:
// suppress-all drops them, suppress-emergency drops them for immediate jobs,
// suppress-nighttime during night hours routes them to the delayed batch.
// Returns the number of translators notified.
func (d *Dispatcher) NotifyTranslators(ctx context.Context, job *domain.Job, excludeID string) (int, error) {
	pool, err := d.users.ActiveTranslators(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load translator pool: %w", err)
	}

	candidates := pool[:0:0]
	for _, t := range pool {
		if t.UserID != excludeID {
			candidates = append(candidates, t)
		}
	}

	eligible, err := d.matcher.Eligible(ctx, job, candidates)
	if err != nil {
		return 0, fmt.Errorf("matching failed: %w", err)
	}

	night := d.cfg.Night.Contains(d.clock.Now())

	var immediate, delayed []domain.UserMeta
	for _, t := range eligible {
		switch {
		case t.SuppressAll:
			continue
		case job.Immediate && t.SuppressEmergency:
			continue
		case night && t.SuppressNighttime:
			delayed = append(delayed, t)
		default:
			immediate = append(immediate, t)
		}
	}

	text := d.newBookingText(ctx, job)
	payload := map[string]string{
		"notification_type": "new_booking",
		"job_id":            job.ID,
	}

	d.pushBatch(ctx, immediate, job, payload, text, false)
	d.pushBatch(ctx, delayed, job, payload, text, true)

	d.logger.Info("translator fan-out dispatched",
		slog.String("job_id", job.ID),
		slog.Int("immediate", len(immediate)),
		slog.Int("delayed", len(delayed)),
	)
	return len(immediate) + len(delayed), nil
}

func (d *Dispatcher) newBookingText(ctx context.Context, job *domain.Job) string {
	lang := d.languageName(ctx, job.FromLanguageID)
	dur := domain.FormatMinutes(job.DurationMin)
	if job.Immediate {
		return fmt.Sprintf("New emergency booking for %s interpreter, %s", lang, dur)
	}
	return fmt.Sprintf("New booking for %s interpreter, %s, %s", lang, dur, job.Due.Format("2006-01-02 15:04"))
}

// SMSTranslators texts the new-booking notice to every eligible translator.
// The physical template is used when the session is on-site only. Returns
// the number of messages attempted.
func (d *Dispatcher) SMSTranslators(ctx context.Context, job *domain.Job) (int, error) {
	pool, err := d.users.ActiveTranslators(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load translator pool: %w", err)
	}
	eligible, err := d.matcher.Eligible(ctx, job, pool)
	if err != nil {
		return 0, fmt.Errorf("matching failed: %w", err)
	}

	date := job.Due.Format("02.01.2006")
	clock := job.Due.Format("15:04")
	dur := domain.FormatMinutes(job.DurationMin)

	var body string
	if job.PhysicalOnly() {
		body = fmt.Sprintf("New on-site booking %s %s in %s, %s. Booking ref %s.", date, clock, job.Town, dur, job.ID)
	} else {
		body = fmt.Sprintf("New phone booking %s %s, %s. Booking ref %s.", date, clock, dur, job.ID)
	}

	sent := 0
	for _, t := range eligible {
		status, err := d.sms.Send(ctx, d.cfg.SMSFromNumber, t.Mobile, body)
		if err != nil {
			d.logger.Error("SMS delivery failed",
				slog.String("job_id", job.ID),
				slog.String("translator_id", t.UserID),
				slog.Any("error", err),
			)
			continue
		}
		d.logger.Info("SMS sent",
			slog.String("job_id", job.ID),
			slog.String("translator_id", t.UserID),
			slog.String("status", status),
		)
		sent++
	}
	return sent, nil
}

// Apply executes the queued side effects of a committed transition. Each
// effect resolves its own recipients; failures are isolated per recipient.
func (d *Dispatcher) Apply(ctx context.Context, job *domain.Job, effects []state.Effect) {
	for _, e := range effects {
		d.apply(ctx, job, e)
	}
}

func (d *Dispatcher) apply(ctx context.Context, job *domain.Job, e state.Effect) {
	switch e.Kind {
	case state.EffectFanOutTranslators:
		if err := d.fanout.Schedule(ctx, job.ID, e.Exclude); err != nil {
			d.logger.Error("failed to schedule translator fan-out",
				slog.String("job_id", job.ID),
				slog.Any("error", err),
			)
		}

	case state.EffectReopenConfirm:
		lang := d.languageName(ctx, job.FromLanguageID)
		subject := fmt.Sprintf("Your %s interpreter booking #%s has been reopened", lang, job.ID)
		d.mailCustomer(ctx, job, subject, "job-change-status-to-customer", nil)

	case state.EffectAcceptConfirm:
		subject := fmt.Sprintf("Confirmation - interpreter accepted your booking #%s", job.ID)
		d.mailCustomer(ctx, job, subject, "job-accepted", nil)

	case state.EffectAcceptConfirmTranslator:
		subject := fmt.Sprintf("Confirmation - interpreter accepted your booking #%s", job.ID)
		d.mailActiveTranslator(ctx, job, subject, "job-changed-translator-new-translator", nil)

	case state.EffectSessionReminders:
		d.sessionReminders(ctx, job)

	case state.EffectCancelConfirm:
		subject := fmt.Sprintf("Cancellation of booking #%s", job.ID)
		d.mailCustomer(ctx, job, subject, "status-changed-from-pending-or-assigned-customer", nil)

	case state.EffectWithdrawNotices:
		subject := fmt.Sprintf("Information about ended interpretation for booking #%s", job.ID)
		d.mailCustomer(ctx, job, subject, "status-changed-from-pending-or-assigned-customer", nil)
		d.mailActiveTranslator(ctx, job, subject, "job-cancel-translator", nil)

	case state.EffectSessionSummary:
		subject := fmt.Sprintf("Information about ended interpretation for booking #%s", job.ID)
		d.mailCustomer(ctx, job, subject, "session-ended", map[string]any{
			"session_time": e.SessionTime,
			"for_text":     "invoice",
		})
		d.mailActiveTranslator(ctx, job, subject, "session-ended", map[string]any{
			"session_time": e.SessionTime,
			"for_text":     "payroll",
		})

	case state.EffectDateChanged:
		subject := fmt.Sprintf("Notice about changed interpreter booking #%s", job.ID)
		data := map[string]any{"old_time": e.OldValue}
		d.mailCustomer(ctx, job, subject, "job-changed-date", data)
		d.mailActiveTranslator(ctx, job, subject, "job-changed-date", data)

	case state.EffectLanguageChanged:
		subject := fmt.Sprintf("Notice about changed interpreter booking #%s", job.ID)
		data := map[string]any{"old_lang": d.languageName(ctx, e.OldValue)}
		d.mailCustomer(ctx, job, subject, "job-changed-lang", data)
		d.mailActiveTranslator(ctx, job, subject, "job-changed-lang", data)

	case state.EffectTranslatorChanged:
		d.translatorChanged(ctx, job, e.OldTranslatorID, e.NewTranslatorID)

	case state.EffectCancelledPushTranslator:
		d.cancelledPushTranslator(ctx, job)

	case state.EffectTranslatorCancelledPushCustomer:
		d.translatorCancelledPushCustomer(ctx, job)

	case state.EffectExpiredPush:
		d.NotifyExpired(ctx, job)

	case state.EffectCreatedConfirm:
		subject := fmt.Sprintf("We have received your interpreter booking. Booking ref: #%s", job.ID)
		d.mailCustomer(ctx, job, subject, "job-created", nil)

	case state.EffectAcceptedPushCustomer:
		d.acceptedPushCustomer(ctx, job)
	}
}

// translatorChanged mails the customer, the outgoing translator and the
// incoming one about a replacement.
func (d *Dispatcher) translatorChanged(ctx context.Context, job *domain.Job, oldID, newID string) {
	subject := fmt.Sprintf("Notice about interpreter assignment for booking #%s", job.ID)
	d.mailCustomer(ctx, job, subject, "job-changed-translator-customer", nil)
	if oldID != "" {
		d.mailUser(ctx, job, oldID, subject, "job-changed-translator-old-translator", nil)
	}
	if newID != "" {
		d.mailUser(ctx, job, newID, subject, "job-changed-translator-new-translator", nil)
	}
}

// sessionReminders pushes the session-start reminder to the customer and
// the active translator.
func (d *Dispatcher) sessionReminders(ctx context.Context, job *domain.Job) {
	lang := d.languageName(ctx, job.FromLanguageID)
	where := "by phone"
	if job.PhysicalType {
		where = "on site in " + job.Town
	}
	text := fmt.Sprintf(
		"Reminder: you have a %s interpretation (%s) at %s on %s, %s. Good luck and remember to leave feedback afterwards!",
		lang, where, job.Due.Format("15:04"), job.Due.Format("2006-01-02"),
		domain.FormatMinutes(job.DurationMin),
	)
	payload := map[string]string{
		"notification_type": "session_start_remind",
		"job_id":            job.ID,
	}

	d.pushUser(ctx, job, job.CustomerID, payload, text)
	if tr := d.activeTranslator(ctx, job); tr != nil {
		d.pushUser(ctx, job, tr.UserID, payload, text)
	}
}

// cancelledPushTranslator tells the active translator the customer
// withdrew.
func (d *Dispatcher) cancelledPushTranslator(ctx context.Context, job *domain.Job) {
	tr := d.activeTranslator(ctx, job)
	if tr == nil {
		return
	}
	lang := d.languageName(ctx, job.FromLanguageID)
	text := fmt.Sprintf(
		"The customer has cancelled the booking for %s interpreter, %s, %s. Please check your earlier bookings for details.",
		lang, domain.FormatMinutes(job.DurationMin), job.Due.Format("2006-01-02 15:04"),
	)
	d.pushUser(ctx, job, tr.UserID, map[string]string{
		"notification_type": "job_cancelled",
		"job_id":            job.ID,
	}, text)
}

// translatorCancelledPushCustomer tells the customer their translator
// backed out and a replacement search started.
func (d *Dispatcher) translatorCancelledPushCustomer(ctx context.Context, job *domain.Job) {
	lang := d.languageName(ctx, job.FromLanguageID)
	text := fmt.Sprintf(
		"Your %s interpreter, %s %s, has cancelled. We are now looking for a replacement. Thank you.",
		lang, domain.FormatMinutes(job.DurationMin), job.Due.Format("2006-01-02 15:04"),
	)
	d.pushUser(ctx, job, job.CustomerID, map[string]string{
		"notification_type": "job_cancelled",
		"job_id":            job.ID,
	}, text)
}

// acceptedPushCustomer tells the customer a translator accepted.
func (d *Dispatcher) acceptedPushCustomer(ctx context.Context, job *domain.Job) {
	lang := d.languageName(ctx, job.FromLanguageID)
	text := fmt.Sprintf(
		"Your booking for a %s interpreter, %s, %s has been accepted. Please open the app for the interpreter's details.",
		lang, domain.FormatMinutes(job.DurationMin), job.Due.Format("2006-01-02 15:04"),
	)
	d.pushUser(ctx, job, job.CustomerID, map[string]string{
		"notification_type": "job_accepted",
		"job_id":            job.ID,
	}, text)
}

// NotifyExpired pushes the no-translator-accepted notice to the customer of
// a timed-out pending booking.
func (d *Dispatcher) NotifyExpired(ctx context.Context, job *domain.Job) {
	lang := d.languageName(ctx, job.FromLanguageID)
	text := fmt.Sprintf(
		"Unfortunately no interpreter accepted your booking (%s, %s, %s). Please try booking a different time.",
		lang, domain.FormatMinutes(job.DurationMin), job.Due.Format("2006-01-02 15:04"),
	)
	d.pushUser(ctx, job, job.CustomerID, map[string]string{
		"notification_type": "job_expired",
		"job_id":            job.ID,
	}, text)
}

func (d *Dispatcher) pushBatch(ctx context.Context, recipients []domain.UserMeta, job *domain.Job, payload map[string]string, text string, delayed bool) {
	if len(recipients) == 0 {
		return
	}
	if err := d.push.Send(ctx, recipients, job.ID, payload, text, delayed); err != nil {
		d.logger.Error("push batch failed",
			slog.String("job_id", job.ID),
			slog.Int("recipients", len(recipients)),
			slog.Bool("delayed", delayed),
			slog.Any("error", err),
		)
	}
}

// pushUser pushes to one user, honoring suppress-all and routing
// nighttime-suppressed users to the delayed window.
func (d *Dispatcher) pushUser(ctx context.Context, job *domain.Job, userID string, payload map[string]string, text string) {
	meta, err := d.users.UserMeta(ctx, userID)
	if err != nil {
		d.logger.Error("push recipient lookup failed",
			slog.String("job_id", job.ID),
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		return
	}
	if meta.SuppressAll {
		return
	}
	delayed := meta.SuppressNighttime && d.cfg.Night.Contains(d.clock.Now())
	d.pushBatch(ctx, []domain.UserMeta{*meta}, job, payload, text, delayed)
}

// mailCustomer mails the job's customer, preferring the booking's override
// email when set.
func (d *Dispatcher) mailCustomer(ctx context.Context, job *domain.Job, subject, templateKey string, data map[string]any) {
	meta, err := d.users.UserMeta(ctx, job.CustomerID)
	if err != nil {
		d.logger.Error("customer lookup failed",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
		return
	}
	to := meta.Email
	if job.CustomerEmail != "" {
		to = job.CustomerEmail
	}
	d.send(ctx, job, to, meta.Name, subject, templateKey, data)
}

// mailActiveTranslator mails the job's active translator, if any.
func (d *Dispatcher) mailActiveTranslator(ctx context.Context, job *domain.Job, subject, templateKey string, data map[string]any) {
	tr := d.activeTranslator(ctx, job)
	if tr == nil {
		return
	}
	d.send(ctx, job, tr.Email, tr.Name, subject, templateKey, data)
}

func (d *Dispatcher) mailUser(ctx context.Context, job *domain.Job, userID, subject, templateKey string, data map[string]any) {
	meta, err := d.users.UserMeta(ctx, userID)
	if err != nil {
		d.logger.Error("mail recipient lookup failed",
			slog.String("job_id", job.ID),
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		return
	}
	d.send(ctx, job, meta.Email, meta.Name, subject, templateKey, data)
}

func (d *Dispatcher) send(ctx context.Context, job *domain.Job, to, name, subject, templateKey string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["job_id"] = job.ID
	if err := d.mailer.Send(ctx, to, name, subject, templateKey, data); err != nil {
		d.logger.Error("email delivery failed",
			slog.String("job_id", job.ID),
			slog.String("to", to),
			slog.String("template", templateKey),
			slog.Any("error", err),
		)
	}
}

func (d *Dispatcher) activeTranslator(ctx context.Context, job *domain.Job) *domain.UserMeta {
	a, err := d.assignments.GetActiveAssignment(ctx, job.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrAssignmentNotFound) {
			d.logger.Error("active assignment lookup failed",
				slog.String("job_id", job.ID),
				slog.Any("error", err),
			)
		}
		return nil
	}
	if a.CompletedAt != nil {
		return nil
	}
	meta, err := d.users.UserMeta(ctx, a.TranslatorID)
	if err != nil {
		d.logger.Error("translator lookup failed",
			slog.String("job_id", job.ID),
			slog.String("translator_id", a.TranslatorID),
			slog.Any("error", err),
		)
		return nil
	}
	return meta
}

func (d *Dispatcher) languageName(ctx context.Context, langID string) string {
	name, err := d.users.LanguageName(ctx, langID)
	if err != nil {
		return langID
	}
	return name
}
