// Package state owns job status transitions. A Machine evaluates a
// requested transition against the job's current status and returns a typed
// outcome: unchanged, refused with the offending field, or applied with the
// field mutations to persist and the side effects to run after commit.
// Deciding and executing are kept apart so the caller can write the store
// first and fan out notifications best-effort afterwards.
package state

import (
	"log/slog"
	"strings"
	"time"

	"github.com/dtolk/booking-be/internal/booking/domain"
)

// OutcomeKind classifies the result of a transition request.
type OutcomeKind int

const (
	// Unchanged means the requested status equals the current one; nothing
	// was evaluated.
	Unchanged OutcomeKind = iota

	// Refused means a precondition of the current status's handler failed.
	// No mutation may be persisted.
	Refused

	// Applied means the transition is valid; Changes must be persisted and
	// Effects dispatched after the write commits.
	Applied
)

// Changes holds the field mutations of an applied transition.
type Changes struct {
	Status        domain.Status
	AdminComments string

	// ResetCreatedAt re-stamps created_at, used when a timed-out job
	// re-enters pending.
	ResetCreatedAt bool

	// SetEnd stamps end_at and session_time when a started job completes.
	SetEnd      bool
	SessionTime string
}

// Outcome is the typed result of evaluating a transition request.
type Outcome struct {
	Kind OutcomeKind

	// RefusedField names the missing or invalid field when Kind == Refused.
	RefusedField string

	Changes Changes
	Effects []Effect
}

func refused(field string) Outcome {
	return Outcome{Kind: Refused, RefusedField: field}
}

// Request is one transition request against a job's current state.
type Request struct {
	Target        domain.Status
	AdminComments string

	// SessionTime accompanies started→completed, formatted H:MM:SS.
	SessionTime string

	// TranslatorChanged reports whether this update also replaced the
	// translator; pending→assigned requires it.
	TranslatorChanged bool
}

// Machine evaluates transitions.
type Machine struct {
	logger *slog.Logger
}

// NewMachine creates a Machine.
func NewMachine(logger *slog.Logger) *Machine {
	return &Machine{logger: logger}
}

// Transition evaluates req against the job's current status. The handler is
// keyed by the current status, not the target: each origin state decides
// which targets it permits and which side effects they carry.
func (m *Machine) Transition(job *domain.Job, req Request) Outcome {
	if req.Target == job.Status {
		return Outcome{Kind: Unchanged}
	}

	var out Outcome
	switch job.Status {
	case domain.StatusTimedOut:
		out = m.fromTimedOut(job, req)
	case domain.StatusCompleted:
		out = m.fromCompleted(req)
	case domain.StatusStarted:
		out = m.fromStarted(req)
	case domain.StatusPending:
		out = m.fromPending(req)
	case domain.StatusWithdrawAfter24:
		out = m.fromWithdrawAfter24(req)
	case domain.StatusAssigned:
		out = m.fromAssigned(req)
	default:
		// withdrawbefore24 and not_carried_out_customer accept no
		// transitions.
		out = refused("status")
	}

	if out.Kind == Applied {
		m.logger.Info("job status transition",
			slog.String("job_id", job.ID),
			slog.String("old_status", string(job.Status)),
			slog.String("new_status", string(out.Changes.Status)),
		)
	}
	return out
}

// fromTimedOut reopens the job or confirms a late acceptance. No admin
// comment is required from this state.
func (m *Machine) fromTimedOut(job *domain.Job, req Request) Outcome {
	if req.Target == domain.StatusPending {
		return Outcome{
			Kind: Applied,
			Changes: Changes{
				Status:         domain.StatusPending,
				AdminComments:  req.AdminComments,
				ResetCreatedAt: true,
			},
			Effects: []Effect{
				{Kind: EffectReopenConfirm},
				{Kind: EffectFanOutTranslators},
			},
		}
	}
	if req.TranslatorChanged {
		return Outcome{
			Kind:    Applied,
			Changes: Changes{Status: req.Target, AdminComments: req.AdminComments},
			Effects: []Effect{{Kind: EffectAcceptConfirm}},
		}
	}
	return refused("translator")
}

// fromCompleted allows any target, but moving a completed job to timedout
// needs a justifying admin comment.
func (m *Machine) fromCompleted(req Request) Outcome {
	if req.Target == domain.StatusTimedOut && strings.TrimSpace(req.AdminComments) == "" {
		return refused("admin_comments")
	}
	return Outcome{
		Kind:    Applied,
		Changes: Changes{Status: req.Target, AdminComments: req.AdminComments},
	}
}

// fromStarted always needs an admin comment; completing additionally needs
// the session duration and queues the session-summary mail pair.
func (m *Machine) fromStarted(req Request) Outcome {
	if strings.TrimSpace(req.AdminComments) == "" {
		return refused("admin_comments")
	}
	if req.Target != domain.StatusCompleted {
		return Outcome{
			Kind:    Applied,
			Changes: Changes{Status: req.Target, AdminComments: req.AdminComments},
		}
	}
	if strings.TrimSpace(req.SessionTime) == "" {
		return refused("session_time")
	}
	return Outcome{
		Kind: Applied,
		Changes: Changes{
			Status:        domain.StatusCompleted,
			AdminComments: req.AdminComments,
			SetEnd:        true,
			SessionTime:   req.SessionTime,
		},
		Effects: []Effect{{
			Kind:        EffectSessionSummary,
			SessionTime: domain.HumanSessionTime(req.SessionTime),
		}},
	}
}

// fromPending assigns when the translator changed, otherwise treats the
// move as a cancellation-style transition.
func (m *Machine) fromPending(req Request) Outcome {
	if req.Target == domain.StatusAssigned && req.TranslatorChanged {
		return Outcome{
			Kind:    Applied,
			Changes: Changes{Status: domain.StatusAssigned, AdminComments: req.AdminComments},
			Effects: []Effect{
				{Kind: EffectAcceptConfirm},
				{Kind: EffectAcceptConfirmTranslator},
				{Kind: EffectSessionReminders},
			},
		}
	}
	if req.Target == domain.StatusTimedOut && strings.TrimSpace(req.AdminComments) == "" {
		return refused("admin_comments")
	}
	return Outcome{
		Kind:    Applied,
		Changes: Changes{Status: req.Target, AdminComments: req.AdminComments},
		Effects: []Effect{{Kind: EffectCancelConfirm}},
	}
}

// fromWithdrawAfter24 only permits timedout, and only with a comment.
func (m *Machine) fromWithdrawAfter24(req Request) Outcome {
	if req.Target != domain.StatusTimedOut {
		return refused("status")
	}
	if strings.TrimSpace(req.AdminComments) == "" {
		return refused("admin_comments")
	}
	return Outcome{
		Kind:    Applied,
		Changes: Changes{Status: domain.StatusTimedOut, AdminComments: req.AdminComments},
	}
}

// fromAssigned permits the two withdraw exits and timedout. Timing out an
// assigned job requires a comment; withdraw exits queue cancellation mails
// for both parties.
func (m *Machine) fromAssigned(req Request) Outcome {
	switch req.Target {
	case domain.StatusWithdrawBefore24, domain.StatusWithdrawAfter24:
		return Outcome{
			Kind:    Applied,
			Changes: Changes{Status: req.Target, AdminComments: req.AdminComments},
			Effects: []Effect{{Kind: EffectWithdrawNotices}},
		}
	case domain.StatusTimedOut:
		if strings.TrimSpace(req.AdminComments) == "" {
			return refused("admin_comments")
		}
		return Outcome{
			Kind:    Applied,
			Changes: Changes{Status: domain.StatusTimedOut, AdminComments: req.AdminComments},
		}
	}
	return refused("status")
}

// FieldChanges compares a job against the updated due time, language and
// translator of an update call and returns the change-notification effects.
// The caller persists the new values regardless; the effects are dispatched
// only while the job's due time is still in the future.
type FieldChanges struct {
	Due            *time.Time
	FromLanguageID string

	TranslatorChanged bool
	OldTranslatorID   string
	NewTranslatorID   string
}

// DetectChanges logs and collects per-field change effects for an update.
func (m *Machine) DetectChanges(job *domain.Job, upd FieldChanges) []Effect {
	var effects []Effect

	if upd.Due != nil && !upd.Due.Equal(job.Due) {
		m.logger.Info("job due changed",
			slog.String("job_id", job.ID),
			slog.Time("old_due", job.Due),
			slog.Time("new_due", *upd.Due),
		)
		effects = append(effects, Effect{
			Kind:     EffectDateChanged,
			OldValue: job.Due.Format(time.RFC3339),
		})
	}

	if upd.FromLanguageID != "" && upd.FromLanguageID != job.FromLanguageID {
		m.logger.Info("job language changed",
			slog.String("job_id", job.ID),
			slog.String("old_lang", job.FromLanguageID),
			slog.String("new_lang", upd.FromLanguageID),
		)
		effects = append(effects, Effect{
			Kind:     EffectLanguageChanged,
			OldValue: job.FromLanguageID,
		})
	}

	if upd.TranslatorChanged {
		m.logger.Info("job translator changed",
			slog.String("job_id", job.ID),
			slog.String("old_translator", upd.OldTranslatorID),
			slog.String("new_translator", upd.NewTranslatorID),
		)
		effects = append(effects, Effect{
			Kind:            EffectTranslatorChanged,
			OldTranslatorID: upd.OldTranslatorID,
			NewTranslatorID: upd.NewTranslatorID,
		})
	}

	return effects
}
