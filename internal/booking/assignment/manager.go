// Package assignment owns the translator-to-job relation: creation on
// acceptance, replacement, completion and cancellation. For any job at most
// one assignment is active (cancel_at null) at a time; the store enforces
// the atomicity of acceptance.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dtolk/booking-be/internal/booking/domain"
)

// Store is the slice of the job/assignment store the manager mutates.
type Store interface {
	// GetActiveAssignment returns the job's active assignment, or
	// domain.ErrAssignmentNotFound when none exists.
	GetActiveAssignment(ctx context.Context, jobID string) (*domain.Assignment, error)

	// AssignTranslator atomically flips the job from pending to assigned
	// and inserts the assignment row. It returns domain.ErrAlreadyAssigned
	// when the job is no longer pending; exactly one of N concurrent
	// acceptance attempts succeeds.
	AssignTranslator(ctx context.Context, jobID, translatorID string, at time.Time) (*domain.Assignment, error)

	// HasConflictingAssignment reports an active assignment of the
	// translator whose session covers the due instant.
	HasConflictingAssignment(ctx context.Context, translatorID string, due time.Time) (bool, error)

	CreateAssignment(ctx context.Context, a *domain.Assignment) error
	CancelAssignment(ctx context.Context, id string, at time.Time) error
	CompleteAssignment(ctx context.Context, id, completedBy string, at time.Time) error

	// UserIDByEmail resolves an email to a user id, or
	// domain.ErrUserNotFound.
	UserIDByEmail(ctx context.Context, email string) (string, error)
}

// Manager coordinates assignment lifecycle against the store.
type Manager struct {
	store  Store
	clock  domain.Clock
	logger *slog.Logger
}

// NewManager creates a Manager.
func NewManager(store Store, clock domain.Clock, logger *slog.Logger) *Manager {
	return &Manager{store: store, clock: clock, logger: logger}
}

// Assign accepts the job for the translator. It fails with
// domain.ErrAlreadyBooked when the translator has a time conflict and with
// domain.ErrAlreadyAssigned when another acceptance won the race.
func (m *Manager) Assign(ctx context.Context, job *domain.Job, translatorID string) (*domain.Assignment, error) {
	conflict, err := m.store.HasConflictingAssignment(ctx, translatorID, job.Due)
	if err != nil {
		return nil, fmt.Errorf("conflict check failed: %w", err)
	}
	if conflict {
		return nil, domain.ErrAlreadyBooked
	}

	if job.Status != domain.StatusPending {
		return nil, domain.ErrAlreadyAssigned
	}

	a, err := m.store.AssignTranslator(ctx, job.ID, translatorID, m.clock.Now())
	if err != nil {
		return nil, err
	}

	m.logger.Info("translator assigned",
		slog.String("job_id", job.ID),
		slog.String("translator_id", translatorID),
	)
	return a, nil
}

// ReplaceResult reports the outcome of a replacement attempt.
type ReplaceResult struct {
	Changed         bool
	OldTranslatorID string
	NewTranslatorID string
	NewAssignment   *domain.Assignment
}

// Replace swaps the job's translator. newEmail, when set, is resolved to an
// id first. The current assignment's fields are cloned into a fresh active
// row for the new translator and the prior row is cancelled; with no current
// assignment and a concrete new translator, a fresh assignment is created
// directly. No effective change reports Changed=false.
func (m *Manager) Replace(ctx context.Context, current *domain.Assignment, newID, newEmail string, job *domain.Job) (ReplaceResult, error) {
	if current == nil && newID == "" && newEmail == "" {
		return ReplaceResult{}, nil
	}

	if newEmail != "" {
		id, err := m.store.UserIDByEmail(ctx, newEmail)
		if err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				return ReplaceResult{}, domain.NewValidationError("translator_email", "no user with that email")
			}
			return ReplaceResult{}, fmt.Errorf("failed to resolve translator email: %w", err)
		}
		newID = id
	}

	now := m.clock.Now()

	switch {
	case current != nil && (newID != "" && current.TranslatorID != newID):
		replacement := &domain.Assignment{
			JobID:        current.JobID,
			TranslatorID: newID,
			CreatedAt:    now,
		}
		if err := m.store.CreateAssignment(ctx, replacement); err != nil {
			return ReplaceResult{}, fmt.Errorf("failed to create replacement assignment: %w", err)
		}
		if err := m.store.CancelAssignment(ctx, current.ID, now); err != nil {
			return ReplaceResult{}, fmt.Errorf("failed to cancel prior assignment: %w", err)
		}
		m.logger.Info("translator replaced",
			slog.String("job_id", job.ID),
			slog.String("old_translator", current.TranslatorID),
			slog.String("new_translator", newID),
		)
		return ReplaceResult{
			Changed:         true,
			OldTranslatorID: current.TranslatorID,
			NewTranslatorID: newID,
			NewAssignment:   replacement,
		}, nil

	case current == nil && newID != "":
		fresh := &domain.Assignment{
			JobID:        job.ID,
			TranslatorID: newID,
			CreatedAt:    now,
		}
		if err := m.store.CreateAssignment(ctx, fresh); err != nil {
			return ReplaceResult{}, fmt.Errorf("failed to create assignment: %w", err)
		}
		m.logger.Info("translator set on unassigned job",
			slog.String("job_id", job.ID),
			slog.String("new_translator", newID),
		)
		return ReplaceResult{
			Changed:         true,
			NewTranslatorID: newID,
			NewAssignment:   fresh,
		}, nil
	}

	return ReplaceResult{}, nil
}

// Complete stamps the assignment finished. Only the active, not yet
// completed assignment of a job may be completed.
func (m *Manager) Complete(ctx context.Context, a *domain.Assignment, completedBy string, at time.Time) error {
	if a == nil || a.CancelAt != nil || a.CompletedAt != nil {
		return domain.ErrAssignmentNotFound
	}
	if err := m.store.CompleteAssignment(ctx, a.ID, completedBy, at); err != nil {
		return fmt.Errorf("failed to complete assignment: %w", err)
	}
	return nil
}

// Cancel stamps cancel_at; used on replacement and on job cancellation.
func (m *Manager) Cancel(ctx context.Context, a *domain.Assignment, at time.Time) error {
	if a == nil {
		return domain.ErrAssignmentNotFound
	}
	if err := m.store.CancelAssignment(ctx, a.ID, at); err != nil {
		return fmt.Errorf("failed to cancel assignment: %w", err)
	}
	return nil
}
