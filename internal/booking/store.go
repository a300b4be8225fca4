package booking

import (
	"context"
	"time"

	"github.com/dtolk/booking-be/internal/booking/domain"
)

// Store is the single source of truth for jobs, assignments and user
// metadata. Implementations must honor the atomicity contract of
// AssignTranslator: the status flip and the assignment insert commit
// together or not at all, and exactly one of N concurrent calls for the
// same pending job succeeds.
//
// No caller may treat an in-process copy of a job as authoritative across
// calls; every mutation re-reads current state through this interface.
type Store interface {
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	CreateJob(ctx context.Context, job *domain.Job) error
	SaveJob(ctx context.Context, job *domain.Job) error

	// ExpiredPendingJobs returns pending jobs whose will_expire_at has
	// passed, excluding jobs flagged ignore_expired.
	ExpiredPendingJobs(ctx context.Context, now time.Time) ([]domain.Job, error)

	// GetActiveAssignment returns the job's assignment with cancel_at
	// null, or domain.ErrAssignmentNotFound.
	GetActiveAssignment(ctx context.Context, jobID string) (*domain.Assignment, error)
	CreateAssignment(ctx context.Context, a *domain.Assignment) error
	CancelAssignment(ctx context.Context, id string, at time.Time) error
	CompleteAssignment(ctx context.Context, id, completedBy string, at time.Time) error

	// CancelActiveAssignments cancels every active assignment of the job.
	CancelActiveAssignments(ctx context.Context, jobID string, at time.Time) error

	// AssignTranslator is the atomic accept: pending→assigned plus insert,
	// or domain.ErrAlreadyAssigned.
	AssignTranslator(ctx context.Context, jobID, translatorID string, at time.Time) (*domain.Assignment, error)

	// HasConflictingAssignment reports an active assignment of the
	// translator whose session covers the due instant.
	HasConflictingAssignment(ctx context.Context, translatorID string, due time.Time) (bool, error)

	// Blacklist returns translator ids excluded from the customer's jobs.
	Blacklist(ctx context.Context, customerID string) ([]string, error)

	// HasDeclined reports whether the translator previously declined the
	// job.
	HasDeclined(ctx context.Context, jobID, translatorID string) (bool, error)

	// UserMeta returns a user's profile, or domain.ErrUserNotFound.
	UserMeta(ctx context.Context, userID string) (*domain.UserMeta, error)

	// UserIDByEmail resolves an email, or domain.ErrUserNotFound.
	UserIDByEmail(ctx context.Context, email string) (string, error)
}
