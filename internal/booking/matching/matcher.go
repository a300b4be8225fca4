// Package matching computes which translators are qualified and available
// for a job. Matching is read-only: a Matcher never mutates anything and is
// safe to call from any number of goroutines.
package matching

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dtolk/booking-be/internal/booking/domain"
)

// Store is the slice of the job/assignment store the matcher reads from.
type Store interface {
	// Blacklist returns the translator ids excluded from the customer's jobs.
	Blacklist(ctx context.Context, customerID string) ([]string, error)

	// HasDeclined reports whether the translator previously declined the job
	// or otherwise cannot accept it.
	HasDeclined(ctx context.Context, jobID, translatorID string) (bool, error)

	// HasConflictingAssignment reports whether the translator holds an
	// active assignment whose session covers the given due instant.
	HasConflictingAssignment(ctx context.Context, translatorID string, due time.Time) (bool, error)
}

// Geography answers town-compatibility questions for physical sessions.
type Geography interface {
	TownsCompatible(ctx context.Context, customerID, translatorID string) (bool, error)
}

// Matcher filters candidate translators down to the eligible subset.
type Matcher struct {
	store  Store
	geo    Geography
	logger *slog.Logger
}

// New creates a Matcher.
func New(store Store, geo Geography, logger *slog.Logger) *Matcher {
	return &Matcher{store: store, geo: geo, logger: logger}
}

// Eligible returns the members of pool that pass every matching filter for
// the job. Candidates are assumed to be enabled translators; role filtering
// belongs to the caller that builds the pool.
func (m *Matcher) Eligible(ctx context.Context, job *domain.Job, pool []domain.UserMeta) ([]domain.UserMeta, error) {
	blacklist, err := m.store.Blacklist(ctx, job.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load blacklist: %w", err)
	}
	blocked := make(map[string]struct{}, len(blacklist))
	for _, id := range blacklist {
		blocked[id] = struct{}{}
	}

	accepted := job.Certification.AcceptedLevels()

	var eligible []domain.UserMeta
	for _, candidate := range pool {
		ok, err := m.eligibleOne(ctx, job, &candidate, blocked, accepted)
		if err != nil {
			return nil, err
		}
		if ok {
			eligible = append(eligible, candidate)
		}
	}
	return eligible, nil
}

func (m *Matcher) eligibleOne(ctx context.Context, job *domain.Job, c *domain.UserMeta, blocked map[string]struct{}, accepted []domain.TranslatorLevel) (bool, error) {
	if c.TranslatorType.JobType() != job.JobType {
		return false, nil
	}
	if !c.HasLanguage(job.FromLanguageID) {
		return false, nil
	}
	if job.Gender != domain.GenderNone && c.Gender != job.Gender {
		return false, nil
	}
	if !c.HasAnyLevel(accepted) {
		return false, nil
	}
	if _, found := blocked[c.UserID]; found {
		return false, nil
	}

	if job.PhysicalOnly() && job.SpecificTranslatorID != c.UserID {
		compatible, err := m.geo.TownsCompatible(ctx, job.CustomerID, c.UserID)
		if err != nil {
			return false, fmt.Errorf("town check failed: %w", err)
		}
		if !compatible {
			return false, nil
		}
	}

	if job.SpecificTranslatorID != "" {
		if job.SpecificTranslatorID != c.UserID {
			return false, nil
		}
		declined, err := m.store.HasDeclined(ctx, job.ID, c.UserID)
		if err != nil {
			return false, fmt.Errorf("decline check failed: %w", err)
		}
		if declined {
			m.logger.Debug("specific translator cannot accept job",
				slog.String("job_id", job.ID),
				slog.String("translator_id", c.UserID),
			)
			return false, nil
		}
	}

	conflict, err := m.store.HasConflictingAssignment(ctx, c.UserID, job.Due)
	if err != nil {
		return false, fmt.Errorf("conflict check failed: %w", err)
	}
	return !conflict, nil
}
