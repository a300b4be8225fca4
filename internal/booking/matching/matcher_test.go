package matching

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtolk/booking-be/internal/booking/domain"
)

type fakeStore struct {
	blacklist []string
	declined  map[string]bool
	conflicts map[string]bool
}

func (f *fakeStore) Blacklist(ctx context.Context, customerID string) ([]string, error) {
	return f.blacklist, nil
}

func (f *fakeStore) HasDeclined(ctx context.Context, jobID, translatorID string) (bool, error) {
	return f.declined[translatorID], nil
}

func (f *fakeStore) HasConflictingAssignment(ctx context.Context, translatorID string, due time.Time) (bool, error) {
	return f.conflicts[translatorID], nil
}

type fakeGeo struct {
	incompatible map[string]bool
}

func (f *fakeGeo) TownsCompatible(ctx context.Context, customerID, translatorID string) (bool, error) {
	return !f.incompatible[translatorID], nil
}

func paidJob() *domain.Job {
	return &domain.Job{
		ID:             "job-1",
		CustomerID:     "cust-1",
		Status:         domain.StatusPending,
		Due:            time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC),
		FromLanguageID: "lang-sv",
		JobType:        domain.JobTypePaid,
	}
}

func professional(id string) domain.UserMeta {
	return domain.UserMeta{
		UserID:         id,
		TranslatorType: domain.TranslatorProfessional,
		Levels:         []domain.TranslatorLevel{domain.LevelCertified},
		Languages:      []string{"lang-sv"},
		Gender:         domain.GenderFemale,
	}
}

func eligibleIDs(t *testing.T, m *Matcher, job *domain.Job, pool []domain.UserMeta) []string {
	t.Helper()
	got, err := m.Eligible(context.Background(), job, pool)
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, u := range got {
		ids = append(ids, u.UserID)
	}
	return ids
}

func TestEligible_Filters(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("translator type must serve the job type", func(t *testing.T) {
		m := New(&fakeStore{}, &fakeGeo{}, logger)
		volunteer := professional("t-vol")
		volunteer.TranslatorType = domain.TranslatorVolunteer

		ids := eligibleIDs(t, m, paidJob(), []domain.UserMeta{professional("t-pro"), volunteer})
		assert.Equal(t, []string{"t-pro"}, ids)
	})

	t.Run("language must be listed", func(t *testing.T) {
		m := New(&fakeStore{}, &fakeGeo{}, logger)
		noLang := professional("t-nolang")
		noLang.Languages = []string{"lang-fr"}

		ids := eligibleIDs(t, m, paidJob(), []domain.UserMeta{professional("t-ok"), noLang})
		assert.Equal(t, []string{"t-ok"}, ids)
	})

	t.Run("gender requirement filters when set", func(t *testing.T) {
		m := New(&fakeStore{}, &fakeGeo{}, logger)
		job := paidJob()
		job.Gender = domain.GenderMale
		male := professional("t-male")
		male.Gender = domain.GenderMale

		ids := eligibleIDs(t, m, job, []domain.UserMeta{professional("t-female"), male})
		assert.Equal(t, []string{"t-male"}, ids)
	})

	t.Run("no gender requirement accepts anyone", func(t *testing.T) {
		m := New(&fakeStore{}, &fakeGeo{}, logger)
		ids := eligibleIDs(t, m, paidJob(), []domain.UserMeta{professional("t-1")})
		assert.Equal(t, []string{"t-1"}, ids)
	})

	t.Run("certification requirement filters by level", func(t *testing.T) {
		m := New(&fakeStore{}, &fakeGeo{}, logger)
		job := paidJob()
		job.Certification = domain.CertificationLaw
		lawyer := professional("t-law")
		lawyer.Levels = []domain.TranslatorLevel{domain.LevelCertifiedLaw}

		ids := eligibleIDs(t, m, job, []domain.UserMeta{professional("t-plain"), lawyer})
		assert.Equal(t, []string{"t-law"}, ids)
	})

	t.Run("blacklisted translators are excluded", func(t *testing.T) {
		m := New(&fakeStore{blacklist: []string{"t-blocked"}}, &fakeGeo{}, logger)
		ids := eligibleIDs(t, m, paidJob(), []domain.UserMeta{professional("t-blocked"), professional("t-ok")})
		assert.Equal(t, []string{"t-ok"}, ids)
	})

	t.Run("physical-only jobs require compatible towns", func(t *testing.T) {
		m := New(&fakeStore{}, &fakeGeo{incompatible: map[string]bool{"t-far": true}}, logger)
		job := paidJob()
		job.PhysicalType = true

		ids := eligibleIDs(t, m, job, []domain.UserMeta{professional("t-far"), professional("t-near")})
		assert.Equal(t, []string{"t-near"}, ids)
	})

	t.Run("town check is skipped for the specifically requested translator", func(t *testing.T) {
		m := New(&fakeStore{}, &fakeGeo{incompatible: map[string]bool{"t-far": true}}, logger)
		job := paidJob()
		job.PhysicalType = true
		job.SpecificTranslatorID = "t-far"

		ids := eligibleIDs(t, m, job, []domain.UserMeta{professional("t-far")})
		assert.Equal(t, []string{"t-far"}, ids)
	})

	t.Run("specific job excludes everyone else and the decliner", func(t *testing.T) {
		job := paidJob()
		job.SpecificTranslatorID = "t-wanted"

		m := New(&fakeStore{}, &fakeGeo{}, logger)
		ids := eligibleIDs(t, m, job, []domain.UserMeta{professional("t-wanted"), professional("t-other")})
		assert.Equal(t, []string{"t-wanted"}, ids)

		m = New(&fakeStore{declined: map[string]bool{"t-wanted": true}}, &fakeGeo{}, logger)
		ids = eligibleIDs(t, m, job, []domain.UserMeta{professional("t-wanted")})
		assert.Empty(t, ids)
	})

	t.Run("time conflicts exclude the translator", func(t *testing.T) {
		m := New(&fakeStore{conflicts: map[string]bool{"t-busy": true}}, &fakeGeo{}, logger)
		ids := eligibleIDs(t, m, paidJob(), []domain.UserMeta{professional("t-busy"), professional("t-free")})
		assert.Equal(t, []string{"t-free"}, ids)
	})
}

func TestEligible_EmptyPool(t *testing.T) {
	m := New(&fakeStore{}, &fakeGeo{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	got, err := m.Eligible(context.Background(), paidJob(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
