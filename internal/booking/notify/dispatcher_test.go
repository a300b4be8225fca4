package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtolk/booking-be/internal/booking/domain"
	"github.com/dtolk/booking-be/internal/booking/matching"
	"github.com/dtolk/booking-be/internal/booking/state"
)

type sentMail struct {
	to       string
	subject  string
	template string
	data     map[string]any
}

type fakeMailer struct {
	sent []sentMail
}

func (f *fakeMailer) Send(ctx context.Context, to, name, subject, templateKey string, data map[string]any) error {
	f.sent = append(f.sent, sentMail{to: to, subject: subject, template: templateKey, data: data})
	return nil
}

type sentSMS struct {
	to   string
	body string
}

type fakeSMS struct {
	sent []sentSMS
}

func (f *fakeSMS) Send(ctx context.Context, from, to, body string) (string, error) {
	f.sent = append(f.sent, sentSMS{to: to, body: body})
	return "queued", nil
}

type pushBatch struct {
	recipients []string
	payload    map[string]string
	text       string
	delayed    bool
}

type fakePusher struct {
	batches []pushBatch
}

func (f *fakePusher) Send(ctx context.Context, recipients []domain.UserMeta, jobID string, payload map[string]string, text string, delayed bool) error {
	ids := make([]string, 0, len(recipients))
	for _, r := range recipients {
		ids = append(ids, r.UserID)
	}
	f.batches = append(f.batches, pushBatch{recipients: ids, payload: payload, text: text, delayed: delayed})
	return nil
}

type fakeDirectory struct {
	users       map[string]*domain.UserMeta
	translators []domain.UserMeta
	languages   map[string]string
}

func (f *fakeDirectory) UserMeta(ctx context.Context, userID string) (*domain.UserMeta, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeDirectory) ActiveTranslators(ctx context.Context) ([]domain.UserMeta, error) {
	return f.translators, nil
}

func (f *fakeDirectory) LanguageName(ctx context.Context, langID string) (string, error) {
	name, ok := f.languages[langID]
	if !ok {
		return "", domain.ErrUserNotFound
	}
	return name, nil
}

type fakeAssignments struct {
	assignment *domain.Assignment
}

func (f *fakeAssignments) GetActiveAssignment(ctx context.Context, jobID string) (*domain.Assignment, error) {
	if f.assignment == nil {
		return nil, domain.ErrAssignmentNotFound
	}
	return f.assignment, nil
}

type fakeFanout struct {
	scheduled []string
	excluded  []string
}

func (f *fakeFanout) Schedule(ctx context.Context, jobID, excludeTranslatorID string) error {
	f.scheduled = append(f.scheduled, jobID)
	f.excluded = append(f.excluded, excludeTranslatorID)
	return nil
}

type nopMatchStore struct{}

func (nopMatchStore) Blacklist(ctx context.Context, customerID string) ([]string, error) {
	return nil, nil
}

func (nopMatchStore) HasDeclined(ctx context.Context, jobID, translatorID string) (bool, error) {
	return false, nil
}

func (nopMatchStore) HasConflictingAssignment(ctx context.Context, translatorID string, due time.Time) (bool, error) {
	return false, nil
}

type nopGeo struct{}

func (nopGeo) TownsCompatible(ctx context.Context, customerID, translatorID string) (bool, error) {
	return true, nil
}

type fixture struct {
	dispatcher  *Dispatcher
	mailer      *fakeMailer
	sms         *fakeSMS
	pusher      *fakePusher
	directory   *fakeDirectory
	assignments *fakeAssignments
	fanout      *fakeFanout
}

func translator(id string) domain.UserMeta {
	return domain.UserMeta{
		UserID:         id,
		Name:           "Translator " + id,
		Email:          id + "@translators.example",
		Mobile:         "+4670000" + id,
		TranslatorType: domain.TranslatorProfessional,
		Levels:         []domain.TranslatorLevel{domain.LevelCertified},
		Languages:      []string{"lang-sv"},
	}
}

func newFixture(now time.Time) *fixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		mailer: &fakeMailer{},
		sms:    &fakeSMS{},
		pusher: &fakePusher{},
		directory: &fakeDirectory{
			users: map[string]*domain.UserMeta{
				"cust-1": {UserID: "cust-1", Name: "Customer", Email: "customer@example.com"},
			},
			languages: map[string]string{"lang-sv": "Swedish"},
		},
		assignments: &fakeAssignments{},
		fanout:      &fakeFanout{},
	}
	matcher := matching.New(nopMatchStore{}, nopGeo{}, logger)
	f.dispatcher = NewDispatcher(
		f.mailer, f.sms, f.pusher, f.directory, matcher, f.assignments, f.fanout,
		domain.FixedClock{T: now},
		Config{SMSFromNumber: "+46700000000", Night: NightWindow{StartHour: 22, EndHour: 7}},
		logger,
	)
	return f
}

func (f *fixture) addTranslator(u domain.UserMeta) {
	f.directory.translators = append(f.directory.translators, u)
	copied := u
	f.directory.users[u.UserID] = &copied
}

var daytime = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func notifyJob() *domain.Job {
	return &domain.Job{
		ID:             "job-1",
		CustomerID:     "cust-1",
		Status:         domain.StatusPending,
		Due:            time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC),
		FromLanguageID: "lang-sv",
		JobType:        domain.JobTypePaid,
		DurationMin:    90,
		PhoneType:      true,
	}
}

func TestNotifyTranslators(t *testing.T) {
	ctx := context.Background()

	t.Run("pushes the booking text to eligible translators", func(t *testing.T) {
		f := newFixture(daytime)
		f.addTranslator(translator("t-1"))
		f.addTranslator(translator("t-2"))

		n, err := f.dispatcher.NotifyTranslators(ctx, notifyJob(), "")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		require.Len(t, f.pusher.batches, 1)
		batch := f.pusher.batches[0]
		assert.ElementsMatch(t, []string{"t-1", "t-2"}, batch.recipients)
		assert.False(t, batch.delayed)
		assert.Equal(t, "new_booking", batch.payload["notification_type"])
		assert.Equal(t, "New booking for Swedish interpreter, 1h 30min, 2026-03-12 10:00", batch.text)
	})

	t.Run("the excluded translator is skipped", func(t *testing.T) {
		f := newFixture(daytime)
		f.addTranslator(translator("t-leaving"))
		f.addTranslator(translator("t-stays"))

		n, err := f.dispatcher.NotifyTranslators(ctx, notifyJob(), "t-leaving")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		require.Len(t, f.pusher.batches, 1)
		assert.Equal(t, []string{"t-stays"}, f.pusher.batches[0].recipients)
	})

	t.Run("emergency text for immediate jobs", func(t *testing.T) {
		f := newFixture(daytime)
		f.addTranslator(translator("t-1"))
		job := notifyJob()
		job.Immediate = true

		_, err := f.dispatcher.NotifyTranslators(ctx, job, "")
		require.NoError(t, err)
		require.Len(t, f.pusher.batches, 1)
		assert.Equal(t, "New emergency booking for Swedish interpreter, 1h 30min", f.pusher.batches[0].text)
	})

	t.Run("preferences partition the recipients", func(t *testing.T) {
		night := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
		f := newFixture(night)

		silent := translator("t-silent")
		silent.SuppressAll = true
		f.addTranslator(silent)

		noNight := translator("t-nonight")
		noNight.SuppressNighttime = true
		f.addTranslator(noNight)

		f.addTranslator(translator("t-plain"))

		n, err := f.dispatcher.NotifyTranslators(ctx, notifyJob(), "")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		require.Len(t, f.pusher.batches, 2)
		assert.Equal(t, []string{"t-plain"}, f.pusher.batches[0].recipients)
		assert.False(t, f.pusher.batches[0].delayed)
		assert.Equal(t, []string{"t-nonight"}, f.pusher.batches[1].recipients)
		assert.True(t, f.pusher.batches[1].delayed)
	})

	t.Run("emergency suppression drops immediate jobs only", func(t *testing.T) {
		f := newFixture(daytime)
		noEmergency := translator("t-calm")
		noEmergency.SuppressEmergency = true
		f.addTranslator(noEmergency)

		n, err := f.dispatcher.NotifyTranslators(ctx, notifyJob(), "")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		f = newFixture(daytime)
		f.addTranslator(noEmergency)
		job := notifyJob()
		job.Immediate = true
		n, err = f.dispatcher.NotifyTranslators(ctx, job, "")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}

func TestSMSTranslators(t *testing.T) {
	ctx := context.Background()

	t.Run("phone body for phone sessions", func(t *testing.T) {
		f := newFixture(daytime)
		f.addTranslator(translator("t-1"))

		n, err := f.dispatcher.SMSTranslators(ctx, notifyJob())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		require.Len(t, f.sms.sent, 1)
		assert.Equal(t, "New phone booking 12.03.2026 10:00, 1h 30min. Booking ref job-1.", f.sms.sent[0].body)
	})

	t.Run("on-site body for physical-only sessions", func(t *testing.T) {
		f := newFixture(daytime)
		f.addTranslator(translator("t-1"))
		job := notifyJob()
		job.PhoneType = false
		job.PhysicalType = true
		job.Town = "Stockholm"

		n, err := f.dispatcher.SMSTranslators(ctx, job)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		require.Len(t, f.sms.sent, 1)
		assert.Equal(t, "New on-site booking 12.03.2026 10:00 in Stockholm, 1h 30min. Booking ref job-1.", f.sms.sent[0].body)
	})
}

func TestApply(t *testing.T) {
	ctx := context.Background()

	t.Run("fan-out effect schedules with the exclusion", func(t *testing.T) {
		f := newFixture(daytime)
		f.dispatcher.Apply(ctx, notifyJob(), []state.Effect{
			{Kind: state.EffectFanOutTranslators, Exclude: "t-gone"},
		})
		assert.Equal(t, []string{"job-1"}, f.fanout.scheduled)
		assert.Equal(t, []string{"t-gone"}, f.fanout.excluded)
	})

	t.Run("accept confirmation prefers the booking override email", func(t *testing.T) {
		f := newFixture(daytime)
		job := notifyJob()
		job.CustomerEmail = "billing@example.com"

		f.dispatcher.Apply(ctx, job, []state.Effect{{Kind: state.EffectAcceptConfirm}})
		require.Len(t, f.mailer.sent, 1)
		assert.Equal(t, "billing@example.com", f.mailer.sent[0].to)
		assert.Equal(t, "job-accepted", f.mailer.sent[0].template)
	})

	t.Run("session summary mails both parties with their purpose", func(t *testing.T) {
		f := newFixture(daytime)
		f.addTranslator(translator("t-1"))
		f.assignments.assignment = &domain.Assignment{ID: "a-1", JobID: "job-1", TranslatorID: "t-1"}

		f.dispatcher.Apply(ctx, notifyJob(), []state.Effect{{
			Kind:        state.EffectSessionSummary,
			SessionTime: "1 h 30 min",
		}})

		require.Len(t, f.mailer.sent, 2)
		assert.Equal(t, "customer@example.com", f.mailer.sent[0].to)
		assert.Equal(t, "invoice", f.mailer.sent[0].data["for_text"])
		assert.Equal(t, "t-1@translators.example", f.mailer.sent[1].to)
		assert.Equal(t, "payroll", f.mailer.sent[1].data["for_text"])
		for _, m := range f.mailer.sent {
			assert.Equal(t, "session-ended", m.template)
			assert.Equal(t, "1 h 30 min", m.data["session_time"])
		}
	})

	t.Run("completed assignments get no translator mail", func(t *testing.T) {
		f := newFixture(daytime)
		f.addTranslator(translator("t-1"))
		done := daytime
		f.assignments.assignment = &domain.Assignment{
			ID: "a-1", JobID: "job-1", TranslatorID: "t-1", CompletedAt: &done,
		}

		f.dispatcher.Apply(ctx, notifyJob(), []state.Effect{{Kind: state.EffectWithdrawNotices}})
		require.Len(t, f.mailer.sent, 1)
		assert.Equal(t, "customer@example.com", f.mailer.sent[0].to)
	})

	t.Run("translator change mails all three parties", func(t *testing.T) {
		f := newFixture(daytime)
		f.addTranslator(translator("t-old"))
		f.addTranslator(translator("t-new"))

		f.dispatcher.Apply(ctx, notifyJob(), []state.Effect{{
			Kind:            state.EffectTranslatorChanged,
			OldTranslatorID: "t-old",
			NewTranslatorID: "t-new",
		}})

		require.Len(t, f.mailer.sent, 3)
		assert.Equal(t, "customer@example.com", f.mailer.sent[0].to)
		assert.Equal(t, "t-old@translators.example", f.mailer.sent[1].to)
		assert.Equal(t, "job-changed-translator-old-translator", f.mailer.sent[1].template)
		assert.Equal(t, "t-new@translators.example", f.mailer.sent[2].to)
		assert.Equal(t, "job-changed-translator-new-translator", f.mailer.sent[2].template)
	})

	t.Run("date change carries the old time", func(t *testing.T) {
		f := newFixture(daytime)
		f.dispatcher.Apply(ctx, notifyJob(), []state.Effect{{
			Kind:     state.EffectDateChanged,
			OldValue: "2026-03-11T10:00:00Z",
		}})
		require.Len(t, f.mailer.sent, 1)
		assert.Equal(t, "job-changed-date", f.mailer.sent[0].template)
		assert.Equal(t, "2026-03-11T10:00:00Z", f.mailer.sent[0].data["old_time"])
	})

	t.Run("language change resolves the old language name", func(t *testing.T) {
		f := newFixture(daytime)
		f.dispatcher.Apply(ctx, notifyJob(), []state.Effect{{
			Kind:     state.EffectLanguageChanged,
			OldValue: "lang-sv",
		}})
		require.Len(t, f.mailer.sent, 1)
		assert.Equal(t, "Swedish", f.mailer.sent[0].data["old_lang"])
	})

	t.Run("expired push names the booking details", func(t *testing.T) {
		f := newFixture(daytime)
		f.dispatcher.Apply(ctx, notifyJob(), []state.Effect{{Kind: state.EffectExpiredPush}})
		require.Len(t, f.pusher.batches, 1)
		batch := f.pusher.batches[0]
		assert.Equal(t, []string{"cust-1"}, batch.recipients)
		assert.Equal(t, "job_expired", batch.payload["notification_type"])
		assert.Contains(t, batch.text, "no interpreter accepted your booking")
	})

	t.Run("customer push honors suppress-all", func(t *testing.T) {
		f := newFixture(daytime)
		f.directory.users["cust-1"].SuppressAll = true
		f.dispatcher.Apply(ctx, notifyJob(), []state.Effect{{Kind: state.EffectAcceptedPushCustomer}})
		assert.Empty(t, f.pusher.batches)
	})

	t.Run("nighttime-suppressed customer gets a delayed push", func(t *testing.T) {
		night := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)
		f := newFixture(night)
		f.directory.users["cust-1"].SuppressNighttime = true
		f.dispatcher.Apply(ctx, notifyJob(), []state.Effect{{Kind: state.EffectAcceptedPushCustomer}})
		require.Len(t, f.pusher.batches, 1)
		assert.True(t, f.pusher.batches[0].delayed)
	})
}

func TestNightWindow(t *testing.T) {
	w := NightWindow{StartHour: 22, EndHour: 7}

	assert.True(t, w.Contains(time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)))
	assert.True(t, w.Contains(time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)))

	sameDay := NightWindow{StartHour: 9, EndHour: 17}
	assert.True(t, sameDay.Contains(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)))
	assert.False(t, sameDay.Contains(time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)))
}
