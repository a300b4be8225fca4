package notify

import (
	"context"
	"time"

	"github.com/dtolk/booking-be/internal/booking/domain"
)

// Mailer delivers one templated email. Implementations live outside this
// package; delivery failures are per-recipient and never abort a dispatch.
type Mailer interface {
	Send(ctx context.Context, to, name, subject, templateKey string, data map[string]any) error
}

// SMSSender delivers one text message and returns the provider's delivery
// status string.
type SMSSender interface {
	Send(ctx context.Context, from, to, body string) (string, error)
}

// Pusher delivers a push notification batch. delayed=true schedules the
// batch for the next business-hours window instead of sending now.
type Pusher interface {
	Send(ctx context.Context, recipients []domain.UserMeta, jobID string, payload map[string]string, text string, delayed bool) error
}

// Directory resolves users and the active translator pool.
type Directory interface {
	// UserMeta returns the profile of one user, or domain.ErrUserNotFound.
	UserMeta(ctx context.Context, userID string) (*domain.UserMeta, error)

	// ActiveTranslators returns every enabled user with the translator
	// role.
	ActiveTranslators(ctx context.Context) ([]domain.UserMeta, error)

	// LanguageName resolves a language id to its display name.
	LanguageName(ctx context.Context, langID string) (string, error)
}

// FanOutScheduler hands a translator fan-out off for asynchronous execution.
// The API service publishes to the queue; the notifier service runs the
// fan-out directly.
type FanOutScheduler interface {
	Schedule(ctx context.Context, jobID, excludeTranslatorID string) error
}

// NightWindow defines the hours during which nighttime-suppressed users get
// delayed pushes instead of immediate ones.
type NightWindow struct {
	StartHour int // inclusive, e.g. 22
	EndHour   int // exclusive, e.g. 7
}

// Contains reports whether t falls inside the window. The window is allowed
// to wrap midnight.
func (w NightWindow) Contains(t time.Time) bool {
	h := t.Hour()
	if w.StartHour <= w.EndHour {
		return h >= w.StartHour && h < w.EndHour
	}
	return h >= w.StartHour || h < w.EndHour
}
