package domain

import (
	"time"
)

// ImmediateLeadTime is how far in the future an immediate job is due.
const ImmediateLeadTime = 5 * time.Minute

// Job is a single interpretation request.
type Job struct {
	ID             string        `db:"id"`
	CustomerID     string        `db:"customer_id"`
	Status         Status        `db:"status"`
	Due            time.Time     `db:"due"`
	FromLanguageID string        `db:"from_language_id"`
	Gender         Gender        `db:"gender"`
	Certification  Certification `db:"certification"`
	JobType        JobType       `db:"job_type"`
	Immediate      bool          `db:"immediate"`
	PhoneType      bool          `db:"customer_phone_type"`
	PhysicalType   bool          `db:"customer_physical_type"`
	DurationMin    int           `db:"duration_min"`
	Town           string        `db:"town"`
	Address        string        `db:"address"`
	Instructions   string        `db:"instructions"`
	CustomerEmail  string        `db:"customer_email"`
	Reference      string        `db:"reference"`
	AdminComments  string        `db:"admin_comments"`
	SessionTime    string        `db:"session_time"`
	EndAt          *time.Time    `db:"end_at"`
	WithdrawAt     *time.Time    `db:"withdraw_at"`
	WillExpireAt   *time.Time    `db:"will_expire_at"`
	Ignore         bool          `db:"ignore"`
	IgnoreExpired  bool          `db:"ignore_expired"`

	// Reminder16Sent / Reminder48Sent track the scheduled reminder emails;
	// both reset when a booking re-enters pending.
	Reminder16Sent bool `db:"reminder_16_sent"`
	Reminder48Sent bool `db:"reminder_48_sent"`

	// SpecificTranslatorID pre-targets the job at one translator. When set,
	// no other translator is eligible.
	SpecificTranslatorID string `db:"specific_translator_id"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// PhysicalOnly reports whether the session requires on-site attendance with
// no phone fallback. Physical-only jobs are restricted to translators in a
// compatible town.
func (j *Job) PhysicalOnly() bool {
	return j.PhysicalType && !j.PhoneType
}

// Assignment binds one translator to one job for a bounded active period.
type Assignment struct {
	ID           string     `db:"id"`
	JobID        string     `db:"job_id"`
	TranslatorID string     `db:"translator_id"`
	CreatedAt    time.Time  `db:"created_at"`
	CancelAt     *time.Time `db:"cancel_at"`
	CompletedAt  *time.Time `db:"completed_at"`
	CompletedBy  string     `db:"completed_by"`
}

// Active reports whether the assignment has not been cancelled.
func (a *Assignment) Active() bool {
	return a != nil && a.CancelAt == nil
}

// UserMeta is the profile and notification preferences of a user, as far as
// matching and fan-out care about them.
type UserMeta struct {
	UserID         string
	Name           string
	Email          string
	Mobile         string
	City           string
	Gender         Gender
	TranslatorType TranslatorType
	Levels         []TranslatorLevel
	Languages      []string

	SuppressAll       bool // never push
	SuppressEmergency bool // skip immediate-job pushes
	SuppressNighttime bool // delay pushes sent during night hours
}

// HasLanguage reports whether the user lists the language id.
func (u *UserMeta) HasLanguage(langID string) bool {
	for _, l := range u.Languages {
		if l == langID {
			return true
		}
	}
	return false
}

// HasAnyLevel reports whether the user's qualification labels intersect the
// accepted set.
func (u *UserMeta) HasAnyLevel(accepted []TranslatorLevel) bool {
	for _, want := range accepted {
		for _, have := range u.Levels {
			if want == have {
				return true
			}
		}
	}
	return false
}
