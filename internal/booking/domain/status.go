package domain

import "fmt"

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending             Status = "pending"
	StatusAssigned            Status = "assigned"
	StatusStarted             Status = "started"
	StatusCompleted           Status = "completed"
	StatusWithdrawBefore24    Status = "withdrawbefore24"
	StatusWithdrawAfter24     Status = "withdrawafter24"
	StatusTimedOut            Status = "timedout"
	StatusNotCarriedOutByUser Status = "not_carried_out_customer"
)

// ParseStatus validates a raw status value at the boundary. Statuses read
// from the store or a request are parsed once; downstream code trusts the
// typed value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusAssigned, StatusStarted, StatusCompleted,
		StatusWithdrawBefore24, StatusWithdrawAfter24, StatusTimedOut,
		StatusNotCarriedOutByUser:
		return Status(s), nil
	}
	return "", fmt.Errorf("%w: status %q", ErrInvalidEnum, s)
}

// Terminal reports whether no further transitions are expected from s.
// Timed-out jobs can be reopened, so timedout is not terminal.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusWithdrawBefore24, StatusWithdrawAfter24,
		StatusNotCarriedOutByUser:
		return true
	}
	return false
}

// Gender is a job's requested interpreter gender, or the interpreter's own.
type Gender string

const (
	GenderNone   Gender = ""
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

func ParseGender(s string) (Gender, error) {
	switch Gender(s) {
	case GenderNone, GenderMale, GenderFemale:
		return Gender(s), nil
	}
	return "", fmt.Errorf("%w: gender %q", ErrInvalidEnum, s)
}

// Certification is the certification requirement attached to a job.
type Certification string

const (
	CertificationNone    Certification = ""
	CertificationNormal  Certification = "normal"
	CertificationYes     Certification = "yes"
	CertificationLaw     Certification = "law"
	CertificationNLaw    Certification = "n_law"
	CertificationHealth  Certification = "health"
	CertificationNHealth Certification = "n_health"
	CertificationBoth    Certification = "both"
)

func ParseCertification(s string) (Certification, error) {
	switch Certification(s) {
	case CertificationNone, CertificationNormal, CertificationYes,
		CertificationLaw, CertificationNLaw, CertificationHealth,
		CertificationNHealth, CertificationBoth:
		return Certification(s), nil
	}
	return "", fmt.Errorf("%w: certification %q", ErrInvalidEnum, s)
}

// JobType classifies who pays for the session.
type JobType string

const (
	JobTypePaid    JobType = "paid"
	JobTypeRWS     JobType = "rws"
	JobTypeUnpaid  JobType = "unpaid"
	JobTypeUnknown JobType = "unknown"
)

func ParseJobType(s string) (JobType, error) {
	switch JobType(s) {
	case JobTypePaid, JobTypeRWS, JobTypeUnpaid, JobTypeUnknown:
		return JobType(s), nil
	}
	return "", fmt.Errorf("%w: job type %q", ErrInvalidEnum, s)
}

// JobTypeForConsumer maps a customer's consumer type to the job type their
// bookings are created with.
func JobTypeForConsumer(consumerType string) JobType {
	switch consumerType {
	case "rwsconsumer":
		return JobTypeRWS
	case "ngo":
		return JobTypeUnpaid
	case "paid":
		return JobTypePaid
	default:
		return JobTypeUnknown
	}
}

// TranslatorType is an interpreter's engagement category.
type TranslatorType string

const (
	TranslatorProfessional TranslatorType = "professional"
	TranslatorRWS          TranslatorType = "rwstranslator"
	TranslatorVolunteer    TranslatorType = "volunteer"
)

// JobType returns the job type a translator of this category serves.
// Volunteers and anything unrecognised serve unpaid jobs.
func (t TranslatorType) JobType() JobType {
	switch t {
	case TranslatorProfessional:
		return JobTypePaid
	case TranslatorRWS:
		return JobTypeRWS
	default:
		return JobTypeUnpaid
	}
}

// TranslatorLevel is a qualification label held by a translator.
type TranslatorLevel string

const (
	LevelCertified       TranslatorLevel = "Certified"
	LevelCertifiedLaw    TranslatorLevel = "Certified with specialisation in law"
	LevelCertifiedHealth TranslatorLevel = "Certified with specialisation in health care"
	LevelLayman          TranslatorLevel = "Layman"
	LevelReadCourses     TranslatorLevel = "Read Translation courses"
)

// AllTranslatorLevels lists every recognised qualification label.
var AllTranslatorLevels = []TranslatorLevel{
	LevelCertified,
	LevelCertifiedLaw,
	LevelCertifiedHealth,
	LevelLayman,
	LevelReadCourses,
}

// AcceptedLevels maps a job's certification requirement to the set of
// translator levels that satisfy it. An empty requirement accepts any level.
func (c Certification) AcceptedLevels() []TranslatorLevel {
	switch c {
	case CertificationYes:
		return []TranslatorLevel{LevelCertified, LevelCertifiedLaw, LevelCertifiedHealth}
	case CertificationBoth:
		return []TranslatorLevel{LevelCertified, LevelCertifiedLaw, LevelCertifiedHealth, LevelLayman, LevelReadCourses}
	case CertificationLaw, CertificationNLaw:
		return []TranslatorLevel{LevelCertifiedLaw}
	case CertificationHealth, CertificationNHealth:
		return []TranslatorLevel{LevelCertifiedHealth}
	case CertificationNormal:
		return []TranslatorLevel{LevelLayman, LevelReadCourses}
	default:
		return AllTranslatorLevels
	}
}
