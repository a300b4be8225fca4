package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, s := range []string{
		"pending", "assigned", "started", "completed",
		"withdrawbefore24", "withdrawafter24", "timedout",
		"not_carried_out_customer",
	} {
		got, err := ParseStatus(s)
		require.NoError(t, err)
		assert.Equal(t, Status(s), got)
	}

	_, err := ParseStatus("cancelled")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidEnum)
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusWithdrawBefore24.Terminal())
	assert.True(t, StatusWithdrawAfter24.Terminal())
	assert.True(t, StatusNotCarriedOutByUser.Terminal())

	// timedout can be reopened
	assert.False(t, StatusTimedOut.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusAssigned.Terminal())
	assert.False(t, StatusStarted.Terminal())
}

func TestJobTypeForConsumer(t *testing.T) {
	tests := []struct {
		consumerType string
		want         JobType
	}{
		{"rwsconsumer", JobTypeRWS},
		{"ngo", JobTypeUnpaid},
		{"paid", JobTypePaid},
		{"", JobTypeUnknown},
		{"something_else", JobTypeUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, JobTypeForConsumer(tt.consumerType))
	}
}

func TestTranslatorTypeJobType(t *testing.T) {
	assert.Equal(t, JobTypePaid, TranslatorProfessional.JobType())
	assert.Equal(t, JobTypeRWS, TranslatorRWS.JobType())
	assert.Equal(t, JobTypeUnpaid, TranslatorVolunteer.JobType())
	assert.Equal(t, JobTypeUnpaid, TranslatorType("unrecognised").JobType())
}

func TestCertificationAcceptedLevels(t *testing.T) {
	tests := []struct {
		name string
		cert Certification
		want []TranslatorLevel
	}{
		{
			name: "yes accepts all certified levels",
			cert: CertificationYes,
			want: []TranslatorLevel{LevelCertified, LevelCertifiedLaw, LevelCertifiedHealth},
		},
		{
			name: "both accepts every level",
			cert: CertificationBoth,
			want: AllTranslatorLevels,
		},
		{
			name: "law requires law specialisation",
			cert: CertificationLaw,
			want: []TranslatorLevel{LevelCertifiedLaw},
		},
		{
			name: "n_law requires law specialisation",
			cert: CertificationNLaw,
			want: []TranslatorLevel{LevelCertifiedLaw},
		},
		{
			name: "health requires health specialisation",
			cert: CertificationHealth,
			want: []TranslatorLevel{LevelCertifiedHealth},
		},
		{
			name: "normal accepts layman levels",
			cert: CertificationNormal,
			want: []TranslatorLevel{LevelLayman, LevelReadCourses},
		},
		{
			name: "no requirement accepts any level",
			cert: CertificationNone,
			want: AllTranslatorLevels,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cert.AcceptedLevels())
		})
	}
}

func TestAssignmentActive(t *testing.T) {
	var nilAssignment *Assignment
	assert.False(t, nilAssignment.Active())

	a := &Assignment{ID: "a1", JobID: "j1", TranslatorID: "t1"}
	assert.True(t, a.Active())

	now := a.CreatedAt
	a.CancelAt = &now
	assert.False(t, a.Active())
}
