package models

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

func TestSubmissionNormalizeDerivesTotal(t *testing.T) {
	s := &Submission{VillageName: "Village A", RepresentativeName: "Rep 1", TotalPeople: 12}
	s.Normalize(fixedNow)

	assert.Equal(t, DefaultAmountPerPerson, s.AmountPerPerson)
	assert.Equal(t, 600, s.TotalAmount)
	assert.Equal(t, "2026-03-01T10:30:00Z", s.Timestamp)
	assert.Equal(t, s.Timestamp, s.CreatedAt)
	assert.Equal(t, "01/03/2026", s.Date)
	assert.NotEmpty(t, s.Time)
	require.NoError(t, s.Validate())
}

func TestSubmissionNormalizePassesTotalThroughWithoutPeople(t *testing.T) {
	s := &Submission{VillageName: "Village A", RepresentativeName: "Rep 1", TotalAmount: 75}
	s.Normalize(fixedNow)
	assert.Equal(t, 75, s.TotalAmount)
}

func TestSubmissionNormalizeKeepsWhitespaceAndCase(t *testing.T) {
	s := &Submission{VillageName: " Village A ", RepresentativeName: "REP"}
	s.Normalize(fixedNow)
	assert.Equal(t, " Village A ", s.VillageName)
	assert.Equal(t, "REP", s.RepresentativeName)
}

func TestSubmissionTruncatesByRunes(t *testing.T) {
	s := &Submission{VillageName: strings.Repeat("ق", 150), RepresentativeName: "Rep 1"}
	s.Normalize(fixedNow)
	assert.Equal(t, maxFieldLength, len([]rune(s.VillageName)))
}

func TestSubmissionValidate(t *testing.T) {
	s := &Submission{TotalPeople: -1, Timestamp: "yesterday"}
	err := s.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	fields := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"villageName", "representativeName", "totalPeople", "timestamp"}, fields)
}

func TestBelongsTo(t *testing.T) {
	s := &Submission{RepresentativeName: "Rep 1", SubmittedBy: "Clerk"}
	assert.True(t, s.BelongsTo("Rep 1"))
	assert.True(t, s.BelongsTo("Clerk"))
	assert.False(t, s.BelongsTo("rep 1"))
}

func TestCalculateStatistics(t *testing.T) {
	subs := []*Submission{
		{VillageName: "Village A", TotalPeople: 10, ReceivedMoney: 8, TotalAmount: 500},
		{VillageName: "Village A", TotalPeople: 4, ReceivedMoney: 4, TotalAmount: 200},
		{VillageName: "Village B", TotalPeople: 1, ReceivedMoney: 0, TotalAmount: 50},
	}
	stats := CalculateStatistics(StoreB, subs)

	assert.Equal(t, Statistics{
		Source:           StoreB,
		TotalSubmissions: 3,
		TotalVillages:    2,
		TotalPeople:      15,
		TotalReceived:    12,
		TotalAmount:      750,
	}, stats)
}

func TestRepresentativeDefaultsAndRoles(t *testing.T) {
	r := &Representative{Name: "Rep 1", Role: RoleSupervisor}
	r.Normalize(fixedNow)
	assert.True(t, r.IsActive())
	require.NoError(t, r.Validate())

	r.Role = "manager"
	assert.ErrorIs(t, r.Validate(), ErrValidation)
}

func TestRepresentativeUpdatePatch(t *testing.T) {
	name, active, pw := "Rep 2", false, "secret1"
	patch, err := (&RepresentativeUpdate{Name: &name, Active: &active, Password: &pw}).Patch()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Rep 2", "active": false, "password": "secret1"}, patch)

	_, err = (&RepresentativeUpdate{}).Patch()
	assert.ErrorIs(t, err, ErrValidation)

	blank, role := " ", "boss"
	_, err = (&RepresentativeUpdate{Name: &blank, Role: &role}).Patch()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)
}

func TestSettingsValidate(t *testing.T) {
	assert.NoError(t, (&Settings{}).Validate())
	assert.ErrorIs(t, (&Settings{EnableGoogleSheets: true}).Validate(), ErrValidation)
	assert.ErrorIs(t, (&Settings{GoogleSheetsURL: "ftp://x"}).Validate(), ErrValidation)

	s := &Settings{GoogleSheetsURL: "https://script.google.com/macros/s/x/exec", EnableGoogleSheets: true}
	assert.NoError(t, s.Validate())
	assert.True(t, s.SheetsEnabled())
	assert.False(t, (*Settings)(nil).SheetsEnabled())
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"submission":      KindSubmission,
		"submissions":     KindSubmission,
		"representatives": KindRepresentative,
		"formSettings":    KindFormSettings,
	} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseKind("users")
	assert.ErrorIs(t, err, ErrValidation)

	_, ok := KindForCollection("submission")
	assert.False(t, ok)
	k, ok := KindForCollection("settings")
	assert.True(t, ok)
	assert.True(t, k.Singleton())
}

func TestDataRoundTripKeepsCorrelationID(t *testing.T) {
	in := &Submission{CorrelationID: "c-1", VillageName: "Village A", TotalPeople: 3}
	data, err := ToData(in)
	require.NoError(t, err)
	assert.Equal(t, "c-1", data["correlationId"])

	var out Submission
	require.NoError(t, FromData(data, &out))
	assert.Equal(t, *in, out)
}
