package models

import (
	"strings"
	"time"

	"mandoub-backend/internal/timeutil"
)

// DefaultAmountPerPerson applies when a submission leaves the unit amount empty.
const DefaultAmountPerPerson = 50

// Submission is one donation/distribution record for a village.
type Submission struct {
	CorrelationID      string `json:"correlationId,omitempty"`
	VillageName        string `json:"villageName"`
	RepresentativeName string `json:"representativeName"`
	TotalPeople        int    `json:"totalPeople"`
	ReceivedMoney      int    `json:"receivedMoney"`
	NotReceived        int    `json:"notReceived"`
	AmountPerPerson    int    `json:"amountPerPerson"`
	TotalAmount        int    `json:"totalAmount"`
	SubmittedBy        string `json:"submittedBy,omitempty"`
	Timestamp          string `json:"timestamp,omitempty"`
	CreatedAt          string `json:"createdAt,omitempty"`
	Date               string `json:"date,omitempty"`
	Time               string `json:"time,omitempty"`
}

func (s *Submission) Kind() Kind { return KindSubmission }

func (s *Submission) GetCorrelationID() string   { return s.CorrelationID }
func (s *Submission) SetCorrelationID(id string) { s.CorrelationID = id }

// Normalize truncates text fields, applies the unit default and recomputes the total.
// totalAmount is derived whenever both factors are positive and passed through otherwise.
func (s *Submission) Normalize(now time.Time) {
	s.VillageName = truncate(s.VillageName)
	s.RepresentativeName = truncate(s.RepresentativeName)
	s.SubmittedBy = truncate(s.SubmittedBy)

	if s.AmountPerPerson == 0 {
		s.AmountPerPerson = DefaultAmountPerPerson
	}
	if s.TotalPeople > 0 && s.AmountPerPerson > 0 {
		s.TotalAmount = s.TotalPeople * s.AmountPerPerson
	}

	if s.Timestamp == "" {
		s.Timestamp = timeutil.ISO(now)
	}
	if s.CreatedAt == "" {
		s.CreatedAt = timeutil.ISO(now)
	}
	if s.Date == "" {
		s.Date = timeutil.DisplayDate(now)
	}
	if s.Time == "" {
		s.Time = timeutil.DisplayTime(now)
	}
}

func (s *Submission) Validate() error {
	verr := &ValidationError{}
	if strings.TrimSpace(s.VillageName) == "" {
		verr.add("villageName", "required")
	}
	if strings.TrimSpace(s.RepresentativeName) == "" {
		verr.add("representativeName", "required")
	}
	for field, v := range map[string]int{
		"totalPeople":     s.TotalPeople,
		"receivedMoney":   s.ReceivedMoney,
		"notReceived":     s.NotReceived,
		"amountPerPerson": s.AmountPerPerson,
		"totalAmount":     s.TotalAmount,
	} {
		if v < 0 {
			verr.add(field, "must not be negative")
		}
	}
	if s.Timestamp != "" {
		if _, err := time.Parse(time.RFC3339, s.Timestamp); err != nil {
			verr.add("timestamp", "must be ISO-8601")
		}
	}
	return verr.orNil()
}

// BelongsTo reports whether the submission was collected or entered by name.
func (s *Submission) BelongsTo(name string) bool {
	return s.RepresentativeName == name || s.SubmittedBy == name
}

// Statistics aggregates a list of submissions.
type Statistics struct {
	Source           string `json:"source"`
	TotalSubmissions int    `json:"totalSubmissions"`
	TotalVillages    int    `json:"totalVillages"`
	TotalPeople      int    `json:"totalPeople"`
	TotalReceived    int    `json:"totalReceived"`
	TotalAmount      int    `json:"totalAmount"`
}

// CalculateStatistics sums counts as stored; it never recomputes totalAmount.
func CalculateStatistics(source string, subs []*Submission) Statistics {
	stats := Statistics{Source: source, TotalSubmissions: len(subs)}
	villages := make(map[string]struct{})
	for _, s := range subs {
		villages[s.VillageName] = struct{}{}
		stats.TotalPeople += s.TotalPeople
		stats.TotalReceived += s.ReceivedMoney
		stats.TotalAmount += s.TotalAmount
	}
	stats.TotalVillages = len(villages)
	return stats
}
