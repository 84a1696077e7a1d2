package tracker

import (
	"strings"
	"time"
)

// Status is the closed set of application states persisted in the tracking
// store. The Oracle's raw status guess is an open string and must be narrowed
// through ParseStatus before it touches a record.
type Status string

const (
	StatusApplied            Status = "Applied"
	StatusAssessment         Status = "Assessment"
	StatusFollowUpRequired   Status = "Follow-up Required"
	StatusInterviewScheduled Status = "Interview Scheduled"
	StatusInterviewed        Status = "Interviewed"
	StatusRejected           Status = "Rejected"
	StatusOffered            Status = "Offered"
	StatusAccepted           Status = "Accepted"
	StatusDeclined           Status = "Declined"
)

// AllStatuses returns every valid status in display order.
func AllStatuses() []Status {
	return []Status{
		StatusApplied,
		StatusAssessment,
		StatusFollowUpRequired,
		StatusInterviewScheduled,
		StatusInterviewed,
		StatusRejected,
		StatusOffered,
		StatusAccepted,
		StatusDeclined,
	}
}

// ParseStatus narrows a free-form status string (typically the Oracle's guess)
// into the closed enum. Matching is case-insensitive; "Other" and anything
// else unrecognized is rejected.
func ParseStatus(s string) (Status, bool) {
	s = strings.TrimSpace(s)
	for _, st := range AllStatuses() {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

// Application is a typed view over one row of the tracking store. Row is the
// original row index and stays valid for the lifetime of the Store snapshot
// it came from.
type Application struct {
	Row           int
	JobID         string
	Title         string
	Company       string
	Location      string
	Status        Status
	DateApplied   string
	InterviewDate string
	Notes         string
}

var appliedLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006",
	"02-Jan-2006",
}

// AppliedTime parses DateApplied, returning the zero time when the value is
// empty or in an unrecognized format.
func (a Application) AppliedTime() time.Time {
	s := strings.TrimSpace(a.DateApplied)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range appliedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
