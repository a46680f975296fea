package services

import (
	"time"

	"github.com/dmitrijs2005/doorkeeper/internal/server/models"
)

// Outcome classifies a check-in attempt. It is what callers branch on and
// what the audit trail records.
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeAlreadyCheckedIn Outcome = "already_checked_in"
	OutcomeInvalidFormat    Outcome = "invalid_format"
	OutcomeNotFound         Outcome = "not_found"
	OutcomeInvalidOrExpired Outcome = "invalid_or_expired"
	OutcomeExpired          Outcome = "expired"
	OutcomeRateLimited      Outcome = "rate_limited"
	OutcomeError            Outcome = "error"
)

const (
	MsgQRDataRequired   = "QR data is required"
	MsgInvalidFormat    = "Invalid QR code format"
	MsgInvalidAttendee  = "Invalid attendee ID"
	MsgAlreadyUsed      = "QR code already used"
	MsgExpired          = "QR code expired"
	MsgInvalidOrExpired = "Invalid or expired QR code"
	MsgAttendeeNotFound = "Attendee not found"
	MsgEventNotFound    = "Event not found"
	MsgRateLimited      = "Too many check-in attempts. Please try again later."
	MsgInternal         = "Failed to process check-in"
)

func successMessage(a *models.Attendee) string {
	return a.FullName() + " checked in successfully!"
}

func alreadyMessage(a *models.Attendee) string {
	return "Already checked in: " + a.FullName()
}

// CheckInResult is the answer to one check-in attempt. Attendee and Event are
// set for success and already_checked_in. RetryAfter is set when rate limited.
type CheckInResult struct {
	Outcome    Outcome
	Message    string
	Attendee   *models.Attendee
	Event      *models.Event
	RetryAfter time.Duration
}

func (r *CheckInResult) Success() bool {
	return r.Outcome == OutcomeSuccess
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, at least one.
func (r *CheckInResult) RetryAfterSeconds() int {
	if r.Outcome != OutcomeRateLimited {
		return 0
	}
	s := int((r.RetryAfter + time.Second - 1) / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}

func result(o Outcome, msg string) *CheckInResult {
	return &CheckInResult{Outcome: o, Message: msg}
}
