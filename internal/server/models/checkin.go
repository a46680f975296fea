package models

import "time"

// CheckInAttempt is one row of the check-in audit trail. Empty ids are
// stored as NULL.
type CheckInAttempt struct {
	ID         int64
	OccurredAt time.Time
	Caller     string
	Outcome    string
	AttendeeID string
	EventID    string
	DeviceID   string
	StaffID    string
	Detail     string
}
