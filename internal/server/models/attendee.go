package models

import "time"

// Attendee is a registered guest of one event together with the state of
// the QR credential issued to them.
//
// QRToken and QRExpiresAt are set while a credential is outstanding and
// cleared once it is redeemed. QRUsedAt and CheckedIn change together in
// the redeem update.
type Attendee struct {
	ID                  string
	EventID             string
	FirstName           string
	LastName            string
	Email               string
	Phone               string
	Company             string
	DietaryRestrictions string
	CheckedIn           bool
	CheckedInAt         *time.Time
	RSVPAt              time.Time
	CreatedAt           time.Time

	QRToken        *string
	QRExpiresAt    *time.Time
	QRUsedAt       *time.Time
	QRUsedByDevice *string
}

func (a *Attendee) FullName() string {
	switch {
	case a.FirstName == "":
		return a.LastName
	case a.LastName == "":
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// Used reports whether the attendee is already admitted, by scan or manually.
func (a *Attendee) Used() bool {
	return a.QRUsedAt != nil || a.CheckedIn
}

// TokenExpired reports whether a token is outstanding but past its expiry.
func (a *Attendee) TokenExpired(now time.Time) bool {
	return a.QRToken != nil && a.QRExpiresAt != nil && !a.QRExpiresAt.After(now)
}

// AttendeeRef identifies an attendee for bulk operations.
type AttendeeRef struct {
	ID      string
	EventID string
}

// SnapshotEntry is one attendee row of the offline snapshot.
type SnapshotEntry struct {
	ID          string
	EventID     string
	EventName   string
	FirstName   string
	LastName    string
	Email       string
	Company     string
	CheckedIn   bool
	CheckedInAt *time.Time
	QRToken     *string
	QRExpiresAt *time.Time
}
