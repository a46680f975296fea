// Package models defines the scanner-side data models: the cached guest
// list, queued check-ins and the results shown to staff.
package models

import (
	"strings"
	"time"
)

// Outcome names match the ones reported by the server.
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

type Event struct {
	ID   string
	Name string
}

// Attendee is a cached guest list row. The outstanding QR token is kept
// sealed under the staff master key.
type Attendee struct {
	ID          string
	EventID     string
	EventName   string
	FirstName   string
	LastName    string
	Email       string
	Company     string
	CheckedIn   bool
	CheckedInAt *time.Time
	SealedToken []byte
	TokenNonce  []byte
	QRExpiresAt *time.Time
}

func (a *Attendee) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// SnapshotAttendee is an attendee as received from the server, token in clear.
type SnapshotAttendee struct {
	Attendee
	QRToken string
}

// Snapshot is the guest list downloaded for offline use.
type Snapshot struct {
	CachedAt       time.Time
	DefaultEventID string
	Events         []*Event
	Attendees      []*SnapshotAttendee
}

// OutboxEntry is a check-in accepted offline and waiting to be replayed.
// Exactly one of QRData and AttendeeID drives the replay; AttendeeID is
// also filled for QR entries so the local copy can be kept checked in.
type OutboxEntry struct {
	ID         string
	QRData     string
	AttendeeID string
	QueuedAt   time.Time
	Attempts   int
	LastError  string
}

// Manual reports whether the entry replays as a check-in by attendee id.
func (e *OutboxEntry) Manual() bool {
	return e.QRData == ""
}

// CheckInResult is what a scan shows, online or offline.
type CheckInResult struct {
	Outcome    Outcome
	Message    string
	Attendee   *Attendee
	Event      *Event
	RetryAfter time.Duration
	Offline    bool
}

func (r *CheckInResult) Success() bool {
	return r.Outcome == OutcomeSuccess
}

// Settled reports whether the server considers the ticket redeemed, either
// by this request or an earlier one.
func (r *CheckInResult) Settled() bool {
	return r.Outcome == OutcomeSuccess || r.Outcome == OutcomeAlreadyCheckedIn
}

// SyncResult summarises one outbox drain.
type SyncResult struct {
	Synced    int
	Failed    int
	Remaining int
}

// CacheInfo describes the local guest list.
type CacheInfo struct {
	CachedAt       time.Time
	DefaultEventID string
	Events         int
	Attendees      int
	CheckedIn      int
	Pending        int
}
