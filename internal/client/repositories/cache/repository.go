// Package cache persists the guest list snapshot a scanner uses while the
// server is unreachable.
package cache

import (
	"context"
	"time"

	"github.com/dmitrijs2005/doorkeeper/internal/client/models"
)

type Repository interface {
	// ReplaceAll swaps the whole cached guest list. Run it in a transaction.
	ReplaceAll(ctx context.Context, events []*models.Event, attendees []*models.Attendee) error
	GetAttendee(ctx context.Context, id string) (*models.Attendee, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	// MarkCheckedIn flips the local copy once; it reports false when the
	// attendee was already checked in or is unknown.
	MarkCheckedIn(ctx context.Context, id string, at time.Time) (bool, error)
	Counts(ctx context.Context) (events, attendees, checkedIn int, err error)
}
