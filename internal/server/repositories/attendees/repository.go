// Package attendees declares the attendee repository: the persistence
// contract for QR credential state, including the atomic redeem.
package attendees

import (
	"context"
	"time"

	"github.com/dmitrijs2005/doorkeeper/internal/server/models"
)

type Repository interface {
	// Redeem consumes the credential and checks the attendee in, in one
	// conditional update. It matches only when the event, id and token match,
	// the token is unexpired at now and the attendee is not admitted yet.
	// When nothing matches it returns common.ErrorNotFound.
	Redeem(ctx context.Context, eventID, entryID, token, deviceID string, now time.Time) (*models.Attendee, error)

	FindByID(ctx context.Context, id string) (*models.Attendee, error)
	FindByEventAndID(ctx context.Context, eventID, id string) (*models.Attendee, error)

	// SetToken replaces the outstanding credential of one attendee of eventID.
	// It returns common.ErrorNotFound when no such attendee exists.
	SetToken(ctx context.Context, id, eventID, token string, expiresAt time.Time) error

	// MarkCheckedIn admits the attendee without a token. It returns
	// common.ErrorNotFound when the attendee is absent or already checked in.
	MarkCheckedIn(ctx context.Context, id string, now time.Time) (*models.Attendee, error)

	ListByEvent(ctx context.Context, eventID string) ([]models.AttendeeRef, error)
	ListAll(ctx context.Context) ([]models.AttendeeRef, error)
	ListForSnapshot(ctx context.Context, eventID string) ([]*models.SnapshotEntry, error)
}
