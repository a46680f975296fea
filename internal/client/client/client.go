package client

import (
	"context"

	"github.com/dmitrijs2005/doorkeeper/internal/client/models"
)

type Client interface {
	Close() error
	Register(ctx context.Context, username string, salt []byte, key []byte) error
	GetSalt(ctx context.Context, username string) ([]byte, error)
	Login(ctx context.Context, username string, key []byte) error
	Ping(ctx context.Context) error
	CheckIn(ctx context.Context, qrData, deviceID string) (*models.CheckInResult, error)
	CheckInAttendee(ctx context.Context, attendeeID string) (*models.CheckInResult, error)
	OfflineSnapshot(ctx context.Context, eventID string) (*models.Snapshot, error)
}
