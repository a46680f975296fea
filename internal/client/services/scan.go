package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/doorkeeper/internal/client/client"
	"github.com/dmitrijs2005/doorkeeper/internal/client/models"
	"github.com/dmitrijs2005/doorkeeper/internal/logging"
)

// ScanService sends scans to the server while it is reachable and falls
// back to the cached guest list when it is not.
type ScanService struct {
	client   client.Client
	offline  *OfflineService
	deviceID string
	logger   logging.Logger
}

func NewScanService(c client.Client, offline *OfflineService, deviceID string, logger logging.Logger) *ScanService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &ScanService{client: c, offline: offline, deviceID: deviceID, logger: logger.With("module", "scan")}
}

// Scan redeems a QR payload. online selects the first attempt; an
// unreachable server turns into an offline check-in.
func (s *ScanService) Scan(ctx context.Context, masterKey []byte, qrData string, online bool) (*models.CheckInResult, error) {
	if online {
		res, err := s.client.CheckIn(ctx, qrData, s.deviceID)
		if err == nil {
			s.mirror(ctx, res)
			return res, nil
		}
		if !errors.Is(err, client.ErrUnavailable) {
			return nil, err
		}
		s.logger.Warn(ctx, "server unavailable, checking in offline")
	}
	return s.offline.CheckInOffline(ctx, masterKey, qrData)
}

// CheckIn is the manual override by attendee id.
func (s *ScanService) CheckIn(ctx context.Context, attendeeID string, online bool) (*models.CheckInResult, error) {
	if online {
		res, err := s.client.CheckInAttendee(ctx, attendeeID)
		if err == nil {
			s.mirror(ctx, res)
			return res, nil
		}
		if !errors.Is(err, client.ErrUnavailable) {
			return nil, err
		}
		s.logger.Warn(ctx, "server unavailable, checking in offline")
	}
	return s.offline.CheckInAttendeeOffline(ctx, attendeeID)
}

func (s *ScanService) mirror(ctx context.Context, res *models.CheckInResult) {
	if !res.Settled() || res.Attendee == nil {
		return
	}
	at := s.offline.now()
	if res.Attendee.CheckedInAt != nil {
		at = *res.Attendee.CheckedInAt
	}
	if err := s.offline.NoteCheckedIn(ctx, res.Attendee.ID, at); err != nil {
		s.logger.Warn(ctx, "failed to update cached attendee", "attendee_id", res.Attendee.ID, "error", err)
	}
}
