package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/doorkeeper/internal/client/client"
	"github.com/dmitrijs2005/doorkeeper/internal/client/models"
	"github.com/dmitrijs2005/doorkeeper/internal/client/repositories/cache"
	"github.com/dmitrijs2005/doorkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/doorkeeper/internal/client/repositories/outbox"
	"github.com/dmitrijs2005/doorkeeper/internal/common"
	"github.com/dmitrijs2005/doorkeeper/internal/cryptox"
	"github.com/dmitrijs2005/doorkeeper/internal/dbx"
	"github.com/dmitrijs2005/doorkeeper/internal/logging"
	"github.com/dmitrijs2005/doorkeeper/internal/qrcodec"
	"github.com/google/uuid"
)

const (
	MsgNotCached        = "Guest list not cached. Connect to sync, then try again."
	MsgInvalidFormat    = "Invalid QR code format"
	MsgInvalidOrExpired = "Invalid or expired QR code"
	MsgExpired          = "QR code expired"
	MsgAttendeeNotFound = "Attendee not found"
	MsgInvalidAttendee  = "Invalid attendee ID"
	MsgEventNotFound    = "Event not found"
)

var errNoDefaultEvent = errors.New("no default event cached")

// OfflineService validates check-ins against the cached guest list, queues
// accepted ones in the outbox and replays them once the server is back.
type OfflineService struct {
	client      client.Client
	db          *sql.DB
	deviceID    string
	syncTimeout time.Duration
	logger      logging.Logger

	now   func() time.Time
	newID func() string

	// one drain at a time
	syncMu sync.Mutex
}

func NewOfflineService(c client.Client, db *sql.DB, deviceID string, syncTimeout time.Duration, logger logging.Logger) *OfflineService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &OfflineService{
		client:      c,
		db:          db,
		deviceID:    deviceID,
		syncTimeout: syncTimeout,
		logger:      logger.With("module", "offline"),
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// RefreshCache downloads a fresh snapshot and replaces the local guest
// list. Tokens are sealed under masterKey. Attendees with a check-in still
// waiting in the outbox stay checked in locally.
func (s *OfflineService) RefreshCache(ctx context.Context, masterKey []byte, eventID string) (*models.CacheInfo, error) {
	snap, err := s.client.OfflineSnapshot(ctx, eventID)
	if err != nil {
		return nil, err
	}

	attendees := make([]*models.Attendee, 0, len(snap.Attendees))
	for _, sa := range snap.Attendees {
		a := sa.Attendee
		if sa.QRToken != "" {
			a.SealedToken, a.TokenNonce, err = cryptox.Seal([]byte(sa.QRToken), masterKey)
			if err != nil {
				return nil, fmt.Errorf("failed to seal token for %s: %w", a.ID, err)
			}
		}
		attendees = append(attendees, &a)
	}

	cachedAt := snap.CachedAt
	if cachedAt.IsZero() {
		cachedAt = s.now()
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		pending, err := outbox.NewSQLiteRepository(tx).List(ctx)
		if err != nil {
			return err
		}
		queued := make(map[string]time.Time, len(pending))
		for _, e := range pending {
			if e.AttendeeID != "" {
				queued[e.AttendeeID] = e.QueuedAt
			}
		}
		for _, a := range attendees {
			if at, ok := queued[a.ID]; ok && !a.CheckedIn {
				a.CheckedIn = true
				a.CheckedInAt = &at
			}
		}

		if err := cache.NewSQLiteRepository(tx).ReplaceAll(ctx, snap.Events, attendees); err != nil {
			return err
		}

		meta := metadata.NewSQLiteRepository(tx)
		if err := meta.SetTime(ctx, metadata.KeyCachedAt, cachedAt); err != nil {
			return err
		}
		return meta.Set(ctx, metadata.KeyDefaultEventID, []byte(snap.DefaultEventID))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "guest list cached", "events", len(snap.Events), "attendees", len(attendees))
	return s.CacheInfo(ctx)
}

// CheckInOffline redeems a scanned payload against the cached guest list.
// Rejections are results, not errors.
func (s *OfflineService) CheckInOffline(ctx context.Context, masterKey []byte, qrData string) (*models.CheckInResult, error) {
	var res *models.CheckInResult

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		meta := metadata.NewSQLiteRepository(tx)

		cachedAt, err := meta.GetTime(ctx, metadata.KeyCachedAt)
		if err != nil {
			return err
		}
		if cachedAt.IsZero() {
			res = offlineResult(models.OutcomeError, MsgNotCached, nil, nil)
			return nil
		}

		resolve := func(ctx context.Context) (string, error) {
			v, err := meta.Get(ctx, metadata.KeyDefaultEventID)
			if err != nil {
				return "", err
			}
			if len(v) == 0 {
				return "", errNoDefaultEvent
			}
			return string(v), nil
		}

		p, err := qrcodec.NewDecoder(resolve, s.logger).Decode(ctx, qrData)
		if err != nil {
			res, err = decodeFailure(err)
			return err
		}

		repo := cache.NewSQLiteRepository(tx)
		a, err := repo.GetAttendee(ctx, p.EntryID)
		if errors.Is(err, common.ErrorNotFound) {
			res = offlineResult(models.OutcomeInvalidOrExpired, MsgInvalidOrExpired, nil, nil)
			return nil
		}
		if err != nil {
			return err
		}
		if a.EventID != p.EventID {
			res = offlineResult(models.OutcomeInvalidOrExpired, MsgInvalidOrExpired, nil, nil)
			return nil
		}

		ev, err := s.event(ctx, repo, a)
		if err != nil {
			return err
		}

		if a.CheckedIn {
			res = offlineResult(models.OutcomeAlreadyCheckedIn, alreadyMessage(a), a, ev)
			return nil
		}

		if !s.tokenMatches(a, masterKey, p.Token) {
			res = offlineResult(models.OutcomeInvalidOrExpired, MsgInvalidOrExpired, nil, nil)
			return nil
		}

		now := s.now()
		switch {
		case a.QRExpiresAt == nil:
			// only tokens with an expiry are redeemable
			res = offlineResult(models.OutcomeInvalidOrExpired, MsgInvalidOrExpired, nil, nil)
			return nil
		case !a.QRExpiresAt.After(now):
			res = offlineResult(models.OutcomeExpired, MsgExpired, nil, nil)
			return nil
		}

		res, err = s.redeem(ctx, tx, a, ev, &models.OutboxEntry{QRData: p.String()}, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// decodeFailure turns a payload decode error into a result. Anything that is
// not about the payload itself is returned as an error.
func decodeFailure(err error) (*models.CheckInResult, error) {
	switch {
	case errors.Is(err, qrcodec.ErrInvalidFormat), errors.Is(err, qrcodec.ErrInvalidIdentifier):
		return offlineResult(models.OutcomeInvalidFormat, MsgInvalidFormat, nil, nil), nil
	case errors.Is(err, errNoDefaultEvent):
		return offlineResult(models.OutcomeNotFound, MsgEventNotFound, nil, nil), nil
	}
	return nil, err
}

// CheckInAttendeeOffline is the manual override counterpart of CheckInOffline.
func (s *OfflineService) CheckInAttendeeOffline(ctx context.Context, attendeeID string) (*models.CheckInResult, error) {
	var res *models.CheckInResult

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		cachedAt, err := metadata.NewSQLiteRepository(tx).GetTime(ctx, metadata.KeyCachedAt)
		if err != nil {
			return err
		}
		if cachedAt.IsZero() {
			res = offlineResult(models.OutcomeError, MsgNotCached, nil, nil)
			return nil
		}

		if !qrcodec.IsUUID(attendeeID) {
			res = offlineResult(models.OutcomeInvalidFormat, MsgInvalidAttendee, nil, nil)
			return nil
		}

		repo := cache.NewSQLiteRepository(tx)
		a, err := repo.GetAttendee(ctx, attendeeID)
		if errors.Is(err, common.ErrorNotFound) {
			res = offlineResult(models.OutcomeNotFound, MsgAttendeeNotFound, nil, nil)
			return nil
		}
		if err != nil {
			return err
		}

		ev, err := s.event(ctx, repo, a)
		if err != nil {
			return err
		}

		if a.CheckedIn {
			res = offlineResult(models.OutcomeAlreadyCheckedIn, alreadyMessage(a), a, ev)
			return nil
		}

		res, err = s.redeem(ctx, tx, a, ev, &models.OutboxEntry{}, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *OfflineService) redeem(ctx context.Context, tx dbx.DBTX, a *models.Attendee, ev *models.Event, e *models.OutboxEntry, now time.Time) (*models.CheckInResult, error) {
	ok, err := cache.NewSQLiteRepository(tx).MarkCheckedIn(ctx, a.ID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return offlineResult(models.OutcomeAlreadyCheckedIn, alreadyMessage(a), a, ev), nil
	}

	e.ID = s.newID()
	e.AttendeeID = a.ID
	e.QueuedAt = now
	if err := outbox.NewSQLiteRepository(tx).Add(ctx, e); err != nil {
		return nil, err
	}

	a.CheckedIn = true
	a.CheckedInAt = &now
	s.logger.Info(ctx, "check-in queued", "attendee_id", a.ID, "outbox_id", e.ID, "manual", e.Manual())
	return offlineResult(models.OutcomeSuccess, successMessage(a), a, ev), nil
}

func (s *OfflineService) event(ctx context.Context, repo *cache.SQLiteRepository, a *models.Attendee) (*models.Event, error) {
	ev, err := repo.GetEvent(ctx, a.EventID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	return ev, err
}

func (s *OfflineService) tokenMatches(a *models.Attendee, masterKey []byte, token string) bool {
	if len(a.SealedToken) == 0 {
		return false
	}
	plain, err := cryptox.Open(a.SealedToken, a.TokenNonce, masterKey)
	if err != nil {
		return false
	}
	defer common.WipeByteArray(plain)
	return subtle.ConstantTimeCompare(plain, []byte(token)) == 1
}

// SyncQueue replays the outbox in queue order, one request at a time.
// Success and already-checked-in both settle an entry. The pass stops early
// when the server is unreachable, rejects our credentials or throttles us.
func (s *OfflineService) SyncQueue(ctx context.Context) (*models.SyncResult, error) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	repo := outbox.NewSQLiteRepository(s.db)
	entries, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}

	res := &models.SyncResult{}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			break
		}

		r, err := s.replay(ctx, e)
		if err == nil && r.Settled() {
			if err := repo.Delete(ctx, e.ID); err != nil && !errors.Is(err, common.ErrorNotFound) {
				return nil, err
			}
			res.Synced++
			continue
		}

		res.Failed++
		reason, stop := syncFailure(r, err)
		if err := repo.RecordFailure(ctx, e.ID, reason); err != nil {
			return nil, err
		}
		s.logger.Warn(ctx, "outbox entry not synced", "outbox_id", e.ID, "reason", reason)
		if stop {
			break
		}
	}

	remaining, err := repo.Count(ctx)
	if err != nil {
		return nil, err
	}
	res.Remaining = remaining

	if res.Synced > 0 || res.Failed > 0 {
		s.logger.Info(ctx, "outbox synced", "synced", res.Synced, "failed", res.Failed, "remaining", res.Remaining)
	}
	return res, nil
}

func (s *OfflineService) replay(ctx context.Context, e *models.OutboxEntry) (*models.CheckInResult, error) {
	if s.syncTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.syncTimeout)
		defer cancel()
	}
	if e.Manual() {
		return s.client.CheckInAttendee(ctx, e.AttendeeID)
	}
	return s.client.CheckIn(ctx, e.QRData, s.deviceID)
}

// syncFailure describes why an entry stayed queued and whether the rest of
// the pass is pointless.
func syncFailure(r *models.CheckInResult, err error) (string, bool) {
	switch {
	case errors.Is(err, client.ErrUnavailable):
		return "server unavailable", true
	case errors.Is(err, client.ErrUnauthorized):
		return "unauthorized", true
	case err != nil:
		return err.Error(), false
	case r.Outcome == models.OutcomeRateLimited:
		return fmt.Sprintf("%s: %s", r.Outcome, r.Message), true
	default:
		return fmt.Sprintf("%s: %s", r.Outcome, r.Message), false
	}
}

// Pending lists queued check-ins, oldest first.
func (s *OfflineService) Pending(ctx context.Context) ([]*models.OutboxEntry, error) {
	return outbox.NewSQLiteRepository(s.db).List(ctx)
}

// Discard drops a queued check-in the server will never accept. The local
// copy of the attendee stays checked in until the next cache refresh.
func (s *OfflineService) Discard(ctx context.Context, id string) error {
	return outbox.NewSQLiteRepository(s.db).Delete(ctx, id)
}

func (s *OfflineService) CacheInfo(ctx context.Context) (*models.CacheInfo, error) {
	info := &models.CacheInfo{}
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		meta := metadata.NewSQLiteRepository(tx)

		var err error
		if info.CachedAt, err = meta.GetTime(ctx, metadata.KeyCachedAt); err != nil {
			return err
		}
		v, err := meta.Get(ctx, metadata.KeyDefaultEventID)
		if err != nil {
			return err
		}
		info.DefaultEventID = string(v)

		if info.Events, info.Attendees, info.CheckedIn, err = cache.NewSQLiteRepository(tx).Counts(ctx); err != nil {
			return err
		}
		info.Pending, err = outbox.NewSQLiteRepository(tx).Count(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// ClearCache forgets the guest list. Queued check-ins are kept.
func (s *OfflineService) ClearCache(ctx context.Context) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := cache.NewSQLiteRepository(tx).ReplaceAll(ctx, nil, nil); err != nil {
			return err
		}
		meta := metadata.NewSQLiteRepository(tx)
		if err := meta.Delete(ctx, metadata.KeyCachedAt); err != nil {
			return err
		}
		return meta.Delete(ctx, metadata.KeyDefaultEventID)
	})
}

func offlineResult(o models.Outcome, msg string, a *models.Attendee, ev *models.Event) *models.CheckInResult {
	return &models.CheckInResult{Outcome: o, Message: msg, Attendee: a, Event: ev, Offline: true}
}

func successMessage(a *models.Attendee) string {
	return fmt.Sprintf("%s %s checked in successfully!", a.FirstName, a.LastName)
}

func alreadyMessage(a *models.Attendee) string {
	return fmt.Sprintf("Already checked in: %s %s", a.FirstName, a.LastName)
}

// NoteCheckedIn mirrors a check-in the server confirmed so later offline
// scans on this device see it.
func (s *OfflineService) NoteCheckedIn(ctx context.Context, attendeeID string, at time.Time) error {
	_, err := cache.NewSQLiteRepository(s.db).MarkCheckedIn(ctx, attendeeID, at)
	return err
}
