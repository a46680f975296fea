package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/doorkeeper/internal/client/client"
	"github.com/dmitrijs2005/doorkeeper/internal/client/models"
	"github.com/dmitrijs2005/doorkeeper/internal/logging"
	"github.com/dmitrijs2005/doorkeeper/internal/qrcodec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	evMain  = "6f1c2a3b-4d5e-4f60-8a7b-9c0d1e2f3a4b"
	evOther = "7a2b3c4d-5e6f-4a1b-9c2d-3e4f5a6b7c8d"

	attY       = "0b6d8c3e-1f2a-4b3c-8d4e-5f6a7b8c9d0e"
	attZ       = "1c7e9d4f-2a3b-4c4d-9e5f-6a7b8c9d0e1f"
	attNoToken = "2d8fae50-3b4c-4d5e-af60-7b8c9d0e1f2a"
	attExpired = "3e90bf61-4c5d-4e6f-b071-8c9d0e1f2a3b"
	attMissing = "4fa1c072-5d6e-4f70-8182-9d0e1f2a3b4c"
)

var (
	testKey = bytes.Repeat([]byte{7}, 32)
	testNow = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
)

func testSnapshot() *models.Snapshot {
	valid := testNow.Add(time.Hour)
	past := testNow.Add(-time.Minute)
	att := func(id, first, last, token string, exp *time.Time) *models.SnapshotAttendee {
		return &models.SnapshotAttendee{
			Attendee: models.Attendee{
				ID: id, EventID: evMain, EventName: "Launch", FirstName: first, LastName: last,
				Email: first + "@example.com", QRExpiresAt: exp,
			},
			QRToken: token,
		}
	}
	return &models.Snapshot{
		CachedAt:       testNow.Add(-time.Minute),
		DefaultEventID: evMain,
		Events:         []*models.Event{{ID: evMain, Name: "Launch"}, {ID: evOther, Name: "Afterparty"}},
		Attendees: []*models.SnapshotAttendee{
			att(attY, "Yara", "Young", "tok-y", &valid),
			att(attZ, "Zed", "Zane", "tok-z", &valid),
			att(attNoToken, "Nia", "Null", "", nil),
			att(attExpired, "Ed", "Old", "tok-x", &past),
		},
	}
}

func newOffline(t *testing.T, fc *fakeClient) (*OfflineService, *sql.DB) {
	t.Helper()
	db := setupDB(t)
	svc := NewOfflineService(fc, db, "gate-1", time.Second, logging.Nop())
	svc.now = func() time.Time { return testNow }
	return svc, db
}

// newCached returns a service whose guest list holds testSnapshot.
func newCached(t *testing.T, fc *fakeClient) (*OfflineService, *sql.DB) {
	t.Helper()
	if fc.Snapshot == nil {
		fc.Snapshot = testSnapshot()
	}
	svc, db := newOffline(t, fc)
	_, err := svc.RefreshCache(context.Background(), testKey, "")
	require.NoError(t, err)
	return svc, db
}

func TestRefreshCache_StoresSealedSnapshot(t *testing.T) {
	fc := &fakeClient{Snapshot: testSnapshot()}
	svc, db := newOffline(t, fc)

	info, err := svc.RefreshCache(context.Background(), testKey, evMain)
	require.NoError(t, err)

	assert.Equal(t, evMain, fc.LastSnapshotEvent)
	assert.Equal(t, 2, info.Events)
	assert.Equal(t, 4, info.Attendees)
	assert.Equal(t, 0, info.CheckedIn)
	assert.Equal(t, 0, info.Pending)
	assert.Equal(t, evMain, info.DefaultEventID)
	assert.True(t, info.CachedAt.Equal(testNow.Add(-time.Minute)))

	var sealed []byte
	require.NoError(t, db.QueryRow(`SELECT sealed_token FROM cached_attendees WHERE id = ?`, attY).Scan(&sealed))
	assert.NotEmpty(t, sealed)
	assert.NotContains(t, string(sealed), "tok-y")
}

func TestRefreshCache_SnapshotError(t *testing.T) {
	fc := &fakeClient{SnapshotErr: client.ErrUnavailable}
	svc, _ := newOffline(t, fc)

	_, err := svc.RefreshCache(context.Background(), testKey, "")
	require.ErrorIs(t, err, client.ErrUnavailable)

	info, err := svc.CacheInfo(context.Background())
	require.NoError(t, err)
	assert.True(t, info.CachedAt.IsZero())
}

func TestRefreshCache_KeepsQueuedCheckIns(t *testing.T) {
	fc := &fakeClient{}
	svc, _ := newCached(t, fc)
	ctx := context.Background()

	res, err := svc.CheckInOffline(ctx, testKey, evMain+":"+attY+":tok-y")
	require.NoError(t, err)
	require.True(t, res.Success())

	// server has not heard about it yet
	fc.Snapshot = testSnapshot()
	info, err := svc.RefreshCache(ctx, testKey, "")
	require.NoError(t, err)
	assert.Equal(t, 1, info.CheckedIn)
	assert.Equal(t, 1, info.Pending)

	res, err = svc.CheckInOffline(ctx, testKey, evMain+":"+attY+":tok-y")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAlreadyCheckedIn, res.Outcome)
}

func TestCheckInOffline_NotCached(t *testing.T) {
	svc, db := newOffline(t, &fakeClient{})

	res, err := svc.CheckInOffline(context.Background(), testKey, evMain+":"+attY+":tok-y")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeError, res.Outcome)
	assert.Equal(t, MsgNotCached, res.Message)
	assert.True(t, res.Offline)
	assert.Equal(t, 0, countRows(t, db, "outbox"))
}

func TestCheckInOffline_Outcomes(t *testing.T) {
	noExpiry := func(s *models.Snapshot) { s.Attendees[0].QRExpiresAt = nil }

	tests := []struct {
		name    string
		qr      string
		key     []byte
		outcome models.Outcome
		msg     string
		snap    func(*models.Snapshot)
	}{
		{"success", evMain + ":" + attY + ":tok-y", testKey, models.OutcomeSuccess, "Yara Young checked in successfully!", nil},
		{"garbage", "not-a-qr", testKey, models.OutcomeInvalidFormat, MsgInvalidFormat, nil},
		{"bad uuid", "123:" + attY + ":tok-y", testKey, models.OutcomeInvalidFormat, MsgInvalidFormat, nil},
		{"too many parts", evMain + ":" + attY + ":tok-y:x", testKey, models.OutcomeInvalidFormat, MsgInvalidFormat, nil},
		{"unknown attendee", evMain + ":" + attMissing + ":tok-y", testKey, models.OutcomeInvalidOrExpired, MsgInvalidOrExpired, nil},
		{"other event", evOther + ":" + attY + ":tok-y", testKey, models.OutcomeInvalidOrExpired, MsgInvalidOrExpired, nil},
		{"wrong token", evMain + ":" + attY + ":tok-z", testKey, models.OutcomeInvalidOrExpired, MsgInvalidOrExpired, nil},
		{"no token issued", evMain + ":" + attNoToken + ":anything", testKey, models.OutcomeInvalidOrExpired, MsgInvalidOrExpired, nil},
		{"wrong key", evMain + ":" + attY + ":tok-y", bytes.Repeat([]byte{1}, 32), models.OutcomeInvalidOrExpired, MsgInvalidOrExpired, nil},
		{"expired", evMain + ":" + attExpired + ":tok-x", testKey, models.OutcomeExpired, MsgExpired, nil},
		{"token without expiry", evMain + ":" + attY + ":tok-y", testKey, models.OutcomeInvalidOrExpired, MsgInvalidOrExpired, noExpiry},
		{"legacy", attZ + ":tok-z", testKey, models.OutcomeSuccess, "Zed Zane checked in successfully!", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := testSnapshot()
			if tt.snap != nil {
				tt.snap(snap)
			}
			svc, db := newCached(t, &fakeClient{Snapshot: snap})

			res, err := svc.CheckInOffline(context.Background(), tt.key, tt.qr)
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, res.Outcome)
			assert.Equal(t, tt.msg, res.Message)
			assert.True(t, res.Offline)

			if tt.outcome == models.OutcomeSuccess {
				require.NotNil(t, res.Attendee)
				require.NotNil(t, res.Event)
				assert.Equal(t, "Launch", res.Event.Name)
				assert.True(t, res.Attendee.CheckedIn)
				assert.Equal(t, 1, countRows(t, db, "outbox"))
			} else {
				assert.Nil(t, res.Attendee)
				assert.Equal(t, 0, countRows(t, db, "outbox"))
			}
		})
	}
}

func TestCheckInOffline_LegacyQueuedAsV2(t *testing.T) {
	svc, _ := newCached(t, &fakeClient{})
	ctx := context.Background()

	_, err := svc.CheckInOffline(ctx, testKey, attZ+":tok-z")
	require.NoError(t, err)

	pending, err := svc.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, evMain+":"+attZ+":tok-z", pending[0].QRData)
	assert.Equal(t, attZ, pending[0].AttendeeID)
	assert.False(t, pending[0].Manual())
	assert.True(t, pending[0].QueuedAt.Equal(testNow))
}

func TestCheckInOffline_LegacyWithoutDefaultEvent(t *testing.T) {
	snap := testSnapshot()
	snap.DefaultEventID = ""
	svc, _ := newCached(t, &fakeClient{Snapshot: snap})

	res, err := svc.CheckInOffline(context.Background(), testKey, attZ+":tok-z")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeNotFound, res.Outcome)
	assert.Equal(t, MsgEventNotFound, res.Message)
}

func TestDecodeFailure(t *testing.T) {
	storageErr := fmt.Errorf("resolve default event: %w", sql.ErrConnDone)

	tests := []struct {
		name    string
		err     error
		outcome models.Outcome
		wantErr error
	}{
		{"format", qrcodec.ErrInvalidFormat, models.OutcomeInvalidFormat, nil},
		{"identifier", fmt.Errorf("%w: event id", qrcodec.ErrInvalidIdentifier), models.OutcomeInvalidFormat, nil},
		{"no default event", fmt.Errorf("resolve default event: %w", errNoDefaultEvent), models.OutcomeNotFound, nil},
		{"storage", storageErr, "", sql.ErrConnDone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := decodeFailure(tt.err)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, res.Outcome)
			assert.True(t, res.Offline)
		})
	}
}

func TestCheckInOffline_SecondScanIsAlreadyCheckedIn(t *testing.T) {
	svc, db := newCached(t, &fakeClient{})
	ctx := context.Background()
	qr := evMain + ":" + attY + ":tok-y"

	first, err := svc.CheckInOffline(ctx, testKey, qr)
	require.NoError(t, err)
	require.True(t, first.Success())

	second, err := svc.CheckInOffline(ctx, testKey, qr)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAlreadyCheckedIn, second.Outcome)
	assert.Equal(t, "Already checked in: Yara Young", second.Message)
	require.NotNil(t, second.Attendee)
	assert.Equal(t, attY, second.Attendee.ID)

	assert.Equal(t, 1, countRows(t, db, "outbox"))
}

func TestCheckInAttendeeOffline(t *testing.T) {
	ctx := context.Background()

	t.Run("not cached", func(t *testing.T) {
		svc, _ := newOffline(t, &fakeClient{})
		res, err := svc.CheckInAttendeeOffline(ctx, attY)
		require.NoError(t, err)
		assert.Equal(t, MsgNotCached, res.Message)
	})

	t.Run("invalid id", func(t *testing.T) {
		svc, _ := newCached(t, &fakeClient{})
		res, err := svc.CheckInAttendeeOffline(ctx, "42")
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeInvalidFormat, res.Outcome)
		assert.Equal(t, MsgInvalidAttendee, res.Message)
	})

	t.Run("not found", func(t *testing.T) {
		svc, _ := newCached(t, &fakeClient{})
		res, err := svc.CheckInAttendeeOffline(ctx, attMissing)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeNotFound, res.Outcome)
		assert.Equal(t, MsgAttendeeNotFound, res.Message)
	})

	t.Run("success then already", func(t *testing.T) {
		svc, _ := newCached(t, &fakeClient{})

		// manual override ignores token state
		res, err := svc.CheckInAttendeeOffline(ctx, attExpired)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeSuccess, res.Outcome)
		assert.Equal(t, "Ed Old checked in successfully!", res.Message)

		res, err = svc.CheckInAttendeeOffline(ctx, attExpired)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeAlreadyCheckedIn, res.Outcome)

		pending, err := svc.Pending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.True(t, pending[0].Manual())
		assert.Equal(t, attExpired, pending[0].AttendeeID)
	})
}

// A device checks Y in while offline; by the time it syncs another device
// has already redeemed the same ticket. The conflict settles the entry.
func TestSyncQueue_ConflictCountsAsSynced(t *testing.T) {
	fc := &fakeClient{}
	svc, db := newCached(t, fc)
	ctx := context.Background()

	res, err := svc.CheckInOffline(ctx, testKey, evMain+":"+attY+":tok-y")
	require.NoError(t, err)
	require.True(t, res.Success())
	require.Equal(t, 1, countRows(t, db, "outbox"))

	var checkedIn bool
	require.NoError(t, db.QueryRow(`SELECT checked_in FROM cached_attendees WHERE id = ?`, attY).Scan(&checkedIn))
	require.True(t, checkedIn)

	fc.CheckInFn = func(c checkInCall) (*models.CheckInResult, error) {
		return &models.CheckInResult{Outcome: models.OutcomeAlreadyCheckedIn, Message: "Already checked in: Yara Young"}, nil
	}

	sr, err := svc.SyncQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, &models.SyncResult{Synced: 1, Failed: 0, Remaining: 0}, sr)
	assert.Equal(t, 0, countRows(t, db, "outbox"))

	calls := fc.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, evMain+":"+attY+":tok-y", calls[0].QRData)
	assert.Equal(t, "gate-1", calls[0].DeviceID)
}

// Two scanners both admit Y while offline. Whichever syncs first wins; the
// other sees a conflict and still counts as synced.
func TestSyncQueue_TwoDevicesOffline(t *testing.T) {
	var redeemed bool
	server := func(c checkInCall) (*models.CheckInResult, error) {
		if redeemed {
			return &models.CheckInResult{Outcome: models.OutcomeAlreadyCheckedIn}, nil
		}
		redeemed = true
		return &models.CheckInResult{Outcome: models.OutcomeSuccess}, nil
	}

	ctx := context.Background()
	qr := evMain + ":" + attY + ":tok-y"

	fa := &fakeClient{CheckInFn: server}
	a, _ := newCached(t, fa)
	fb := &fakeClient{CheckInFn: server}
	b, _ := newCached(t, fb)

	ra, err := a.CheckInOffline(ctx, testKey, qr)
	require.NoError(t, err)
	rb, err := b.CheckInOffline(ctx, testKey, qr)
	require.NoError(t, err)
	require.True(t, ra.Success())
	require.True(t, rb.Success())

	sa, err := a.SyncQueue(ctx)
	require.NoError(t, err)
	sb, err := b.SyncQueue(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, sa.Synced)
	assert.Equal(t, 1, sb.Synced)
	assert.Zero(t, sa.Failed+sb.Failed)
	assert.Zero(t, sa.Remaining+sb.Remaining)
}

func TestSyncQueue_StopsWhenUnavailable(t *testing.T) {
	fc := &fakeClient{}
	svc, _ := newCached(t, fc)
	ctx := context.Background()

	_, err := svc.CheckInOffline(ctx, testKey, evMain+":"+attY+":tok-y")
	require.NoError(t, err)
	_, err = svc.CheckInAttendeeOffline(ctx, attZ)
	require.NoError(t, err)

	fc.CheckInFn = func(c checkInCall) (*models.CheckInResult, error) {
		return nil, client.ErrUnavailable
	}

	sr, err := svc.SyncQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, &models.SyncResult{Synced: 0, Failed: 1, Remaining: 2}, sr)
	assert.Len(t, fc.calls(), 1)

	pending, err := svc.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, "server unavailable", pending[0].LastError)
	assert.Equal(t, 0, pending[1].Attempts)
}

func TestSyncQueue_RateLimitedStops(t *testing.T) {
	fc := &fakeClient{}
	svc, _ := newCached(t, fc)
	ctx := context.Background()

	_, err := svc.CheckInAttendeeOffline(ctx, attY)
	require.NoError(t, err)
	_, err = svc.CheckInAttendeeOffline(ctx, attZ)
	require.NoError(t, err)

	fc.CheckInFn = func(c checkInCall) (*models.CheckInResult, error) {
		return &models.CheckInResult{Outcome: models.OutcomeRateLimited, Message: "Too many requests", RetryAfter: time.Second}, nil
	}

	sr, err := svc.SyncQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sr.Failed)
	assert.Equal(t, 2, sr.Remaining)
	assert.Len(t, fc.calls(), 1)
}

func TestSyncQueue_RejectionKeptForInspection(t *testing.T) {
	fc := &fakeClient{}
	svc, _ := newCached(t, fc)
	ctx := context.Background()

	_, err := svc.CheckInAttendeeOffline(ctx, attY)
	require.NoError(t, err)
	_, err = svc.CheckInAttendeeOffline(ctx, attZ)
	require.NoError(t, err)

	fc.CheckInFn = func(c checkInCall) (*models.CheckInResult, error) {
		if c.AttendeeID == attY {
			return &models.CheckInResult{Outcome: models.OutcomeNotFound, Message: "Attendee not found"}, nil
		}
		return &models.CheckInResult{Outcome: models.OutcomeSuccess}, nil
	}

	sr, err := svc.SyncQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, &models.SyncResult{Synced: 1, Failed: 1, Remaining: 1}, sr)

	pending, err := svc.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, attY, pending[0].AttendeeID)
	assert.Equal(t, "not_found: Attendee not found", pending[0].LastError)

	require.NoError(t, svc.Discard(ctx, pending[0].ID))
	info, err := svc.CacheInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, info.Pending)
}

func TestSyncQueue_OtherErrorsContinue(t *testing.T) {
	fc := &fakeClient{}
	svc, _ := newCached(t, fc)
	ctx := context.Background()

	_, err := svc.CheckInAttendeeOffline(ctx, attY)
	require.NoError(t, err)
	_, err = svc.CheckInAttendeeOffline(ctx, attZ)
	require.NoError(t, err)

	fc.CheckInFn = func(c checkInCall) (*models.CheckInResult, error) {
		if c.AttendeeID == attY {
			return nil, errors.New("rpc error: boom")
		}
		return &models.CheckInResult{Outcome: models.OutcomeSuccess}, nil
	}

	sr, err := svc.SyncQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, &models.SyncResult{Synced: 1, Failed: 1, Remaining: 1}, sr)
	assert.Len(t, fc.calls(), 2)
}

func TestSyncQueue_EmptyAndCancelled(t *testing.T) {
	fc := &fakeClient{}
	svc, _ := newCached(t, fc)

	sr, err := svc.SyncQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &models.SyncResult{}, sr)

	_, err = svc.CheckInAttendeeOffline(context.Background(), attY)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.SyncQueue(ctx)
	require.Error(t, err)
	assert.Empty(t, fc.calls())
}

func TestDiscard_Unknown(t *testing.T) {
	svc, _ := newCached(t, &fakeClient{})
	err := svc.Discard(context.Background(), "nope")
	require.Error(t, err)
}

func TestClearCache_KeepsOutbox(t *testing.T) {
	svc, _ := newCached(t, &fakeClient{})
	ctx := context.Background()

	_, err := svc.CheckInAttendeeOffline(ctx, attY)
	require.NoError(t, err)

	require.NoError(t, svc.ClearCache(ctx))

	info, err := svc.CacheInfo(ctx)
	require.NoError(t, err)
	assert.True(t, info.CachedAt.IsZero())
	assert.Equal(t, 0, info.Attendees)
	assert.Equal(t, 1, info.Pending)

	res, err := svc.CheckInAttendeeOffline(ctx, attZ)
	require.NoError(t, err)
	assert.Equal(t, MsgNotCached, res.Message)
}

func TestNoteCheckedIn(t *testing.T) {
	svc, _ := newCached(t, &fakeClient{})
	ctx := context.Background()

	require.NoError(t, svc.NoteCheckedIn(ctx, attY, testNow))
	// attendees outside the cache are ignored
	require.NoError(t, svc.NoteCheckedIn(ctx, attMissing, testNow))

	info, err := svc.CacheInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, info.CheckedIn)
	assert.Equal(t, 0, info.Pending)
}
