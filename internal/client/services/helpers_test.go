package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dmitrijs2005/doorkeeper/internal/client/client"
	"github.com/dmitrijs2005/doorkeeper/internal/client/models"
	"github.com/stretchr/testify/require"
)

// ---- helpers ----

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "scanner.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func insertMeta(t *testing.T, db *sql.DB, k string, v []byte) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO metadata(key,value) VALUES(?,?)`, k, v)
	require.NoError(t, err)
}

func getMeta(t *testing.T, db *sql.DB, k string) []byte {
	t.Helper()
	var v []byte
	err := db.QueryRow(`SELECT value FROM metadata WHERE key=?`, k).Scan(&v)
	require.NoError(t, err)
	return v
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

// ---- fake client ----

type checkInCall struct {
	QRData     string
	AttendeeID string
	DeviceID   string
}

// fakeClient implements client.Client for service unit tests.
type fakeClient struct {
	CloseErr    error
	RegisterErr error

	GetSaltRet []byte
	GetSaltErr error

	LoginErr error

	PingErr error

	Snapshot    *models.Snapshot
	SnapshotErr error

	// CheckInFn answers both CheckIn and CheckInAttendee; nil means success.
	CheckInFn func(call checkInCall) (*models.CheckInResult, error)

	LastRegisterUser string
	LastRegisterSalt []byte
	LastRegisterKey  []byte

	LastGetSaltUser string

	LastLoginUser string
	LastLoginKey  []byte

	LastSnapshotEvent string

	mu    sync.Mutex
	Calls []checkInCall
}

var _ client.Client = (*fakeClient)(nil)

func (f *fakeClient) Close() error { return f.CloseErr }

func (f *fakeClient) Register(ctx context.Context, username string, salt []byte, key []byte) error {
	f.LastRegisterUser = username
	f.LastRegisterSalt = append([]byte(nil), salt...)
	f.LastRegisterKey = append([]byte(nil), key...)
	return f.RegisterErr
}

func (f *fakeClient) GetSalt(ctx context.Context, username string) ([]byte, error) {
	f.LastGetSaltUser = username
	return append([]byte(nil), f.GetSaltRet...), f.GetSaltErr
}

func (f *fakeClient) Login(ctx context.Context, username string, key []byte) error {
	f.LastLoginUser = username
	f.LastLoginKey = append([]byte(nil), key...)
	return f.LoginErr
}

func (f *fakeClient) Ping(ctx context.Context) error { return f.PingErr }

func (f *fakeClient) OfflineSnapshot(ctx context.Context, eventID string) (*models.Snapshot, error) {
	f.LastSnapshotEvent = eventID
	return f.Snapshot, f.SnapshotErr
}

func (f *fakeClient) CheckIn(ctx context.Context, qrData, deviceID string) (*models.CheckInResult, error) {
	return f.checkIn(checkInCall{QRData: qrData, DeviceID: deviceID})
}

func (f *fakeClient) CheckInAttendee(ctx context.Context, attendeeID string) (*models.CheckInResult, error) {
	return f.checkIn(checkInCall{AttendeeID: attendeeID})
}

func (f *fakeClient) checkIn(c checkInCall) (*models.CheckInResult, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, c)
	f.mu.Unlock()
	if f.CheckInFn == nil {
		return &models.CheckInResult{Outcome: models.OutcomeSuccess}, nil
	}
	return f.CheckInFn(c)
}

func (f *fakeClient) calls() []checkInCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]checkInCall(nil), f.Calls...)
}
