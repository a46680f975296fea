package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/doorkeeper/internal/common"
	"github.com/dmitrijs2005/doorkeeper/internal/logging"
	pb "github.com/dmitrijs2005/doorkeeper/internal/proto"
	"github.com/dmitrijs2005/doorkeeper/internal/server/auth"
	"github.com/dmitrijs2005/doorkeeper/internal/server/models"
	"github.com/dmitrijs2005/doorkeeper/internal/server/services"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

const testSecret = "secret"

type fakeUsers struct {
	registered []string
	roles      []string
	loginErr   error
	refreshErr error
}

func (f *fakeUsers) Register(_ context.Context, username string, _, _ []byte, role string) (*models.User, error) {
	f.registered = append(f.registered, username)
	f.roles = append(f.roles, role)
	return &models.User{ID: "u-" + username, UserName: username, Role: role}, nil
}

func (f *fakeUsers) GetSalt(context.Context, string) ([]byte, error) { return []byte("salt"), nil }

func (f *fakeUsers) Login(context.Context, string, []byte) (*services.TokenPair, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &services.TokenPair{AccessToken: "a", RefreshToken: "r"}, nil
}

func (f *fakeUsers) RefreshToken(context.Context, string) (*services.TokenPair, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &services.TokenPair{AccessToken: "a2", RefreshToken: "r2"}, nil
}

type fakeCheckIns struct {
	res  *services.CheckInResult
	err  error
	last services.CheckInRequest
	man  services.ManualCheckInRequest
}

func (f *fakeCheckIns) CheckIn(_ context.Context, req services.CheckInRequest) (*services.CheckInResult, error) {
	f.last = req
	return f.res, f.err
}

func (f *fakeCheckIns) CheckInAttendee(_ context.Context, req services.ManualCheckInRequest) (*services.CheckInResult, error) {
	f.man = req
	return f.res, f.err
}

type fakeIssuer struct{ err error }

func (f *fakeIssuer) Issue(_ context.Context, attendeeID, eventID string) (*services.IssuedToken, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &services.IssuedToken{AttendeeID: attendeeID, EventID: eventID, Payload: eventID + ":" + attendeeID + ":t"}, nil
}

type fakeBulk struct {
	res *services.BulkRefreshResult
	err error
}

func (f *fakeBulk) Refresh(context.Context, string, bool) (*services.BulkRefreshResult, error) {
	return f.res, f.err
}

type fakeSnapshots struct{ snap *services.Snapshot }

func (f *fakeSnapshots) OfflineSnapshot(context.Context, string) (*services.Snapshot, error) {
	return f.snap, nil
}

type fixture struct {
	users    *fakeUsers
	checkIns *fakeCheckIns
	issuer   *fakeIssuer
	bulk     *fakeBulk
	snaps    *fakeSnapshots
	server   *GRPCServer
	client   pb.CheckInServiceClient
	conn     *grpc.ClientConn
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:    &fakeUsers{},
		checkIns: &fakeCheckIns{},
		issuer:   &fakeIssuer{},
		bulk:     &fakeBulk{},
		snaps:    &fakeSnapshots{},
	}
	f.server = NewGRPCServer("bufnet", logging.Nop(), Services{
		Users:     f.users,
		CheckIns:  f.checkIns,
		Issuer:    f.issuer,
		Bulk:      f.bulk,
		Snapshots: f.snaps,
	}, testSecret, true)

	lis := bufconn.Listen(1 << 20)
	srv := f.server.newServer()
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	f.conn = conn
	f.client = pb.NewCheckInServiceClient(conn)
	return f
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := auth.GenerateToken(userID, role, []byte(testSecret), time.Minute)
	require.NoError(t, err)
	return tok
}

func authed(t *testing.T, role string) context.Context {
	return withToken(context.Background(), token(t, "staff-1", role))
}

func withToken(ctx context.Context, tok string) context.Context {
	return metadataCtx(ctx, common.AccessTokenHeaderName, tok)
}
