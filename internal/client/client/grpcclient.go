package client

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/doorkeeper/internal/client/models"
	"github.com/dmitrijs2005/doorkeeper/internal/common"
	pb "github.com/dmitrijs2005/doorkeeper/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

type GRPCClient struct {
	endpointURL  string
	conn         *grpc.ClientConn
	client       pb.CheckInServiceClient
	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) tokens() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, s.refreshToken
}

func (s *GRPCClient) setTokens(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken, s.refreshToken = access, refresh
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	accessToken, refreshToken := s.tokens()
	ctx = withAccessToken(ctx, accessToken)

	err := invoker(ctx, method, req, reply, cc, opts...)

	if err != nil {

		st, ok := status.FromError(err)
		if !ok {
			return err
		}

		if st.Code() != codes.Unauthenticated {
			return err
		}
		if st.Message() != common.ErrTokenExpired.Error() {
			return err
		}

		if refreshToken == "" {
			return err
		}

		refreshTokenResponse, err := s.client.RefreshToken(ctx, &pb.RefreshTokenRequest{RefreshToken: refreshToken})
		if err != nil {
			return err
		}

		s.setTokens(refreshTokenResponse.AccessToken, refreshTokenResponse.RefreshToken)

		// retry once with the fresh access token
		ctx = withAccessToken(ctx, refreshTokenResponse.AccessToken)
		return invoker(ctx, method, req, reply, cc, opts...)

	}

	return err
}

func NewDoorkeeperClient(endpointURL string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	err := c.InitGRPCClient()
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {

	conn, err := grpc.NewClient(s.endpointURL, grpc.WithTransportCredentials(insecure.NewCredentials()), grpc.WithUnaryInterceptor(s.accessTokenInterceptor))
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = pb.NewCheckInServiceClient(conn)
	return nil
}

func (s *GRPCClient) Register(ctx context.Context, userName string, salt []byte, key []byte) error {

	req := &pb.RegisterUserRequest{Username: userName, Salt: salt, Verifier: key}

	_, err := s.client.RegisterUser(ctx, req)

	if err != nil {
		return s.mapError(err)
	}

	return nil

}

func (s *GRPCClient) GetSalt(ctx context.Context, userName string) ([]byte, error) {

	ctx, cancel := context.WithTimeout(ctx, 12*time.Second)
	defer cancel()

	req := &pb.GetSaltRequest{Username: userName}

	resp, err := s.client.GetSalt(ctx, req)

	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Salt, nil
}

func (s *GRPCClient) Login(ctx context.Context, userName string, key []byte) error {

	req := &pb.LoginRequest{Username: userName, VerifierCandidate: key}

	resp, err := s.client.Login(ctx, req)

	if err != nil {
		return s.mapError(err)
	}

	s.setTokens(resp.AccessToken, resp.RefreshToken)

	return nil

}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) Ping(ctx context.Context) error {

	resp, err := s.client.Ping(ctx, &emptypb.Empty{})
	if err != nil {
		return s.mapError(err)
	}

	if resp.GetValue() != "OK" {
		return ErrUnavailable
	}

	return nil

}

// CheckIn redeems a scanned payload. Throttling is reported as a
// rate_limited result carrying the server's retry-after hint.
func (s *GRPCClient) CheckIn(ctx context.Context, qrData, deviceID string) (*models.CheckInResult, error) {
	var trailer metadata.MD

	resp, err := s.client.CheckIn(ctx, &pb.CheckInRequest{QRData: qrData, DeviceID: deviceID}, grpc.Trailer(&trailer))
	if err != nil {
		return s.checkInError(err, trailer)
	}
	return fromPbCheckIn(resp), nil
}

func (s *GRPCClient) CheckInAttendee(ctx context.Context, attendeeID string) (*models.CheckInResult, error) {
	var trailer metadata.MD

	resp, err := s.client.CheckInAttendee(ctx, &pb.CheckInAttendeeRequest{AttendeeID: attendeeID}, grpc.Trailer(&trailer))
	if err != nil {
		return s.checkInError(err, trailer)
	}
	return fromPbCheckIn(resp), nil
}

func (s *GRPCClient) checkInError(err error, trailer metadata.MD) (*models.CheckInResult, error) {
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.ResourceExhausted {
		return nil, s.mapError(err)
	}

	res := &models.CheckInResult{Outcome: models.OutcomeRateLimited, Message: st.Message()}
	if v := trailer.Get(common.RetryAfterHeaderName); len(v) > 0 {
		if secs, err := strconv.Atoi(v[0]); err == nil {
			res.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return res, nil
}

func (s *GRPCClient) OfflineSnapshot(ctx context.Context, eventID string) (*models.Snapshot, error) {
	resp, err := s.client.GetOfflineSnapshot(ctx, &pb.GetOfflineSnapshotRequest{EventID: eventID})
	if err != nil {
		return nil, s.mapError(err)
	}
	return fromPbSnapshot(resp), nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

func fromPbCheckIn(r *pb.CheckInResponse) *models.CheckInResult {
	res := &models.CheckInResult{
		Outcome:    models.Outcome(r.Outcome),
		Message:    r.Message,
		RetryAfter: time.Duration(r.RetryAfterSeconds) * time.Second,
	}
	if r.Event != nil {
		res.Event = &models.Event{ID: r.Event.ID, Name: r.Event.Name}
	}
	if a := r.Attendee; a != nil {
		res.Attendee = &models.Attendee{
			ID:          a.ID,
			EventID:     a.EventID,
			FirstName:   a.FirstName,
			LastName:    a.LastName,
			Email:       a.Email,
			Company:     a.Company,
			CheckedIn:   a.CheckedIn,
			CheckedInAt: a.CheckedInAt,
		}
		if res.Event != nil {
			res.Attendee.EventName = res.Event.Name
		}
	}
	return res
}

func fromPbSnapshot(s *pb.OfflineSnapshot) *models.Snapshot {
	out := &models.Snapshot{
		CachedAt:       s.CachedAt,
		DefaultEventID: s.DefaultEventID,
		Events:         make([]*models.Event, 0, len(s.Events)),
		Attendees:      make([]*models.SnapshotAttendee, 0, len(s.Attendees)),
	}
	for _, e := range s.Events {
		out.Events = append(out.Events, &models.Event{ID: e.ID, Name: e.Name})
	}
	for _, a := range s.Attendees {
		out.Attendees = append(out.Attendees, &models.SnapshotAttendee{
			Attendee: models.Attendee{
				ID:          a.ID,
				EventID:     a.EventID,
				EventName:   a.EventName,
				FirstName:   a.FirstName,
				LastName:    a.LastName,
				Email:       a.Email,
				Company:     a.Company,
				CheckedIn:   a.CheckedIn,
				CheckedInAt: a.CheckedInAt,
				QRExpiresAt: a.QRExpiresAt,
			},
			QRToken: a.QRToken,
		})
	}
	return out
}
