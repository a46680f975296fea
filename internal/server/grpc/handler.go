package grpc

import (
	"context"
	"errors"
	"strconv"

	"github.com/dmitrijs2005/doorkeeper/internal/common"
	pb "github.com/dmitrijs2005/doorkeeper/internal/proto"
	"github.com/dmitrijs2005/doorkeeper/internal/qrcodec"
	"github.com/dmitrijs2005/doorkeeper/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func (s *GRPCServer) Ping(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String("OK"), nil
}

func (s *GRPCServer) RegisterUser(ctx context.Context, req *pb.RegisterUserRequest) (*pb.RegisterUserResponse, error) {

	s.logger.Info(ctx, "Registration request")

	if req.Username == "" || len(req.Verifier) == 0 {
		return nil, status.Error(codes.InvalidArgument, "username and verifier are required")
	}

	// only an admin may create another admin
	if req.Role == common.RoleAdmin {
		if claims, ok := claimsFrom(ctx); !ok || !claims.IsAdmin() {
			return nil, status.Error(codes.PermissionDenied, "admin role required")
		}
	}

	result, err := s.svc.Users.Register(ctx, req.Username, req.Salt, req.Verifier, req.Role)
	if err != nil {
		s.logger.Error(ctx, "registration failed", "error", err)
		return nil, status.Error(codes.Internal, "registration failed")
	}

	s.logger.Info(ctx, "Registered", "username", req.Username)
	return &pb.RegisterUserResponse{UserID: result.ID, Username: result.UserName}, nil
}

func (s *GRPCServer) GetSalt(ctx context.Context, req *pb.GetSaltRequest) (*pb.GetSaltResponse, error) {

	result, err := s.svc.Users.GetSalt(ctx, req.Username)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return &pb.GetSaltResponse{Salt: result}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *pb.LoginRequest) (*pb.LoginResponse, error) {

	tokens, err := s.svc.Users.Login(ctx, req.Username, req.VerifierCandidate)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}
		return nil, status.Error(codes.Internal, "internal error")
	}

	return &pb.LoginResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

func (s *GRPCServer) RefreshToken(ctx context.Context, req *pb.RefreshTokenRequest) (*pb.RefreshTokenResponse, error) {

	tokens, err := s.svc.Users.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, common.ErrRefreshTokenExpired) || errors.Is(err, common.ErrorUnauthorized) {
			return nil, status.Error(codes.Unauthenticated, "refresh token rejected")
		}
		s.logger.Error(ctx, "refresh failed", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}

	return &pb.RefreshTokenResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

func (s *GRPCServer) CheckIn(ctx context.Context, req *pb.CheckInRequest) (*pb.CheckInResponse, error) {

	deviceID := req.DeviceID
	if deviceID == "" {
		deviceID = firstMD(ctx, common.DeviceIDHeaderName)
	}

	res, err := s.svc.CheckIns.CheckIn(ctx, services.CheckInRequest{
		QRData:   req.QRData,
		DeviceID: deviceID,
		Caller:   s.callerAddr(ctx),
		StaffID:  staffID(ctx),
	})
	return s.checkInResponse(ctx, res, err)
}

func (s *GRPCServer) CheckInAttendee(ctx context.Context, req *pb.CheckInAttendeeRequest) (*pb.CheckInResponse, error) {

	res, err := s.svc.CheckIns.CheckInAttendee(ctx, services.ManualCheckInRequest{
		AttendeeID: req.AttendeeID,
		Caller:     s.callerAddr(ctx),
		StaffID:    staffID(ctx),
	})
	return s.checkInResponse(ctx, res, err)
}

func (s *GRPCServer) checkInResponse(ctx context.Context, res *services.CheckInResult, err error) (*pb.CheckInResponse, error) {
	if err != nil {
		s.logger.Error(ctx, "check-in failed", "error", err)
		return nil, status.Error(codes.Internal, services.MsgInternal)
	}

	if res.Outcome == services.OutcomeRateLimited {
		secs := strconv.Itoa(res.RetryAfterSeconds())
		_ = grpc.SetTrailer(ctx, metadata.Pairs(common.RetryAfterHeaderName, secs))
		return nil, status.Error(codes.ResourceExhausted, res.Message)
	}

	return toPbCheckIn(res), nil
}

func (s *GRPCServer) IssueToken(ctx context.Context, req *pb.IssueTokenRequest) (*pb.IssueTokenResponse, error) {

	if req.AttendeeID == "" {
		return nil, status.Error(codes.InvalidArgument, "Missing attendee ID")
	}

	t, err := s.svc.Issuer.Issue(ctx, req.AttendeeID, req.EventID)
	if err != nil {
		switch {
		case errors.Is(err, qrcodec.ErrInvalidIdentifier), errors.Is(err, qrcodec.ErrInvalidFormat):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		case errors.Is(err, common.ErrorNotFound):
			return nil, status.Error(codes.NotFound, services.MsgAttendeeNotFound)
		}
		s.logger.Error(ctx, "issue failed", "attendee_id", req.AttendeeID, "error", err)
		return nil, status.Error(codes.Internal, "failed to issue token")
	}

	return &pb.IssueTokenResponse{Payload: t.Payload, ExpiresAt: t.ExpiresAt, ImageURL: t.ImageURL}, nil
}

func (s *GRPCServer) BulkRefresh(ctx context.Context, req *pb.BulkRefreshRequest) (*pb.BulkRefreshResponse, error) {

	res, err := s.svc.Bulk.Refresh(ctx, req.EventID, req.Confirm)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrConfirmationRequired):
			return nil, status.Error(codes.FailedPrecondition, "confirmation required")
		case errors.Is(err, common.ErrorNotFound):
			return nil, status.Error(codes.NotFound, "No attendees found")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, status.FromContextError(err).Err()
		}
		s.logger.Error(ctx, "bulk refresh failed", "error", err)
		return nil, status.Error(codes.Internal, "bulk refresh failed")
	}

	return &pb.BulkRefreshResponse{
		Refreshed: int32(res.Refreshed),
		Failed:    int32(res.Failed),
		Total:     int32(res.Total),
		Errors:    res.Errors,
	}, nil
}

func (s *GRPCServer) GetOfflineSnapshot(ctx context.Context, req *pb.GetOfflineSnapshotRequest) (*pb.OfflineSnapshot, error) {

	snap, err := s.svc.Snapshots.OfflineSnapshot(ctx, req.EventID)
	if err != nil {
		s.logger.Error(ctx, "snapshot failed", "error", err)
		return nil, status.Error(codes.Internal, "failed to build snapshot")
	}

	return toPbSnapshot(snap), nil
}

func staffID(ctx context.Context) string {
	if c, ok := claimsFrom(ctx); ok {
		return c.UserID
	}
	return ""
}
