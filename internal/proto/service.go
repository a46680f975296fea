package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "doorkeeper.v1.CheckInService"

// Full method names, as seen by interceptors.
const (
	MethodPing               = "/" + ServiceName + "/Ping"
	MethodRegisterUser       = "/" + ServiceName + "/RegisterUser"
	MethodGetSalt            = "/" + ServiceName + "/GetSalt"
	MethodLogin              = "/" + ServiceName + "/Login"
	MethodRefreshToken       = "/" + ServiceName + "/RefreshToken"
	MethodCheckIn            = "/" + ServiceName + "/CheckIn"
	MethodCheckInAttendee    = "/" + ServiceName + "/CheckInAttendee"
	MethodIssueToken         = "/" + ServiceName + "/IssueToken"
	MethodBulkRefresh        = "/" + ServiceName + "/BulkRefresh"
	MethodGetOfflineSnapshot = "/" + ServiceName + "/GetOfflineSnapshot"
)

// CheckInServiceServer is implemented by the check-in server.
type CheckInServiceServer interface {
	Ping(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	RegisterUser(context.Context, *RegisterUserRequest) (*RegisterUserResponse, error)
	GetSalt(context.Context, *GetSaltRequest) (*GetSaltResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	RefreshToken(context.Context, *RefreshTokenRequest) (*RefreshTokenResponse, error)
	CheckIn(context.Context, *CheckInRequest) (*CheckInResponse, error)
	CheckInAttendee(context.Context, *CheckInAttendeeRequest) (*CheckInResponse, error)
	IssueToken(context.Context, *IssueTokenRequest) (*IssueTokenResponse, error)
	BulkRefresh(context.Context, *BulkRefreshRequest) (*BulkRefreshResponse, error)
	GetOfflineSnapshot(context.Context, *GetOfflineSnapshotRequest) (*OfflineSnapshot, error)
}

// UnimplementedCheckInServiceServer answers every method with Unimplemented.
// Embed it to stay forward compatible.
type UnimplementedCheckInServiceServer struct{}

func (UnimplementedCheckInServiceServer) Ping(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Ping not implemented")
}
func (UnimplementedCheckInServiceServer) RegisterUser(context.Context, *RegisterUserRequest) (*RegisterUserResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RegisterUser not implemented")
}
func (UnimplementedCheckInServiceServer) GetSalt(context.Context, *GetSaltRequest) (*GetSaltResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetSalt not implemented")
}
func (UnimplementedCheckInServiceServer) Login(context.Context, *LoginRequest) (*LoginResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Login not implemented")
}
func (UnimplementedCheckInServiceServer) RefreshToken(context.Context, *RefreshTokenRequest) (*RefreshTokenResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RefreshToken not implemented")
}
func (UnimplementedCheckInServiceServer) CheckIn(context.Context, *CheckInRequest) (*CheckInResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CheckIn not implemented")
}
func (UnimplementedCheckInServiceServer) CheckInAttendee(context.Context, *CheckInAttendeeRequest) (*CheckInResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CheckInAttendee not implemented")
}
func (UnimplementedCheckInServiceServer) IssueToken(context.Context, *IssueTokenRequest) (*IssueTokenResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method IssueToken not implemented")
}
func (UnimplementedCheckInServiceServer) BulkRefresh(context.Context, *BulkRefreshRequest) (*BulkRefreshResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method BulkRefresh not implemented")
}
func (UnimplementedCheckInServiceServer) GetOfflineSnapshot(context.Context, *GetOfflineSnapshotRequest) (*OfflineSnapshot, error) {
	return nil, status.Error(codes.Unimplemented, "method GetOfflineSnapshot not implemented")
}

// unary adapts a typed server method to a grpc.MethodHandler.
func unary[Req any, Resp any](fullMethod string, call func(CheckInServiceServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CheckInServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CheckInServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// CheckInServiceDesc describes the service for grpc.Server.RegisterService.
var CheckInServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CheckInServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ping", Handler: unary(MethodPing, CheckInServiceServer.Ping)},
		{MethodName: "RegisterUser", Handler: unary(MethodRegisterUser, CheckInServiceServer.RegisterUser)},
		{MethodName: "GetSalt", Handler: unary(MethodGetSalt, CheckInServiceServer.GetSalt)},
		{MethodName: "Login", Handler: unary(MethodLogin, CheckInServiceServer.Login)},
		{MethodName: "RefreshToken", Handler: unary(MethodRefreshToken, CheckInServiceServer.RefreshToken)},
		{MethodName: "CheckIn", Handler: unary(MethodCheckIn, CheckInServiceServer.CheckIn)},
		{MethodName: "CheckInAttendee", Handler: unary(MethodCheckInAttendee, CheckInServiceServer.CheckInAttendee)},
		{MethodName: "IssueToken", Handler: unary(MethodIssueToken, CheckInServiceServer.IssueToken)},
		{MethodName: "BulkRefresh", Handler: unary(MethodBulkRefresh, CheckInServiceServer.BulkRefresh)},
		{MethodName: "GetOfflineSnapshot", Handler: unary(MethodGetOfflineSnapshot, CheckInServiceServer.GetOfflineSnapshot)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "doorkeeper/v1/checkin.proto",
}

func RegisterCheckInServiceServer(s grpc.ServiceRegistrar, srv CheckInServiceServer) {
	s.RegisterService(&CheckInServiceDesc, srv)
}

// CheckInServiceClient is the scanner-side stub. Every call is sent with the
// JSON content subtype.
type CheckInServiceClient interface {
	Ping(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	RegisterUser(ctx context.Context, in *RegisterUserRequest, opts ...grpc.CallOption) (*RegisterUserResponse, error)
	GetSalt(ctx context.Context, in *GetSaltRequest, opts ...grpc.CallOption) (*GetSaltResponse, error)
	Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error)
	RefreshToken(ctx context.Context, in *RefreshTokenRequest, opts ...grpc.CallOption) (*RefreshTokenResponse, error)
	CheckIn(ctx context.Context, in *CheckInRequest, opts ...grpc.CallOption) (*CheckInResponse, error)
	CheckInAttendee(ctx context.Context, in *CheckInAttendeeRequest, opts ...grpc.CallOption) (*CheckInResponse, error)
	IssueToken(ctx context.Context, in *IssueTokenRequest, opts ...grpc.CallOption) (*IssueTokenResponse, error)
	BulkRefresh(ctx context.Context, in *BulkRefreshRequest, opts ...grpc.CallOption) (*BulkRefreshResponse, error)
	GetOfflineSnapshot(ctx context.Context, in *GetOfflineSnapshotRequest, opts ...grpc.CallOption) (*OfflineSnapshot, error)
}

type checkInServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewCheckInServiceClient(cc grpc.ClientConnInterface) CheckInServiceClient {
	return &checkInServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *checkInServiceClient) Ping(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	return invoke[wrapperspb.StringValue](ctx, c.cc, MethodPing, in, opts)
}
func (c *checkInServiceClient) RegisterUser(ctx context.Context, in *RegisterUserRequest, opts ...grpc.CallOption) (*RegisterUserResponse, error) {
	return invoke[RegisterUserResponse](ctx, c.cc, MethodRegisterUser, in, opts)
}
func (c *checkInServiceClient) GetSalt(ctx context.Context, in *GetSaltRequest, opts ...grpc.CallOption) (*GetSaltResponse, error) {
	return invoke[GetSaltResponse](ctx, c.cc, MethodGetSalt, in, opts)
}
func (c *checkInServiceClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, MethodLogin, in, opts)
}
func (c *checkInServiceClient) RefreshToken(ctx context.Context, in *RefreshTokenRequest, opts ...grpc.CallOption) (*RefreshTokenResponse, error) {
	return invoke[RefreshTokenResponse](ctx, c.cc, MethodRefreshToken, in, opts)
}
func (c *checkInServiceClient) CheckIn(ctx context.Context, in *CheckInRequest, opts ...grpc.CallOption) (*CheckInResponse, error) {
	return invoke[CheckInResponse](ctx, c.cc, MethodCheckIn, in, opts)
}
func (c *checkInServiceClient) CheckInAttendee(ctx context.Context, in *CheckInAttendeeRequest, opts ...grpc.CallOption) (*CheckInResponse, error) {
	return invoke[CheckInResponse](ctx, c.cc, MethodCheckInAttendee, in, opts)
}
func (c *checkInServiceClient) IssueToken(ctx context.Context, in *IssueTokenRequest, opts ...grpc.CallOption) (*IssueTokenResponse, error) {
	return invoke[IssueTokenResponse](ctx, c.cc, MethodIssueToken, in, opts)
}
func (c *checkInServiceClient) BulkRefresh(ctx context.Context, in *BulkRefreshRequest, opts ...grpc.CallOption) (*BulkRefreshResponse, error) {
	return invoke[BulkRefreshResponse](ctx, c.cc, MethodBulkRefresh, in, opts)
}
func (c *checkInServiceClient) GetOfflineSnapshot(ctx context.Context, in *GetOfflineSnapshotRequest, opts ...grpc.CallOption) (*OfflineSnapshot, error) {
	return invoke[OfflineSnapshot](ctx, c.cc, MethodGetOfflineSnapshot, in, opts)
}
