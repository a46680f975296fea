// Package grpc serves the check-in API to scanner devices.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/doorkeeper/internal/logging"
	pb "github.com/dmitrijs2005/doorkeeper/internal/proto"
	"github.com/dmitrijs2005/doorkeeper/internal/server/models"
	"github.com/dmitrijs2005/doorkeeper/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Users interface {
	Register(ctx context.Context, username string, salt, verifier []byte, role string) (*models.User, error)
	GetSalt(ctx context.Context, username string) ([]byte, error)
	Login(ctx context.Context, username string, verifierCandidate []byte) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
}

type CheckIns interface {
	CheckIn(ctx context.Context, req services.CheckInRequest) (*services.CheckInResult, error)
	CheckInAttendee(ctx context.Context, req services.ManualCheckInRequest) (*services.CheckInResult, error)
}

type Issuer interface {
	Issue(ctx context.Context, attendeeID, eventID string) (*services.IssuedToken, error)
}

type BulkRefresher interface {
	Refresh(ctx context.Context, eventID string, confirm bool) (*services.BulkRefreshResult, error)
}

type Snapshots interface {
	OfflineSnapshot(ctx context.Context, eventID string) (*services.Snapshot, error)
}

// Services groups the business logic the server exposes.
type Services struct {
	Users     Users
	CheckIns  CheckIns
	Issuer    Issuer
	Bulk      BulkRefresher
	Snapshots Snapshots
}

type GRPCServer struct {
	pb.UnimplementedCheckInServiceServer
	address    string
	svc        Services
	logger     logging.Logger
	jwtSecret  []byte
	trustProxy bool
	health     *health.Server
}

func NewGRPCServer(a string, l logging.Logger, svc Services, secretKey string, trustProxy bool) *GRPCServer {
	return &GRPCServer{
		address:    a,
		logger:     l.With("module", "grpc_server"),
		svc:        svc,
		jwtSecret:  []byte(secretKey),
		trustProxy: trustProxy,
		health:     health.NewServer(),
	}
}

// newServer builds the grpc.Server with interceptors and services registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	pb.RegisterCheckInServiceServer(srv, s)
	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus(pb.ServiceName, healthpb.HealthCheckResponse_SERVING)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
