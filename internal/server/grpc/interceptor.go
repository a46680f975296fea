package grpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/doorkeeper/internal/common"
	"github.com/dmitrijs2005/doorkeeper/internal/netx"
	pb "github.com/dmitrijs2005/doorkeeper/internal/proto"
	"github.com/dmitrijs2005/doorkeeper/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// publicMethods are served without an access token.
var publicMethods = map[string]bool{
	pb.MethodPing:         true,
	pb.MethodRegisterUser: true,
	pb.MethodGetSalt:      true,
	pb.MethodLogin:        true,
	pb.MethodRefreshToken: true,
}

var adminMethods = map[string]bool{
	pb.MethodBulkRefresh: true,
}

func withClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func claimsFrom(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok && c != nil
}

func firstMD(ctx context.Context, key string) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(key); len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {

	accessToken := firstMD(ctx, common.AccessTokenHeaderName)

	// health checks and public methods; a valid token is still picked up
	if publicMethods[info.FullMethod] || !strings.HasPrefix(info.FullMethod, "/"+pb.ServiceName+"/") {
		if accessToken != "" {
			if claims, err := auth.ParseToken(accessToken, s.jwtSecret); err == nil {
				ctx = withClaims(ctx, claims)
			}
		}
		return handler(ctx, req)
	}

	if accessToken == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	claims, err := auth.ParseToken(accessToken, s.jwtSecret)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, "token expired")
		}
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	if adminMethods[info.FullMethod] && !claims.IsAdmin() {
		return nil, status.Error(codes.PermissionDenied, "admin role required")
	}

	return handler(withClaims(ctx, claims), req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug(ctx, "rpc",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start),
	)
	return resp, err
}

// callerAddr is the address rate limits are keyed on.
func (s *GRPCServer) callerAddr(ctx context.Context) string {
	if s.trustProxy {
		if ip := netx.FirstForwarded(firstMD(ctx, "x-forwarded-for")); ip != "" {
			return ip
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return netx.HostOnly(p.Addr.String())
	}
	return netx.Unknown
}
