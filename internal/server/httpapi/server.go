// Package httpapi serves the staff dashboard JSON API.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/doorkeeper/internal/logging"
	"github.com/dmitrijs2005/doorkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

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

type Services struct {
	CheckIns  CheckIns
	Issuer    Issuer
	Bulk      BulkRefresher
	Snapshots Snapshots
}

type Server struct {
	address    string
	svc        Services
	logger     logging.Logger
	jwtSecret  []byte
	trustProxy bool
}

func NewServer(a string, l logging.Logger, svc Services, secretKey string, trustProxy bool) *Server {
	return &Server{
		address:    a,
		svc:        svc,
		logger:     l.With("module", "http_server"),
		jwtSecret:  []byte(secretKey),
		trustProxy: trustProxy,
	}
}

// Router builds the route tree. Everything under /api needs a bearer token.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Post("/checkin", s.handleCheckIn)
		r.Get("/attendees/offline-cache", s.handleOfflineCache)
		r.Post("/attendees/refresh-qr", s.handleRefreshQR)
		r.With(s.requireAdmin).Post("/attendees/refresh-qr-bulk", s.handleRefreshQRBulk)
	})

	return r
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
