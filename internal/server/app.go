// Package server initializes and runs the check-in server.
// It opens PostgreSQL and applies migrations, connects the optional Redis,
// RabbitMQ, S3 and OTLP backends, and serves the gRPC scanner API alongside
// the HTTP staff API until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/doorkeeper/internal/logging"
	"github.com/dmitrijs2005/doorkeeper/internal/mq"
	"github.com/dmitrijs2005/doorkeeper/internal/obs"
	"github.com/dmitrijs2005/doorkeeper/internal/ratelimit"
	"github.com/dmitrijs2005/doorkeeper/internal/server/config"
	"github.com/dmitrijs2005/doorkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/doorkeeper/internal/server/qrimage"
	"github.com/dmitrijs2005/doorkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/doorkeeper/internal/server/services"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/doorkeeper/internal/server/grpc"
)

const serviceName = "doorkeeper"

// Version is stamped at build time with -ldflags "-X ...server.Version=...".
var Version = "dev"

type App struct {
	config        *config.Config
	logger        logging.Logger
	db            *sql.DB
	closers       []io.Closer
	traceShutdown func(context.Context) error
	grpcServices  gs.Services
	httpServices  httpapi.Services
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	app := &App{config: c, logger: logger.With("module", "app")}

	shutdown, err := obs.InitTracer(ctx, serviceName, Version, c.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("tracer init error: %w", err)
	}
	app.traceShutdown = shutdown

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	app.db = db
	app.closers = append(app.closers, db)

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	limiter, err := app.newLimiter(ctx)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}

	publisher, err := app.newPublisher()
	if err != nil {
		app.Close(ctx)
		return nil, err
	}

	var images services.ImageRenderer
	if c.QRImagesEnabled {
		r, err := qrimage.New(ctx, qrimage.Options{
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			BaseEndpoint: c.S3BaseEndpoint,
			Bucket:       c.S3Bucket,
		})
		if err != nil {
			app.Close(ctx)
			return nil, fmt.Errorf("qr image storage init error: %w", err)
		}
		images = r
	}

	resolver := services.NewDefaultEventResolver(m.Events(db), c.DefaultEventSlug, c.DefaultEventCacheTTL)
	issuer := services.NewTokenIssuer(db, m, resolver, c.QRTokenTTL, publisher, images, logger)
	checkIns := services.NewCheckInService(db, m, limiter, resolver, publisher, logger)
	bulk := services.NewBulkRefresher(db, m, issuer, c.BulkBatchSize, c.BulkBatchPause, c.BulkErrorSample, logger)
	snapshots := services.NewSnapshotService(db, m, c.DefaultEventSlug)
	users := services.NewUserService(db, m, c, logger)

	app.grpcServices = gs.Services{Users: users, CheckIns: checkIns, Issuer: issuer, Bulk: bulk, Snapshots: snapshots}
	app.httpServices = httpapi.Services{CheckIns: checkIns, Issuer: issuer, Bulk: bulk, Snapshots: snapshots}

	return app, nil
}

func (app *App) newLimiter(ctx context.Context) (ratelimit.Limiter, error) {
	opts := ratelimit.Options{MaxAttempts: app.config.RateLimitMaxAttempts, Window: app.config.RateLimitWindow}

	if app.config.RedisURL == "" {
		return ratelimit.NewMemoryLimiter(opts), nil
	}

	client, err := ratelimit.NewRedisClient(ctx, app.config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("rate limiter init error: %w", err)
	}
	app.closers = append(app.closers, client)
	return ratelimit.NewRedisLimiter(client, opts), nil
}

func (app *App) newPublisher() (mq.Publisher, error) {
	if app.config.RabbitURL == "" {
		return mq.Nop{}, nil
	}

	p, err := mq.NewRabbitPublisher(app.config.RabbitURL, app.config.RabbitExchange)
	if err != nil {
		return nil, fmt.Errorf("publisher init error: %w", err)
	}
	app.closers = append(app.closers, p)
	return p, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Close releases backends in reverse order of acquisition.
func (app *App) Close(ctx context.Context) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Error(ctx, "error closing backend", "error", err)
		}
	}
	app.closers = nil

	if app.traceShutdown != nil {
		if err := app.traceShutdown(ctx); err != nil {
			app.logger.Error(ctx, "error flushing traces", "error", err)
		}
		app.traceShutdown = nil
	}
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "version", Version)

	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.grpcServices, app.config.SecretKey, app.config.TrustProxyHeaders)
		return s.Run(gctx)
	})

	g.Go(func() error {
		s := httpapi.NewServer(app.config.EndpointAddrHTTP, app.logger, app.httpServices, app.config.SecretKey, app.config.TrustProxyHeaders)
		return s.Run(gctx)
	})

	err := g.Wait()
	if err != nil {
		app.logger.Error(ctx, "server stopped", "error", err)
	}

	app.Close(context.Background())
	app.logger.Info(ctx, "App stopped")
	return err
}
