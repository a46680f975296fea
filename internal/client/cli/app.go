package cli

import (
	"bufio"
	"context"
	"database/sql"
	"io"
	"log"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/doorkeeper/internal/client/client"
	"github.com/dmitrijs2005/doorkeeper/internal/client/config"
	"github.com/dmitrijs2005/doorkeeper/internal/client/models"
	"github.com/dmitrijs2005/doorkeeper/internal/client/services"
	"github.com/dmitrijs2005/doorkeeper/internal/common"
	"github.com/dmitrijs2005/doorkeeper/internal/logging"
)

type Mode string

const (
	ModeOffline  Mode = "offline"
	ModeOnline   Mode = "online"
	ModeDisabled Mode = "disabled"
)

type offlineService interface {
	RefreshCache(ctx context.Context, masterKey []byte, eventID string) (*models.CacheInfo, error)
	SyncQueue(ctx context.Context) (*models.SyncResult, error)
	Pending(ctx context.Context) ([]*models.OutboxEntry, error)
	Discard(ctx context.Context, id string) error
	CacheInfo(ctx context.Context) (*models.CacheInfo, error)
	ClearCache(ctx context.Context) error
}

type scanService interface {
	Scan(ctx context.Context, masterKey []byte, qrData string, online bool) (*models.CheckInResult, error)
	CheckIn(ctx context.Context, attendeeID string, online bool) (*models.CheckInResult, error)
}

type App struct {
	config         *config.Config
	db             *sql.DB
	authService    services.AuthService
	offlineService offlineService
	scanService    scanService
	reader         *bufio.Reader

	// guards the session and Mode, which the watcher reads
	mu        sync.Mutex
	masterKey []byte
	userName  string
	// set when the server issued us tokens; an offline login has none
	serverSession bool
	Mode          Mode
}

func NewApp(c *config.Config) (*App, error) {

	ctx := context.Background()

	db, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		log.Printf("error initializing database: %s", err.Error())
		return nil, err
	}

	apiClient, err := client.NewDoorkeeperClient(c.ServerEndpointAddr)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	as := services.NewAuthService(apiClient, db)
	ofs := services.NewOfflineService(apiClient, db, c.DeviceID, c.SyncTimeout, logger)
	ss := services.NewScanService(apiClient, ofs, c.DeviceID, logger)

	return &App{
		config:         c,
		db:             db,
		authService:    as,
		offlineService: ofs,
		scanService:    ss,
		reader:         bufio.NewReader(stdin),
	}, nil
}

var stdin io.Reader = os.Stdin

func (app *App) setMode(mode Mode) {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.Mode != mode {
		app.Mode = mode
		log.Printf("Switched to %s mode\n", mode)
	}
}

func (app *App) mode() Mode {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.Mode
}

func (app *App) online() bool {
	return app.mode() == ModeOnline
}

func (a *App) Run(ctx context.Context) {
	defer func() {
		_ = a.authService.Close(ctx)
		if a.db != nil {
			_ = a.db.Close()
		}
	}()
	a.Root(ctx)
}

func (a *App) isLoggedIn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.masterKey != nil
}

func (a *App) setSession(masterKey []byte, userName string, serverSession bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.masterKey != nil {
		common.WipeByteArray(a.masterKey)
	}
	a.masterKey, a.userName, a.serverSession = masterKey, userName, serverSession
}

func (a *App) hasServerSession() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.serverSession
}

// StartOnlineStatusWatcher pings the server every interval and flips the
// mode. Coming back online drains the outbox.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := a.authService.Ping(pingCtx)
			cancel()

			if err != nil {
				if a.mode() == ModeOnline {
					a.setMode(ModeOffline)
				}
				continue
			}

			if a.mode() != ModeOnline {
				wasOffline := a.mode() == ModeOffline
				a.setMode(ModeOnline)
				if wasOffline {
					a.autoSync(ctx)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

func (a *App) autoSync(ctx context.Context) {
	if !a.isLoggedIn() {
		return
	}
	if !a.hasServerSession() {
		log.Printf("Server is reachable again, login to sync queued check-ins")
		return
	}
	res, err := a.offlineService.SyncQueue(ctx)
	if err != nil {
		log.Printf("Sync error: %s", err.Error())
		return
	}
	if res.Synced > 0 || res.Failed > 0 {
		log.Printf("Synced %d queued check-ins, %d failed, %d remaining", res.Synced, res.Failed, res.Remaining)
	}
}
