package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/shipgl/vendor-bootstrap/internal/bootstrap"
	"github.com/shipgl/vendor-bootstrap/internal/browser"
	"github.com/shipgl/vendor-bootstrap/internal/config"
	"github.com/shipgl/vendor-bootstrap/internal/credstore"
	"github.com/shipgl/vendor-bootstrap/internal/datastore"
	"github.com/shipgl/vendor-bootstrap/internal/infra"
	"github.com/shipgl/vendor-bootstrap/internal/logging"
)

// ErrNoDatabase is returned by commands that need the vendor datastore when
// none is configured.
var ErrNoDatabase = errors.New("vendor datastore is not configured (set DATABASE_URL or DB_HOST)")

// Datastore is what the CLI needs from the vendor datastore gateway.
type Datastore interface {
	bootstrap.Gateway
	Vendor(ctx context.Context, email string) (datastore.Vendor, error)
}

type closer func()

// App holds configuration and the factories for the heavyweight resources.
// Resources are opened lazily so that commands touching only the session
// file never launch a browser.
type App struct {
	Cfg    config.Config
	Logger *slog.Logger
	Out    io.Writer

	LoadConfig  func() (config.Config, error)
	OpenStore   func(ctx context.Context, app *App) (credstore.Store, closer, error)
	OpenGateway func(ctx context.Context, app *App) (Datastore, closer, error)
	OpenDriver  func(ctx context.Context, app *App) (browser.Driver, closer, error)

	closers []closer
}

// NewApp wires the production factories.
func NewApp() *App {
	return &App{
		Out:         os.Stdout,
		LoadConfig:  config.Load,
		OpenStore:   openStore,
		OpenGateway: openGateway,
		OpenDriver:  openDriver,
	}
}

func (a *App) init(level string) error {
	cfg, err := a.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if level != "" {
		cfg.LogLevel = level
	}
	a.Cfg = cfg
	if a.Logger == nil {
		a.Logger = logging.New(cfg.LogLevel)
	}
	return nil
}

func (a *App) store(ctx context.Context) (credstore.Store, error) {
	s, c, err := a.OpenStore(ctx, a)
	if err != nil {
		return nil, err
	}
	a.track(c)
	return s, nil
}

// gateway returns nil without error when no datastore is configured.
func (a *App) gateway(ctx context.Context) (Datastore, error) {
	g, c, err := a.OpenGateway(ctx, a)
	if err != nil {
		return nil, err
	}
	a.track(c)
	return g, nil
}

func (a *App) requireGateway(ctx context.Context) (Datastore, error) {
	g, err := a.gateway(ctx)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrNoDatabase
	}
	return g, nil
}

// orchestrator builds a bootstrap orchestrator. The browser is started on
// first use.
func (a *App) orchestrator(ctx context.Context) (*bootstrap.Orchestrator, error) {
	store, err := a.store(ctx)
	if err != nil {
		return nil, err
	}
	gw, err := a.gateway(ctx)
	if err != nil {
		return nil, err
	}
	var gateway bootstrap.Gateway
	if gw != nil {
		gateway = gw
	}
	driver := &lazyDriver{open: func() (browser.Driver, error) {
		d, c, err := a.OpenDriver(ctx, a)
		if err != nil {
			return nil, err
		}
		a.track(c)
		return d, nil
	}}
	return bootstrap.New(store, gateway, driver, bootstrap.OptionsFromConfig(a.Cfg), a.Logger), nil
}

func (a *App) track(c closer) {
	if c != nil {
		a.closers = append(a.closers, c)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func openStore(ctx context.Context, a *App) (credstore.Store, closer, error) {
	switch a.Cfg.SessionStore {
	case "redis":
		client, err := infra.NewRedisClient(ctx, a.Cfg.RedisURL, a.Cfg.AppName)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", credstore.ErrUnavailable, err)
		}
		return credstore.NewRedisStore(client, a.Cfg.SessionKey, a.Logger), func() {
			if err := client.Close(); err != nil {
				a.Logger.Warn("close redis", "error", err)
			}
		}, nil
	default:
		return credstore.NewFileStore(a.Cfg.SessionFile, a.Logger), nil, nil
	}
}

func openGateway(ctx context.Context, a *App) (Datastore, closer, error) {
	dsn := a.Cfg.Database.DSN()
	if dsn == "" {
		return nil, nil, nil
	}
	gw, err := datastore.Open(ctx, datastore.PostgresDialer(dsn), a.Logger)
	if err != nil {
		return nil, nil, err
	}
	return gw, func() {
		if err := gw.Close(context.Background()); err != nil {
			a.Logger.Warn("close datastore", "error", err)
		}
	}, nil
}

func openDriver(ctx context.Context, a *App) (browser.Driver, closer, error) {
	cfg := browser.DefaultConfig()
	cfg.BaseURL = a.Cfg.BaseURL
	cfg.Headless = a.Cfg.Browser.Headless
	cfg.Bin = a.Cfg.Browser.Bin
	cfg.DebuggerURL = a.Cfg.Browser.DebuggerURL
	cfg.NavigationTimeout = a.Cfg.Browser.NavigationTimeout
	cfg.ActionTimeout = a.Cfg.Browser.UIWait

	d := browser.NewRodDriver(cfg, a.Logger)
	if err := d.Start(ctx); err != nil {
		return nil, nil, err
	}
	return d, func() {
		if err := d.Close(); err != nil {
			a.Logger.Warn("close browser", "error", err)
		}
	}, nil
}
