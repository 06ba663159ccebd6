package routes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/shipgl/vendor-bootstrap/internal/auth"
	"github.com/shipgl/vendor-bootstrap/internal/config"
	"github.com/shipgl/vendor-bootstrap/internal/middleware"
	"github.com/shipgl/vendor-bootstrap/internal/notification"
	"github.com/shipgl/vendor-bootstrap/internal/vendor"
)

const loginAttemptsPerMinute = 5

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	// Notifier receives OTP messages. Defaults to the logger.
	Notifier notification.Notifier
	// Vendors overrides the repository chosen from DB.
	Vendors vendor.Repository
}

// Setup configures middlewares and all portal routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())

	repo := d.Vendors
	if repo == nil {
		if d.DB != nil {
			pg := vendor.NewPostgresRepository(d.DB)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := pg.EnsureSchema(ctx); err != nil {
				return err
			}
			repo = pg
		} else {
			repo = vendor.NewMemoryRepository()
		}
	}
	notifier := d.Notifier
	if notifier == nil {
		notifier = notification.NewLoggerNotifier(d.Logger)
	}
	vendors := vendor.NewService(repo, notifier)
	sessions := auth.NewSessions(d.Cfg.PortalSessionSecret, 0)

	app.Use(middleware.Session(sessions, vendors))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)
	RegisterPortalRoutes(app, vendors, sessions, middleware.LoginRateLimit(d.Cache, loginAttemptsPerMinute, d.Logger), d.Logger)

	return nil
}
