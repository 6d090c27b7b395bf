package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/aussiebroadwan/mentorlink/internal/auth/http"
	"github.com/aussiebroadwan/mentorlink/internal/auth/service"
	"github.com/aussiebroadwan/mentorlink/internal/auth/store"
	"github.com/aussiebroadwan/mentorlink/internal/auth/store/drivers/memory"
	"github.com/aussiebroadwan/mentorlink/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/mentorlink/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/mentorlink/internal/auth/telemetry"
	"github.com/aussiebroadwan/mentorlink/pkg/cryptox"
	"github.com/aussiebroadwan/mentorlink/pkg/jwtx"
	"github.com/aussiebroadwan/mentorlink/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	kv          store.KV
	accounts    store.Accounts
	signingKeys store.SigningKeys // nil for the memory driver
	closers     []func() error
	pingers     stores
	keyManager  *jwtx.KeyManager

	// Services
	tokenService        *service.TokenService
	socialService       *service.SocialService
	housekeepingService *service.HousekeepingService // nil when the KV expires natively
	keyRotationService  *service.KeyRotationService

	authMetrics *telemetry.AuthMetrics
	httpMetrics *telemetry.HTTPMetrics
	redisPool   telemetry.PoolStatser // nil unless the redis driver is selected

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// Options overrides process-wide collaborators, mainly for tests.
type Options struct {
	Logger     *slog.Logger
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	return NewWithOptions(cfg, Options{})
}

func NewWithOptions(cfg Config, opts Options) (*Application, error) {
	if opts.Logger == nil {
		opts.Logger = slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		})
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	app := &Application{cfg: cfg, logger: opts.Logger}

	ctx := context.Background()
	if err := app.initStore(ctx); err != nil {
		app.closeStores()
		return nil, err
	}

	keyManager, err := InitAuthKeys(ctx, app.cfg, app.signingKeys, app.logger)
	if err != nil {
		app.closeStores()
		return nil, fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	app.keyManager = keyManager

	if err := app.initTelemetry(opts.Registerer); err != nil {
		app.closeStores()
		return nil, err
	}
	if err := app.initServices(); err != nil {
		app.closeStores()
		return nil, err
	}
	app.initHTTP(opts.Gatherer)

	return app, nil
}

// Handler exposes the routed handler without starting a listener.
func (app *Application) Handler() http.Handler { return app.router }

// Social is the entry point for the login callback flows, which run outside
// this service's HTTP surface.
func (app *Application) Social() *service.SocialService { return app.socialService }

func (app *Application) Accounts() store.Accounts { return app.accounts }

// Close releases the stores of an application that was never Run.
func (app *Application) Close() error { return app.closeStores() }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	if app.housekeepingService != nil {
		app.housekeepingService.Start()
	}
	app.keyRotationService.Start()

	app.logger.Info("auth service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"store_driver", app.cfg.StoreDriver,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.closeStores()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.housekeepingService != nil {
		app.housekeepingService.Stop()
	}
	app.keyRotationService.Stop()

	if err := app.closeStores(); err != nil {
		app.logger.Error("error closing stores", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initStore opens the KV named by the driver. Accounts live in SQLite unless
// the whole service runs in memory.
func (app *Application) initStore(ctx context.Context) error {
	switch app.cfg.StoreDriver {
	case StoreDriverMemory:
		st := memory.New()
		app.track(st)
		app.kv, app.accounts = st, st
		app.logger.Warn("using in-memory store; all state is lost on restart")
		return nil

	case StoreDriverSQLite:
		db, err := app.openSQLite()
		if err != nil {
			return err
		}
		app.kv, app.accounts, app.signingKeys = db, db.Accounts(), db.SigningKeys()
		return nil

	case StoreDriverRedis:
		rdb, err := redis.Open(ctx, redis.Options{
			Addr:         app.cfg.Redis.Addr,
			Password:     app.cfg.Redis.Password,
			DB:           app.cfg.Redis.DB,
			TLS:          app.cfg.Redis.TLS,
			DialTimeout:  app.cfg.Redis.DialTimeout,
			ReadTimeout:  app.cfg.Redis.ReadTimeout,
			WriteTimeout: app.cfg.Redis.WriteTimeout,
			PoolSize:     app.cfg.Redis.PoolSize,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.track(rdb)
		app.redisPool = rdb
		app.logger.Info("connected to redis", "addr", app.cfg.Redis.Addr, "db", app.cfg.Redis.DB)

		db, err := app.openSQLite()
		if err != nil {
			return err
		}
		app.kv, app.accounts, app.signingKeys = rdb, db.Accounts(), db.SigningKeys()
		return nil
	}

	return fmt.Errorf("unsupported store driver %q", app.cfg.StoreDriver)
}

func (app *Application) openSQLite() (*sqlite.Store, error) {
	db, err := sqlite.NewStore(app.cfg.DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.track(db)

	if err := db.ApplyMigrations(); err != nil {
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "file", app.cfg.DatabaseFile)
	return db, nil
}

type closablePinger interface {
	httpapi.Pinger
	Close() error
}

func (app *Application) track(s closablePinger) {
	app.closers = append(app.closers, s.Close)
	app.pingers = append(app.pingers, s)
}

// closeStores closes in reverse open order and is safe to call twice.
func (app *Application) closeStores() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}

func (app *Application) initTelemetry(reg prometheus.Registerer) error {
	opts := telemetry.Options{Registerer: reg}

	authMetrics, err := telemetry.NewAuthMetrics(opts)
	if err != nil {
		return fmt.Errorf("failed to register auth metrics: %w", err)
	}
	httpMetrics, err := telemetry.NewHTTPMetrics(opts)
	if err != nil {
		return fmt.Errorf("failed to register http metrics: %w", err)
	}

	if app.redisPool != nil {
		if _, err := telemetry.NewPoolCollector(opts, app.redisPool); err != nil {
			return fmt.Errorf("failed to register redis pool metrics: %w", err)
		}
	}

	app.authMetrics, app.httpMetrics = authMetrics, httpMetrics
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() error {
	keys := store.NewKeyspace(app.cfg.KeyPrefix)

	var sealKey []byte
	if app.cfg.SealKey != "" {
		sealKey = []byte(app.cfg.SealKey)
	} else {
		app.logger.Warn("AUTH_SEAL_KEY not set; pending links will not survive a restart")
	}
	sealer, err := cryptox.NewSealer(sealKey)
	if err != nil {
		return fmt.Errorf("failed to initialize sealer: %w", err)
	}

	links, err := service.NewPendingLinkRegistry(app.kv, keys, service.PendingLinkConfig{
		TTL:    app.cfg.PendingLinkTTL,
		Sealer: sealer,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize pending links: %w", err)
	}

	app.tokenService = service.NewTokenService(
		app.keyManager,
		service.NewRefreshFamilyRegistry(app.kv, keys, service.FamilyConfig{TTL: app.cfg.RefreshTTL}),
		service.NewTokenBlacklist(app.kv, keys, service.BlacklistConfig{MaxTTL: app.cfg.RefreshTTL}, app.authMetrics),
		app.authMetrics,
		service.TokenConfig{
			AccessTTL:  app.cfg.AccessTTL,
			RefreshTTL: app.cfg.RefreshTTL,
		},
	)

	app.socialService = service.NewSocialService(
		service.NewAuthCodeRegistry(app.kv, keys, service.AuthCodeConfig{
			CodeBytes: app.cfg.CodeBytes,
			TTL:       app.cfg.CodeTTL,
		}),
		links,
		app.accounts,
		app.tokenService,
		app.authMetrics,
	)

	app.keyRotationService = service.NewKeyRotationService(
		app.keyManager,
		app.logger,
		app.cfg.KeyRotationInterval,
		app.cfg.RefreshTTL,
	)

	if sweeper, ok := app.kv.(store.Sweeper); ok {
		app.housekeepingService = service.NewHousekeepingService(
			sweeper,
			app.logger,
			app.cfg.HousekeepingInterval,
		)
	}

	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP(gatherer prometheus.Gatherer) {
	router := httpapi.NewRouter(
		app.keyManager.KeySet,
		BuildVersion,
		app.pingers,
		app.cfg.RateLimits(),
		app.logger,
	)

	router.TokenService = app.tokenService
	router.SocialService = app.socialService
	router.HTTPMetrics = app.httpMetrics
	router.MetricsHandler = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// stores pings every backing store; readiness fails on the first error.
type stores []httpapi.Pinger

func (s stores) Ping(ctx context.Context) error {
	for _, p := range s {
		if err := p.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}
