// Package runtime assembles the bookstore from configuration: storage backend,
// optional Redis locks and AMQP events, the HTTP API and its server.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	app "github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/events"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/httpapi"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/locks"
	mongostore "github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/storage/mongo"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/storage/sqlstore"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/config"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/middleware"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/pkg/logger"
)

type closer struct {
	name  string
	close func() error
}

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	app        *app.Application
	handler    http.Handler
	httpServer *http.Server
	closers    []closer
}

// NewApplication constructs the application described by cfg. A nil cfg is
// loaded from the environment.
func NewApplication(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		loaded, err := config.Load("")
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	a := &Application{cfg: cfg, log: log}
	if err := a.build(ctx); err != nil {
		a.closeAll()
		return nil, err
	}
	return a, nil
}

func (a *Application) build(ctx context.Context) error {
	cfg, log := a.cfg, a.log

	stores, err := a.buildStores(ctx)
	if err != nil {
		return fmt.Errorf("configure stores: %w", err)
	}

	var opts []app.Option
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.addCloser("redis", client.Close)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("ping redis %s: %w", cfg.Redis.Addr, err)
		}
		opts = append(opts, app.WithLocker(locks.NewRedis(client, cfg.Redis.LockTTL, log.Named("locks"))))
		log.WithField("addr", cfg.Redis.Addr).Info("cart locks backed by redis")
	}
	if cfg.AMQP.URL != "" {
		pub, err := events.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return err
		}
		a.addCloser("amqp", pub.Close)
		opts = append(opts, app.WithPublisher(pub))
		log.WithField("exchange", cfg.AMQP.Exchange).Info("publishing events to amqp")
	}

	application, err := app.New(stores, cfg, log, opts...)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	a.app = application

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log.Named("ratelimit"))
		if err := application.Attach(limiter); err != nil {
			return err
		}
	}

	handler, auditCloser, err := httpapi.NewHandler(application, httpapi.Options{
		JWTSecret:   cfg.Auth.JWTSecret,
		RateLimiter: limiter,
		CORSOrigins: cfg.Server.Origins(),
		AuditFile:   cfg.Server.AuditLog,
		Logger:      log.Named("http"),
	})
	if err != nil {
		return err
	}
	a.addCloser("audit", auditCloser.Close)
	a.handler = handler

	a.httpServer = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	return nil
}

func (a *Application) buildStores(ctx context.Context) (app.Stores, error) {
	cfg := a.cfg
	switch cfg.Database.Driver {
	case config.DriverMemory, "":
		a.log.Warn("using in-memory storage; data is lost on restart")
		return app.Stores{}, nil

	case config.DriverPostgres, config.DriverSQLite:
		db, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, sqlstore.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return app.Stores{}, err
		}
		a.addCloser("database", db.Close)
		if cfg.Database.MigrateOnStart {
			if err := sqlstore.Migrate(db); err != nil {
				return app.Stores{}, err
			}
		}
		return app.StoresFrom(sqlstore.New(db)), nil

	case config.DriverMongo:
		client, err := mongostore.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return app.Stores{}, err
		}
		a.addCloser("mongo", func() error { return client.Disconnect(context.Background()) })
		store := mongostore.New(client.Database(cfg.Mongo.Database))
		if err := store.EnsureIndexes(ctx); err != nil {
			return app.Stores{}, err
		}
		return app.StoresFrom(store), nil
	}
	return app.Stores{}, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
}

func (a *Application) addCloser(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, close: fn})
}

func (a *Application) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.log.WithError(err).WithField("resource", c.name).Warn("error closing resource")
		}
	}
	a.closers = nil
}

// App exposes the wired services, e.g. for the seed command.
func (a *Application) App() *app.Application {
	return a.app
}

// Handler returns the HTTP API without starting a listener.
func (a *Application) Handler() http.Handler {
	return a.handler
}

// Run starts the background services and the HTTP server and blocks until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server and services, then releases
// connections.
func (a *Application) Shutdown(ctx context.Context) error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop services: %w", err))
	}
	a.closeAll()
	return errors.Join(errs...)
}
