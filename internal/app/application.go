package app

import (
	"context"
	"fmt"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/core/service"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/events"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/locks"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/seed"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/services/accounts"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/services/cart"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/services/catalog"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/services/categories"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/storage"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/storage/memory"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/system"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/config"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/middleware"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Books      storage.BookStore
	Authors    storage.AuthorStore
	Categories storage.CategoryStore
	Carts      storage.CartStore
	Users      storage.UserStore
	Resetter   storage.Resetter
}

// StoresFrom uses one backend for every aggregate.
func StoresFrom(s storage.Store) Stores {
	return Stores{
		Books:      s,
		Authors:    s,
		Categories: s,
		Carts:      s,
		Users:      s,
		Resetter:   s,
	}
}

// Option customises optional collaborators.
type Option func(*options)

type options struct {
	locker    locks.Locker
	publisher events.Publisher
}

// WithLocker replaces the in-process cart lock, e.g. with a Redis lock shared
// by several replicas.
func WithLocker(l locks.Locker) Option {
	return func(o *options) { o.locker = l }
}

// WithPublisher sends stock and cart events to pub.
func WithPublisher(pub events.Publisher) Option {
	return func(o *options) { o.publisher = pub }
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger
	opts    options

	Tokens     *middleware.TokenIssuer
	Catalog    *catalog.Service
	Categories *categories.Service
	Cart       *cart.Service
	Accounts   *accounts.Service
	Seeder     *seed.Seeder
	Sweeper    *cart.Sweeper
}

// New builds a fully initialised application with the provided stores. A nil
// cfg uses config.Default().
func New(stores Stores, cfg *config.Config, log *logger.Logger, opts ...Option) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if cfg == nil {
		cfg = config.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var mem *memory.Store
	memStore := func() *memory.Store {
		if mem == nil {
			mem = memory.New()
		}
		return mem
	}
	if stores.Books == nil {
		stores.Books = memStore()
	}
	if stores.Authors == nil {
		stores.Authors = memStore()
	}
	if stores.Categories == nil {
		stores.Categories = memStore()
	}
	if stores.Carts == nil {
		stores.Carts = memStore()
	}
	if stores.Users == nil {
		stores.Users = memStore()
	}
	if stores.Resetter == nil {
		stores.Resetter = memStore()
	}

	manager := system.NewManager()

	emitter := events.NewEmitter(o.publisher, log.Named("events"))

	categoryService := categories.New(stores.Categories, stores.Books, log.Named("categories"))

	cartService := cart.New(stores.Carts, stores.Books, log.Named("cart"))
	cartService.WithEvents(emitter)
	if o.locker != nil {
		cartService.WithLocker(o.locker)
	}

	catalogService := catalog.New(stores.Books, stores.Authors, stores.Categories, categoryService, log.Named("catalog"))
	catalogService.WithCartDetacher(cartService)
	catalogService.WithEvents(emitter)
	catalogService.WithPageSizes(cfg.Catalog.DefaultPageSize, cfg.Catalog.MaxPageSize)
	if o.locker != nil {
		catalogService.WithLocker(o.locker)
	}

	tokens := middleware.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	accountService := accounts.New(stores.Users, tokens, log.Named("accounts"))
	accountService.WithCartClearer(cartService)
	accountService.WithPasswordPolicy(cfg.Auth.BcryptCost, cfg.Auth.MinPasswordLength)
	accountService.WithResolveCacheSize(cfg.Auth.ResolveCacheSize)

	seeder := seed.New(stores.Resetter, catalogService, categoryService, accountService, seed.Passwords{
		User:  cfg.Seed.UserPassword,
		Admin: cfg.Seed.AdminPassword,
	}, log.Named("seed"))

	for _, name := range []string{"catalog", "categories", "accounts", "cart"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	var sweeper *cart.Sweeper
	if cfg.Cart.SweeperEnabled() {
		s, err := cart.NewSweeper(cartService, cfg.Cart.SweepSchedule, log.Named("cart-sweeper"))
		if err != nil {
			return nil, err
		}
		if err := manager.Register(s); err != nil {
			return nil, fmt.Errorf("register %s: %w", s.Name(), err)
		}
		sweeper = s
	} else {
		log.Warn("cart sweep schedule disabled; dangling lines are only pruned on book deletion")
	}

	return &Application{
		manager:    manager,
		log:        log,
		opts:       o,
		Tokens:     tokens,
		Catalog:    catalogService,
		Categories: categoryService,
		Cart:       cartService,
		Accounts:   accountService,
		Seeder:     seeder,
		Sweeper:    sweeper,
	}, nil
}

// Descriptors lists the domain services for health and status reporting.
// Optional collaborators show up as extra cart capabilities.
func (a *Application) Descriptors() []service.Descriptor {
	cartDesc := a.Cart.Descriptor()
	if a.opts.locker != nil {
		cartDesc = cartDesc.WithCapabilities("shared-lock")
	}
	if a.opts.publisher != nil {
		cartDesc = cartDesc.WithCapabilities("events")
	}
	return []service.Descriptor{
		a.Catalog.Descriptor(),
		a.Categories.Descriptor(),
		cartDesc,
		a.Accounts.Descriptor(),
	}
}

// Services lists the names of lifecycle-managed services in start order.
func (a *Application) Services() []string {
	return a.manager.Names()
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
