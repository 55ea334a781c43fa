// Package app composes the bookstore services into a running application.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Models: book, author, category, cart, user
//	├── services/           # catalog, categories, cart, accounts
//	├── storage/            # Store interfaces and sentinels
//	│   ├── memory/         # In-memory implementation
//	│   ├── sqlstore/       # PostgreSQL and SQLite via sqlx + golang-migrate
//	│   └── mongo/          # MongoDB implementation
//	├── events/             # Stock and cart events: noop, AMQP
//	├── locks/              # Per-user cart locks: in-process, Redis
//	├── seed/               # Demo catalog loader
//	├── httpapi/            # REST handlers and routing
//	├── runtime/            # Config-driven assembly and HTTP server
//	├── system/             # Lifecycle manager
//	└── metrics/            # Prometheus collectors
//
// # Usage
//
//	application, err := app.New(app.Stores{}, cfg, log)
//	if err != nil {
//	    return err
//	}
//	if err := application.Start(ctx); err != nil {
//	    return err
//	}
//	defer application.Stop(ctx)
//
// Nil stores fall back to a single shared in-memory store, which is what the
// tests use.
package app
