// Package store owns storage initialization and connection lifecycle for the
// wallet ledger: it bootstraps the schema exactly once per process, hands out
// logical connections bound to the shared backing store, and tears everything
// down on shutdown.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultSQLiteDSN keeps the whole database in one shared in-memory cache so
// every connection sees the same data. The store vanishes when the primary
// connection closes.
const DefaultSQLiteDSN = "file:walletdb?mode=memory&cache=shared"

// ErrShutdown is returned by Initialize after the provider has been shut down.
var ErrShutdown = errors.New("store: provider is shut down")

// Config selects the backing store.
type Config struct {
	Driver string
	DSN    string
}

// Provider bootstraps the schema and issues logical connections. Acquire
// blocks until Initialize has completed; callers needing bounded latency must
// pass a context with a deadline.
type Provider struct {
	cfg Config
	log *zap.SugaredLogger

	mu     sync.Mutex
	db     *gorm.DB
	closed bool
	ready  chan struct{}
}

// NewProvider returns an uninitialized provider.
func NewProvider(cfg Config, log *zap.SugaredLogger) *Provider {
	return &Provider{cfg: cfg, log: log, ready: make(chan struct{})}
}

// Engine pragmas for the sqlite backend: this store is ephemeral, so
// durability is traded for throughput.
var sqlitePragmas = []string{
	"PRAGMA temp_store = MEMORY",
	"PRAGMA synchronous = OFF",
	"PRAGMA journal_mode = MEMORY",
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS player (
		id_player TEXT PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		FOREIGN KEY (id_player) REFERENCES wallet (id_player)
			ON DELETE CASCADE
			ON UPDATE NO ACTION)`,
	`CREATE TABLE IF NOT EXISTS wallet (
		id_player TEXT PRIMARY KEY,
		balance NUMERIC(20,8) NOT NULL DEFAULT 0)`,
	`CREATE TABLE IF NOT EXISTS ledger_transaction (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id_transaction TEXT NOT NULL,
		id_ref TEXT,
		ref_type TEXT NOT NULL,
		amount NUMERIC(20,8) NOT NULL,
		transaction_type TEXT NOT NULL,
		created_at DATETIME)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_transaction_id_transaction
		ON ledger_transaction (id_transaction)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_transaction_id_ref
		ON ledger_transaction (id_ref)`,
	`CREATE TABLE IF NOT EXISTS event_outbox (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		aggregate TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		processed BOOLEAN NOT NULL DEFAULT FALSE,
		processed_at DATETIME)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS player (
		id_player VARCHAR(36) PRIMARY KEY,
		username VARCHAR(64) UNIQUE NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS wallet (
		id_player VARCHAR(36) PRIMARY KEY REFERENCES player (id_player) ON DELETE CASCADE,
		balance NUMERIC(20,8) NOT NULL DEFAULT 0)`,
	`CREATE TABLE IF NOT EXISTS ledger_transaction (
		seq BIGSERIAL PRIMARY KEY,
		id_transaction VARCHAR(36) NOT NULL,
		id_ref VARCHAR(36),
		ref_type VARCHAR(32) NOT NULL,
		amount NUMERIC(20,8) NOT NULL,
		transaction_type VARCHAR(32) NOT NULL,
		created_at TIMESTAMPTZ)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_transaction_id_transaction
		ON ledger_transaction (id_transaction)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_transaction_id_ref
		ON ledger_transaction (id_ref)`,
	`CREATE TABLE IF NOT EXISTS event_outbox (
		id BIGSERIAL PRIMARY KEY,
		aggregate VARCHAR(64) NOT NULL,
		aggregate_id VARCHAR(36) NOT NULL,
		event_type VARCHAR(64) NOT NULL,
		payload TEXT NOT NULL,
		created_at TIMESTAMPTZ,
		processed BOOLEAN NOT NULL DEFAULT FALSE,
		processed_at TIMESTAMPTZ)`,
}

// Initialize opens the primary connection, applies the engine pragmas and
// creates the schema. Idempotent: a second call returns nil without touching
// the store. Any DDL failure propagates and leaves the provider unready, so a
// partially created schema is never treated as usable.
func (p *Provider) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrShutdown
	}
	if p.db != nil {
		return nil
	}

	driver := p.cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}

	var (
		dial   gorm.Dialector
		schema []string
	)
	switch driver {
	case DriverSQLite:
		dsn := p.cfg.DSN
		if dsn == "" {
			dsn = DefaultSQLiteDSN
		}
		dial = sqlite.Open(dsn)
		schema = sqliteSchema
	case DriverPostgres:
		dial = postgres.Open(p.cfg.DSN)
		schema = postgresSchema
	default:
		return fmt.Errorf("store: unknown driver %q", driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{TranslateError: true})
	if err != nil {
		return fmt.Errorf("store: open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// Shared-cache writers on separate connections are not serializable
		// with each other; a single pooled connection serializes all access
		// at the pool boundary.
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("store: unwrap sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)

		for _, pragma := range sqlitePragmas {
			if err := db.WithContext(ctx).Exec(pragma).Error; err != nil {
				return fmt.Errorf("store: %s: %w", pragma, err)
			}
		}
	}

	for _, ddl := range schema {
		if err := db.WithContext(ctx).Exec(ddl).Error; err != nil {
			return fmt.Errorf("store: apply schema: %w", err)
		}
	}

	p.db = db
	close(p.ready)
	if p.log != nil {
		p.log.Infow("store initialized", "driver", driver)
	}
	return nil
}

// Acquire blocks until Initialize has completed, then returns an independent
// logical session bound to the shared backing store. If Initialize never
// runs, Acquire blocks until ctx is done.
func (p *Provider) Acquire(ctx context.Context) (*gorm.DB, error) {
	select {
	case <-p.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	p.mu.Lock()
	db := p.db
	p.mu.Unlock()
	if db == nil {
		return nil, ErrShutdown
	}
	return db.WithContext(ctx).Session(&gorm.Session{NewDB: true}), nil
}

// Shutdown releases the primary connection. A second sequential call is a
// no-op; concurrent calls are not supported.
func (p *Provider) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.db == nil {
		return nil
	}
	sqlDB, err := p.db.DB()
	p.db = nil
	if err != nil {
		return fmt.Errorf("store: unwrap sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
