// Package app wires configuration into a store, a generator and the link
// services. The server and the CLI both start from here.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"shortcut-service/internal/config"
	"shortcut-service/internal/db"
	"shortcut-service/internal/links"
	"shortcut-service/internal/redisstore"
	"shortcut-service/internal/shortener"
)

// ReservedCodes are top level route segments a generated code must not shadow.
var ReservedCodes = []string{"api", "health", "metrics"}

// App holds the wired services.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     links.Store
	Generator *shortener.Generator
	Manager   *links.Manager
	Resolver  *links.Resolver

	closers []func() error
}

// New opens the configured store and builds the services on top of it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	switch cfg.StoreBackend {
	case config.BackendRedis:
		client, err := redisstore.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		a.Store = redisstore.New(client, redisstore.WithKeyPrefix(cfg.RedisKeyPrefix))
	default:
		conn, err := db.InitDB(cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, conn.Close)
		a.Store = db.NewStore(conn)
	}

	if err := a.build(cfg); err != nil {
		a.Close()
		return nil, err
	}
	logger.Info("store ready", "backend", cfg.StoreBackend)
	return a, nil
}

// NewWithStore builds the services on an existing store. Close does not close it.
func NewWithStore(cfg *config.Config, store links.Store, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger, Store: store}
	if err := a.build(cfg); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config) error {
	a.Generator = shortener.NewGenerator(
		shortener.WithMaxAttempts(cfg.MaxGenerationAttempts),
		shortener.WithReserved(ReservedCodes...),
		shortener.WithCollisionHook(func(code string, attempt int) {
			a.Logger.Warn("short code taken, retrying", "code", code, "attempt", attempt)
		}),
	)

	resolver, err := links.NewResolver(a.Store, a.Generator, cfg.ResolverCacheSize, a.Logger)
	if err != nil {
		return fmt.Errorf("create resolver: %w", err)
	}
	a.Resolver = resolver
	a.Manager = links.NewManager(a.Store, a.Generator, a.Logger)
	return nil
}

// Close releases the store connection.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
