package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"shortcut-service/internal/api"
	"shortcut-service/internal/app"
	"shortcut-service/internal/config"
	"shortcut-service/internal/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load application configuration
	if err := config.LoadConfig(); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := config.AppConfig

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	switch cfg.StoreBackend {
	case config.BackendRedis:
		logger.Info("connecting to redis", "url", redactDBURL(cfg.RedisURL))
	default:
		logger.Info("connecting to database", "driver", cfg.DatabaseDriver, "url", redactDBURL(cfg.DatabaseURL))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	handler := api.NewHandler(a.Manager, a.Resolver, cfg.BaseURL, logger)
	srv := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           api.SetupRouter(handler, []byte(cfg.JWTSecret), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			a.Close()
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}
}

// redactDBURL is a helper function to avoid logging sensitive parts of a
// connection URL.
func redactDBURL(dbURL string) string {
	u, err := url.Parse(dbURL)
	if err != nil {
		return "********"
	}
	return u.Redacted()
}
