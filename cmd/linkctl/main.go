// Command linkctl manages short links directly against the configured store.
package main

import (
	"context"
	"fmt"
	"os"

	"shortcut-service/internal/app"
	"shortcut-service/internal/config"
	"shortcut-service/internal/logging"
)

func main() {
	c := &cli{
		out: os.Stdout,
		loadConfig: func() (*config.Config, error) {
			if err := config.LoadConfig(); err != nil {
				return nil, err
			}
			return config.AppConfig, nil
		},
		openApp: func(ctx context.Context, cfg *config.Config) (*app.App, error) {
			return app.New(ctx, cfg, logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr))
		},
	}

	if err := c.rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
