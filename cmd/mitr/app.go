package main

import (
	"context"
	"fmt"

	"github.com/siddham-jain/msme-mitr-sub000/internal/config"
	"github.com/siddham-jain/msme-mitr-sub000/internal/store"
)

// app holds what every subcommand needs: loaded config and a database
// connection.
type app struct {
	cfg *config.Config
	db  *store.Postgres
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.LogLevel)

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &app{cfg: cfg, db: db}, nil
}

func (a *app) close() {
	a.db.Close()
}
